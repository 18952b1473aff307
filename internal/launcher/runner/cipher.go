package runner

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"golang.org/x/crypto/blowfish"
)

const (
	encryptedPrefix = "//**sqex0003"
	encryptedSuffix = "**//"
	checksumTable   = "fX1pGtdS5CAP4_VL"
	ticksArgument   = "T"
)

// TickSource returns the host's millisecond tick counter, which seeds the
// argument cipher.
type TickSource func() uint32

// BootTicks counts milliseconds since the host booted.
func BootTicks() uint32 {
	boot, err := host.BootTimeWithContext(context.Background())
	if err != nil || boot == 0 {
		return uint32(time.Now().UnixMilli())
	}
	return uint32(time.Since(time.Unix(int64(boot), 0)).Milliseconds())
}

func argumentKey(ticks uint32) uint32 {
	return ticks & 0xFFFF0000
}

// EncryptArguments obfuscates the argument list into the single opaque
// token the client accepts. The key is derived from ticks, so the same
// arguments encrypt differently over time.
func EncryptArguments(args Arguments, ticks uint32) (string, error) {
	var plain strings.Builder
	fmt.Fprintf(&plain, " /%s =%d", ticksArgument, ticks)
	for _, arg := range args {
		fmt.Fprintf(&plain, " /%s =%s", arg.Key, strings.ReplaceAll(arg.Value, " ", "  "))
	}

	key := argumentKey(ticks)
	c, err := newArgumentCipher(key)
	if err != nil {
		return "", err
	}

	data := []byte(plain.String())
	if rem := len(data) % blowfish.BlockSize; rem != 0 {
		data = append(data, make([]byte, blowfish.BlockSize-rem)...)
	}
	for i := 0; i < len(data); i += blowfish.BlockSize {
		c.encrypt(data[i : i+blowfish.BlockSize])
	}

	return encryptedPrefix +
		base64.URLEncoding.EncodeToString(data) +
		string(checksumTable[(key>>16)&0xF]) +
		encryptedSuffix, nil
}

// DecryptArguments reverses EncryptArguments for the given tick value.
func DecryptArguments(token string, ticks uint32) (Arguments, error) {
	if !strings.HasPrefix(token, encryptedPrefix) || !strings.HasSuffix(token, encryptedSuffix) {
		return nil, fmt.Errorf("not an encrypted argument token")
	}
	body := strings.TrimSuffix(strings.TrimPrefix(token, encryptedPrefix), encryptedSuffix)
	if body == "" {
		return nil, fmt.Errorf("encrypted argument token is empty")
	}

	key := argumentKey(ticks)
	if body[len(body)-1] != checksumTable[(key>>16)&0xF] {
		return nil, fmt.Errorf("checksum does not match key")
	}

	data, err := base64.URLEncoding.DecodeString(body[:len(body)-1])
	if err != nil {
		return nil, err
	}
	if len(data)%blowfish.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not block aligned")
	}

	c, err := newArgumentCipher(key)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(data); i += blowfish.BlockSize {
		c.decrypt(data[i : i+blowfish.BlockSize])
	}
	return parseEncryptedPlain(string(bytes.TrimRight(data, "\x00")), ticks)
}

// parseEncryptedPlain splits " /T =<ticks> /KEY =VALUE ..." back into
// arguments. Every space inside a value is doubled, so a separator is the
// last space of an odd-length run followed by '/'.
func parseEncryptedPlain(plain string, ticks uint32) (Arguments, error) {
	var starts []int
	run := 0
	for i := 0; i+1 < len(plain); i++ {
		if plain[i] != ' ' {
			run = 0
			continue
		}
		run++
		if plain[i+1] == '/' && run%2 == 1 {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 || starts[0] != 0 {
		return nil, fmt.Errorf("decrypted arguments are malformed")
	}

	var args Arguments
	for n, start := range starts {
		end := len(plain)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		key, value, ok := strings.Cut(plain[start+2:end], " =")
		if !ok {
			return nil, fmt.Errorf("decrypted argument %q is malformed", plain[start:end])
		}
		value = strings.ReplaceAll(value, "  ", " ")
		if n == 0 {
			if key != ticksArgument || value != strconv.FormatUint(uint64(ticks), 10) {
				return nil, fmt.Errorf("decrypted tick value does not match")
			}
			continue
		}
		args = append(args, Argument{Key: key, Value: value})
	}
	return args, nil
}

// argumentCipher is Blowfish over little-endian words. x/crypto/blowfish
// reads big-endian words, so each 32-bit half is byte-swapped around the
// block operation.
type argumentCipher struct {
	c *blowfish.Cipher
}

func newArgumentCipher(key uint32) (*argumentCipher, error) {
	c, err := blowfish.NewCipher([]byte(fmt.Sprintf("%08x", key)))
	if err != nil {
		return nil, err
	}
	return &argumentCipher{c: c}, nil
}

func (a *argumentCipher) encrypt(block []byte) {
	swapWords(block)
	a.c.Encrypt(block, block)
	swapWords(block)
}

func (a *argumentCipher) decrypt(block []byte) {
	swapWords(block)
	a.c.Decrypt(block, block)
	swapWords(block)
}

func swapWords(block []byte) {
	block[0], block[1], block[2], block[3] = block[3], block[2], block[1], block[0]
	block[4], block[5], block[6], block[7] = block[7], block[6], block[5], block[4]
}
