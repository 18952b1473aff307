package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArgs() Arguments {
	var args Arguments
	args.Add("DEV.TestSID", "0123456789abcdef")
	args.Add("DEV.MaxEntitledExpansionID", 5)
	args.Add("SYS.Region", 3)
	args.Add("language", 1)
	args.Add("UserPath", `Z:\home\player\My Games\FINAL FANTASY XIV`)
	return args
}

func TestEncryptArgumentsRoundTrip(t *testing.T) {
	for _, ticks := range []uint32{0, 1, 0x0000FFFF, 0x12345678, 0xFFFFFFFF} {
		token, err := EncryptArguments(sampleArgs(), ticks)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(token, "//**sqex0003"))
		assert.True(t, strings.HasSuffix(token, "**//"))

		got, err := DecryptArguments(token, ticks)
		require.NoError(t, err)
		assert.Equal(t, sampleArgs(), got)
	}
}

func TestEncryptArgumentsRoundTripSpacedValues(t *testing.T) {
	for _, value := range []string{"trailing ", "a /b", " lead", "", " ", "a  /b ", "x /", "two  spaces", "/"} {
		var args Arguments
		args.Add("UserPath", value)
		args.Add("language", 1)
		args.Add("Empty", "")

		token, err := EncryptArguments(args, 0x12345678)
		require.NoError(t, err)
		got, err := DecryptArguments(token, 0x12345678)
		require.NoError(t, err, "value %q", value)
		assert.Equal(t, args, got, "value %q", value)
	}
}

func TestEncryptArgumentsDifferOverTime(t *testing.T) {
	a, err := EncryptArguments(sampleArgs(), 0x00010000)
	require.NoError(t, err)
	b, err := EncryptArguments(sampleArgs(), 0x00020000)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// same key window, different tick
	c, err := EncryptArguments(sampleArgs(), 0x00010001)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEncryptArgumentsChecksum(t *testing.T) {
	token, err := EncryptArguments(sampleArgs(), 0x00030000)
	require.NoError(t, err)
	body := strings.TrimSuffix(token, "**//")
	assert.Equal(t, byte(checksumTable[3]), body[len(body)-1])
}

func TestDecryptArgumentsWrongKey(t *testing.T) {
	token, err := EncryptArguments(sampleArgs(), 0x00010000)
	require.NoError(t, err)

	_, err = DecryptArguments(token, 0x00020000)
	assert.Error(t, err)

	_, err = DecryptArguments("DEV.TestSID=x", 0)
	assert.Error(t, err)
}

func TestArgumentsTokens(t *testing.T) {
	var args Arguments
	args.Add("A", 1)
	args.Add("B", "two")
	assert.Equal(t, []string{"A=1", "B=two"}, args.Tokens())
	assert.Equal(t, "A=1 B=two", args.String())
}
