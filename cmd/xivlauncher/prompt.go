package xivlauncher

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/sjzar/xivlauncher/internal/launcher/auth"
	launcherctx "github.com/sjzar/xivlauncher/internal/launcher/ctx"
	"github.com/sjzar/xivlauncher/internal/model"
)

var stdin = bufio.NewReader(os.Stdin)

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// rememberedOTP generates a code from the stored secret, or returns ""
// when the account does not remember one.
func rememberedOTP(c *launcherctx.Context, account *model.Account) (string, error) {
	if !account.RememberOTP {
		return "", nil
	}
	secret, err := c.Secrets.OTPSecret(account.ID)
	if err != nil || secret == "" {
		return "", err
	}
	return auth.GenerateOTP(secret, time.Now())
}
