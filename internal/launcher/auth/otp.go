package auth

import (
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/sjzar/xivlauncher/internal/errors"
)

// GenerateOTP derives the current one-time password from a remembered
// base32 secret.
func GenerateOTP(secret string, now time.Time) (string, error) {
	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	if secret == "" {
		return "", errors.OtpRequired()
	}
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		return "", errors.New(errors.KindOtpInvalid, "failed to generate one-time password, review the stored secret", err)
	}
	return code, nil
}
