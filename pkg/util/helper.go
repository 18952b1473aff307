package util

import (
	"os"
	"regexp"
	"strings"
)

var invalidCharsRegex = regexp.MustCompile(`[\\/:\*\?"<>\|\s]+`)

// SafeDirName turns a user supplied display name into a single path
// element, e.g. for a per-profile compatibility prefix directory.
func SafeDirName(name string, maxLen int) string {
	cleaned := strings.Trim(invalidCharsRegex.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
	if cleaned == "" {
		cleaned = "default"
	}
	if maxLen > 0 && len(cleaned) > maxLen {
		cleaned = strings.TrimRight(cleaned[:maxLen], "._")
	}
	return strings.ToLower(cleaned)
}

// IsFile reports whether path exists and is a regular file. A missing
// path is not an error.
func IsFile(path string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fileInfo.Mode().IsRegular(), nil
}

func IsDir(path string) bool {
	fileInfo, err := os.Stat(path)
	return err == nil && fileInfo.IsDir()
}

// ToWindowsPath maps a host path onto the Z: drive the compatibility
// layer exposes for the host root.
func ToWindowsPath(path string) string {
	if len(path) >= 2 && path[1] == ':' {
		return path
	}
	return "Z:" + strings.ReplaceAll(path, "/", `\`)
}

// Redact keeps only a short prefix of a token so it can be logged.
func Redact(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}

// ReadTrimmed returns the whitespace-trimmed contents of a small text
// file, or "" when it does not exist.
func ReadTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
