//go:build windows

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func candidates(path string) []string {
	if filepath.Ext(path) != "" {
		return []string{path}
	}
	exts := strings.Split(os.Getenv("PATHEXT"), ";")
	if len(exts) == 1 && exts[0] == "" {
		exts = []string{".com", ".exe", ".bat", ".cmd"}
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, path+strings.ToLower(ext))
	}
	return out
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
