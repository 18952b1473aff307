//go:build !windows

package runner

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func candidates(path string) []string {
	return []string{path}
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return unix.Access(path, unix.X_OK)
}
