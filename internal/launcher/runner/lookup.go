package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sjzar/xivlauncher/internal/errors"
)

// LookupFunc resolves a wrapper binary to an executable path.
type LookupFunc func(name string) (string, error)

// LookupExecutable resolves absolute and relative paths directly and bare
// names through PATH.
func LookupExecutable(name string) (string, error) {
	if name == "" {
		return "", os.ErrNotExist
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if err := executable(name); err != nil {
			return "", err
		}
		return name, nil
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		for _, candidate := range candidates(filepath.Join(dir, name)) {
			if executable(candidate) == nil {
				return candidate, nil
			}
		}
	}
	return "", os.ErrNotExist
}

func resolveWrapper(lookup LookupFunc, wrapper, name string) (string, error) {
	path, err := lookup(name)
	if err != nil {
		return "", errors.MissingWrapper(wrapper, name, err)
	}
	return path, nil
}
