package provision

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/pkg/util"
)

// swap moves a fully staged directory over its final location.
type swap struct {
	component string
	staging   string
	final     string
	committed bool
	hadOld    bool
}

// commit replaces every final directory with its staged copy. Previous
// installs are parked as <final>.old until finish is called; if any move
// fails, all earlier moves are undone.
func commit(swaps []*swap) error {
	for _, s := range swaps {
		if err := s.apply(); err != nil {
			rollback(swaps)
			return errors.UnpackFailed(s.component, err)
		}
	}
	return nil
}

func (s *swap) apply() error {
	old := s.final + oldSuffix
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	if util.IsDir(s.final) {
		if err := os.Rename(s.final, old); err != nil {
			return err
		}
		s.hadOld = true
	}
	if err := os.MkdirAll(filepath.Dir(s.final), 0o755); err != nil {
		return err
	}
	if err := os.Rename(s.staging, s.final); err != nil {
		if s.hadOld {
			_ = os.Rename(old, s.final)
			s.hadOld = false
		}
		return err
	}
	s.committed = true
	return nil
}

func rollback(swaps []*swap) {
	for i := len(swaps) - 1; i >= 0; i-- {
		s := swaps[i]
		if !s.committed {
			continue
		}
		if err := os.RemoveAll(s.final); err != nil {
			log.Err(err).Str("dir", s.final).Msg("rollback: remove new install failed")
			continue
		}
		if s.hadOld {
			if err := os.Rename(s.final+oldSuffix, s.final); err != nil {
				log.Err(err).Str("dir", s.final).Msg("rollback: restore previous install failed")
			}
		}
		s.committed = false
	}
}

// finish drops the parked previous installs once markers are written.
func finish(swaps []*swap) {
	for _, s := range swaps {
		if !s.hadOld {
			continue
		}
		if err := os.RemoveAll(s.final + oldSuffix); err != nil {
			log.Err(err).Str("dir", s.final).Msg("remove previous install failed")
		}
	}
}

// recoverSwaps repairs what an interrupted cycle left under root. A parked
// <dir>.old means the cycle never finished: if <dir> carries its marker the
// new install completed and the old copy is dropped, otherwise the old copy
// is put back.
func recoverSwaps(root string) error {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), oldSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), oldSuffix)
		old := filepath.Join(root, e.Name())
		final := filepath.Join(root, name)

		if ok, _ := util.IsFile(filepath.Join(final, markerFor(name))); ok {
			log.Info().Str("dir", final).Msg("dropping previous install left by an interrupted update")
			if err := os.RemoveAll(old); err != nil {
				return err
			}
			continue
		}

		log.Warn().Str("dir", final).Msg("restoring previous install after an interrupted update")
		if err := os.RemoveAll(final); err != nil {
			return err
		}
		if err := os.Rename(old, final); err != nil {
			return err
		}
	}
	return nil
}

// writeMarker replaces a marker file through a rename so that a linked
// copy of the previous marker is never modified.
func writeMarker(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// linkTree mirrors src into dst with hard links, copying when linking is
// not possible. The directory's marker is left out.
func linkTree(src, dst, marker string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() || rel == marker {
			return nil
		}
		if err := os.Link(path, target); err == nil {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		return writeFile(target, in, 0o644)
	})
}
