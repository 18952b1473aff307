package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/game/wine"
	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

const registryMarker = ".xivlauncher-registry"

type regEntry struct {
	Key  string
	Name string
	Type string
	Data string
}

func (e regEntry) String() string {
	return e.Key + `\` + e.Name
}

// firstRunEntries are the settings the client expects to find in a new
// prefix.
func firstRunEntries(exe string) []regEntry {
	return []regEntry{
		{Key: `HKEY_CURRENT_USER\Software\Wine\Explorer\Desktops`, Name: "Default", Type: "REG_SZ", Data: "1920x1080"},
		{Key: `HKEY_CURRENT_USER\Software\Microsoft\Windows NT\CurrentVersion\AppCompatFlags\Layers`, Name: util.ToWindowsPath(exe), Type: "REG_SZ", Data: "~ DPIUNAWARE"},
		{Key: `HKEY_CURRENT_USER\Software\Wine`, Name: "HideWineExports", Type: "REG_SZ", Data: "Y"},
	}
}

// setupRegistry writes the first-run registry entries through the
// layer's own reg tool, skipping values the prefix already has. A marker
// in the prefix records that it ran.
func (r *Runner) setupRegistry(ctx context.Context, p *model.Profile, wineBin, exe string) error {
	prefix := p.WinePrefixPath
	marker := filepath.Join(prefix, registryMarker)
	if ok, _ := util.IsFile(marker); ok {
		return nil
	}

	reg, err := wine.ReadUserRegistry(prefix)
	if err != nil {
		return errors.RegistrySetup("user.reg", err)
	}

	env := MergeEnv(WineEnv(p), r.environ())
	for _, e := range firstRunEntries(exe) {
		if _, ok := reg.Lookup(e.Key, e.Name); ok {
			log.Debug().Str("value", e.String()).Msg("registry value already present")
			continue
		}
		argv := []string{wineBin, "reg", "add", e.Key, "/v", e.Name, "/t", e.Type, "/d", e.Data, "/f"}
		out, err := r.exec.CombinedOutput(ctx, argv, env)
		if err != nil {
			return errors.RegistrySetup(e.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
		}
		log.Debug().Str("value", e.String()).Msg("registry value written")
	}

	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return errors.RegistrySetup("marker", err)
	}
	if err := os.WriteFile(marker, []byte("1"), 0o644); err != nil {
		return errors.RegistrySetup("marker", err)
	}
	return nil
}
