// Package wine resolves and inspects the compatibility layer used to run
// the Windows client on other hosts.
package wine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"howett.net/plist"

	"github.com/sjzar/xivlauncher/internal/model"
)

const (
	builtinBundle  = "/Applications/FINAL FANTASY XIV ONLINE.app"
	xivOnMacBundle = "/Applications/XIV on Mac.app"
)

// OutputRunner runs a short-lived command and returns its combined
// stdout and stderr.
type OutputRunner interface {
	CombinedOutput(ctx context.Context, argv []string, env []string) ([]byte, error)
}

// Binary returns the compatibility layer executable for a profile.
// System installs return a bare name that is resolved through PATH.
func Binary(p *model.Profile) string {
	switch p.WineType {
	case model.WineCustom:
		return p.WinePath
	case model.WineBuiltin:
		return filepath.Join(builtinBundle, "Contents", "SharedSupport", "finalfantasyxiv", "FINAL FANTASY XIV ONLINE", "wine")
	case model.WineXIVOnMac:
		return filepath.Join(xivOnMacBundle, "Contents", "Resources", "wine", "bin", "wine64")
	}
	if p.WinePath != "" {
		return p.WinePath
	}
	return "wine"
}

// bundleFor returns the macOS application bundle shipping the layer, if any.
func bundleFor(t model.WineType) string {
	switch t {
	case model.WineBuiltin:
		return builtinBundle
	case model.WineXIVOnMac:
		return xivOnMacBundle
	}
	return ""
}

// Version probes the layer's version string. Bundled macOS layers are
// read from the bundle's Info.plist, everything else by running
// `<wine> --version`. An empty string means the layer is not usable.
func Version(ctx context.Context, runner OutputRunner, p *model.Profile) string {
	if bundle := bundleFor(p.WineType); bundle != "" {
		v, err := BundleVersion(filepath.Join(bundle, "Contents", "Info.plist"))
		if err != nil {
			log.Debug().Err(err).Str("bundle", bundle).Msg("read bundle version failed")
			return ""
		}
		return v
	}

	out, err := runner.CombinedOutput(ctx, []string{Binary(p), "--version"}, nil)
	if err != nil {
		log.Debug().Err(err).Str("wine", Binary(p)).Msg("wine version probe failed")
		return ""
	}
	return strings.TrimSpace(string(out))
}

type bundleInfo struct {
	ShortVersion string `plist:"CFBundleShortVersionString"`
	Version      string `plist:"CFBundleVersion"`
}

func BundleVersion(infoPlist string) (string, error) {
	data, err := os.ReadFile(infoPlist)
	if err != nil {
		return "", err
	}
	var info bundleInfo
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return "", err
	}
	if info.ShortVersion != "" {
		return info.ShortVersion, nil
	}
	return info.Version, nil
}
