package provision

import (
	"path/filepath"

	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

const (
	ComponentAddon          = "dalamud"
	ComponentRuntimeCore    = "runtime-core"
	ComponentRuntimeDesktop = "runtime-desktop"
	ComponentRuntime        = "runtime"
	ComponentAssets         = "assets"

	addonMarker   = ".version.json"
	runtimeMarker = "runtime.ver"
	assetMarker   = "asset.ver"
	channelMarker = "channel"
	depsFile      = "Dalamud.deps.json"

	oldSuffix = ".old"
)

// Layout locates one profile's add-on install on disk:
//
//	<data>/profiles/<id>/dalamud/<channel>/   add-on build + .version.json
//	<data>/profiles/<id>/dalamud/runtime/     both runtime flavors + runtime.ver
//	<data>/profiles/<id>/dalamud/assets/      asset bundle + asset.ver
//	<data>/profiles/<id>/dalamud/channel      last installed channel
type Layout struct {
	Root string
}

func LayoutFor(dataDir string, p *model.Profile) Layout {
	return Layout{Root: filepath.Join(dataDir, "profiles", util.SafeDirName(p.ID, 64), "dalamud")}
}

func (l Layout) AddonDir(channel model.DalamudChannel) string {
	return filepath.Join(l.Root, string(channel))
}

func (l Layout) RuntimeDir() string {
	return filepath.Join(l.Root, ComponentRuntime)
}

func (l Layout) AssetsDir() string {
	return filepath.Join(l.Root, ComponentAssets)
}

func (l Layout) ChannelFile() string {
	return filepath.Join(l.Root, channelMarker)
}

// markerFor names the marker file that proves a directory under Root was
// completely installed.
func markerFor(dirName string) string {
	switch dirName {
	case ComponentRuntime:
		return runtimeMarker
	case ComponentAssets:
		return assetMarker
	}
	return addonMarker
}
