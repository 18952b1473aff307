package provision

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestUpdateDisabledAddonMakesNoRequests(t *testing.T) {
	calls := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return nil, assert.AnError
	})}
	p := New(client, Config{DataDir: t.TempDir(), DistribURL: "https://dist.invalid"})

	profile := model.NewProfile("NoAddon")
	var phases []string
	err := p.UpdateWithNotifier(context.Background(), profile, func(phase string) { phases = append(phases, phase) })
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, []string{PhaseDisabled}, phases)
}

func TestUpdateFreshInstall(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, dataDir := newTestProvisioner(t, srv)
	profile := addonProfile()

	var phases []string
	require.NoError(t, p.UpdateWithNotifier(context.Background(), profile, func(phase string) { phases = append(phases, phase) }))
	assert.Equal(t, []string{PhaseChecking, PhaseDownloading, PhaseInstalling, PhaseUpToDate}, phases)

	layout := p.Layout(profile)
	assert.Equal(t, "dalamud 6.1.0", readFile(t, filepath.Join(layout.AddonDir(model.ChannelStable), "Dalamud.dll")))
	assert.FileExists(t, filepath.Join(layout.RuntimeDir(), "shared/Microsoft.NETCore.App/7.0.3/System.Private.CoreLib.dll"))
	assert.FileExists(t, filepath.Join(layout.RuntimeDir(), "shared/Microsoft.WindowsDesktop.App/7.0.3/PresentationCore.dll"))
	assert.Equal(t, "font-data", readFile(t, filepath.Join(layout.AssetsDir(), "UIRes/font.ttf")))

	local, err := p.Installed(profile)
	require.NoError(t, err)
	assert.Equal(t, "6.1.0", local.Addon)
	assert.Equal(t, "7.0.3", local.Runtime)
	assert.Equal(t, 12, local.AssetVersion)
	assert.Equal(t, model.ChannelStable, local.LastChannel)

	assert.Equal(t, "6.1.0", profile.Installed.DalamudVersion)
	assert.Equal(t, "7.0.3", profile.Installed.RuntimeVersion)
	assert.Equal(t, 12, profile.Installed.DalamudAssets)

	assert.ElementsMatch(t, []string{
		"/files/dalamud.zip",
		"/files/assets.zip",
		"/dotnet/Runtime/7.0.3/dotnet-runtime-7.0.3-win-x64.zip",
		"/dotnet/WindowsDesktop/7.0.3/windowsdesktop-runtime-7.0.3-win-x64.zip",
	}, d.Downloads())
	assert.Equal(t, []string{"release"}, d.tracks)
	assertNoWorkArea(t, dataDir)
}

func TestUpdateUpToDateDownloadsNothing(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)
	profile := addonProfile()

	require.NoError(t, p.Update(context.Background(), profile))
	d.Reset()

	require.NoError(t, p.Update(context.Background(), profile))
	assert.Empty(t, d.Downloads())
	assert.Equal(t, 2, d.metaCalls)
}

// A local add-on at 6.0.0 with 6.1.0 published is reinstalled and the
// marker moves to 6.1.0.
func TestUpdateAddonOutdated(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, dataDir := newTestProvisioner(t, srv)
	profile := addonProfile()

	d.AddonVersion = "6.0.0"
	d.AddonFiles = map[string]string{"Dalamud.dll": "dalamud 6.0.0", "stale.dll": "old"}
	require.NoError(t, p.Update(context.Background(), profile))
	layout := p.Layout(profile)
	require.FileExists(t, filepath.Join(layout.AddonDir(model.ChannelStable), "stale.dll"))

	d.AddonVersion = "6.1.0"
	d.AddonFiles = map[string]string{"Dalamud.dll": "dalamud 6.1.0"}
	d.Reset()
	require.NoError(t, p.Update(context.Background(), profile))

	assert.Equal(t, []string{"/files/dalamud.zip"}, d.Downloads())
	dir := layout.AddonDir(model.ChannelStable)
	assert.Equal(t, "dalamud 6.1.0", readFile(t, filepath.Join(dir, "Dalamud.dll")))
	assert.NoFileExists(t, filepath.Join(dir, "stale.dll"))
	assert.JSONEq(t, `{"version":"6.1.0","channel":"stable"}`, readFile(t, filepath.Join(dir, addonMarker)))
	assert.NoDirExists(t, dir+oldSuffix)
	assertNoWorkArea(t, dataDir)
}

func TestUpdateChannelChangeForcesReinstall(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)
	profile := addonProfile()
	require.NoError(t, p.Update(context.Background(), profile))

	// a staging build at the very same version is already on disk
	layout := p.Layout(profile)
	staging := layout.AddonDir(model.ChannelStaging)
	writeFiles(t, staging, map[string]string{"Dalamud.dll": "stale staging"})
	require.NoError(t, writeAddonManifest(staging, "6.1.0", model.ChannelStaging))

	profile.Dalamud.Channel = model.ChannelStaging
	d.Reset()
	require.NoError(t, p.Update(context.Background(), profile))

	assert.Equal(t, []string{"/files/dalamud.zip"}, d.Downloads())
	assert.Equal(t, []string{"staging"}, d.tracks)
	assert.Equal(t, "dalamud 6.1.0", readFile(t, filepath.Join(staging, "Dalamud.dll")))
	assert.Equal(t, "staging", readFile(t, layout.ChannelFile()))
}

func TestUpdateRuntimeNotRequired(t *testing.T) {
	d := newDistServer()
	d.RuntimeRequired = false
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)

	require.NoError(t, p.Update(context.Background(), addonProfile()))
	for _, path := range d.Downloads() {
		assert.False(t, strings.HasPrefix(path, "/dotnet/"), path)
	}
}

func TestUpdateFetchesOnlyMissingAssets(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)
	profile := addonProfile()
	require.NoError(t, p.Update(context.Background(), profile))

	layout := p.Layout(profile)
	require.NoError(t, os.Remove(filepath.Join(layout.AssetsDir(), "UIRes/logo.png")))

	d.Reset()
	require.NoError(t, p.Update(context.Background(), profile))
	assert.Equal(t, []string{"/files/asset/UIRes/logo.png"}, d.Downloads())
	assert.Equal(t, "logo-data", readFile(t, filepath.Join(layout.AssetsDir(), "UIRes/logo.png")))
	assert.Equal(t, "font-data", readFile(t, filepath.Join(layout.AssetsDir(), "UIRes/font.ttf")))
	assert.Equal(t, "12", readFile(t, filepath.Join(layout.AssetsDir(), assetMarker)))
}

func TestUpdateRefetchesCorruptedAssets(t *testing.T) {
	d := newDistServer()
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)
	profile := addonProfile()
	require.NoError(t, p.Update(context.Background(), profile))

	layout := p.Layout(profile)
	font := filepath.Join(layout.AssetsDir(), "UIRes/font.ttf")
	require.NoError(t, os.WriteFile(font, []byte("garbage"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(layout.AssetsDir(), "UIRes/logo.png")))

	local, err := p.Installed(profile)
	require.NoError(t, err)
	assert.Equal(t, 12, local.AssetVersion)

	d.Reset()
	require.NoError(t, p.Update(context.Background(), profile))
	assert.ElementsMatch(t, []string{"/files/asset/UIRes/font.ttf", "/files/asset/UIRes/logo.png"}, d.Downloads())
	assert.Equal(t, "font-data", readFile(t, font))
	assert.Equal(t, "logo-data", readFile(t, filepath.Join(layout.AssetsDir(), "UIRes/logo.png")))

	d.Reset()
	require.NoError(t, p.Update(context.Background(), profile))
	assert.Empty(t, d.Downloads())
}

func TestMissingAssetsComparesHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good"), []byte("good"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"), []byte("bad"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nohash"), []byte("x"), 0o644))

	assets := []Asset{
		{FileName: "good", Hash: strings.ToUpper(sha1Hex("good"))},
		{FileName: "bad", Hash: sha1Hex("expected")},
		{FileName: "nohash"},
		{FileName: "absent", Hash: sha1Hex("absent")},
	}
	var names []string
	for _, a := range missingAssets(dir, assets) {
		names = append(names, a.FileName)
	}
	assert.Equal(t, []string{"bad", "absent"}, names)
}

func TestUpdateAssetsWithoutPackage(t *testing.T) {
	d := newDistServer()
	d.UsePackage = false
	srv := d.start(t)
	p, _ := newTestProvisioner(t, srv)
	profile := addonProfile()

	require.NoError(t, p.Update(context.Background(), profile))
	assert.Subset(t, d.Downloads(), []string{"/files/asset/UIRes/font.ttf", "/files/asset/UIRes/logo.png"})
	assert.FileExists(t, filepath.Join(p.Layout(profile).AssetsDir(), "UIRes/logo.png"))
}

func TestUpdateHashMismatchKeepsPreviousInstall(t *testing.T) {
	d := newDistServer()
	d.AddonVersion = "6.0.0"
	srv := d.start(t)
	p, dataDir := newTestProvisioner(t, srv)
	profile := addonProfile()
	require.NoError(t, p.Update(context.Background(), profile))

	d.AddonVersion = "6.1.0"
	d.AssetVersion = 13
	d.WrongHash = "UIRes/logo.png"
	err := p.Update(context.Background(), profile)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrVerificationMismatch)

	var perr *errors.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ComponentAssets, perr.Component)

	local, lerr := p.Installed(profile)
	require.NoError(t, lerr)
	assert.Equal(t, "6.0.0", local.Addon)
	assert.Equal(t, 12, local.AssetVersion)
	assertNoWorkArea(t, dataDir)
}

func TestUpdateDownloadFailureNamesComponent(t *testing.T) {
	d := newDistServer()
	d.AddonVersion = "6.0.0"
	d.AddonFiles = map[string]string{"Dalamud.dll": "dalamud 6.0.0"}
	srv := d.start(t)
	p, dataDir := newTestProvisioner(t, srv)
	profile := addonProfile()
	require.NoError(t, p.Update(context.Background(), profile))

	d.AddonVersion = "6.1.0"
	d.AddonFiles = map[string]string{"Dalamud.dll": "dalamud 6.1.0"}
	d.RuntimeVersion = "8.0.1"
	d.Fail = "/dotnet/WindowsDesktop/"
	err := p.Update(context.Background(), profile)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProvisionTransport)
	assert.True(t, errors.IsProvisioning(err))

	var perr *errors.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ComponentRuntimeDesktop, perr.Component)

	layout := p.Layout(profile)
	assert.Equal(t, "dalamud 6.0.0", readFile(t, filepath.Join(layout.AddonDir(model.ChannelStable), "Dalamud.dll")))
	local, lerr := p.Installed(profile)
	require.NoError(t, lerr)
	assert.Equal(t, "6.0.0", local.Addon)
	assert.Equal(t, "7.0.3", local.Runtime)
	assertNoWorkArea(t, dataDir)
}

func TestUpdateMetadataFailure(t *testing.T) {
	srv := newDistServer().start(t)
	p := New(srv.Client(), Config{DataDir: t.TempDir(), DistribURL: srv.URL + "/missing"})

	err := p.Update(context.Background(), addonProfile())
	assert.ErrorIs(t, err, errors.ErrProvisionTransport)
}

func TestMakePlan(t *testing.T) {
	remote := &Remote{
		Addon:  VersionInfo{AssemblyVersion: "6.1.0", RuntimeVersion: "7.0.3", RuntimeRequired: true},
		Assets: AssetMeta{Version: 12, PackageURL: "https://x/assets.zip", Assets: []Asset{{FileName: "a"}}},
	}

	t.Run("nothing installed", func(t *testing.T) {
		pl := makePlan(&Local{Channel: model.ChannelStable, AssetVersion: -1}, remote)
		assert.True(t, pl.addon)
		assert.True(t, pl.runtime)
		assert.True(t, pl.assets)
		assert.True(t, pl.assetsFull)
	})

	t.Run("up to date", func(t *testing.T) {
		pl := makePlan(&Local{Addon: "6.1.0", Runtime: "7.0.3", AssetVersion: 12, Channel: model.ChannelStable, LastChannel: model.ChannelStable}, remote)
		assert.True(t, pl.empty())
	})

	t.Run("channel switched", func(t *testing.T) {
		pl := makePlan(&Local{Addon: "6.1.0", Runtime: "7.0.3", AssetVersion: 12, Channel: model.ChannelStaging, LastChannel: model.ChannelStable}, remote)
		assert.True(t, pl.addon)
		assert.False(t, pl.runtime)
		assert.False(t, pl.assets)
	})

	t.Run("missing asset files", func(t *testing.T) {
		missing := []Asset{{FileName: "a"}}
		pl := makePlan(&Local{Addon: "6.1.0", Runtime: "7.0.3", AssetVersion: 12, MissingAssets: missing}, remote)
		assert.True(t, pl.assets)
		assert.False(t, pl.assetsFull)
		assert.Equal(t, missing, pl.fetch)
	})
}

func TestNeedsInstall(t *testing.T) {
	tests := []struct {
		local, remote string
		want          bool
	}{
		{"", "6.1.0", true},
		{"6.0.0", "6.1.0", true},
		{"6.1.0", "6.1.0", false},
		{"6.2.0", "6.1.0", true},
		{"", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsInstall(tt.local, tt.remote), "local=%q remote=%q", tt.local, tt.remote)
	}
}

func TestReadLocalFallsBackToDepsFile(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	writeFiles(t, layout.AddonDir(model.ChannelStable), map[string]string{
		depsFile: `{
			"runtimeTarget": {"name": ".NETCoreApp,Version=v7.0/win-x64"},
			"targets": {
				".NETCoreApp,Version=v7.0/win-x64": {
					"CheapLoc/1.1.6": {},
					"Dalamud/7.4.3.0": {"runtime": {"Dalamud.dll": {}}}
				}
			}
		}`,
	})

	local, err := ReadLocal(layout, model.ChannelStable, nil)
	require.NoError(t, err)
	assert.Equal(t, "7.4.3.0", local.Addon)
	assert.Equal(t, -1, local.AssetVersion)
	assert.Empty(t, local.Runtime)
}

func TestRecoverSwaps(t *testing.T) {
	root := t.TempDir()

	// crashed mid-commit: the new copy is in place without its marker
	writeFiles(t, filepath.Join(root, "stable"+oldSuffix), map[string]string{"Dalamud.dll": "old", addonMarker: `{"version":"6.0.0"}`})
	writeFiles(t, filepath.Join(root, "stable"), map[string]string{"Dalamud.dll": "half"})

	// crashed after markers, before cleanup
	writeFiles(t, filepath.Join(root, ComponentRuntime+oldSuffix), map[string]string{runtimeMarker: "7.0.2"})
	writeFiles(t, filepath.Join(root, ComponentRuntime), map[string]string{runtimeMarker: "7.0.3"})

	// crashed after parking, before the staged copy moved in
	writeFiles(t, filepath.Join(root, ComponentAssets+oldSuffix), map[string]string{assetMarker: "11"})

	require.NoError(t, recoverSwaps(root))

	assert.Equal(t, "old", readFile(t, filepath.Join(root, "stable", "Dalamud.dll")))
	assert.Equal(t, "7.0.3", readFile(t, filepath.Join(root, ComponentRuntime, runtimeMarker)))
	assert.Equal(t, "11", readFile(t, filepath.Join(root, ComponentAssets, assetMarker)))
	for _, name := range []string{"stable", ComponentRuntime, ComponentAssets} {
		assert.NoDirExists(t, filepath.Join(root, name+oldSuffix))
	}
}

// An interruption between staging and the move leaves the installed copy
// as it was and the staged copy is never seen as valid.
func TestCrashBeforeSwapKeepsPreviousInstall(t *testing.T) {
	root := t.TempDir()
	layout := Layout{Root: root}
	final := layout.AddonDir(model.ChannelStable)
	writeFiles(t, final, map[string]string{"Dalamud.dll": "old"})
	require.NoError(t, writeAddonManifest(final, "6.0.0", model.ChannelStable))

	work := t.TempDir()
	staged := filepath.Join(work, "stable")
	writeFiles(t, staged, map[string]string{"Dalamud.dll": "partial"})
	// process dies here; the work area goes away with it
	require.NoError(t, os.RemoveAll(work))

	require.NoError(t, recoverSwaps(root))
	local, err := ReadLocal(layout, model.ChannelStable, nil)
	require.NoError(t, err)
	assert.Equal(t, "6.0.0", local.Addon)
	assert.Equal(t, "old", readFile(t, filepath.Join(final, "Dalamud.dll")))
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "a"), map[string]string{"v": "old-a"})
	writeFiles(t, filepath.Join(root, "stage-a"), map[string]string{"v": "new-a"})

	swaps := []*swap{
		{component: "a", staging: filepath.Join(root, "stage-a"), final: filepath.Join(root, "a")},
		{component: "b", staging: filepath.Join(root, "stage-b-missing"), final: filepath.Join(root, "b")},
	}
	err := commit(swaps)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnpack)

	assert.Equal(t, "old-a", readFile(t, filepath.Join(root, "a", "v")))
	assert.NoDirExists(t, filepath.Join(root, "a"+oldSuffix))
}

func assertNoWorkArea(t *testing.T, dataDir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dataDir, ".cycle-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
