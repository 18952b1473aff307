// Package provision keeps a profile's add-on, its runtimes and its asset
// bundle installed at the versions the distribution server publishes.
package provision

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/model"
)

const (
	PhaseChecking    = "Checking for add-on updates..."
	PhaseDownloading = "Downloading add-on components..."
	PhaseInstalling  = "Installing add-on..."
	PhaseAssets      = "Checking add-on assets..."
	PhaseUpToDate    = "Add-on is up to date."
	PhaseDisabled    = "Add-on disabled, nothing to update."
)

// Notifier receives human-readable phase text.
type Notifier func(phase string)

type Config struct {
	// DataDir holds every profile's install and the per-cycle work areas.
	DataDir string
	// DistribURL is the distribution server including its scheme.
	DistribURL string
	// RuntimeURL is the base the runtime archives are fetched from.
	RuntimeURL string
	MaxWorkers int
}

type Provisioner struct {
	client *http.Client
	cfg    Config
}

func New(client *http.Client, cfg Config) *Provisioner {
	cfg.DistribURL = strings.TrimRight(cfg.DistribURL, "/")
	cfg.RuntimeURL = strings.TrimRight(cfg.RuntimeURL, "/")
	return &Provisioner{client: client, cfg: cfg}
}

func (p *Provisioner) Layout(profile *model.Profile) Layout {
	return LayoutFor(p.cfg.DataDir, profile)
}

// plan is the need-install set of one cycle.
type plan struct {
	addon      bool
	runtime    bool
	assets     bool
	assetsFull bool
	fetch      []Asset
}

func (pl plan) empty() bool {
	return !pl.addon && !pl.runtime && !pl.assets
}

func makePlan(local *Local, remote *Remote) plan {
	var pl plan

	pl.addon = NeedsInstall(local.Addon, remote.Addon.AssemblyVersion)
	if local.LastChannel != "" && local.LastChannel != local.Channel {
		pl.addon = true
	}

	if remote.Addon.RuntimeRequired && remote.Addon.RuntimeVersion != "" {
		pl.runtime = NeedsInstall(local.Runtime, remote.Addon.RuntimeVersion)
	}

	switch {
	case local.AssetVersion < 0 || local.AssetVersion != remote.Assets.Version:
		pl.assets = true
		if remote.Assets.PackageURL != "" {
			pl.assetsFull = true
		} else {
			pl.fetch = remote.Assets.Assets
		}
	case len(local.MissingAssets) > 0:
		pl.assets = true
		pl.fetch = local.MissingAssets
	}
	return pl
}

// Update runs one provisioning cycle for profile.
func (p *Provisioner) Update(ctx context.Context, profile *model.Profile) error {
	return p.UpdateWithNotifier(ctx, profile, nil)
}

func (p *Provisioner) UpdateWithNotifier(ctx context.Context, profile *model.Profile, notify Notifier) error {
	if notify == nil {
		notify = func(phase string) { log.Info().Str("profile", profile.Name).Msg(phase) }
	}
	if !profile.Dalamud.Enabled {
		notify(PhaseDisabled)
		return nil
	}

	channel := profile.Dalamud.Channel
	if !channel.Valid() {
		channel = model.ChannelStable
	}

	layout := p.Layout(profile)
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return errors.UnpackFailed(ComponentAddon, err)
	}
	if err := recoverSwaps(layout.Root); err != nil {
		return errors.UnpackFailed(ComponentAddon, err)
	}

	notify(PhaseChecking)
	remote, local, err := p.fetchState(ctx, layout, channel)
	if err != nil {
		return err
	}

	pl := makePlan(local, remote)
	log.Debug().
		Str("profile", profile.Name).
		Str("channel", string(channel)).
		Str("local_addon", local.Addon).
		Str("remote_addon", remote.Addon.AssemblyVersion).
		Str("local_runtime", local.Runtime).
		Str("remote_runtime", remote.Addon.RuntimeVersion).
		Int("local_assets", local.AssetVersion).
		Int("remote_assets", remote.Assets.Version).
		Bool("addon", pl.addon).
		Bool("runtime", pl.runtime).
		Bool("assets", pl.assets).
		Msg("provisioning plan")

	if pl.empty() {
		notify(PhaseUpToDate)
		p.record(profile, local.Addon, local.Runtime, local.AssetVersion)
		return nil
	}

	if err := os.MkdirAll(p.cfg.DataDir, 0o755); err != nil {
		return errors.UnpackFailed(ComponentAddon, err)
	}
	work, err := os.MkdirTemp(p.cfg.DataDir, ".cycle-*")
	if err != nil {
		return errors.UnpackFailed(ComponentAddon, err)
	}
	defer os.RemoveAll(work)

	c := &cycle{
		p:       p,
		layout:  layout,
		channel: channel,
		remote:  remote,
		local:   local,
		plan:    pl,
		work:    work,
	}

	if pl.assets && !pl.assetsFull {
		notify(PhaseAssets)
	}
	jobs, err := c.prepare()
	if err != nil {
		return err
	}

	notify(PhaseDownloading)
	if err := p.downloadAll(ctx, jobs); err != nil {
		return err
	}

	notify(PhaseInstalling)
	if err := c.install(); err != nil {
		return err
	}

	addon, runtime, assets := local.Addon, local.Runtime, local.AssetVersion
	if pl.addon {
		addon = remote.Addon.AssemblyVersion
	}
	if pl.runtime {
		runtime = remote.Addon.RuntimeVersion
	}
	if pl.assets {
		assets = remote.Assets.Version
	}
	p.record(profile, addon, runtime, assets)

	log.Info().
		Str("profile", profile.Name).
		Str("addon", addon).
		Str("runtime", runtime).
		Int("assets", assets).
		Msg("add-on updated")
	notify(PhaseUpToDate)
	return nil
}

func (p *Provisioner) record(profile *model.Profile, addon, runtime string, assets int) {
	profile.Installed.DalamudVersion = addon
	profile.Installed.RuntimeVersion = runtime
	profile.Installed.DalamudAssets = assets
}

// fetchState reads remote metadata and local markers concurrently.
func (p *Provisioner) fetchState(ctx context.Context, layout Layout, channel model.DalamudChannel) (*Remote, *Local, error) {
	remote := &Remote{}
	var local *Local

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := p.fetchVersionInfo(gctx, channel)
		remote.Addon = info
		return err
	})
	g.Go(func() error {
		meta, err := p.fetchAssetMeta(gctx)
		remote.Assets = meta
		return err
	})
	g.Go(func() error {
		var err error
		local, err = ReadLocal(layout, channel, nil)
		if err != nil {
			return errors.UnpackFailed(ComponentAddon, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// the asset diff needs the manifest, so it runs after the fetch
	local.MissingAssets = missingAssets(layout.AssetsDir(), remote.Assets.Assets)
	return remote, local, nil
}

// Installed reads the versions currently on disk for display.
func (p *Provisioner) Installed(profile *model.Profile) (*Local, error) {
	channel := profile.Dalamud.Channel
	if !channel.Valid() {
		channel = model.ChannelStable
	}
	return ReadLocal(p.Layout(profile), channel, nil)
}

func (p *Provisioner) runtimeURL(flavor, version string) string {
	if flavor == ComponentRuntimeDesktop {
		return fmt.Sprintf("%s/WindowsDesktop/%s/windowsdesktop-runtime-%s-win-x64.zip", p.cfg.RuntimeURL, version, version)
	}
	return fmt.Sprintf("%s/Runtime/%s/dotnet-runtime-%s-win-x64.zip", p.cfg.RuntimeURL, version, version)
}

// cycle is the state of one Update call. It is never reused.
type cycle struct {
	p       *Provisioner
	layout  Layout
	channel model.DalamudChannel
	remote  *Remote
	local   *Local
	plan    plan
	work    string
}

func (c *cycle) archive(name string) string {
	return filepath.Join(c.work, name+".download")
}

func (c *cycle) staging(dirName string) string {
	return filepath.Join(c.work, "stage", dirName)
}

// prepare lays out the staging area and returns the download jobs.
func (c *cycle) prepare() ([]job, error) {
	var jobs []job

	if c.plan.addon {
		jobs = append(jobs, job{
			name:      ComponentAddon,
			component: ComponentAddon,
			url:       c.remote.Addon.DownloadURL,
			dest:      c.archive(ComponentAddon),
		})
	}

	if c.plan.runtime {
		v := c.remote.Addon.RuntimeVersion
		for _, flavor := range []string{ComponentRuntimeCore, ComponentRuntimeDesktop} {
			jobs = append(jobs, job{
				name:      flavor,
				component: flavor,
				url:       c.p.runtimeURL(flavor, v),
				dest:      c.archive(flavor),
			})
		}
	}

	if c.plan.assets {
		stage := c.staging(ComponentAssets)
		if err := os.MkdirAll(stage, 0o755); err != nil {
			return nil, errors.UnpackFailed(ComponentAssets, err)
		}

		if c.plan.assetsFull {
			jobs = append(jobs, job{
				name:      ComponentAssets,
				component: ComponentAssets,
				url:       c.remote.Assets.PackageURL,
				dest:      c.archive(ComponentAssets),
			})
		} else {
			// same asset version: keep what is there and fetch the rest
			if c.local.AssetVersion == c.remote.Assets.Version {
				if err := linkTree(c.layout.AssetsDir(), stage, assetMarker); err != nil && !os.IsNotExist(err) {
					return nil, errors.UnpackFailed(ComponentAssets, err)
				}
			}
			for _, a := range c.plan.fetch {
				dest, err := safeJoin(stage, a.FileName)
				if err != nil {
					return nil, errors.UnpackFailed(ComponentAssets, err)
				}
				jobs = append(jobs, job{
					name:      ComponentAssets + "/" + a.FileName,
					component: ComponentAssets,
					url:       a.URL,
					dest:      dest,
				})
			}
		}
	}
	return jobs, nil
}

// install unpacks the downloads, verifies the asset bundle, swaps every
// staged directory into place and only then writes the markers.
func (c *cycle) install() error {
	var swaps []*swap

	if c.plan.addon {
		stage := c.staging(string(c.channel))
		if err := Unpack(c.archive(ComponentAddon), stage); err != nil {
			return errors.UnpackFailed(ComponentAddon, err)
		}
		swaps = append(swaps, &swap{component: ComponentAddon, staging: stage, final: c.layout.AddonDir(c.channel)})
	}

	if c.plan.runtime {
		stage := c.staging(ComponentRuntime)
		for _, flavor := range []string{ComponentRuntimeCore, ComponentRuntimeDesktop} {
			if err := Unpack(c.archive(flavor), stage); err != nil {
				return errors.UnpackFailed(flavor, err)
			}
		}
		swaps = append(swaps, &swap{component: ComponentRuntime, staging: stage, final: c.layout.RuntimeDir()})
	}

	if c.plan.assets {
		stage := c.staging(ComponentAssets)
		if c.plan.assetsFull {
			if err := Unpack(c.archive(ComponentAssets), stage); err != nil {
				return errors.UnpackFailed(ComponentAssets, err)
			}
		}
		if err := verifyAssets(stage, c.remote.Assets.Assets); err != nil {
			return err
		}
		swaps = append(swaps, &swap{component: ComponentAssets, staging: stage, final: c.layout.AssetsDir()})
	}

	if err := commit(swaps); err != nil {
		return err
	}
	if err := c.writeMarkers(); err != nil {
		rollback(swaps)
		return err
	}
	finish(swaps)
	return nil
}

func (c *cycle) writeMarkers() error {
	if c.plan.addon {
		if err := writeAddonManifest(c.layout.AddonDir(c.channel), c.remote.Addon.AssemblyVersion, c.channel); err != nil {
			return errors.UnpackFailed(ComponentAddon, err)
		}
	}
	if c.plan.runtime {
		if err := writeMarker(filepath.Join(c.layout.RuntimeDir(), runtimeMarker), []byte(c.remote.Addon.RuntimeVersion)); err != nil {
			return errors.UnpackFailed(ComponentRuntime, err)
		}
	}
	if c.plan.assets {
		if err := writeMarker(filepath.Join(c.layout.AssetsDir(), assetMarker), []byte(strconv.Itoa(c.remote.Assets.Version))); err != nil {
			return errors.UnpackFailed(ComponentAssets, err)
		}
	}
	if err := writeMarker(c.layout.ChannelFile(), []byte(c.channel)); err != nil {
		return errors.UnpackFailed(ComponentAddon, err)
	}
	return nil
}

// verifyAssets checks that every manifest file is present under dir and,
// when the manifest carries a hash, that the content matches.
func verifyAssets(dir string, assets []Asset) error {
	var missing []string
	for _, a := range assets {
		path, err := safeJoin(dir, a.FileName)
		if err != nil {
			return errors.UnpackFailed(ComponentAssets, err)
		}
		sum, err := sha1File(path)
		if os.IsNotExist(err) {
			missing = append(missing, a.FileName)
			continue
		}
		if err != nil {
			return errors.UnpackFailed(ComponentAssets, err)
		}
		if a.Hash != "" && !strings.EqualFold(a.Hash, sum) {
			return errors.VerificationMismatch(ComponentAssets, a.FileName, a.Hash, sum)
		}
	}
	if len(missing) > 0 {
		return errors.PartialDownload(ComponentAssets, missing)
	}
	return nil
}

func sha1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
