package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

// VersionInfo is the distribution server's description of the newest
// add-on build on a track.
type VersionInfo struct {
	AssemblyVersion string `json:"AssemblyVersion"`
	RuntimeVersion  string `json:"RuntimeVersion"`
	RuntimeRequired bool   `json:"RuntimeRequired"`
	DownloadURL     string `json:"DownloadUrl"`
}

type Asset struct {
	URL      string `json:"Url"`
	FileName string `json:"FileName"`
	Hash     string `json:"Hash"`
}

// AssetMeta is the manifest of the add-on's asset bundle.
type AssetMeta struct {
	Version    int     `json:"Version"`
	PackageURL string  `json:"PackageUrl"`
	Assets     []Asset `json:"Assets"`
}

type Remote struct {
	Addon  VersionInfo
	Assets AssetMeta
}

// Local is what is installed on disk. Empty strings and a negative asset
// version mean "absent".
type Local struct {
	Addon         string
	Channel       model.DalamudChannel
	LastChannel   model.DalamudChannel
	Runtime       string
	AssetVersion  int
	MissingAssets []Asset
}

type addonManifest struct {
	Version string               `json:"version"`
	Channel model.DalamudChannel `json:"channel"`
}

func (p *Provisioner) fetchVersionInfo(ctx context.Context, channel model.DalamudChannel) (VersionInfo, error) {
	var info VersionInfo
	target := fmt.Sprintf("%s/Dalamud/Release/VersionInfo?track=%s", p.cfg.DistribURL, channel.Track())
	if err := p.getJSON(ctx, ComponentAddon, target, &info); err != nil {
		return info, err
	}
	if info.AssemblyVersion == "" || info.DownloadURL == "" {
		return info, errors.Provisioning(errors.KindVerificationMismatch, ComponentAddon, "version info is incomplete", nil)
	}
	return info, nil
}

func (p *Provisioner) fetchAssetMeta(ctx context.Context) (AssetMeta, error) {
	var meta AssetMeta
	if err := p.getJSON(ctx, ComponentAssets, p.cfg.DistribURL+"/Dalamud/Asset/Meta", &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func (p *Provisioner) getJSON(ctx context.Context, component, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.DownloadFailed(component, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.DownloadFailed(component, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return errors.DownloadFailed(component, fmt.Errorf("GET %s: unexpected status %s", target, resp.Status))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Provisioning(errors.KindVerificationMismatch, component, "metadata is not valid JSON", err)
	}
	return nil
}

// ReadLocal collects the installed versions for a profile. manifest may
// be nil, in which case asset files are not checked.
func ReadLocal(layout Layout, channel model.DalamudChannel, manifest *AssetMeta) (*Local, error) {
	local := &Local{Channel: channel, AssetVersion: -1}

	var err error
	if local.Addon, err = readAddonVersion(layout.AddonDir(channel)); err != nil {
		return nil, err
	}
	last, err := util.ReadTrimmed(layout.ChannelFile())
	if err != nil {
		return nil, err
	}
	local.LastChannel = model.DalamudChannel(last)

	if local.Runtime, err = util.ReadTrimmed(filepath.Join(layout.RuntimeDir(), runtimeMarker)); err != nil {
		return nil, err
	}

	raw, err := util.ReadTrimmed(filepath.Join(layout.AssetsDir(), assetMarker))
	if err != nil {
		return nil, err
	}
	if raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			local.AssetVersion = v
		} else {
			log.Debug().Str("value", raw).Msg("ignoring unreadable asset version marker")
		}
	}

	if manifest != nil {
		local.MissingAssets = missingAssets(layout.AssetsDir(), manifest.Assets)
	}
	return local, nil
}

// readAddonVersion prefers the manifest the launcher writes after an
// install and falls back to the build's own dependency file.
func readAddonVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, addonMarker))
	if err == nil {
		return gjson.GetBytes(data, "version").String(), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	data, err = os.ReadFile(filepath.Join(dir, depsFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return versionFromDeps(data), nil
}

// versionFromDeps finds the "Dalamud/<version>" library entry in a .NET
// deps file.
func versionFromDeps(data []byte) string {
	var version string
	gjson.GetBytes(data, "targets").ForEach(func(_, target gjson.Result) bool {
		target.ForEach(func(lib, _ gjson.Result) bool {
			if name, v, ok := strings.Cut(lib.String(), "/"); ok && name == "Dalamud" {
				version = v
				return false
			}
			return true
		})
		return version == ""
	})
	return version
}

// missingAssets lists the manifest entries that are absent from dir or whose
// content does not match the published hash.
func missingAssets(dir string, assets []Asset) []Asset {
	var missing []Asset
	for _, a := range assets {
		path, err := safeJoin(dir, a.FileName)
		if err != nil {
			missing = append(missing, a)
			continue
		}
		if ok, _ := util.IsFile(path); !ok {
			missing = append(missing, a)
			continue
		}
		if a.Hash == "" {
			continue
		}
		if sum, err := sha1File(path); err != nil || !strings.EqualFold(sum, a.Hash) {
			missing = append(missing, a)
		}
	}
	return missing
}

// NeedsInstall reports whether a component must be (re)installed: it is
// absent locally or the remote version differs.
func NeedsInstall(local, remote string) bool {
	return local == "" || remote != local
}

func writeAddonManifest(dir, version string, channel model.DalamudChannel) error {
	data, err := json.Marshal(addonManifest{Version: version, Channel: channel})
	if err != nil {
		return err
	}
	return writeMarker(filepath.Join(dir, addonMarker), data)
}
