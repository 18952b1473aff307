// Package gamedata reads version information from a game install root.
// Everything here is display-only and never gates a launch.
package gamedata

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sjzar/xivlauncher/pkg/util"
)

var expansionNames = []string{
	"A Realm Reborn",
	"Heavensward",
	"Stormblood",
	"Shadowbringers",
	"Endwalker",
	"Dawntrail",
}

// bootFiles are hashed for the official backend's version check.
var bootFiles = []string{
	"ffxivboot.exe",
	"ffxivboot64.exe",
	"ffxivlauncher64.exe",
	"ffxivupdater64.exe",
}

type Info struct {
	BootVersion       string
	GameVersion       string
	ExpansionVersions []string
}

// Read collects the boot, base game and expansion versions under root.
func Read(root string) (*Info, error) {
	info := &Info{}
	if root == "" {
		return info, nil
	}

	var err error
	if info.BootVersion, err = util.ReadTrimmed(filepath.Join(root, "boot", "ffxivboot.ver")); err != nil {
		return nil, err
	}
	if info.GameVersion, err = util.ReadTrimmed(filepath.Join(root, "game", "ffxivgame.ver")); err != nil {
		return nil, err
	}

	for i := 1; ; i++ {
		name := fmt.Sprintf("ex%d", i)
		v, err := util.ReadTrimmed(filepath.Join(root, "game", "sqpack", name, name+".ver"))
		if err != nil {
			return nil, err
		}
		if v == "" {
			break
		}
		info.ExpansionVersions = append(info.ExpansionVersions, v)
	}
	return info, nil
}

func (i *Info) Installed() bool {
	return i.GameVersion != ""
}

// ExpansionName returns the display name for the expansion at index,
// where 0 is the base game.
func ExpansionName(index int) string {
	if index >= 0 && index < len(expansionNames) {
		return expansionNames[index]
	}
	return "Unknown Expansion"
}

func (i *Info) ExpansionNames() []string {
	names := make([]string, 0, len(i.ExpansionVersions))
	for idx := range i.ExpansionVersions {
		names = append(names, ExpansionName(idx+1))
	}
	return names
}

func (i *Info) VersionText() string {
	if !i.Installed() {
		return "No game installed."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Boot (%s)", i.BootVersion)
	fmt.Fprintf(&b, "\n%s (%s)", ExpansionName(0), i.GameVersion)
	for idx, v := range i.ExpansionVersions {
		fmt.Fprintf(&b, "\n%s (%s)", ExpansionName(idx+1), v)
	}
	return b.String()
}

// BootHashes returns "name/size/sha1" entries joined by commas for every
// boot file present under root.
func BootHashes(root string) (string, error) {
	var entries []string
	for _, name := range bootFiles {
		path := filepath.Join(root, "boot", name)
		size, sum, err := hashFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		entries = append(entries, fmt.Sprintf("%s/%d/%s", name, size, sum))
	}
	return strings.Join(entries, ","), nil
}

func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha1.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
