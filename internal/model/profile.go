package model

import (
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

type WineType string

const (
	WineSystem   WineType = "system"
	WineCustom   WineType = "custom"
	WineBuiltin  WineType = "builtin"  // macOS only
	WineXIVOnMac WineType = "xivonmac" // macOS only
)

type DalamudChannel string

const (
	ChannelStable  DalamudChannel = "stable"
	ChannelStaging DalamudChannel = "staging"
	ChannelNet5    DalamudChannel = "net5"
)

// Track is the name the distribution server uses for a channel.
func (c DalamudChannel) Track() string {
	switch c {
	case ChannelStaging:
		return "staging"
	case ChannelNet5:
		return "net5"
	}
	return "release"
}

func (c DalamudChannel) Valid() bool {
	return c == ChannelStable || c == ChannelStaging || c == ChannelNet5
}

type InjectMethod string

const (
	InjectEntrypoint InjectMethod = "entrypoint"
	InjectDLL        InjectMethod = "dllinject"
)

type GamescopeOptions struct {
	Fullscreen  bool `mapstructure:"fullscreen" json:"fullscreen"`
	Borderless  bool `mapstructure:"borderless" json:"borderless"`
	Width       int  `mapstructure:"width" json:"width"`
	Height      int  `mapstructure:"height" json:"height"`
	RefreshRate int  `mapstructure:"refresh_rate" json:"refresh_rate"`
}

type DalamudOptions struct {
	Enabled            bool           `mapstructure:"enabled" json:"enabled"`
	Channel            DalamudChannel `mapstructure:"channel" json:"channel"`
	InjectMethod       InjectMethod   `mapstructure:"inject_method" json:"inject_method"`
	InjectDelay        int            `mapstructure:"inject_delay" json:"inject_delay"`
	OptOutMbCollection bool           `mapstructure:"opt_out_mb_collection" json:"opt_out_mb_collection"`
}

// InstalledVersions is read from disk when a profile is loaded and is
// never written to the configuration file.
type InstalledVersions struct {
	BootVersion       string
	GameVersion       string
	ExpansionVersions []string
	ExpansionNames    []string
	WineVersion       string
	DalamudVersion    string
	DalamudAssets     int
	RuntimeVersion    string
}

type Profile struct {
	ID             string   `mapstructure:"id" json:"id"`
	Name           string   `mapstructure:"name" json:"name"`
	Language       int      `mapstructure:"language" json:"language"`
	GamePath       string   `mapstructure:"game_path" json:"game_path"`
	WinePath       string   `mapstructure:"wine_path" json:"wine_path"`
	WinePrefixPath string   `mapstructure:"wine_prefix_path" json:"wine_prefix_path"`
	WineType       WineType `mapstructure:"wine_type" json:"wine_type"`

	UseESync      bool `mapstructure:"use_esync" json:"use_esync"`
	UseGamescope  bool `mapstructure:"use_gamescope" json:"use_gamescope"`
	UseGamemode   bool `mapstructure:"use_gamemode" json:"use_gamemode"`
	UseDX9        bool `mapstructure:"use_dx9" json:"use_dx9"`
	EnableDXVKHud bool `mapstructure:"enable_dxvk_hud" json:"enable_dxvk_hud"`

	Gamescope GamescopeOptions `mapstructure:"gamescope" json:"gamescope"`
	Dalamud   DalamudOptions   `mapstructure:"dalamud" json:"dalamud"`

	EncryptArguments bool   `mapstructure:"encrypt_arguments" json:"encrypt_arguments"`
	IsBenchmark      bool   `mapstructure:"benchmark" json:"benchmark"`
	AccountID        string `mapstructure:"account" json:"account"`

	LoggedIn  bool              `mapstructure:"-" json:"-"`
	Installed InstalledVersions `mapstructure:"-" json:"-"`
}

func NewProfile(name string) *Profile {
	p := &Profile{
		ID:               uuid.NewString(),
		Name:             name,
		Language:         1,
		WineType:         WineSystem,
		EncryptArguments: true,
		Gamescope: GamescopeOptions{
			Fullscreen: true,
			Borderless: true,
		},
		Dalamud: DalamudOptions{
			Channel:      ChannelStable,
			InjectMethod: InjectEntrypoint,
		},
	}
	if runtime.GOOS == PlatformMacOS {
		p.WineType = WineBuiltin
	}
	return p
}

// RequiresLogin reports whether launching needs an authenticated session.
// Benchmark profiles never do.
func (p *Profile) RequiresLogin() bool {
	return !p.IsBenchmark
}

func (p *Profile) IsGameInstalled() bool {
	return p.Installed.GameVersion != ""
}

func (p *Profile) IsWineInstalled() bool {
	return p.Installed.WineVersion != ""
}

// GameExecutable is the client binary the runner starts. A benchmark
// install has the same layout under its own GamePath.
func (p *Profile) GameExecutable() string {
	if p.UseDX9 {
		return filepath.Join(p.GamePath, "game", "ffxiv.exe")
	}
	return filepath.Join(p.GamePath, "game", "ffxiv_dx11.exe")
}
