package conf

const (
	ConfigName = "xivlauncher"
	ConfigType = "yaml"
	EnvPrefix  = "XIVLAUNCHER"

	DefaultDistribServer   = "kamori.goats.dev"
	DefaultRuntimeServer   = "dotnetcli.azureedge.net/dotnet"
	DefaultProtocol        = "https"
	DefaultAutoLoginDelay  = 5
	DefaultMaintenanceSpec = "@every 6h"
)

// Settings are launcher-wide options that are not tied to a profile.
type Settings struct {
	CurrentProfile      string `json:"current_profile"`
	AutoLoginProfile    string `json:"auto_login_profile"`
	CloseWhenLaunched   bool   `json:"close_when_launched"`
	DistribServer       string `json:"distrib_server"`
	RuntimeServer       string `json:"runtime_server"`
	PreferredProtocol   string `json:"preferred_protocol"`
	AutoLoginDelay      int    `json:"auto_login_delay"`
	MaintenanceSchedule string `json:"maintenance_schedule"`
	DataDir             string `json:"data_dir,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		CloseWhenLaunched:   true,
		DistribServer:       DefaultDistribServer,
		RuntimeServer:       DefaultRuntimeServer,
		PreferredProtocol:   DefaultProtocol,
		AutoLoginDelay:      DefaultAutoLoginDelay,
		MaintenanceSchedule: DefaultMaintenanceSpec,
	}
}

// AllowInsecureTLS is only true when the user explicitly picked plain
// http for a self-hosted deployment.
func (s Settings) AllowInsecureTLS() bool {
	return s.PreferredProtocol == "http"
}
