package model

// Backend selects which login service an account authenticates against.
type Backend string

const (
	BackendOfficial  Backend = "official"
	BackendAlternate Backend = "alternate"
)

type License string

const (
	LicenseWindowsStandalone License = "windows-standalone"
	LicenseWindowsSteam      License = "windows-steam"
	LicenseMacOS             License = "macos"
)

type Account struct {
	ID               string  `mapstructure:"id" json:"id"`
	Name             string  `mapstructure:"name" json:"name"`
	Backend          Backend `mapstructure:"backend" json:"backend"`
	LobbyURL         string  `mapstructure:"lobby_url" json:"lobby_url,omitempty"`
	License          License `mapstructure:"license" json:"license"`
	IsFreeTrial      bool    `mapstructure:"free_trial" json:"free_trial"`
	RememberPassword bool    `mapstructure:"remember_password" json:"remember_password"`
	RememberOTP      bool    `mapstructure:"remember_otp" json:"remember_otp"`
	UseOTP           bool    `mapstructure:"use_otp" json:"use_otp"`
}

func (a *Account) IsAlternate() bool {
	return a.Backend == BackendAlternate
}

func (a *Account) IsSteam() bool {
	return a.License == LicenseWindowsSteam
}
