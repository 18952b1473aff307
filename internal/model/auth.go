package model

import "fmt"

// LoginAuth is the session descriptor produced by a successful login and
// consumed once by the runner. It is never persisted.
type LoginAuth struct {
	SID          string
	Region       int
	MaxExpansion int

	// Empty means the client keeps its built-in hosts.
	LobbyHost    string
	FrontierHost string
}

const (
	DefaultRegion       = 2
	DefaultMaxExpansion = 1
)

func NewLoginAuth(sid string) *LoginAuth {
	return &LoginAuth{SID: sid, Region: DefaultRegion, MaxExpansion: DefaultMaxExpansion}
}

type Credentials struct {
	Username        string
	Password        string
	OneTimePassword string
}

// String never includes the secret fields.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: <redacted>, OTP: %t}", c.Username, c.OneTimePassword != "")
}

func (c Credentials) GoString() string { return c.String() }
