package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sjzar/xivlauncher/internal/model"
)

const (
	lobbyPort      = 54994
	lobbyHosts     = 8
	dataPathSqPack = "1"
)

type Argument struct {
	Key   string
	Value string
}

// Arguments is an ordered list of KEY=VALUE tokens for the game client.
type Arguments []Argument

func (a *Arguments) Add(key string, value any) {
	*a = append(*a, Argument{Key: key, Value: fmt.Sprint(value)})
}

func (a Arguments) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Tokens returns the plain KEY=VALUE form.
func (a Arguments) Tokens() []string {
	out := make([]string, 0, len(a))
	for _, arg := range a {
		out = append(out, arg.Key+"="+arg.Value)
	}
	return out
}

func (a Arguments) String() string {
	return strings.Join(a.Tokens(), " ")
}

// GameArguments builds the client arguments for a launch. auth is nil for
// launches that skip login, which then carry no session tokens.
func GameArguments(p *model.Profile, account *model.Account, auth *model.LoginAuth, gameVersion, userPath string) Arguments {
	var args Arguments
	args.Add("DEV.DataPathType", dataPathSqPack)
	args.Add("DEV.UseSqPack", 1)

	if auth != nil {
		args.Add("DEV.MaxEntitledExpansionID", auth.MaxExpansion)
		args.Add("DEV.TestSID", auth.SID)
		args.Add("SYS.Region", auth.Region)
	}

	args.Add("language", p.Language)
	args.Add("ver", gameVersion)
	args.Add("UserPath", userPath)

	if auth != nil && auth.LobbyHost != "" {
		args.Add("DEV.GMServerHost", auth.FrontierHost)
		for i := 1; i <= lobbyHosts; i++ {
			n := strconv.Itoa(i)
			args.Add("DEV.LobbyHost0"+n, auth.LobbyHost)
			args.Add("DEV.LobbyPort0"+n, lobbyPort)
		}
	}

	if account != nil && account.IsSteam() {
		args.Add("IsSteam", 1)
	}
	return args
}
