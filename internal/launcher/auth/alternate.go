package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

const (
	stepLobby       = "lobby-login"
	alternateRegion = 3
)

// Alternate logs in against a self-hosted lobby server with a single JSON
// request. It sends no fingerprint headers.
type Alternate struct {
	client   *http.Client
	protocol string
}

func NewAlternate(client *http.Client, protocol string) *Alternate {
	if protocol == "" {
		protocol = "https"
	}
	return &Alternate{client: client, protocol: protocol}
}

type lobbyRequest struct {
	Username string `json:"username"`
	Pass     string `json:"pass"`
}

type lobbyResponse struct {
	Result       bool   `json:"result"`
	SID          string `json:"sId"`
	LobbyHost    string `json:"lobbyHost"`
	FrontierHost string `json:"frontierHost"`
}

func (a *Alternate) loginURL(lobbyURL string) string {
	base := strings.TrimRight(lobbyURL, "/")
	if !strings.Contains(base, "://") {
		base = a.protocol + "://" + base
	}
	return base + "/sapphire-api/lobby/login"
}

func (a *Alternate) Login(ctx context.Context, creds model.Credentials, account *model.Account) (*model.LoginAuth, error) {
	payload, err := json.Marshal(lobbyRequest{Username: creds.Username, Pass: creds.Password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.loginURL(account.LobbyURL), bytes.NewReader(payload))
	if err != nil {
		return nil, errors.AuthTransport(stepLobby, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.AuthTransport(stepLobby, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, errors.AuthTransport(stepLobby, err)
	}
	if resp.StatusCode/100 != 2 && len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.AuthTransport(stepLobby, fmt.Errorf("unexpected status %s", resp.Status))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.MalformedResponse(stepLobby, "could not connect to lobby server")
	}

	var out lobbyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.MalformedResponse(stepLobby, "lobby response is not valid JSON")
	}
	if !out.Result {
		return nil, errors.InvalidCredentials("")
	}
	if out.SID == "" {
		return nil, errors.MalformedResponse(stepLobby, "lobby response has no session id")
	}

	auth := model.NewLoginAuth(out.SID)
	auth.Region = alternateRegion
	auth.LobbyHost = out.LobbyHost
	auth.FrontierHost = out.FrontierHost

	log.Info().
		Str("sid", util.Redact(auth.SID)).
		Str("lobby_host", auth.LobbyHost).
		Msg("lobby login succeeded")
	return auth, nil
}
