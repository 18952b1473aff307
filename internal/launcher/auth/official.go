package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/game/gamedata"
	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

const (
	DefaultLoginBase    = "https://ffxiv-login.square-enix.com"
	DefaultPatchBase    = "https://patch-gamever.ffxiv.com"
	DefaultFrontierBase = "https://frontier.ffxiv.com"

	stepGate     = "gate"
	stepTop      = "login-top"
	stepSend     = "login-send"
	stepRegister = "register-session"
)

var (
	storedRegex = regexp.MustCompile(`<\s*input .*name="_STORED_" value="([^"]*)"`)
	okRegex     = regexp.MustCompile(`window\.external\.user\("login=auth,ok,(.*)"\);`)
	ngRegex     = regexp.MustCompile(`window\.external\.user\("login=auth,ng,err,(.*)"\);`)
	otpRegex    = regexp.MustCompile(`(?i)one[- ]time password|ワンタイムパスワード`)
)

type OfficialConfig struct {
	LoginBase    string
	PatchBase    string
	FrontierBase string
}

func (c OfficialConfig) withDefaults() OfficialConfig {
	if c.LoginBase == "" {
		c.LoginBase = DefaultLoginBase
	}
	if c.PatchBase == "" {
		c.PatchBase = DefaultPatchBase
	}
	if c.FrontierBase == "" {
		c.FrontierBase = DefaultFrontierBase
	}
	return c
}

// Official logs in against the publisher's OAuth pages: gate check, login
// page, credential submission, then session registration with the patch
// server.
type Official struct {
	client    *http.Client
	cfg       OfficialConfig
	machineID string
}

func NewOfficial(client *http.Client, cfg OfficialConfig) *Official {
	return &Official{
		client:    client,
		cfg:       cfg.withDefaults(),
		machineID: machineID(),
	}
}

func (o *Official) Login(ctx context.Context, creds model.Credentials, p *model.Profile, account *model.Account) (*model.LoginAuth, error) {
	if account.UseOTP && creds.OneTimePassword == "" {
		return nil, errors.OtpRequired()
	}

	info, err := gamedata.Read(p.GamePath)
	if err != nil || !info.Installed() {
		return nil, errors.GameNotInstalled(p.GamePath)
	}

	if err := o.checkGate(ctx); err != nil {
		return nil, err
	}

	topURL := o.topURL(account)
	stored, err := o.fetchStored(ctx, account, topURL)
	if err != nil {
		return nil, err
	}

	auth, err := o.submit(ctx, account, topURL, stored, creds)
	if err != nil {
		return nil, err
	}

	uniqueID, err := o.registerSession(ctx, p.GamePath, info, auth.SID)
	if err != nil {
		return nil, err
	}
	auth.SID = uniqueID

	log.Info().
		Str("sid", util.Redact(auth.SID)).
		Int("region", auth.Region).
		Int("max_expansion", auth.MaxExpansion).
		Msg("official login succeeded")
	return auth, nil
}

func (o *Official) checkGate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.FrontierBase+"/worldStatus/gate_status.json", nil)
	if err != nil {
		return errors.AuthTransport(stepGate, err)
	}
	o.setHeaders(req, nil)

	body, err := o.do(req, stepGate)
	if err != nil {
		return err
	}

	var status struct {
		Status *int `json:"status"`
	}
	if err := json.Unmarshal(body, &status); err != nil || status.Status == nil {
		return errors.MalformedResponse(stepGate, "gate status is not valid JSON")
	}
	if *status.Status != 1 {
		return errors.GateClosed()
	}
	return nil
}

func (o *Official) topURL(account *model.Account) string {
	q := url.Values{}
	q.Set("lng", "en")
	q.Set("rgn", "3")
	q.Set("isft", boolFlag(account.IsFreeTrial))
	q.Set("cssmode", "1")
	q.Set("isnew", "1")
	q.Set("launchver", "3")
	if account.IsSteam() {
		q.Set("issteam", "1")
	}
	return o.cfg.LoginBase + "/oauth/ffxivarr/login/top?" + q.Encode()
}

func (o *Official) fetchStored(ctx context.Context, account *model.Account, topURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, topURL, nil)
	if err != nil {
		return "", errors.AuthTransport(stepTop, err)
	}
	o.setHeaders(req, account)

	body, err := o.do(req, stepTop)
	if err != nil {
		return "", err
	}

	m := storedRegex.FindSubmatch(body)
	if m == nil {
		return "", errors.MalformedResponse(stepTop, "login page has no _STORED_ field")
	}
	return string(m[1]), nil
}

func (o *Official) submit(ctx context.Context, account *model.Account, topURL, stored string, creds model.Credentials) (*model.LoginAuth, error) {
	form := url.Values{}
	form.Set("_STORED_", stored)
	form.Set("sqexid", creds.Username)
	form.Set("password", creds.Password)
	form.Set("otppw", creds.OneTimePassword)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.LoginBase+"/oauth/ffxivarr/login/login.send", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.AuthTransport(stepSend, err)
	}
	o.setHeaders(req, account)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", topURL)

	body, err := o.do(req, stepSend)
	if err != nil {
		return nil, err
	}

	if m := okRegex.FindSubmatch(body); m != nil {
		return parseLaunchParams(string(m[1]))
	}
	if m := ngRegex.FindSubmatch(body); m != nil {
		message := string(m[1])
		if otpRegex.MatchString(message) {
			if creds.OneTimePassword == "" {
				return nil, errors.OtpRequired()
			}
			return nil, errors.OtpInvalid(message)
		}
		return nil, errors.InvalidCredentials(message)
	}
	return nil, errors.MalformedResponse(stepSend, "login response matched no known shape")
}

// parseLaunchParams reads the key,value list returned on success, e.g.
// "sid,XYZ,terms,1,region,3,etmadd,0,playable,1,ps3pkg,0,maxex,4,product,1".
func parseLaunchParams(raw string) (*model.LoginAuth, error) {
	parts := strings.Split(raw, ",")
	params := make(map[string]string, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		params[parts[i]] = parts[i+1]
	}

	sid := params["sid"]
	region, regionErr := strconv.Atoi(params["region"])
	maxex, maxexErr := strconv.Atoi(params["maxex"])
	if sid == "" || regionErr != nil || maxexErr != nil {
		return nil, errors.MalformedResponse(stepSend, "launch parameters are incomplete")
	}
	if params["terms"] == "0" {
		return nil, errors.AccountRestricted("the terms of service have not been accepted for this account")
	}
	if params["playable"] == "0" {
		return nil, errors.AccountRestricted("this account has no active subscription")
	}

	auth := model.NewLoginAuth(sid)
	auth.Region = region
	auth.MaxExpansion = maxex
	return auth, nil
}

func (o *Official) registerSession(ctx context.Context, gamePath string, info *gamedata.Info, sid string) (string, error) {
	hashes, err := gamedata.BootHashes(gamePath)
	if err != nil {
		return "", errors.AuthTransport(stepRegister, err)
	}

	var body strings.Builder
	body.WriteString(info.BootVersion + "=" + hashes)
	for i, v := range info.ExpansionVersions {
		fmt.Fprintf(&body, "\nex%d\t%s", i+1, v)
	}

	target := fmt.Sprintf("%s/http/win32/ffxivneo_release_game/%s/%s", o.cfg.PatchBase, info.GameVersion, url.PathEscape(sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body.String()))
	if err != nil {
		return "", errors.AuthTransport(stepRegister, err)
	}
	req.Header.Set("X-Hash-Check", "enabled")
	req.Header.Set("User-Agent", "FFXIV PATCH CLIENT")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", errors.AuthTransport(stepRegister, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return "", errors.MalformedResponse(stepRegister, "the server rejected the client version, a boot update is required")
	}
	if resp.StatusCode/100 != 2 {
		return "", errors.AuthTransport(stepRegister, fmt.Errorf("unexpected status %s", resp.Status))
	}

	patches, err := readBody(resp)
	if err != nil {
		return "", errors.AuthTransport(stepRegister, err)
	}
	if len(strings.TrimSpace(string(patches))) > 0 {
		return "", errors.MalformedResponse(stepRegister, "the game needs to be patched before logging in")
	}

	uniqueID := resp.Header.Get("X-Patch-Unique-Id")
	if uniqueID == "" {
		return "", errors.MalformedResponse(stepRegister, "response has no session id")
	}
	return uniqueID, nil
}

func (o *Official) do(req *http.Request, step string) ([]byte, error) {
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.AuthTransport(step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, errors.AuthTransport(step, fmt.Errorf("unexpected status %s", resp.Status))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, errors.AuthTransport(step, err)
	}
	return body, nil
}

// setHeaders applies the fingerprint the official servers expect from
// their own launcher.
func (o *Official) setHeaders(req *http.Request, account *model.Account) {
	if account != nil && account.License == model.LicenseMacOS {
		req.Header.Set("User-Agent", "macSQEXAuthor/2.0.0(MacOSX; ja-jp)")
	} else {
		req.Header.Set("User-Agent", fmt.Sprintf("SQEXAuthor/2.0.0(Windows 6.2; ja-jp; %s)", o.machineID))
	}
	req.Header.Set("Accept", "image/gif, image/jpeg, image/pjpeg, application/x-ms-application, application/xaml+xml, application/x-ms-xbap, */*")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Accept-Language", "en-us")
}

func machineID() string {
	host, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha1.Sum([]byte(host + user + runtime.GOOS))
	return hex.EncodeToString(sum[:])[:10]
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
