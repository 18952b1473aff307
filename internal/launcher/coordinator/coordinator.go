// Package coordinator drives one launch attempt through authentication,
// provisioning and launch.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/launcher/auth"
	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/launcher/secret"
	"github.com/sjzar/xivlauncher/internal/model"
)

const (
	TextLoggingIn = "Logging in..."
	TextLaunching = "Launching game..."
	TextStarted   = "Game started."
)

type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials, p *model.Profile, account *model.Account) (*model.LoginAuth, error)
}

type Provisioner interface {
	UpdateWithNotifier(ctx context.Context, p *model.Profile, notify provision.Notifier) error
}

type Launcher interface {
	Launch(ctx context.Context, p *model.Profile, account *model.Account, auth *model.LoginAuth) (*model.Process, error)
}

// AccountResolver finds the account linked to a profile.
type AccountResolver interface {
	AccountFor(p *model.Profile) (*model.Account, bool)
}

type Config struct {
	Auth      Authenticator
	Provision Provisioner
	Launch    Launcher
	Accounts  AccountResolver
	Secrets   secret.Store
	Guard     *provision.Guard
	Notify    Notifier
	Now       func() time.Time
}

// Coordinator runs at most one attempt per profile. Attempts for
// different profiles are independent.
type Coordinator struct {
	cfg Config

	mu     sync.Mutex
	states map[string]State
}

func New(cfg Config) *Coordinator {
	if cfg.Guard == nil {
		cfg.Guard = provision.NewGuard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{cfg: cfg, states: make(map[string]State)}
}

// State reports where the profile's current attempt is.
func (c *Coordinator) State(profileID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[profileID]
}

func (c *Coordinator) begin(profileID string, first State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states[profileID] != Idle {
		return false
	}
	c.states[profileID] = first
	return true
}

func (c *Coordinator) set(profileID string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == Idle {
		delete(c.states, profileID)
		return
	}
	c.states[profileID] = s
}

func (c *Coordinator) emit(e Event) {
	if c.cfg.Notify != nil {
		c.cfg.Notify(e)
	}
}

// attempt is the state carried between stages of one launch.
type attempt struct {
	profile *model.Profile
	creds   model.Credentials
	account *model.Account
	auth    *model.LoginAuth
	process *model.Process
	err     error
}

type step func(ctx context.Context, a *attempt) State

// BeginLogin authenticates, provisions and launches p. It returns once the
// game process has started or a stage failed; stage errors come back
// unchanged.
func (c *Coordinator) BeginLogin(ctx context.Context, p *model.Profile, creds model.Credentials) (*model.Process, error) {
	first := Authenticating
	if !p.RequiresLogin() {
		first = Provisioning
	}
	return c.run(ctx, p, creds, first)
}

// ImmediatelyLaunch starts the game without logging in or updating the
// add-on.
func (c *Coordinator) ImmediatelyLaunch(ctx context.Context, p *model.Profile) (*model.Process, error) {
	return c.run(ctx, p, model.Credentials{}, Launching)
}

func (c *Coordinator) run(ctx context.Context, p *model.Profile, creds model.Credentials, first State) (*model.Process, error) {
	if !c.begin(p.ID, first) {
		return nil, errors.Busy(p.Name)
	}
	defer c.set(p.ID, Idle)

	unlock, err := c.cfg.Guard.Lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	steps := map[State]step{
		Authenticating: c.authenticate,
		Provisioning:   c.provision,
		Launching:      c.launch,
	}

	a := &attempt{profile: p, creds: creds}
	state := first
	for state != Idle && state != Failed {
		c.set(p.ID, state)
		state = steps[state](ctx, a)
	}

	if state == Failed {
		c.emit(Event{ProfileID: p.ID, State: Failed, Text: a.err.Error(), Err: a.err})
		log.Err(a.err).Str("profile", p.Name).Msg("launch attempt failed")
		return nil, a.err
	}
	c.emit(Event{ProfileID: p.ID, State: Idle, Text: TextStarted, Process: a.process})
	return a.process, nil
}

func (c *Coordinator) authenticate(ctx context.Context, a *attempt) State {
	p := a.profile
	account, ok := c.cfg.Accounts.AccountFor(p)
	if !ok {
		a.err = errors.MissingAccount(p.Name)
		return Failed
	}
	a.account = account

	c.emit(Event{ProfileID: p.ID, State: Authenticating, Text: TextLoggingIn})
	session, err := c.cfg.Auth.Login(ctx, a.creds, p, account)
	if err != nil {
		a.err = err
		return Failed
	}
	a.auth = session
	p.LoggedIn = true

	if account.RememberPassword && a.creds.Password != "" && c.cfg.Secrets != nil {
		if err := c.cfg.Secrets.SetPassword(account.ID, a.creds.Password); err != nil {
			log.Err(err).Str("account", account.Name).Msg("remember password failed")
		}
	}
	return Provisioning
}

func (c *Coordinator) provision(ctx context.Context, a *attempt) State {
	p := a.profile
	err := c.cfg.Provision.UpdateWithNotifier(ctx, p, func(phase string) {
		c.emit(Event{ProfileID: p.ID, State: Provisioning, Text: phase})
	})
	if err != nil {
		a.err = err
		return Failed
	}
	return Launching
}

func (c *Coordinator) launch(ctx context.Context, a *attempt) State {
	p := a.profile
	if a.account == nil && c.cfg.Accounts != nil {
		a.account, _ = c.cfg.Accounts.AccountFor(p)
	}

	c.emit(Event{ProfileID: p.ID, State: Launching, Text: TextLaunching})
	proc, err := c.cfg.Launch.Launch(ctx, p, a.account, a.auth)
	if err != nil {
		a.err = err
		return Failed
	}
	a.process = proc
	return Idle
}

// AutoLogin counts down, then logs in with the remembered credentials.
// Cancelling ctx during the countdown aborts the attempt; once the stages
// are running they are no longer tied to ctx.
func (c *Coordinator) AutoLogin(ctx context.Context, p *model.Profile, delay time.Duration) (*model.Process, error) {
	if err := c.countdown(ctx, p, delay); err != nil {
		return nil, err
	}

	creds, err := c.rememberedCredentials(p)
	if err != nil {
		c.emit(Event{ProfileID: p.ID, State: Failed, Text: err.Error(), Err: err})
		return nil, err
	}
	return c.BeginLogin(context.WithoutCancel(ctx), p, creds)
}

func (c *Coordinator) countdown(ctx context.Context, p *model.Profile, delay time.Duration) error {
	deadline := time.NewTimer(delay)
	defer deadline.Stop()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	remaining := int(delay.Round(time.Second) / time.Second)
	for {
		if remaining > 0 {
			c.emit(Event{ProfileID: p.ID, State: Idle, Text: fmt.Sprintf("Logging in automatically in %d...", remaining)})
		}
		select {
		case <-ctx.Done():
			log.Info().Str("profile", p.Name).Msg("auto-login cancelled")
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-tick.C:
			remaining--
		}
	}
}

func (c *Coordinator) rememberedCredentials(p *model.Profile) (model.Credentials, error) {
	if !p.RequiresLogin() {
		return model.Credentials{}, nil
	}
	account, ok := c.cfg.Accounts.AccountFor(p)
	if !ok {
		return model.Credentials{}, errors.MissingAccount(p.Name)
	}

	creds := model.Credentials{Username: account.Name}
	if c.cfg.Secrets == nil {
		return creds, nil
	}

	password, err := c.cfg.Secrets.Password(account.ID)
	if err != nil {
		return creds, err
	}
	creds.Password = password

	if account.UseOTP {
		otpSecret, err := c.cfg.Secrets.OTPSecret(account.ID)
		if err != nil {
			return creds, err
		}
		if otpSecret == "" {
			return creds, errors.OtpRequired()
		}
		code, err := auth.GenerateOTP(otpSecret, c.cfg.Now())
		if err != nil {
			return creds, err
		}
		creds.OneTimePassword = code
	}
	return creds, nil
}
