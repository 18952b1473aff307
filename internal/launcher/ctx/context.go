// Package ctx owns the launcher's long-lived state: configuration,
// secrets, the HTTP client and the services built on top of them.
package ctx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/game/gamedata"
	"github.com/sjzar/xivlauncher/internal/launcher/auth"
	"github.com/sjzar/xivlauncher/internal/launcher/conf"
	"github.com/sjzar/xivlauncher/internal/launcher/coordinator"
	"github.com/sjzar/xivlauncher/internal/launcher/maintenance"
	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/launcher/runner"
	"github.com/sjzar/xivlauncher/internal/launcher/secret"
	"github.com/sjzar/xivlauncher/internal/model"
)

const (
	AppName          = "xivlauncher"
	secretDirName    = "secrets"
	dataDirName      = "data"
	headerTimeout    = 30 * time.Second
	idleConnsPerHost = 8
)

type Options struct {
	// ConfigDir defaults to <user config dir>/xivlauncher.
	ConfigDir string
	Notify    coordinator.Notifier
	OnExit    func(*model.Process)
	// Executor and Transport replace the real process and network layers.
	Executor  runner.Executor
	Transport http.RoundTripper
	Now       func() time.Time
}

type Context struct {
	mu sync.Mutex

	ConfigDir string
	DataDir   string

	Store   *conf.Store
	Secrets secret.Store
	Client  *http.Client
	Guard   *provision.Guard

	Auth        *auth.Backends
	Provisioner *provision.Provisioner
	Runner      *runner.Runner
	Coordinator *coordinator.Coordinator
	Maintenance *maintenance.Service

	opts        Options
	maintaining bool
}

func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// New opens the configuration and secret stores and wires every service.
func New(opts Options) (*Context, error) {
	if opts.ConfigDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		opts.ConfigDir = dir
	}
	if opts.Executor == nil {
		opts.Executor = runner.ExecExecutor{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store, err := conf.Open(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	secrets, err := secret.OpenFileStore(filepath.Join(opts.ConfigDir, secretDirName))
	if err != nil {
		return nil, err
	}

	c := &Context{
		ConfigDir: opts.ConfigDir,
		Store:     store,
		Secrets:   secrets,
		Guard:     provision.NewGuard(),
		opts:      opts,
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	live := liveServices{c: c}
	c.Coordinator = coordinator.New(coordinator.Config{
		Auth:      live,
		Provision: live,
		Launch:    live,
		Accounts:  c.Store,
		Secrets:   c.Secrets,
		Guard:     c.Guard,
		Notify:    opts.Notify,
		Now:       opts.Now,
	})
	return c, nil
}

// build (re)creates the services from the current settings. It is called
// again when the settings change on disk. The Coordinator is created once
// and picks up the rebuilt services on its next stage.
func (c *Context) build() error {
	settings := c.Store.Settings()

	dataDir := settings.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(c.ConfigDir, dataDirName)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	client := &http.Client{Transport: c.transport(settings)}

	backends := &auth.Backends{
		Official:  auth.NewOfficial(client, auth.OfficialConfig{}),
		Alternate: auth.NewAlternate(client, settings.PreferredProtocol),
	}
	provisioner := provision.New(client, provision.Config{
		DataDir:    dataDir,
		DistribURL: settings.PreferredProtocol + "://" + settings.DistribServer,
		RuntimeURL: "https://" + settings.RuntimeServer,
	})
	run := runner.New(c.opts.Executor, runner.Config{
		DataDir: dataDir,
		OnExit:  c.opts.OnExit,
		Now:     c.opts.Now,
	})
	service := maintenance.NewService(provisioner, c.Store, c.Guard, settings.MaintenanceSchedule)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.DataDir = dataDir
	c.Client = client
	c.Auth = backends
	c.Provisioner = provisioner
	c.Runner = run

	old := c.Maintenance
	c.Maintenance = service
	if c.maintaining {
		if old != nil {
			old.Stop()
		}
		return service.Start()
	}
	return nil
}

// StartMaintenance schedules background add-on updates. The schedule
// follows later configuration reloads.
func (c *Context) StartMaintenance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Maintenance.Start(); err != nil {
		return err
	}
	c.maintaining = true
	return nil
}

func (c *Context) transport(settings conf.Settings) http.RoundTripper {
	if c.opts.Transport != nil {
		return c.opts.Transport
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	t.MaxIdleConnsPerHost = idleConnsPerHost
	if settings.AllowInsecureTLS() {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}

func (c *Context) Settings() conf.Settings {
	return c.Store.Settings()
}

// Load rereads the configuration file, rebuilds the services and refreshes
// every profile's installed versions.
func (c *Context) Load(ctx context.Context) error {
	if err := c.Store.Load(); err != nil {
		return err
	}
	if err := c.build(); err != nil {
		return err
	}
	for _, p := range c.Store.Profiles() {
		c.RefreshInstalled(ctx, p)
	}
	return nil
}

// Watch reloads the context whenever the configuration file changes.
func (c *Context) Watch(ctx context.Context) {
	c.Store.Watch(func() {
		if err := c.build(); err != nil {
			log.Err(err).Msg("rebuild after config change failed")
			return
		}
		for _, p := range c.Store.Profiles() {
			c.RefreshInstalled(ctx, p)
		}
	})
}

// RefreshInstalled fills p.Installed from the game install, the add-on
// markers and the compatibility layer. Failures only affect display.
func (c *Context) RefreshInstalled(ctx context.Context, p *model.Profile) {
	installed := model.InstalledVersions{}

	info, err := gamedata.Read(p.GamePath)
	if err != nil {
		log.Debug().Err(err).Str("profile", p.Name).Msg("read game versions failed")
	} else {
		installed.BootVersion = info.BootVersion
		installed.GameVersion = info.GameVersion
		installed.ExpansionVersions = info.ExpansionVersions
		installed.ExpansionNames = info.ExpansionNames()
	}

	local, err := c.Provisioner.Installed(p)
	if err != nil {
		log.Debug().Err(err).Str("profile", p.Name).Msg("read add-on versions failed")
	} else {
		installed.DalamudVersion = local.Addon
		installed.RuntimeVersion = local.Runtime
		installed.DalamudAssets = local.AssetVersion
	}

	if !c.Runner.IsNative() {
		installed.WineVersion = c.Runner.WineVersion(ctx, p)
	}
	p.Installed = installed
}

// Profile resolves a profile by id or name, falling back to the current
// profile when idOrName is empty.
func (c *Context) Profile(idOrName string) (*model.Profile, error) {
	if idOrName == "" {
		idOrName = c.Settings().CurrentProfile
	}
	if idOrName == "" {
		profiles := c.Store.Profiles()
		if len(profiles) == 0 {
			return nil, fmt.Errorf("no profiles configured")
		}
		return profiles[0], nil
	}
	p, ok := c.Store.FindProfile(idOrName)
	if !ok {
		return nil, fmt.Errorf("profile %q not found", idOrName)
	}
	return p, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	m := c.Maintenance
	c.maintaining = false
	c.mu.Unlock()
	if m != nil {
		return m.Stop()
	}
	return nil
}

func (c *Context) Now() time.Time {
	return c.opts.Now()
}
