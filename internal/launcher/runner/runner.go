// Package runner composes the game's command line and environment and
// starts it, wrapped in whatever layers the profile enables.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/game/gamedata"
	"github.com/sjzar/xivlauncher/internal/game/wine"
	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/model"
	"github.com/sjzar/xivlauncher/pkg/util"
)

const (
	GamescopeBinary = "gamescope"
	GamemodeBinary  = "gamemoderun"

	wrapperWine      = "wine"
	wrapperGamescope = "gamescope"
	wrapperGamemode  = "gamemode"
)

// DistributionChannel is a store client that tracks which process is the
// running game. Nil when no such integration is active.
type DistributionChannel interface {
	SetLauncherMode(enabled bool) error
}

type Config struct {
	DataDir string
	// Compat forces the compatibility layer. It defaults to true on every
	// host but Windows.
	Compat  *bool
	Environ []string
	Ticks   TickSource
	Lookup  LookupFunc
	Running RunningFunc
	Channel DistributionChannel
	// OnExit is called from the exit watcher once the process ends.
	OnExit func(*model.Process)
	Now    func() time.Time
}

type Runner struct {
	exec Executor
	cfg  Config
}

func New(exec Executor, cfg Config) *Runner {
	if cfg.Compat == nil {
		compat := runtime.GOOS != model.PlatformWindows
		cfg.Compat = &compat
	}
	if cfg.Ticks == nil {
		cfg.Ticks = BootTicks
	}
	if cfg.Lookup == nil {
		cfg.Lookup = LookupExecutable
	}
	if cfg.Running == nil {
		cfg.Running = FindRunning
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{exec: exec, cfg: cfg}
}

func (r *Runner) environ() []string {
	if r.cfg.Environ != nil {
		return r.cfg.Environ
	}
	return os.Environ()
}

func (r *Runner) compat() bool {
	return *r.cfg.Compat
}

// IsNative reports whether the game runs without the compatibility layer.
func (r *Runner) IsNative() bool {
	return !r.compat()
}

// UserPath is where the client keeps its configuration for a profile.
func (r *Runner) UserPath(p *model.Profile) string {
	return filepath.Join(r.cfg.DataDir, "profiles", util.SafeDirName(p.ID, 64), "game")
}

// WineVersion probes the profile's compatibility layer.
func (r *Runner) WineVersion(ctx context.Context, p *model.Profile) string {
	return wine.Version(ctx, r.exec, p)
}

// Launch starts the game for p. auth is nil when the profile skips login.
// It returns once the process has started; exit is reported through
// Config.OnExit.
func (r *Runner) Launch(ctx context.Context, p *model.Profile, account *model.Account, auth *model.LoginAuth) (*model.Process, error) {
	exe := p.GameExecutable()
	if ok, _ := util.IsFile(exe); !ok {
		return nil, errors.ProcessStart(fmt.Errorf("game executable %s not found", exe))
	}
	if pid, ok := r.cfg.Running(ctx, exe); ok {
		return nil, errors.AlreadyRunning(pid)
	}

	cmd, err := r.Compose(ctx, p, account, auth)
	if err != nil {
		return nil, err
	}

	if r.cfg.Channel != nil {
		if err := r.cfg.Channel.SetLauncherMode(false); err != nil {
			log.Err(err).Msg("leave launcher mode failed")
		}
		defer func() {
			if err := r.cfg.Channel.SetLauncherMode(true); err != nil {
				log.Err(err).Msg("restore launcher mode failed")
			}
		}()
	}

	handle, err := r.exec.Start(ctx, cmd)
	if err != nil {
		return nil, errors.ProcessStart(err)
	}

	proc := &model.Process{
		PID:       handle.PID(),
		ExePath:   exe,
		Argv:      cmd.Argv,
		Platform:  runtime.GOOS,
		ProfileID: p.ID,
		Status:    model.StatusRunning,
		StartedAt: r.cfg.Now(),
	}
	log.Info().
		Int("pid", proc.PID).
		Str("profile", p.Name).
		Str("process", cmd.Argv[0]).
		Int("argc", len(cmd.Argv)).
		Msg("game started")

	go r.watch(*proc, handle)
	return proc, nil
}

func (r *Runner) watch(proc model.Process, handle Handle) {
	code, err := handle.Wait()
	if err != nil {
		log.Err(err).Int("pid", proc.PID).Msg("wait for game process failed")
	}
	proc.Status = model.StatusExited
	proc.ExitCode = code
	log.Info().Int("pid", proc.PID).Int("exit_code", code).Msg("game exited")
	if r.cfg.OnExit != nil {
		r.cfg.OnExit(&proc)
	}
}

// Compose builds the final command without starting it. Wrappers are
// resolved first so a missing one fails before anything touches the
// prefix.
func (r *Runner) Compose(ctx context.Context, p *model.Profile, account *model.Account, auth *model.LoginAuth) (Command, error) {
	exe := p.GameExecutable()

	var wineBin, gamescopeBin, gamemodeBin string
	var err error
	if r.compat() {
		if wineBin, err = resolveWrapper(r.cfg.Lookup, wrapperWine, wine.Binary(p)); err != nil {
			return Command{}, err
		}
	}
	if p.UseGamescope {
		if gamescopeBin, err = resolveWrapper(r.cfg.Lookup, wrapperGamescope, GamescopeBinary); err != nil {
			return Command{}, err
		}
	}
	if p.UseGamemode {
		if gamemodeBin, err = resolveWrapper(r.cfg.Lookup, wrapperGamemode, GamemodeBinary); err != nil {
			return Command{}, err
		}
	}

	argv, err := r.gameArgv(p, account, auth, exe)
	if err != nil {
		return Command{}, err
	}

	var b Builder
	if r.compat() {
		if err := r.setupRegistry(ctx, p, wineBin, exe); err != nil {
			return Command{}, err
		}
		b.Use(CompatLayer(wineBin, WineEnv(p)))
	}
	if p.UseGamescope {
		b.Use(Compositor(gamescopeBin, p.Gamescope))
	}
	if p.UseGamemode {
		b.Use(Governor(gamemodeBin))
	}

	inv := b.Build(Invocation{Argv: argv, Env: r.addonEnv(p)})
	return Command{
		Argv: inv.Argv,
		Env:  MergeEnv(inv.Env, r.environ()),
		Dir:  filepath.Dir(exe),
	}, nil
}

func (r *Runner) gameArgv(p *model.Profile, account *model.Account, auth *model.LoginAuth, exe string) ([]string, error) {
	info, err := gamedata.Read(p.GamePath)
	if err != nil {
		return nil, errors.ProcessStart(err)
	}

	userPath := r.UserPath(p)
	if err := os.MkdirAll(userPath, 0o755); err != nil {
		return nil, errors.ProcessStart(err)
	}
	if r.compat() {
		userPath = util.ToWindowsPath(userPath)
	}

	args := GameArguments(p, account, auth, info.GameVersion, userPath)
	if auth != nil && p.EncryptArguments {
		token, err := EncryptArguments(args, r.cfg.Ticks())
		if err != nil {
			return nil, errors.ProcessStart(err)
		}
		return []string{exe, token}, nil
	}
	return append([]string{exe}, args.Tokens()...), nil
}

// addonEnv tells the injector where the add-on and its runtime live when
// the add-on is enabled and installed.
func (r *Runner) addonEnv(p *model.Profile) []string {
	if !p.Dalamud.Enabled {
		return nil
	}
	layout := provision.LayoutFor(r.cfg.DataDir, p)
	channel := p.Dalamud.Channel
	if !channel.Valid() {
		channel = model.ChannelStable
	}
	addonDir := layout.AddonDir(channel)
	if !util.IsDir(addonDir) {
		log.Warn().Str("dir", addonDir).Msg("add-on enabled but not installed, launching without it")
		return nil
	}

	runtimeDir := layout.RuntimeDir()
	if r.compat() {
		addonDir = util.ToWindowsPath(addonDir)
		runtimeDir = util.ToWindowsPath(runtimeDir)
	}
	method := p.Dalamud.InjectMethod
	if method == "" {
		method = model.InjectEntrypoint
	}
	env := []string{
		"DALAMUD_RUNTIME=" + runtimeDir,
		"XL_DALAMUD_PATH=" + addonDir,
		"XL_DALAMUD_INJECT_METHOD=" + string(method),
		"XL_DALAMUD_INJECT_DELAY=" + strconv.Itoa(p.Dalamud.InjectDelay),
	}
	if p.Dalamud.OptOutMbCollection {
		env = append(env, "XL_DALAMUD_OPT_OUT_MB=1")
	}
	return env
}
