package runner

import (
	"strconv"
	"strings"

	"github.com/sjzar/xivlauncher/internal/model"
)

// Invocation is an argv plus the environment the launcher adds to it.
type Invocation struct {
	Argv []string
	Env  []string
}

// Transform wraps an invocation in one more process layer.
type Transform func(Invocation) Invocation

// Builder applies transforms innermost-first: the first one added wraps
// the game directly, the last one added becomes the process that starts.
type Builder struct {
	steps []Transform
}

func (b *Builder) Use(t Transform) *Builder {
	if t != nil {
		b.steps = append(b.steps, t)
	}
	return b
}

func (b *Builder) Build(inv Invocation) Invocation {
	for _, step := range b.steps {
		inv = step(inv)
	}
	return inv
}

// CompatLayer runs the invocation through the compatibility layer with
// the real executable as its first argument.
func CompatLayer(binary string, env []string) Transform {
	return func(inv Invocation) Invocation {
		return Invocation{
			Argv: append([]string{binary}, inv.Argv...),
			Env:  append(append([]string(nil), env...), inv.Env...),
		}
	}
}

// Compositor nests the invocation inside gamescope.
func Compositor(binary string, opts model.GamescopeOptions) Transform {
	return func(inv Invocation) Invocation {
		argv := []string{binary}
		if opts.Fullscreen {
			argv = append(argv, "-f")
		}
		if opts.Borderless {
			argv = append(argv, "-b")
		}
		if opts.Width > 0 {
			argv = append(argv, "-w", strconv.Itoa(opts.Width))
		}
		if opts.Height > 0 {
			argv = append(argv, "-h", strconv.Itoa(opts.Height))
		}
		if opts.RefreshRate > 0 {
			argv = append(argv, "-r", strconv.Itoa(opts.RefreshRate))
		}
		argv = append(argv, "--")
		return Invocation{Argv: append(argv, inv.Argv...), Env: inv.Env}
	}
}

// Governor prefixes the invocation with the performance governor.
func Governor(binary string) Transform {
	return func(inv Invocation) Invocation {
		return Invocation{Argv: append([]string{binary}, inv.Argv...), Env: inv.Env}
	}
}

// WineEnv is the environment the compatibility layer needs for a profile.
func WineEnv(p *model.Profile) []string {
	env := []string{
		"WINEPREFIX=" + p.WinePrefixPath,
		"WINEDLLOVERRIDES=msquic=,mscoree=n,b;d3d9,d3d11,d3d10core,dxgi=n,b",
	}
	if p.UseESync {
		env = append(env, "WINEESYNC=1", "WINEFSYNC=1", "WINEFSYNC_FUTEX2=1")
	}
	if p.EnableDXVKHud {
		env = append(env, "DXVK_HUD=full")
	}
	return env
}

// MergeEnv returns the launcher's variables followed by the inherited
// ones it does not set. The launcher's value wins for a shared key.
func MergeEnv(launcher, inherited []string) []string {
	set := make(map[string]struct{}, len(launcher))
	for _, kv := range launcher {
		k, _, _ := strings.Cut(kv, "=")
		set[k] = struct{}{}
	}
	env := append(make([]string, 0, len(launcher)+len(inherited)), launcher...)
	for _, kv := range inherited {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := set[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	return env
}
