package ctx

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/launcher/conf"
	"github.com/sjzar/xivlauncher/internal/launcher/coordinator"
	"github.com/sjzar/xivlauncher/internal/launcher/runner"
	"github.com/sjzar/xivlauncher/internal/model"
)

type fakeExec struct {
	probes int
}

func (f *fakeExec) Start(context.Context, runner.Command) (runner.Handle, error) {
	return nil, assert.AnError
}

func (f *fakeExec) CombinedOutput(_ context.Context, argv []string, _ []string) ([]byte, error) {
	f.probes++
	return []byte("wine-9.0\n"), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newContext(t *testing.T) (*Context, *fakeExec) {
	t.Helper()
	exec := &fakeExec{}
	c, err := New(Options{ConfigDir: t.TempDir(), Executor: exec})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, exec
}

func TestNewWiresServices(t *testing.T) {
	c, _ := newContext(t)

	assert.Equal(t, filepath.Join(c.ConfigDir, dataDirName), c.DataDir)
	assert.DirExists(t, c.DataDir)
	assert.NotNil(t, c.Coordinator)
	assert.NotNil(t, c.Provisioner)
	assert.NotNil(t, c.Maintenance)
	assert.DirExists(t, filepath.Join(c.ConfigDir, secretDirName))

	transport, ok := c.Client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Nil(t, transport.TLSClientConfig)
}

func TestInsecureTLSOnlyWhenOptedIn(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.Store.UpdateSettings(func(s *conf.Settings) { s.PreferredProtocol = "http" }))
	require.NoError(t, c.Load(context.Background()))

	transport, ok := c.Client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestLoadRefreshesInstalledVersions(t *testing.T) {
	c, exec := newContext(t)

	game := t.TempDir()
	writeFile(t, filepath.Join(game, "boot", "ffxivboot.ver"), "2024.01.01.0000.0000")
	writeFile(t, filepath.Join(game, "game", "ffxivgame.ver"), "2024.02.02.0000.0000")
	writeFile(t, filepath.Join(game, "game", "sqpack", "ex1", "ex1.ver"), "2024.03.03.0000.0000")

	p := model.NewProfile("Main")
	p.GamePath = game
	p.WineType = model.WineSystem
	require.NoError(t, c.Store.SaveProfile(p))

	require.NoError(t, c.Load(context.Background()))

	loaded, err := c.Profile(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024.01.01.0000.0000", loaded.Installed.BootVersion)
	assert.Equal(t, "2024.02.02.0000.0000", loaded.Installed.GameVersion)
	assert.Equal(t, []string{"Heavensward"}, loaded.Installed.ExpansionNames)
	assert.Empty(t, loaded.Installed.DalamudVersion)

	if c.Runner.IsNative() {
		assert.Zero(t, exec.probes)
	} else {
		assert.Equal(t, "wine-9.0", loaded.Installed.WineVersion)
	}
}

func TestProfileResolution(t *testing.T) {
	c, _ := newContext(t)

	_, err := c.Profile("")
	assert.Error(t, err)

	first := model.NewProfile("First")
	second := model.NewProfile("Second")
	require.NoError(t, c.Store.SaveProfile(first))
	require.NoError(t, c.Store.SaveProfile(second))

	p, err := c.Profile("")
	require.NoError(t, err)
	assert.Equal(t, first.ID, p.ID)

	require.NoError(t, c.Store.UpdateSettings(func(s *conf.Settings) { s.CurrentProfile = second.ID }))
	p, err = c.Profile("")
	require.NoError(t, err)
	assert.Equal(t, second.ID, p.ID)

	p, err = c.Profile("First")
	require.NoError(t, err)
	assert.Equal(t, first.ID, p.ID)

	_, err = c.Profile("nope")
	assert.Error(t, err)
}

func TestStartMaintenanceFollowsReload(t *testing.T) {
	c, _ := newContext(t)
	require.NoError(t, c.StartMaintenance())
	before := c.Maintenance

	require.NoError(t, c.Load(context.Background()))
	assert.NotSame(t, before, c.Maintenance)
	assert.NoError(t, c.Close())
}

// An attempt in flight keeps its profile busy across a configuration
// reload.
func TestReloadKeepsAttemptInFlight(t *testing.T) {
	c, _ := newContext(t)
	coord := c.Coordinator

	p := model.NewProfile("Bench")
	p.IsBenchmark = true
	p.GamePath = t.TempDir()

	unlock, err := c.Guard.Lock(context.Background(), p.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Coordinator.ImmediatelyLaunch(context.Background(), p)
		done <- err
	}()
	require.Eventually(t, func() bool { return coord.State(p.ID) != coordinator.Idle }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Load(context.Background()))
	assert.Same(t, coord, c.Coordinator)
	assert.Equal(t, coordinator.Launching, c.Coordinator.State(p.ID))

	_, err = c.Coordinator.ImmediatelyLaunch(context.Background(), p)
	assert.ErrorIs(t, err, errors.ErrBusy)

	unlock()
	// the game is not installed, so the held attempt fails once released
	assert.Error(t, <-done)
	assert.Equal(t, coordinator.Idle, c.Coordinator.State(p.ID))
}
