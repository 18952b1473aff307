package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/model"
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeUpdater) Update(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p.Name)
	return f.fail[p.Name]
}

func (f *fakeUpdater) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type profiles []*model.Profile

func (p profiles) Profiles() []*model.Profile { return p }

func addonProfile(name string, enabled bool) *model.Profile {
	p := model.NewProfile(name)
	p.Dalamud.Enabled = enabled
	return p
}

func TestRunOnce(t *testing.T) {
	primary := addonProfile("Main", true)
	alt := addonProfile("Alt", true)
	plain := addonProfile("Plain", false)
	broken := addonProfile("Broken", true)

	updater := &fakeUpdater{fail: map[string]error{"Broken": assert.AnError}}
	guard := provision.NewGuard()
	unlock, ok := guard.TryLock(alt.ID)
	require.True(t, ok)
	defer unlock()

	s := NewService(updater, profiles{primary, alt, plain, broken}, guard, "@every 1h")
	results := s.RunOnce(context.Background())

	assert.Equal(t, []string{"Main", "Broken"}, updater.Calls())
	require.Len(t, results, 3)
	assert.Equal(t, Result{Profile: "Main"}, results[0])
	assert.Equal(t, Result{Profile: "Alt", Skipped: true}, results[1])
	assert.Equal(t, "Broken", results[2].Profile)
	assert.ErrorIs(t, results[2].Err, assert.AnError)

	// the lock is released after each update
	again, ok := guard.TryLock(primary.ID)
	require.True(t, ok)
	again()
}

func TestStartInvalidSchedule(t *testing.T) {
	s := NewService(&fakeUpdater{}, profiles{}, nil, "not a schedule")
	assert.Error(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestStartRunsScheduledPass(t *testing.T) {
	updater := &fakeUpdater{}
	s := NewService(updater, profiles{addonProfile("Main", true)}, nil, "@every 1s")
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return len(updater.Calls()) > 0 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())

	n := len(updater.Calls())
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, n, len(updater.Calls()))
}
