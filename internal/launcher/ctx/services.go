package ctx

import (
	"context"

	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/model"
)

// liveServices hands the coordinator whichever backends, provisioner and
// runner the last build produced, so one Coordinator outlives reloads.
type liveServices struct {
	c *Context
}

func (s liveServices) Login(ctx context.Context, creds model.Credentials, p *model.Profile, account *model.Account) (*model.LoginAuth, error) {
	s.c.mu.Lock()
	backends := s.c.Auth
	s.c.mu.Unlock()
	return backends.Login(ctx, creds, p, account)
}

func (s liveServices) UpdateWithNotifier(ctx context.Context, p *model.Profile, notify provision.Notifier) error {
	s.c.mu.Lock()
	provisioner := s.c.Provisioner
	s.c.mu.Unlock()
	return provisioner.UpdateWithNotifier(ctx, p, notify)
}

func (s liveServices) Launch(ctx context.Context, p *model.Profile, account *model.Account, auth *model.LoginAuth) (*model.Process, error) {
	s.c.mu.Lock()
	run := s.c.Runner
	s.c.mu.Unlock()
	return run.Launch(ctx, p, account, auth)
}
