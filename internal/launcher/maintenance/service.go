// Package maintenance keeps add-on installs current in the background.
package maintenance

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/launcher/provision"
	"github.com/sjzar/xivlauncher/internal/model"
)

type Updater interface {
	Update(ctx context.Context, p *model.Profile) error
}

type ProfileSource interface {
	Profiles() []*model.Profile
}

// Result is the outcome of one profile in a maintenance pass. Skipped
// profiles were busy with a launch attempt.
type Result struct {
	Profile string
	Skipped bool
	Err     error
}

type Service struct {
	updater  Updater
	profiles ProfileSource
	guard    *provision.Guard
	schedule string

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
}

func NewService(updater Updater, profiles ProfileSource, guard *provision.Guard, schedule string) *Service {
	if guard == nil {
		guard = provision.NewGuard()
	}
	return &Service{
		updater:  updater,
		profiles: profiles,
		guard:    guard,
		schedule: schedule,
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New()
	entryID, err := c.AddFunc(s.schedule, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}
	s.c = c
	s.entryID = entryID
	c.Start()

	log.Info().Str("schedule", s.schedule).Msg("maintenance started")
	return nil
}

// Stop removes the scheduled job and waits for a running pass to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	c.Remove(s.entryID)
	<-c.Stop().Done()
	return nil
}

// RunOnce updates every profile that has the add-on enabled. Profiles
// that are currently locked by a launch attempt are skipped until the next
// pass.
func (s *Service) RunOnce(ctx context.Context) []Result {
	var results []Result
	for _, p := range s.profiles.Profiles() {
		if !p.Dalamud.Enabled {
			continue
		}
		r := Result{Profile: p.Name}

		unlock, ok := s.guard.TryLock(p.ID)
		if !ok {
			log.Debug().Str("profile", p.Name).Msg("profile busy, maintenance skipped")
			r.Skipped = true
			results = append(results, r)
			continue
		}
		r.Err = s.updater.Update(ctx, p)
		unlock()

		if r.Err != nil {
			log.Err(r.Err).Str("profile", p.Name).Msg("maintenance update failed")
		} else {
			log.Debug().Str("profile", p.Name).Msg("maintenance update done")
		}
		results = append(results, r)
	}
	return results
}
