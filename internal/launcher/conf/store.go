// Package conf persists profiles, accounts and launcher settings in a
// single YAML file. Every mutation is written back before it returns.
package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/sjzar/xivlauncher/internal/model"
)

type Store struct {
	mu       sync.RWMutex
	v        *viper.Viper
	path     string
	settings Settings
	profiles []*model.Profile
	accounts []*model.Account
}

// Open loads <dir>/xivlauncher.yaml, creating it with defaults when it
// does not exist yet.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(dir, ConfigName+"."+ConfigType)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ConfigType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultSettings()
	v.SetDefault("settings.close_when_launched", def.CloseWhenLaunched)
	v.SetDefault("settings.distrib_server", def.DistribServer)
	v.SetDefault("settings.runtime_server", def.RuntimeServer)
	v.SetDefault("settings.preferred_protocol", def.PreferredProtocol)
	v.SetDefault("settings.auto_login_delay", def.AutoLoginDelay)
	v.SetDefault("settings.maintenance_schedule", def.MaintenanceSchedule)

	s := &Store{
		v:    v,
		path: path,
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load (re)reads the configuration file. Profiles and accounts that are
// already known are updated in place so that references held elsewhere
// stay valid.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", s.path).Msg("config file not found, writing defaults")
		s.mu.Lock()
		s.settings = s.readSettings()
		s.mu.Unlock()
		if err := s.save(); err != nil {
			return err
		}
	}
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var profiles []*model.Profile
	if err := s.v.UnmarshalKey("profiles", &profiles); err != nil {
		return fmt.Errorf("decode profiles: %w", err)
	}
	var accounts []*model.Account
	if err := s.v.UnmarshalKey("accounts", &accounts); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.readSettings()
	s.profiles = mergeProfiles(s.profiles, profiles)
	s.accounts = mergeAccounts(s.accounts, accounts)
	return nil
}

// Watch reloads the store whenever the file is changed on disk and calls
// fn afterwards.
func (s *Store) Watch(fn func()) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := s.Load(); err != nil {
			log.Err(err).Str("path", e.Name).Msg("reload config failed")
			return
		}
		log.Debug().Str("path", e.Name).Msg("config reloaded")
		if fn != nil {
			fn()
		}
	})
	s.v.WatchConfig()
}

func (s *Store) readSettings() Settings {
	return Settings{
		CurrentProfile:      s.v.GetString("settings.current_profile"),
		AutoLoginProfile:    s.v.GetString("settings.auto_login_profile"),
		CloseWhenLaunched:   s.v.GetBool("settings.close_when_launched"),
		DistribServer:       s.v.GetString("settings.distrib_server"),
		RuntimeServer:       s.v.GetString("settings.runtime_server"),
		PreferredProtocol:   s.v.GetString("settings.preferred_protocol"),
		AutoLoginDelay:      s.v.GetInt("settings.auto_login_delay"),
		MaintenanceSchedule: s.v.GetString("settings.maintenance_schedule"),
		DataDir:             s.v.GetString("settings.data_dir"),
	}
}

func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) UpdateSettings(fn func(*Settings)) error {
	s.mu.Lock()
	fn(&s.settings)
	s.mu.Unlock()
	return s.save()
}

func (s *Store) Profiles() []*model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Profile(nil), s.profiles...)
}

func (s *Store) Profile(id string) (*model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// FindProfile matches an id or a case-insensitive name.
func (s *Store) FindProfile(idOrName string) (*model.Profile, bool) {
	if p, ok := s.Profile(idOrName); ok {
		return p, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Name, idOrName) {
			return p, true
		}
	}
	return nil, false
}

// SaveProfile inserts or replaces p and persists the store.
func (s *Store) SaveProfile(p *model.Profile) error {
	s.mu.Lock()
	replaced := false
	for i, existing := range s.profiles {
		if existing.ID == p.ID {
			if existing != p {
				p.LoggedIn = existing.LoggedIn
				p.Installed = existing.Installed
				*existing = *p
			}
			s.profiles[i] = existing
			replaced = true
			break
		}
	}
	if !replaced {
		s.profiles = append(s.profiles, p)
	}
	s.mu.Unlock()
	return s.save()
}

// UpdateProfile applies fn to the stored profile and persists the result.
func (s *Store) UpdateProfile(id string, fn func(*model.Profile)) (*model.Profile, error) {
	p, ok := s.Profile(id)
	if !ok {
		return nil, fmt.Errorf("profile %s not found", id)
	}
	s.mu.Lock()
	fn(p)
	s.mu.Unlock()
	return p, s.save()
}

func (s *Store) DeleteProfile(id string) error {
	s.mu.Lock()
	kept := s.profiles[:0]
	for _, p := range s.profiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.profiles = kept
	s.mu.Unlock()
	return s.save()
}

func (s *Store) Accounts() []*model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.Account(nil), s.accounts...)
}

func (s *Store) Account(id string) (*model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// FindAccount matches an id or a username.
func (s *Store) FindAccount(idOrName string) (*model.Account, bool) {
	if a, ok := s.Account(idOrName); ok {
		return a, true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Name, idOrName) {
			return a, true
		}
	}
	return nil, false
}

func (s *Store) SaveAccount(a *model.Account) error {
	s.mu.Lock()
	replaced := false
	for i, existing := range s.accounts {
		if existing.ID == a.ID {
			if existing != a {
				*existing = *a
			}
			s.accounts[i] = existing
			replaced = true
			break
		}
	}
	if !replaced {
		s.accounts = append(s.accounts, a)
	}
	s.mu.Unlock()
	return s.save()
}

func (s *Store) DeleteAccount(id string) error {
	s.mu.Lock()
	kept := s.accounts[:0]
	for _, a := range s.accounts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	s.accounts = kept
	for _, p := range s.profiles {
		if p.AccountID == id {
			p.AccountID = ""
		}
	}
	s.mu.Unlock()
	return s.save()
}

// AccountFor resolves the account linked to a profile.
func (s *Store) AccountFor(p *model.Profile) (*model.Account, bool) {
	if p.AccountID == "" {
		return nil, false
	}
	return s.Account(p.AccountID)
}

// save writes the whole store with a fresh viper instance so that
// defaults and environment overrides are never baked into the file.
func (s *Store) save() error {
	s.mu.RLock()
	doc := map[string]any{}
	var err error
	if doc["settings"], err = toMap(s.settings); err == nil {
		if doc["profiles"], err = toMaps(s.profiles); err == nil {
			doc["accounts"], err = toMaps(s.accounts)
		}
	}
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	w := viper.New()
	w.SetConfigType(ConfigType)
	if err := w.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := w.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	return m, json.Unmarshal(data, &m)
}

func toMaps[T any](items []*T) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, err := toMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func mergeProfiles(current, loaded []*model.Profile) []*model.Profile {
	byID := make(map[string]*model.Profile, len(current))
	for _, p := range current {
		byID[p.ID] = p
	}
	out := make([]*model.Profile, 0, len(loaded))
	for _, p := range loaded {
		if existing, ok := byID[p.ID]; ok {
			p.LoggedIn = existing.LoggedIn
			p.Installed = existing.Installed
			*existing = *p
			p = existing
		}
		out = append(out, p)
	}
	return out
}

func mergeAccounts(current, loaded []*model.Account) []*model.Account {
	byID := make(map[string]*model.Account, len(current))
	for _, a := range current {
		byID[a.ID] = a
	}
	out := make([]*model.Account, 0, len(loaded))
	for _, a := range loaded {
		if existing, ok := byID[a.ID]; ok {
			*existing = *a
			a = existing
		}
		out = append(out, a)
	}
	return out
}
