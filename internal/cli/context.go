package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/duailibe/monday-source/internal/config"
	"github.com/duailibe/monday-source/internal/monday"
	"github.com/duailibe/monday-source/internal/source"
	"github.com/duailibe/monday-source/internal/state"
)

type commandContext struct {
	deps   Dependencies
	global *GlobalOptions

	settings *config.Settings
}

func (c *commandContext) loadSettings() (config.Settings, error) {
	if c.settings != nil {
		return *c.settings, nil
	}
	path := c.global.Config
	if path == "" {
		path = config.DefaultPath()
	}
	s, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	c.settings = &s
	return s, nil
}

func (c *commandContext) resolveAPIToken() (string, string, error) {
	if c.global.APIToken != "" {
		return c.global.APIToken, "flag", nil
	}
	s, err := c.loadSettings()
	if err != nil {
		return "", "", err
	}
	if s.APIToken != "" {
		return s.APIToken, "config", nil
	}
	return "", "", errors.New("no monday.com API token found; set api_token in the config file or MONDAY_API_TOKEN")
}

func (c *commandContext) apiClient() (monday.API, error) {
	token, _, err := c.resolveAPIToken()
	if err != nil {
		return nil, err
	}
	if c.deps.NewClient == nil {
		return nil, fmt.Errorf("no API client configured")
	}
	s, err := c.loadSettings()
	if err != nil {
		return nil, err
	}
	return c.deps.NewClient(token, c.global.Timeout, monday.WithAPIURL(s.APIURL)), nil
}

func (c *commandContext) manifest() (*monday.Manifest, error) {
	if c.global.Manifest != "" {
		return monday.LoadManifest(c.global.Manifest)
	}
	return monday.DefaultManifest()
}

func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelInfo
	switch {
	case c.global.Verbose:
		level = slog.LevelDebug
	case c.global.Quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(c.deps.Err, &slog.HandlerOptions{Level: level}))
}

func (c *commandContext) source(api monday.API) (*source.Source, error) {
	s, err := c.loadSettings()
	if err != nil {
		return nil, err
	}
	manifest, err := c.manifest()
	if err != nil {
		return nil, err
	}
	return source.New(source.Options{
		API:      api,
		Manifest: manifest,
		Config:   s.Connector,
		Settings: source.Settings{
			PageSize:            s.PageSize,
			NestedLimit:         s.NestedLimit,
			NestedItemsPerPage:  s.NestedItemsPerPage,
			ParentCompleteFetch: s.ParentCompleteFetch,
		},
		Concurrency: s.Concurrency,
		Now:         c.deps.Now,
		Logger:      c.logger(),
	}), nil
}

// openStore resolves the state location: the flag, then state_path from
// the config, then the default data dir.
func (c *commandContext) openStore(path string) (state.Store, string, error) {
	if path == "" {
		s, err := c.loadSettings()
		if err != nil {
			return nil, "", err
		}
		path = s.StatePath
	}
	if path == "" {
		var err error
		if path, err = state.DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	store, err := state.Open(path)
	if err != nil {
		return nil, "", err
	}
	return store, path, nil
}
