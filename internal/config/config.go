package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/duailibe/monday-source/internal/monday"
)

const EnvPrefix = "MONDAY"

// Settings are the connector options the runtime reads directly. Connector
// keeps the whole decoded file for the parts that consume it raw
// (board_ids, teams_limit, templated extractor paths).
type Settings struct {
	APIToken            string `mapstructure:"api_token"`
	APIURL              string `mapstructure:"api_url"`
	PageSize            int    `mapstructure:"page_size"`
	NestedLimit         int    `mapstructure:"nested_limit"`
	NestedItemsPerPage  int    `mapstructure:"nested_items_per_page"`
	ParentCompleteFetch bool   `mapstructure:"parent_complete_fetch"`
	Concurrency         int    `mapstructure:"concurrency"`
	StatePath           string `mapstructure:"state_path"`

	Connector monday.Config `mapstructure:"-"`
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "monday.yaml")
	}
	return filepath.Join(home, ".config", "monday-source", "config.yaml")
}

// Load reads path (YAML or JSON, by extension) and MONDAY_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("page_size", 100)
	v.SetDefault("nested_limit", 100)
	v.SetDefault("nested_items_per_page", 20)
	v.SetDefault("parent_complete_fetch", false)
	v.SetDefault("concurrency", 2)
	v.SetDefault("api_url", monday.DefaultAPIURL)
	v.SetDefault("state_path", "")
	for _, key := range []string{"api_token", "credentials.api_token", "board_ids", "teams_limit"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "json" {
			v.SetConfigType("json")
		} else {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("%w: reading config %s: %w", monday.ErrInvalidConfig, path, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: parsing config %s: %w", monday.ErrInvalidConfig, path, err)
	}
	if s.APIToken == "" {
		s.APIToken = v.GetString("credentials.api_token")
	}

	s.Connector = connectorConfig(v)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	for _, opt := range []struct {
		name string
		n    int
	}{
		{"page_size", s.PageSize},
		{"nested_limit", s.NestedLimit},
		{"nested_items_per_page", s.NestedItemsPerPage},
		{"concurrency", s.Concurrency},
	} {
		if opt.n <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", monday.ErrInvalidConfig, opt.name, opt.n)
		}
	}
	if _, _, err := s.Connector.TeamsLimit(); err != nil {
		return err
	}
	return nil
}

// connectorConfig flattens viper's settings into the raw config map. JSON
// decodes every number as float64; whole numbers go back to int so that
// type checks on config values see what the user wrote.
func connectorConfig(v *viper.Viper) monday.Config {
	out := monday.Config{}
	for key, value := range v.AllSettings() {
		out[key] = normalize(value)
	}
	if raw := v.GetString("board_ids"); raw != "" {
		if _, isList := out["board_ids"].([]any); !isList {
			out["board_ids"] = splitIDs(raw)
		}
	}
	// Environment values are always strings.
	if raw := os.Getenv(EnvPrefix + "_TEAMS_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			out["teams_limit"] = n
		}
	}
	return out
}

func normalize(value any) any {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt32 {
			return int(v)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// splitIDs reads "1,2, 3" as it arrives from the environment.
func splitIDs(raw string) []any {
	var ids []any
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			ids = append(ids, n)
			continue
		}
		ids = append(ids, part)
	}
	return ids
}
