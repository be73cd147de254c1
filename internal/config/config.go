package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server holds settings for `skillbase serve`.
type Server struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the in-memory representation of ~/.skillbase/skillbase.yaml.
type Config struct {
	CorpusRoots   []string `yaml:"corpus_roots"`
	Excludes      []string `yaml:"excludes,omitempty"`
	IncludeAssets bool     `yaml:"include_assets"`
	SnapshotDir   string   `yaml:"snapshot_dir"`
	Parallelism   int      `yaml:"parallelism,omitempty"`
	Server        Server   `yaml:"server"`
	Log           Log      `yaml:"log"`
}

// BaseDir returns the skillbase home directory. SKILLBASE_HOME overrides
// the default of ~/.skillbase.
func BaseDir() (string, error) {
	if v := os.Getenv("SKILLBASE_HOME"); v != "" {
		return ExpandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".skillbase"), nil
}

// ConfigPath returns the absolute path to skillbase.yaml.
func ConfigPath() (string, error) {
	dir, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skillbase.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the configuration written by `skillbase init` and
// used when no config file exists.
func DefaultConfig() (*Config, error) {
	base, err := BaseDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		CorpusRoots: []string{filepath.Join(base, "skills")},
		Excludes: []string{
			".DS_Store",
			"Thumbs.db",
			"*.tmp",
			"*.bak",
			"*~",
			".git/**",
			"**/__pycache__/**",
			"**/.pytest_cache/**",
			"*.conflict-*",
		},
		IncludeAssets: true,
		SnapshotDir:   filepath.Join(base, "snapshot"),
		Parallelism:   8,
		Server:        Server{Listen: "127.0.0.1", Port: 8765},
		Log:           Log{Level: "warn", Format: "text"},
	}, nil
}

// Load reads the config at path, or the default location when path is empty.
// A missing file yields DefaultConfig. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save marshals cfg and writes it to path (default location when empty).
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.CorpusRoots) == 0 {
		return fmt.Errorf("corpus_roots must list at least one directory")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) expand() error {
	for i, r := range c.CorpusRoots {
		p, err := ExpandPath(r)
		if err != nil {
			return err
		}
		c.CorpusRoots[i] = p
	}
	p, err := ExpandPath(c.SnapshotDir)
	if err != nil {
		return err
	}
	c.SnapshotDir = p
	return nil
}

func applyEnv(c *Config) error {
	if v, err := GetConfigValue("SKILLBASE_CORPUS_ROOTS"); err != nil {
		return err
	} else if v != "" {
		c.CorpusRoots = filepath.SplitList(v)
	}
	if v, err := GetConfigValue("SKILLBASE_LOG_LEVEL"); err != nil {
		return err
	} else if v != "" {
		c.Log.Level = v
	}
	if v, err := GetConfigValue("SKILLBASE_LOG_FORMAT"); err != nil {
		return err
	} else if v != "" {
		c.Log.Format = v
	}
	if v, err := GetConfigValue("SKILLBASE_LISTEN"); err != nil {
		return err
	} else if v != "" {
		c.Server.Listen = v
	}
	if v, err := GetConfigValue("SKILLBASE_PORT"); err != nil {
		return err
	} else if v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SKILLBASE_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}
