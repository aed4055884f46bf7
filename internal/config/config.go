// Package config loads gitbase settings from defaults, a YAML file, GITBASE_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "GITBASE"
	fileName  = "gitbase"
)

type Author struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type Config struct {
	Repo       string `mapstructure:"repo"`
	Backend    string `mapstructure:"backend"`
	AutoCreate bool   `mapstructure:"auto_create"`
	Remote     string `mapstructure:"remote"`
	Branch     string `mapstructure:"branch"`
	Author     Author `mapstructure:"author"`
	Color      string `mapstructure:"color"`
	Theme      string `mapstructure:"theme"`
	Verbose    bool   `mapstructure:"verbose"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

func Defaults() Config {
	return Config{
		Repo:       ".",
		Backend:    "cli",
		AutoCreate: true,
		Remote:     "origin",
		Branch:     "master",
		Author:     Author{Name: "gitbase", Email: "gitbase@localhost"},
		Color:      "auto",
		Theme:      "auto",
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"repo":         "repo",
	"backend":      "backend",
	"auto-create":  "auto_create",
	"remote":       "remote",
	"branch":       "branch",
	"author-name":  "author.name",
	"author-email": "author.email",
	"color":        "color",
	"theme":        "theme",
	"verbose":      "verbose",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "configuration file (default: ./gitbase.yaml or $XDG_CONFIG_HOME/gitbase/gitbase.yaml)")
	fs.StringP("repo", "C", d.Repo, "repository directory holding the snapshots")
	fs.String("backend", d.Backend, "git backend: cli or native")
	fs.Bool("auto-create", d.AutoCreate, "create and initialize the repository when missing")
	fs.String("remote", d.Remote, "remote used by fetch, pull and push")
	fs.String("branch", d.Branch, "branch used by pull and push")
	fs.String("author-name", d.Author.Name, "commit author name")
	fs.String("author-email", d.Author.Email, "commit author email")
	fs.String("color", d.Color, "colorize output: auto, always or never")
	fs.String("theme", d.Theme, "color theme: auto, light or dark")
	fs.BoolP("verbose", "v", d.Verbose, "enable verbose logging")
}

// Load resolves the configuration. fs may be nil; flags that were not set on
// the command line do not override other sources.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("repo", d.Repo)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("auto_create", d.AutoCreate)
	v.SetDefault("remote", d.Remote)
	v.SetDefault("branch", d.Branch)
	v.SetDefault("author.name", d.Author.Name)
	v.SetDefault("author.email", d.Author.Email)
	v.SetDefault("color", d.Color)
	v.SetDefault("theme", d.Theme)
	v.SetDefault("verbose", d.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if filepath.Ext(explicit) == "" {
			v.SetConfigType("yaml")
		}
	} else {
		v.SetConfigName(fileName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, fileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Repo) == "" {
		return errors.New("config: repo must not be empty")
	}
	if err := oneOf("backend", c.Backend, "cli", "native"); err != nil {
		return err
	}
	if err := oneOf("color", c.Color, "auto", "always", "never"); err != nil {
		return err
	}
	return oneOf("theme", c.Theme, "auto", "light", "dark")
}

func oneOf(key, value string, allowed ...string) error {
	if slices.Contains(allowed, strings.ToLower(strings.TrimSpace(value))) {
		return nil
	}
	return fmt.Errorf("config: invalid %s %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}
