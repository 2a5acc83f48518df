// Package config loads the provisioning settings file and its environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/kappakkala/pgprovision/pkg/postgres"
	"github.com/kappakkala/pgprovision/pkg/provisioner"
)

// EnvPrefix prefixes every environment variable that overrides a settings file key.
const EnvPrefix = "PGPROVISION_"

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Config contains the settings file contents after environment overrides.
type Config struct {
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	Username string `json:"username" env:"USERNAME"`
	// User is accepted as an alias of username.
	User       string   `json:"user,omitempty"`
	Password   string   `json:"password" env:"PASSWORD"`
	Database   string   `json:"database" env:"DATABASE"`
	Schema     string   `json:"schema" env:"SCHEMA"`
	Table      string   `json:"table" env:"TABLE"`
	DriverName string   `json:"drivername" env:"DRIVERNAME"`
	SSLMode    string   `json:"sslmode" env:"SSLMODE"`
	Strategy   string   `json:"strategy" env:"STRATEGY"`
	SQLFile    string   `json:"sql_file" env:"SQL_FILE"`
	Columns    []string `json:"columns" env:"COLUMNS" envSeparator:","`
	BatchSize  int      `json:"batch_size" env:"BATCH_SIZE"`

	dir string
}

// Load reads the YAML settings file at path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file %q", path)
	}
	c, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "loading settings file %q", path)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes YAML settings, applies environment overrides and validates the result.
// Relative paths in the result resolve against the working directory.
func Parse(content []byte) (*Config, error) {
	c := Config{}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshalling settings")
	}
	if c.Username == "" {
		c.Username = c.User
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "unable to parse settings overrides from environment")
	}
	if err := c.validate(); err != nil {
		return nil, errors.Wrap(err, "unexpected configuration settings")
	}
	return &c, nil
}

func (c *Config) validate() error {
	var result *multierror.Error
	if c.Host == "" {
		result = multierror.Append(result, errors.New("host unset"))
	}
	if c.Username == "" {
		result = multierror.Append(result, errors.New("username unset"))
	}
	if c.Port < 0 || c.Port > 65535 {
		result = multierror.Append(result, errors.Errorf("port %d out of range", c.Port))
	}
	if c.SSLMode != "" && !sslModes[c.SSLMode] {
		result = multierror.Append(result, errors.Errorf("unknown sslmode %q", c.SSLMode))
	}
	if _, err := provisioner.ParseStrategy(c.Strategy); err != nil {
		result = multierror.Append(result, err)
	}
	if c.BatchSize < 0 {
		result = multierror.Append(result, errors.Errorf("batch_size %d cannot be negative", c.BatchSize))
	}
	for i, column := range c.Columns {
		if strings.TrimSpace(column) == "" {
			result = multierror.Append(result, errors.Errorf("columns[%d] is empty", i))
		}
	}
	return result.ErrorOrNil()
}

// Settings converts the configuration to connection settings.
func (c *Config) Settings() (postgres.Settings, error) {
	s, err := postgres.NewSettings(c.Host, c.Port, c.Username)
	if err != nil {
		return postgres.Settings{}, err
	}
	s = s.WithPassword(c.Password).WithDatabase(c.Database)
	s.Schema = c.Schema
	s.Table = c.Table
	if c.DriverName != "" {
		s.DriverName = c.DriverName
	}
	if c.SSLMode != "" {
		s.SSLMode = c.SSLMode
	}
	return s, nil
}

// ClientStrategy returns the configured backend, defaulting to the direct driver.
func (c *Config) ClientStrategy() provisioner.Strategy {
	// validated on load
	s, _ := provisioner.ParseStrategy(c.Strategy)
	return s
}

// ReadSQLFile returns the contents of the configured SQL file.
// A relative path resolves against the settings file's directory.
func (c *Config) ReadSQLFile() (string, error) {
	if c.SQLFile == "" {
		return "", errors.New("sql_file unset")
	}
	return c.ReadFile(c.SQLFile)
}

// ReadFile reads path, resolving a relative path against the settings file's directory.
func (c *Config) ReadFile(path string) (string, error) {
	content, err := os.ReadFile(c.Resolve(path))
	if err != nil {
		return "", errors.Wrapf(err, "reading %q", path)
	}
	return string(content), nil
}

// Resolve returns path unchanged when absolute, otherwise joined to the settings file's directory.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}
