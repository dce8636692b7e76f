// Package config loads the pcode YAML configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds defaults for the command line flags.
type Config struct {
	Language   string            `yaml:"language" json:"language,omitempty" jsonschema:"title=Language,description=Built-in language name or path to a language document"`
	Syntax     string            `yaml:"syntax" json:"syntax,omitempty" jsonschema:"title=Syntax,description=x86 assembly syntax,enum=intel,enum=gnu"`
	Base       uint64            `yaml:"base" json:"base,omitempty" jsonschema:"title=Base,description=Load address of raw input"`
	Count      int               `yaml:"count" json:"count,omitempty" jsonschema:"title=Count,description=Maximum instructions to decode (0 for all),minimum=0"`
	Limit      uint64            `yaml:"limit" json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum bytes to scan (0 for all)"`
	Workers    int               `yaml:"workers" json:"workers,omitempty" jsonschema:"title=Workers,description=Parallel files in batch mode,minimum=1"`
	NoColor    bool              `yaml:"noColor" json:"noColor,omitempty" jsonschema:"title=No Color,description=Disable coloured output"`
	LogLevel   string            `yaml:"logLevel" json:"logLevel,omitempty" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error"`
	Properties map[string]string `yaml:"properties" json:"properties,omitempty" jsonschema:"title=Properties,description=Language property overrides"`
}

func Default() Config {
	return Config{Workers: 4}
}

// Path returns the configuration file to read: explicit, then
// $PCODE_CONFIG, then $XDG_CONFIG_HOME/pcode/config.yaml. The second result
// is true when the file was named explicitly and must exist.
func Path(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if p := os.Getenv("PCODE_CONFIG"); p != "" {
		return p, true
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, "pcode", "config.yaml"), false
}

// Load reads the configuration over the defaults. A missing default file is
// not an error.
func Load(explicit string) (Config, error) {
	cfg := Default()
	path, required := Path(explicit)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Syntax {
	case "", "intel", "gnu", "att":
	default:
		return fmt.Errorf("unknown syntax %q", c.Syntax)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := new(jsonschema.Reflector)
	return json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
}
