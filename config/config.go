package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/IamTheCarl/psu/driver"
)

const (
	FileName = "bench_psu_config.yaml"

	// EnvSupply selects a supply instead of default_supply.
	EnvSupply = "PSU_NAME"
	// EnvConfig points at a config file other than the default.
	EnvConfig = "PSU_CONFIG"
)

// Config is the user's config file.
//
//	default_supply: bk_precision
//	power_supplies:
//	  bk_precision: !bk_precision_196x
//	    serial_interface: /dev/serial/by-id/usb-1453_4026-if00-port0
type Config struct {
	// DefaultSupply is used when no supply is named explicitly.
	DefaultSupply string                 `yaml:"default_supply"`
	PowerSupplies map[string]SupplyEntry `yaml:"power_supplies"`
}

// SupplyEntry holds one configured supply. The family is chosen by the YAML
// tag (!bk_precision_196x) or by a single key naming it.
type SupplyEntry struct {
	driver.SupplyConfig
}

func (e *SupplyEntry) UnmarshalYAML(node *yaml.Node) error {
	body := *node
	kind := ""

	switch {
	case strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!"):
		kind = strings.TrimPrefix(node.Tag, "!")
		body.Tag = ""
	case node.Kind == yaml.MappingNode && len(node.Content) == 2:
		kind = node.Content[0].Value
		body = *node.Content[1]
	default:
		return fmt.Errorf("line %d: supply entry needs a type tag such as !%s", node.Line, driver.KindBK196X)
	}

	cfg, err := decodeSupply(driver.Kind(kind), &body)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	e.SupplyConfig = cfg
	return nil
}

// decodeSupply maps a family tag to its config type.
func decodeSupply(kind driver.Kind, node *yaml.Node) (driver.SupplyConfig, error) {
	switch kind {
	case driver.KindBK196X:
		var c driver.BK196XConfig
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown power supply type %q (known: %v)", kind, driver.Kinds())
	}
}

// DefaultPath is ~/.config/bench_psu_config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", &driver.ConfigError{Msg: "could not get user's home directory", Err: err}
	}
	return filepath.Join(home, ".config", FileName), nil
}

// ResolvePath picks the config file: an explicit path, then $PSU_CONFIG,
// then DefaultPath. A leading ~ is expanded.
func ResolvePath(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return DefaultPath()
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", &driver.ConfigError{Msg: "expanding config path", Err: err}
	}
	return expanded, nil
}

// Load reads and validates the config file at path. Every supply entry is
// validated here, so a bad address is reported before any port is opened.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &driver.ConfigError{Msg: "failed to read config file " + path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var cfgErr *driver.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &driver.ConfigError{Msg: "failed to deserialize config file " + path, Err: err}
	}
	return cfg, nil
}

// Parse decodes and validates config file contents.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every supply entry.
func (c *Config) Validate() error {
	for _, name := range c.SupplyNames() {
		entry := c.PowerSupplies[name]
		if entry.SupplyConfig == nil {
			return &driver.ConfigError{Field: "power_supplies." + name, Msg: "empty entry"}
		}
		if err := entry.Validate(); err != nil {
			return &driver.ConfigError{Field: "power_supplies." + name, Msg: "invalid entry", Err: err}
		}
	}
	return nil
}

// SupplyNames lists configured supplies in sorted order.
func (c *Config) SupplyNames() []string {
	names := make([]string, 0, len(c.PowerSupplies))
	for name := range c.PowerSupplies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supply returns the named supply. An empty name means $PSU_NAME, falling
// back to default_supply.
func (c *Config) Supply(name string) (string, driver.SupplyConfig, error) {
	if name == "" {
		name = os.Getenv(EnvSupply)
	}
	if name == "" {
		name = c.DefaultSupply
	}
	if name == "" {
		return "", nil, &driver.ConfigError{Field: "default_supply", Msg: "no power supply selected and no default set"}
	}

	entry, ok := c.PowerSupplies[name]
	if !ok || entry.SupplyConfig == nil {
		return name, nil, &driver.ConfigError{
			Field: "power_supplies",
			Msg:   fmt.Sprintf("could not find power supply `%s` in config", name),
		}
	}
	return name, entry.SupplyConfig, nil
}
