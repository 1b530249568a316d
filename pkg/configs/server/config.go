// Package server holds the configuration shared by the API daemon and
// the loop daemon.
package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("server: config is invalid")

type NotifyConfig struct {
	// chat webhook endpoint. empty disables notifications at wiring time.
	Endpoint string `yaml:"endpoint"`

	// channel receiving operational fallout when a release declares no
	// subscribers.
	OpsChannel string `yaml:"ops_channel"`

	// handle mentioned on deployment failures.
	Maintainer string `yaml:"maintainer"`
}

type Config struct {
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`

	// zone name -> core scheduler endpoint.
	Zones map[string]string `yaml:"zones"`

	// zone whose core runs image builds.
	BuildZone string `yaml:"build_zone"`

	// load balancer admin endpoint.
	Elb string `yaml:"elb"`

	// git hosting API endpoint.
	Scm string `yaml:"scm"`

	Notify NotifyConfig `yaml:"notify"`

	// log viewer base URL for deep links in notifications.
	LogViewer string `yaml:"log_viewer"`

	// how much health history to keep per container. duration string.
	HealthRetention string `yaml:"health_retention"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	raw := plain{
		Port:            8000,
		HealthRetention: "30m",
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Notify.OpsChannel == "" {
		raw.Notify.OpsChannel = "#platform"
	}

	if raw.Database == "" {
		return fmt.Errorf("%w: database is empty", ErrInvalidConfig)
	}
	if len(raw.Zones) == 0 {
		return fmt.Errorf("%w: no zones", ErrInvalidConfig)
	}
	if raw.BuildZone != "" {
		if _, ok := raw.Zones[raw.BuildZone]; !ok {
			return fmt.Errorf("%w: build_zone %s is not a zone", ErrInvalidConfig, raw.BuildZone)
		}
	}
	if _, err := time.ParseDuration(raw.HealthRetention); err != nil {
		return fmt.Errorf("%w: health_retention: %s", ErrInvalidConfig, err)
	}

	*c = Config(raw)
	return nil
}

// Retention parses HealthRetention. Validated at load time.
func (c *Config) Retention() time.Duration {
	d, _ := time.ParseDuration(c.HealthRetention)
	return d
}

// Load loads configuration from the file.
func Load(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
