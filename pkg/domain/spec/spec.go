// Package spec parses application manifests (app.yaml).
//
// The manifest is fetched from the app's repository at build time and
// stored verbatim on the release; readers parse it on demand.
package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Manifest struct {
	Appname string `yaml:"appname"`

	// base image. used directly when Build is empty (a "raw" release).
	Base  string `yaml:"base"`
	Build string `yaml:"build"`

	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
	Combos      map[string]Combo      `yaml:"combos"`

	Subscribers    []string `yaml:"subscribers"`
	PermittedUsers []string `yaml:"permitted_users"`

	Crontab []CronEntry `yaml:"crontab"`

	// seconds to wait for a replacement container to become healthy.
	ErectionTimeout int `yaml:"erection_timeout"`

	TackleRules TackleRules `yaml:"tackle"`
}

type Entrypoint struct {
	Cmd         string   `yaml:"cmd"`
	Ports       []string `yaml:"ports"`
	HealthCheck string   `yaml:"healthcheck"`
	BackupPath  string   `yaml:"backup_path"`
}

type Combo struct {
	Entrypoint string  `yaml:"entrypoint"`
	Podname    string  `yaml:"podname"`
	Envname    string  `yaml:"envname"`
	CpuQuota   float64 `yaml:"cpu"`
	Memory     int64   `yaml:"memory"`
	Count      int     `yaml:"count"`
	Zone       string  `yaml:"zone"`
}

// CronEntry is written as "<5-field cron schedule> <combo name>".
type CronEntry struct {
	Schedule string
	Combo    string
}

var _ yaml.Unmarshaler = &CronEntry{}

func (ce *CronEntry) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	fields := strings.Fields(raw)
	if len(fields) < 6 {
		return fmt.Errorf(`crontab entry should be "<schedule> <combo>": %s`, raw)
	}
	ce.Schedule = strings.Join(fields[:len(fields)-1], " ")
	ce.Combo = fields[len(fields)-1]
	return nil
}

type TackleRules struct {
	// rules evaluated per container of the app.
	Container []TackleRule `yaml:"container_tackle_rule"`

	// rules evaluated once per app.
	App []TackleRule `yaml:"app_tackle_rule"`
}

type TackleRule struct {
	Situations []string          `yaml:"situations"`
	Strategy   string            `yaml:"strategy"`
	Kwargs     map[string]string `yaml:"kwargs"`
}

func (r TackleRule) Kwarg(key, fallback string) string {
	if v, ok := r.Kwargs[key]; ok {
		return v
	}
	return fallback
}

// Unmarshal parses manifest text.
//
// An empty appname is rejected; everything else is optional.
func Unmarshal(text []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(text, &m); err != nil {
		return Manifest{}, err
	}
	if m.Appname == "" {
		return Manifest{}, fmt.Errorf("manifest does not declare appname")
	}
	return m, nil
}

// CronEntrypoints lists entrypoint names reached from crontab combos.
// Containers running one of them are treated as scheduled jobs: exiting
// with code 0 means "done", not "dead".
func (m Manifest) CronEntrypoints() []string {
	seen := map[string]bool{}
	names := []string{}
	for _, ce := range m.Crontab {
		combo, ok := m.Combos[ce.Combo]
		if !ok || seen[combo.Entrypoint] {
			continue
		}
		seen[combo.Entrypoint] = true
		names = append(names, combo.Entrypoint)
	}
	return names
}

// IsCronEntrypoint tests whether name is one of CronEntrypoints.
func (m Manifest) IsCronEntrypoint(name string) bool {
	for _, n := range m.CronEntrypoints() {
		if n == name {
			return true
		}
	}
	return false
}

// HasTackleRules reports whether any tackle rule is declared.
func (m Manifest) HasTackleRules() bool {
	return len(m.TackleRules.Container) != 0 || len(m.TackleRules.App) != 0
}
