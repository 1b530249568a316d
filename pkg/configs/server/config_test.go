package server_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opst/stevedore/pkg/configs/server"
	"github.com/opst/stevedore/pkg/utils/try"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	t.Run("it loads a full config", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "stevedore.yaml")
		try.To0(os.WriteFile(file, []byte(`
port: 8080
database: "postgres://stevedore:passwd@db:5432/stevedore"
zones:
    tokyo: "core-tokyo:5001"
    osaka: "core-osaka:5001"
build_zone: tokyo
elb: "http://elb-admin:8088"
scm: "https://git.example.com/api/v3"
notify:
    endpoint: "https://chat.example.com/hooks/xxxx"
    ops_channel: "#ops"
    maintainer: "alice"
log_viewer: "https://logs.example.com"
health_retention: 1h
`), 0o644)).OrFatal(t)

		conf := try.To(server.Load(file)).OrFatal(t)

		if conf.Port != 8080 {
			t.Errorf("port: got %d", conf.Port)
		}
		if conf.Zones["osaka"] != "core-osaka:5001" {
			t.Errorf("zones: got %+v", conf.Zones)
		}
		if conf.BuildZone != "tokyo" {
			t.Errorf("build_zone: got %s", conf.BuildZone)
		}
		if conf.Notify.OpsChannel != "#ops" || conf.Notify.Maintainer != "alice" {
			t.Errorf("notify: got %+v", conf.Notify)
		}
		if conf.Retention() != time.Hour {
			t.Errorf("retention: got %s", conf.Retention())
		}
	})

	t.Run("omitted fields fall back to defaults", func(t *testing.T) {
		conf := &server.Config{}
		try.To0(yaml.Unmarshal([]byte(`
database: "postgres://stevedore:passwd@db:5432/stevedore"
zones:
    tokyo: "core-tokyo:5001"
`), conf)).OrFatal(t)

		if conf.Port != 8000 {
			t.Errorf("port: got %d", conf.Port)
		}
		if conf.Notify.OpsChannel != "#platform" {
			t.Errorf("ops_channel: got %s", conf.Notify.OpsChannel)
		}
		if conf.Retention() != 30*time.Minute {
			t.Errorf("retention: got %s", conf.Retention())
		}
	})

	t.Run("it rejects broken configs", func(t *testing.T) {
		for name, text := range map[string]string{
			"no database": `
zones:
    tokyo: "core-tokyo:5001"
`,
			"no zones": `
database: "postgres://stevedore:passwd@db:5432/stevedore"
`,
			"build_zone is not a zone": `
database: "postgres://stevedore:passwd@db:5432/stevedore"
zones:
    tokyo: "core-tokyo:5001"
build_zone: mars
`,
			"unparsable health_retention": `
database: "postgres://stevedore:passwd@db:5432/stevedore"
zones:
    tokyo: "core-tokyo:5001"
health_retention: sometimes
`,
		} {
			t.Run(name, func(t *testing.T) {
				conf := &server.Config{}
				err := yaml.Unmarshal([]byte(text), conf)
				if !errors.Is(err, server.ErrInvalidConfig) {
					t.Errorf("got %v, want ErrInvalidConfig", err)
				}
			})
		}
	})

	t.Run("a missing file is an error", func(t *testing.T) {
		if _, err := server.Load(filepath.Join(t.TempDir(), "nowhere.yaml")); err == nil {
			t.Error("loading a missing file should fail")
		}
	})
}
