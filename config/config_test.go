package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/worldtest/geom"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldtest.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  tick_rate: 20ms
  rotation: clockwise_90
  origin: {x: 10, y: 64, z: -10}
reports:
  junit: out/junit.xml
`), false)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Engine.TickRate = 20 * time.Millisecond
	want.Engine.Rotation = geom.Clockwise90
	want.Engine.Origin = geom.P(10, 64, -10)
	want.Reports.JUnit = "out/junit.xml"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("unexpected config: %s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(path, false); err == nil {
		t.Errorf("wanted error")
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("got %s", diff)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
	}{
		{name: "zero tick rate", yaml: "engine: {tick_rate: 0s}"},
		{name: "negative row width", yaml: "engine: {row_width: -1}"},
		{name: "zero clear radius", yaml: "engine: {clear_radius: 0}"},
		{name: "bad rotation", yaml: "engine: {rotation: sideways}"},
		{name: "negative history keep", yaml: "reports: {history_keep: -1}"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml), false); err == nil {
				t.Errorf("wanted error")
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Engine.Rotation = geom.Clockwise180
	b, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(writeConfig(t, string(b)), false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("got %s", diff)
	}
}
