package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receiver.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
receiver:
  nfft: 9
  half_cp_advance: true
  tracking_shift: 2
input:
  source: file
  path: /tmp/capture.iq
server:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Receiver.NFFT != 9 || !cfg.Receiver.HalfCPAdvance {
		t.Errorf("receiver section not applied: %+v", cfg.Receiver)
	}
	if cfg.Receiver.TrackingShift != 2 {
		t.Errorf("tracking_shift = %d", cfg.Receiver.TrackingShift)
	}
	// Untouched fields keep their defaults.
	if cfg.Receiver.InitialShift != 4 || cfg.Receiver.LLRQueue != 16384 || cfg.Receiver.CFOMode != 1 {
		t.Errorf("defaults lost: %+v", cfg.Receiver)
	}
	if cfg.Server.Enabled {
		t.Error("server still enabled")
	}
}

func TestLoad_RejectsBadSettings(t *testing.T) {
	cases := map[string]string{
		"nfft too small": `
receiver: {nfft: 7}
input: {source: file, path: /x}
`,
		"unknown source": `
input: {source: carrier-pigeon}
`,
		"file without path": `
input: {source: file}
`,
		"tiny llr queue": `
receiver: {nfft: 8, llr_queue: 16}
input: {source: file, path: /x}
`,
		"bad cfo mode": `
receiver: {nfft: 8, cfo_mode: 2}
input: {source: file, path: /x}
`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDefault_ValidatesWithPath(t *testing.T) {
	cfg := Default()
	cfg.Input.Path = "/tmp/capture.iq"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}
