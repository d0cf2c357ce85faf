package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/san-kum/robodesc/internal/storage"
)

const pendulum = `<mujoco model="pendulum">
  <worldbody>
    <body name="link" pos="0 0 1">
      <joint name="swing" axis="0 1 0" range="-90 90"/>
      <geom type="capsule" size="0.05 0.2" mass="1"/>
    </body>
  </worldbody>
</mujoco>
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSettingsLayering(t *testing.T) {
	sub, _, err := newRootCmd().Find([]string{"stats"})
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.ParseFlags([]string{"--profile=strict", "--workers=3", "--format=json"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := settings(sub)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !cfg.Strict || !cfg.ProbeTextures {
		t.Errorf("profile not applied: %+v", cfg)
	}
	if cfg.Workers != 3 || cfg.Report.Format != "json" {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestSettingsConfigFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "robodesc.yaml", "strict: true\nlog_level: warn\nmesh_dir: parts\n")
	sub, _, err := newRootCmd().Find([]string{"tree"})
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.ParseFlags([]string{"--config=" + path, "--log-level=debug"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := settings(sub)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !cfg.Strict || cfg.MeshDir != "parts" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("changed flag should win, got %q", cfg.LogLevel)
	}
	if cfg.DataDir != "robodesc_data" {
		t.Errorf("unchanged flag overrode the default: %q", cfg.DataDir)
	}
}

func TestSettingsErrors(t *testing.T) {
	sub, _, _ := newRootCmd().Find([]string{"tree"})
	if err := sub.ParseFlags([]string{"--profile=turbo"}); err != nil {
		t.Fatal(err)
	}
	if _, err := settings(sub); err == nil {
		t.Error("expected error for unknown profile")
	}

	sub, _, _ = newRootCmd().Find([]string{"tree"})
	if err := sub.ParseFlags([]string{"--log-level=loud"}); err != nil {
		t.Fatal(err)
	}
	if _, err := settings(sub); err == nil {
		t.Error("expected error for bad log level")
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("warn")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if log.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !log.Desugar().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled at warn level")
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for bad level")
	}
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestSnapshotCommands(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "snaps")
	file := writeFile(t, dir, "pendulum.xml", pendulum)

	if err := run(t, "validate", "--log-level=error", file); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := run(t, "snapshot", "--log-level=error", "--data", data, file); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	snaps, err := storage.New(data).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].Model != "pendulum" || snaps[0].Joints != 1 {
		t.Fatalf("snapshots = %+v", snaps)
	}
	id := snaps[0].ID

	for _, args := range [][]string{
		{"list"},
		{"export-csv", id},
		{"export-json", id},
		{"export-json", file},
	} {
		args = append(args, "--log-level=error", "--data", data)
		if err := run(t, args...); err != nil {
			t.Errorf("%v: %v", args, err)
		}
	}

	out := filepath.Join(dir, "canonical.xml")
	if err := run(t, "fmt", "--log-level=error", "-o", out, file); err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if err := run(t, "validate", "--log-level=error", out); err != nil {
		t.Errorf("canonical output does not validate: %v", err)
	}

	flat := filepath.Join(dir, "inline.xml")
	if err := run(t, "fmt", "--log-level=error", "--inline", "-o", flat, file); err != nil {
		t.Fatalf("fmt --inline: %v", err)
	}
	inlined, err := os.ReadFile(flat)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(inlined), "<default") {
		t.Errorf("inline output keeps default classes:\n%s", inlined)
	}
	if err := run(t, "validate", "--log-level=error", flat); err != nil {
		t.Errorf("inline output does not validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.xml", pendulum)
	bad := writeFile(t, dir, "bad.xml", `<mujoco><worldbody><geom type="sphere" material="missing" size="1"/></worldbody></mujoco>`)

	if err := run(t, "validate", "--log-level=error", good, bad); err == nil {
		t.Error("expected validate to fail")
	}
	if err := run(t, "export-csv", "--log-level=error", "--data", dir, "nope"); err == nil {
		t.Error("expected error for unknown snapshot and missing file")
	}
}
