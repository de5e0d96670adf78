package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/algotrade/tradelaunch/internal/config"
	"github.com/algotrade/tradelaunch/internal/python"
	"github.com/algotrade/tradelaunch/internal/session"
	store "github.com/algotrade/tradelaunch/internal/store/sqlite"
)

// fakePython dispatches on its arguments like a real interpreter would:
// --version prints version, -c probes imports (failing for the listed
// modules), anything else runs the "application" and exits with appCode.
func fakePython(t *testing.T, dir, version string, missing []string, appCode int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	sb.WriteString("if [ \"$1\" = \"--version\" ]; then echo \"" + version + "\"; exit 0; fi\n")
	sb.WriteString("if [ \"$1\" = \"-c\" ]; then\n")
	for _, mod := range missing {
		sb.WriteString("  [ \"$2\" = \"import " + mod + "\" ] && exit 1\n")
	}
	sb.WriteString("  exit 0\nfi\n")
	sb.WriteString("echo \"$@\" > \"" + filepath.Join(dir, "child_args.txt") + "\"\n")
	sb.WriteString("exit " + strconv.Itoa(appCode) + "\n")
	path := filepath.Join(dir, "python")
	if err := os.WriteFile(path, []byte(sb.String()), 0o755); err != nil {
		t.Fatalf("write fake python: %v", err)
	}
	return path
}

type harness struct {
	launcher *Launcher
	console  *bytes.Buffer
	dir      string
}

func newHarness(t *testing.T, cands []python.Candidate, withTarget bool) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Normalize(config.Config{StateDir: filepath.Join(dir, ".tradelaunch")})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if withTarget {
		if err := os.WriteFile(filepath.Join(dir, cfg.TargetScript), []byte("# app\n"), 0o644); err != nil {
			t.Fatalf("write target: %v", err)
		}
	}
	console := &bytes.Buffer{}
	sess := session.Open(session.Options{Dir: filepath.Join(dir, cfg.LogDir), Console: console})
	t.Cleanup(func() { _ = sess.Close() })

	st, err := store.Open(cfg.StateDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return &harness{
		launcher: &Launcher{
			Config:     cfg,
			BaseDir:    dir,
			Session:    sess,
			Store:      st,
			Candidates: cands,
			Stdin:      strings.NewReader(""),
			Stdout:     &bytes.Buffer{},
			Stderr:     &bytes.Buffer{},
		},
		console: console,
		dir:     dir,
	}
}

func TestRunHappyPathPropagatesChildExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	py := fakePython(t, dir, "Python 3.12.1", nil, 7)
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, true)

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 7 {
		t.Fatalf("exit code = %d, want the child's 7", code)
	}

	out := h.console.String()
	for _, step := range []string{"python located", "python version ok", "all required modules present", "launching:", "exited with code 7"} {
		if !strings.Contains(out, step) {
			t.Fatalf("log missing step %q:\n%s", step, out)
		}
	}

	recs, err := h.launcher.Store.ListLaunches(1)
	if err != nil {
		t.Fatalf("ListLaunches() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Status != "failed" || recs[0].ExitCode == nil || *recs[0].ExitCode != 7 {
		t.Fatalf("history record = %+v", recs)
	}
}

func TestRunCleanExitRecordsSuccess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	py := fakePython(t, dir, "Python 3.12.1", nil, 0)
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, true)

	code := h.launcher.Run(context.Background(), LaunchConfig{SafeMode: true})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	recs, err := h.launcher.Store.ListLaunches(1)
	if err != nil {
		t.Fatalf("ListLaunches() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Status != "succeeded" || !recs[0].SafeMode {
		t.Fatalf("history record = %+v", recs)
	}
	b, err := os.ReadFile(filepath.Join(dir, "child_args.txt"))
	if err != nil {
		t.Fatalf("read child args: %v", err)
	}
	if !strings.Contains(string(b), "--safe") {
		t.Fatalf("child args = %q, want --safe forwarded", string(b))
	}
}

func TestRunVersionBelowFloorStopsBeforeProbes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	py := fakePython(t, dir, "Python 3.7.0", nil, 0)
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, true)

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	out := h.console.String()
	if !strings.Contains(out, "3.7.0") {
		t.Fatalf("offending version not reported:\n%s", out)
	}
	if strings.Contains(out, "checking required modules") {
		t.Fatalf("dependency probe ran after version rejection:\n%s", out)
	}
}

func TestRunNoRuntimeFoundStopsEverything(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: filepath.Join(dir, "absent")}}, true)

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	out := h.console.String()
	if !strings.Contains(out, "no usable python runtime") {
		t.Fatalf("missing not-found message:\n%s", out)
	}
	if strings.Contains(out, "python version") || strings.Contains(out, "launching:") {
		t.Fatalf("pipeline continued past locate failure:\n%s", out)
	}
}

func TestRunMissingTargetNeverLaunches(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	py := fakePython(t, dir, "Python 3.12.1", nil, 0)
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, false)

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(h.console.String(), "target script not found") {
		t.Fatalf("missing target error:\n%s", h.console.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "child_args.txt")); err == nil {
		t.Fatal("child was launched despite missing target")
	}
}

func TestRunDeclinedInstallStillReachesLaunch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	py := fakePython(t, dir, "Python 3.12.1", []string{"pandas"}, 0)
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, true)

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	out := h.console.String()
	if !strings.Contains(out, "skipping install") {
		t.Fatalf("expected the declined-install path:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "child_args.txt")); err != nil {
		t.Fatal("launch did not proceed after declined install")
	}
}

func TestRunAcceptedInstallFailureIsFatal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses shell stubs")
	}
	dir := t.TempDir()
	// Dispatches on -m so the pip steps fail while probes still work.
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then echo "Python 3.12.1"; exit 0; fi
if [ "$1" = "-c" ]; then [ "$2" = "import pandas" ] && exit 1; exit 0; fi
if [ "$1" = "-m" ]; then exit 1; fi
exit 0
`
	py := filepath.Join(dir, "python")
	if err := os.WriteFile(py, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake python: %v", err)
	}
	h := newHarness(t, []python.Candidate{{Source: "system install", Path: py}}, true)
	h.launcher.Interactive = true
	h.launcher.Stdin = strings.NewReader("y\n\n")

	code := h.launcher.Run(context.Background(), LaunchConfig{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(h.console.String(), "dependency install failed") {
		t.Fatalf("missing install failure message:\n%s", h.console.String())
	}
}
