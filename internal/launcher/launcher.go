package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/algotrade/tradelaunch/internal/config"
	"github.com/algotrade/tradelaunch/internal/deps"
	"github.com/algotrade/tradelaunch/internal/python"
	"github.com/algotrade/tradelaunch/internal/session"
	store "github.com/algotrade/tradelaunch/internal/store/sqlite"
	"github.com/algotrade/tradelaunch/internal/supervisor"
)

// LaunchConfig is the parsed CLI surface: which flags to forward to the
// trading application. Immutable once parsed.
type LaunchConfig struct {
	Debug    bool
	SafeMode bool
}

type Launcher struct {
	Config  config.Config
	BaseDir string
	Session *session.Session
	Store   *store.Store

	// Candidates overrides the search order when set; the default is
	// python.DefaultCandidates(BaseDir) plus the configured extras.
	Candidates []python.Candidate

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive enables the blocking acknowledgment prompt shown before
	// the process exits on a fatal condition.
	Interactive bool
}

// Run drives the whole launch pipeline in order: locate the runtime, gate
// its version, probe dependencies, optionally install, validate the
// target, then supervise the child. The return value is the process exit
// code: 1 for any fatal pre-launch condition, otherwise the child's own
// exit code verbatim.
func (l *Launcher) Run(ctx context.Context, lc LaunchConfig) int {
	if l.Stdin == nil {
		l.Stdin = os.Stdin
	}
	if l.Stdout == nil {
		l.Stdout = os.Stdout
	}
	if l.Stderr == nil {
		l.Stderr = os.Stderr
	}
	logf := l.Session.Logf

	logf("============================================================")
	logf("  Algo Trading Pro launcher")
	logf("============================================================")

	candidates := l.Candidates
	if candidates == nil {
		candidates = append(python.DefaultCandidates(l.BaseDir), extraCandidates(l.Config.ExtraPythonPaths)...)
	}
	rt, err := python.Locate(candidates, logf)
	if err != nil {
		return l.fatal("%v", err)
	}
	logf("python located: %s (%s)", rt.Path, rt.Source)

	minMajor, minMinor, err := l.Config.MinVersion()
	if err != nil {
		return l.fatal("launcher config: %v", err)
	}
	info, err := python.Gate(ctx, rt.Path, minMajor, minMinor)
	if err != nil {
		return l.fatal("%v", err)
	}
	logf("python version ok: %s", info)

	logf("checking required modules:")
	report := deps.Probe(ctx, rt.Path, l.Config.RequiredModules, logf)
	if report.AllPresent() {
		logf("all required modules present")
	} else {
		ok, err := l.confirmInstall(report.Missing())
		if err != nil {
			return l.fatal("install prompt: %v", err)
		}
		if ok {
			logf("installing requirement set from %s", l.Config.RequirementsFile)
			reqPath := l.Config.RequirementsFile
			if !filepath.IsAbs(reqPath) {
				reqPath = filepath.Join(l.BaseDir, reqPath)
			}
			if err := deps.Install(ctx, rt.Path, reqPath, l.Stdout, l.Stderr); err != nil {
				return l.fatal("dependency install failed: %v", err)
			}
			logf("dependency install completed")
		} else {
			logf("install declined; continuing with a possibly incomplete environment")
		}
	}

	launchID := makeLaunchID()
	rec := store.LaunchRecord{
		LaunchID:      launchID,
		PythonPath:    rt.Path,
		PythonVersion: info.Raw,
		Target:        l.Config.TargetScript,
		Debug:         lc.Debug,
		SafeMode:      lc.SafeMode,
		Status:        "running",
		StartedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if l.Store != nil {
		if err := l.Store.InsertLaunch(rec); err != nil {
			logf("history store unavailable: %v", err)
		}
	}

	code, err := supervisor.Run(ctx, supervisor.Options{
		PythonPath: rt.Path,
		Dir:        l.BaseDir,
		Script:     l.Config.TargetScript,
		Debug:      lc.Debug,
		SafeMode:   lc.SafeMode,
		Stdin:      l.Stdin,
		Stdout:     l.Stdout,
		Stderr:     l.Stderr,
	}, logf)
	if err != nil {
		l.completeLaunch(launchID, "failed", nil, err.Error())
		return l.fatal("%v", err)
	}

	if code != 0 {
		logf("application exited with code %d", code)
		l.completeLaunch(launchID, "failed", &code, "")
	} else {
		logf("application exited cleanly")
		l.completeLaunch(launchID, "succeeded", &code, "")
	}
	return code
}

func (l *Launcher) completeLaunch(launchID, status string, exitCode *int, lastError string) {
	if l.Store == nil {
		return
	}
	if err := l.Store.UpdateLaunchCompletion(launchID, status, exitCode, lastError); err != nil {
		l.Session.Logf("history store unavailable: %v", err)
	}
}

func (l *Launcher) confirmInstall(missing []string) (bool, error) {
	if !l.Interactive {
		l.Session.Logf("no interactive terminal; skipping install of: %v", missing)
		return false, nil
	}
	return deps.ConfirmInstall(l.Stdin, l.Stdout, missing)
}

// fatal logs the condition, holds for operator acknowledgment so the
// message is not lost with the console window, and yields exit code 1.
func (l *Launcher) fatal(format string, args ...any) int {
	l.Session.Logf("ERROR: "+format, args...)
	if l.Interactive {
		fmt.Fprint(l.Stdout, "Press Enter to exit... ")
		reader := bufio.NewReader(l.Stdin)
		_, _ = reader.ReadString('\n')
		fmt.Fprintln(l.Stdout)
	}
	return 1
}

func extraCandidates(paths []string) []python.Candidate {
	out := make([]python.Candidate, 0, len(paths))
	for _, p := range paths {
		out = append(out, python.Candidate{Source: "launcher config", Path: p})
	}
	return out
}

func makeLaunchID() string {
	now := time.Now().UTC()
	return now.Format("20060102t150405") + fmt.Sprintf("%09d", now.Nanosecond())
}
