package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/algotrade/tradelaunch/internal/config"
	"github.com/algotrade/tradelaunch/internal/launcher"
	"github.com/algotrade/tradelaunch/internal/session"
	store "github.com/algotrade/tradelaunch/internal/store/sqlite"
)

func Execute(args []string) int {
	lc, help := ParseArgs(args)
	if help {
		printUsage()
		return 0
	}

	baseDir := launcherDir()
	cfg, err := config.Load(filepath.Join(baseDir, config.DefaultFileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "launcher config: %v\n", err)
		return 1
	}

	sess := session.Open(session.Options{Dir: resolveDir(baseDir, cfg.LogDir)})
	defer sess.Close()
	if sess.Degraded {
		fmt.Fprintln(os.Stderr, "session log unavailable; continuing with console output only")
	}

	st, err := store.Open(resolveDir(baseDir, cfg.StateDir))
	if err != nil {
		sess.Logf("history store unavailable: %v", err)
		st = nil
	} else {
		defer st.Close()
	}

	l := &launcher.Launcher{
		Config:      cfg,
		BaseDir:     baseDir,
		Session:     sess,
		Store:       st,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: interactiveStdin(),
	}
	return l.Run(context.Background(), lc)
}

// ParseArgs interprets the launch grammar: --debug, --safe, and --help,
// order-independent and case-sensitive. Unknown tokens are skipped, never
// rejected. --help short-circuits before any environment work.
func ParseArgs(tokens []string) (launcher.LaunchConfig, bool) {
	var lc launcher.LaunchConfig
	for _, tok := range tokens {
		switch tok {
		case "--help":
			return launcher.LaunchConfig{}, true
		case "--debug":
			lc.Debug = true
		case "--safe":
			lc.SafeMode = true
		}
	}
	return lc, false
}

func launcherDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func resolveDir(baseDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

func interactiveStdin() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	if st.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func printUsage() {
	fmt.Print(`tradelaunch - environment launcher for Algo Trading Pro

usage: tradelaunch [--debug] [--safe] [--help]

flags:
  --debug   forward --debug to the application and pause before closing
  --safe    forward --safe to the application (simulate trading, no live orders)
  --help    show this help and exit

Unrecognized tokens are ignored. The launcher locates a Python 3 runtime,
verifies its version, checks required modules (offering a pip install when
some are missing), then starts the trading application and exits with its
exit code.
`)
}
