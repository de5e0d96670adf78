package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrTargetMissing = errors.New("target script not found")

type Options struct {
	PythonPath string
	Dir        string
	Script     string
	Debug      bool
	SafeMode   bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run launches the target script with the resolved runtime and blocks
// until it exits. The working directory is switched to the launcher's own
// directory and PYTHONPATH is extended with it so the application finds
// its co-located modules. The child's exit code is returned verbatim; a
// non-zero exit is not an error here, the caller decides how to report it.
func Run(ctx context.Context, opts Options, logf func(format string, args ...any)) (int, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	script := opts.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(opts.Dir, script)
	}
	if st, err := os.Stat(script); err != nil || st.IsDir() {
		return 1, fmt.Errorf("%w: %s", ErrTargetMissing, script)
	}
	if err := os.Chdir(opts.Dir); err != nil {
		return 1, fmt.Errorf("change working directory to %s: %w", opts.Dir, err)
	}

	args := ChildArgs(script, opts.Debug, opts.SafeMode)
	logf("launching: %s %s", opts.PythonPath, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, opts.PythonPath, args...)
	cmd.Dir = opts.Dir
	cmd.Env = ExtendPythonPath(os.Environ(), opts.Dir)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()
	code := exitCode(err)
	if err != nil && code == -1 {
		return 1, fmt.Errorf("start %s: %w", opts.PythonPath, err)
	}

	if opts.Debug {
		pauseForAck(opts.Stdin, opts.Stdout)
	}
	return code, nil
}

// ChildArgs translates the launch configuration into the flags the trading
// application understands.
func ChildArgs(script string, debug, safe bool) []string {
	args := []string{script}
	if debug {
		args = append(args, "--debug")
	}
	if safe {
		args = append(args, "--safe")
	}
	return args
}

// ExtendPythonPath appends dir to an existing PYTHONPATH entry, or adds
// one. Existing entries are preserved; nothing is replaced.
func ExtendPythonPath(env []string, dir string) []string {
	const key = "PYTHONPATH="
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if len(kv) >= len(key) && kv[:len(key)] == key {
			found = true
			if kv == key {
				kv = key + dir
			} else {
				kv = kv + string(os.PathListSeparator) + dir
			}
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, key+dir)
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

func pauseForAck(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "Debug mode: press Enter to close... ")
	reader := bufio.NewReader(in)
	_, _ = reader.ReadString('\n')
	fmt.Fprintln(out)
}
