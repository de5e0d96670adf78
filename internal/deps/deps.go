package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// Check is the outcome of one import probe. Detail carries the probe's
// combined output when the import failed.
type Check struct {
	Module  string
	Present bool
	Detail  string
}

// Report holds one Check per required module, in probe order. Built once
// by Probe and never mutated afterwards.
type Report struct {
	Checks []Check
}

func (r Report) Missing() []string {
	out := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		if !c.Present {
			out = append(out, c.Module)
		}
	}
	return out
}

func (r Report) AllPresent() bool {
	return len(r.Missing()) == 0
}

// Probe runs a minimal import check per module through the runtime. A
// failed probe records absence and moves on; it never aborts the pass.
// Presence only, no version or compatibility checks.
func Probe(ctx context.Context, pythonPath string, modules []string, logf func(format string, args ...any)) Report {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	report := Report{Checks: make([]Check, 0, len(modules))}
	for _, mod := range modules {
		cmd := exec.CommandContext(ctx, pythonPath, "-c", "import "+mod)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		check := Check{Module: mod, Present: err == nil}
		if err != nil {
			check.Detail = strings.TrimSpace(out.String())
			logf("  [MISSING] %s", mod)
		} else {
			logf("  [OK] %s", mod)
		}
		report.Checks = append(report.Checks, check)
	}
	return report
}

// ConfirmInstall presents a yes/no prompt for the install step. Without an
// interactive terminal it declines, leaving the launch to proceed with the
// environment as-is.
func ConfirmInstall(in io.Reader, out io.Writer, missing []string) (bool, error) {
	fmt.Fprintf(out, "Missing modules: %s\n", strings.Join(missing, ", "))
	if in == os.Stdin && !interactiveStdin() {
		fmt.Fprintln(out, "No interactive terminal; skipping install.")
		return false, nil
	}
	fmt.Fprint(out, "Install the declared requirement set now? [y/N]: ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Install upgrades pip, then installs the full declared requirement set.
// The full set is installed rather than the missing subset: the operation
// is idempotent and avoids diffing. Stdio is attached so pip progress is
// visible to the operator.
func Install(ctx context.Context, pythonPath, requirementsFile string, stdout, stderr io.Writer) error {
	steps := [][]string{
		{"-m", "pip", "install", "--upgrade", "pip"},
		{"-m", "pip", "install", "-r", requirementsFile},
	}
	for _, args := range steps {
		cmd := exec.CommandContext(ctx, pythonPath, args...)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("pip %s: %w", strings.Join(args[2:], " "), err)
		}
	}
	return nil
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
