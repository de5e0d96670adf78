package python

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
)

// ErrNotFound means no candidate resolved; the launch cannot proceed.
var ErrNotFound = errors.New("no usable python runtime found; install Python 3 from https://www.python.org/downloads/")

// Candidate is one searchable location. Command candidates resolve through
// PATH; Path candidates must exist on disk. Order in a candidate slice is a
// priority list: the first hit wins even if a later one is newer.
type Candidate struct {
	Source  string
	Command string
	Path    string
}

// Resolved is the runtime the whole run uses.
type Resolved struct {
	Path   string
	Source string
}

var versionSuffixes = []string{"313", "312", "311", "310", "39", "38"}

// DefaultCandidates builds the stock search order: PATH lookups first, then
// well-known install directories, the per-user install location, and last a
// project-local virtual environment under baseDir.
func DefaultCandidates(baseDir string) []Candidate {
	cands := []Candidate{
		{Source: "PATH", Command: "python"},
		{Source: "PATH", Command: "python3"},
	}
	if goruntime.GOOS == "windows" {
		for _, v := range versionSuffixes {
			cands = append(cands, Candidate{
				Source: "system install",
				Path:   filepath.Join(`C:\`, "Python"+v, "python.exe"),
			})
		}
		if lad := os.Getenv("LOCALAPPDATA"); lad != "" {
			for _, v := range versionSuffixes {
				cands = append(cands, Candidate{
					Source: "user install",
					Path:   filepath.Join(lad, "Programs", "Python", "Python"+v, "python.exe"),
				})
			}
		}
		cands = append(cands, Candidate{
			Source: "virtual environment",
			Path:   filepath.Join(baseDir, "venv", "Scripts", "python.exe"),
		})
		return cands
	}
	for _, dir := range []string{"/usr/local/bin", "/usr/bin", "/opt/python/bin"} {
		for _, v := range []string{"3.13", "3.12", "3.11", "3.10", "3.9", "3.8"} {
			cands = append(cands, Candidate{Source: "system install", Path: filepath.Join(dir, "python"+v)})
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		cands = append(cands, Candidate{Source: "user install", Path: filepath.Join(home, ".local", "bin", "python3")})
	}
	cands = append(cands, Candidate{
		Source: "virtual environment",
		Path:   filepath.Join(baseDir, "venv", "bin", "python"),
	})
	return cands
}

// Locate walks the candidate list in order and returns the first runtime
// that exists and is invocable. logf receives one diagnostic line per miss.
func Locate(cands []Candidate, logf func(format string, args ...any)) (Resolved, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	for _, c := range cands {
		if c.Command != "" {
			p, err := exec.LookPath(c.Command)
			if err != nil {
				logf("python: %s %q not found", c.Source, c.Command)
				continue
			}
			return Resolved{Path: p, Source: c.Source}, nil
		}
		if !invocable(c.Path) {
			logf("python: %s %s not present", c.Source, c.Path)
			continue
		}
		return Resolved{Path: c.Path, Source: c.Source}, nil
	}
	return Resolved{}, ErrNotFound
}

func invocable(path string) bool {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return false
	}
	if goruntime.GOOS == "windows" {
		return true
	}
	return st.Mode()&0o111 != 0
}

func (c Candidate) String() string {
	if c.Command != "" {
		return fmt.Sprintf("%s (%s)", c.Command, c.Source)
	}
	return fmt.Sprintf("%s (%s)", c.Path, c.Source)
}
