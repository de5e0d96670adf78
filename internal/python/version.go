package python

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VersionInfo keeps the raw version text alongside the parsed segments.
// A segment that fails to parse stays 0, which always fails the gate.
type VersionInfo struct {
	Major int
	Minor int
	Raw   string
}

type VersionError struct {
	Info     VersionInfo
	MinMajor int
	MinMinor int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("python %q is below the required %d.%d", e.Info.Raw, e.MinMajor, e.MinMinor)
}

// Query asks the runtime for its version text. Older interpreters print it
// on stderr, so both streams are read.
func Query(ctx context.Context, pythonPath string) (VersionInfo, error) {
	cmd := exec.CommandContext(ctx, pythonPath, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return VersionInfo{}, fmt.Errorf("query python version: %w", err)
	}
	return ParseVersion(out.String()), nil
}

// ParseVersion extracts the second whitespace token ("Python 3.12.1" by
// convention) and parses its first two dot-separated integer segments.
// If either segment is missing or non-numeric, both stay 0 so the gate
// rejects the runtime deterministically.
func ParseVersion(output string) VersionInfo {
	raw := strings.TrimSpace(output)
	info := VersionInfo{Raw: raw}
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return info
	}
	segments := strings.Split(fields[1], ".")
	if len(segments) < 2 {
		return info
	}
	major, errMajor := strconv.Atoi(segments[0])
	minor, errMinor := strconv.Atoi(segments[1])
	if errMajor != nil || errMinor != nil {
		return info
	}
	info.Major = major
	info.Minor = minor
	return info
}

// Gate queries the runtime and rejects it when (major, minor) is below the
// configured floor. An unparsable version parses to 0.0 and always rejects.
func Gate(ctx context.Context, pythonPath string, minMajor, minMinor int) (VersionInfo, error) {
	info, err := Query(ctx, pythonPath)
	if err != nil {
		return VersionInfo{}, err
	}
	if !info.AtLeast(minMajor, minMinor) {
		return info, &VersionError{Info: info, MinMajor: minMajor, MinMinor: minMinor}
	}
	return info, nil
}

func (v VersionInfo) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

func (v VersionInfo) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
