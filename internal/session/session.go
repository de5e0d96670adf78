package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Session is the single append-only log destination for one launcher run.
// Writes are mirrored to the console; file-level failures degrade the
// session instead of failing the caller.
type Session struct {
	Path     string
	Degraded bool

	file    *os.File
	console io.Writer
	now     func() time.Time
}

type Options struct {
	Dir     string
	Console io.Writer
	Now     func() time.Time
}

// Open creates the session log under opts.Dir, named from the run-start
// timestamp. If the directory cannot be created the log falls back to the
// current working directory; if the file itself cannot be opened the
// session runs degraded (console only).
func Open(opts Options) *Session {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{console: opts.Console, now: opts.Now}

	dir := opts.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = "."
	}
	name := "launcher_" + opts.Now().Format("20060102_150405") + ".log"
	s.Path = filepath.Join(dir, name)

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.Degraded = true
		s.Path = ""
		return s
	}
	s.file = f
	return s
}

// Log appends "[<date> <time>] message" to the session log and writes the
// bare message to the console. Never returns an error; a failed file write
// flips the session into degraded mode.
func (s *Session) Log(message string) {
	fmt.Fprintln(s.console, message)
	if s.Degraded || s.file == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", s.now().Format("2006-01-02 15:04:05"), message)
	if _, err := s.file.WriteString(line); err != nil {
		s.Degraded = true
	}
}

func (s *Session) Logf(format string, args ...any) {
	s.Log(fmt.Sprintf(format, args...))
}

func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
