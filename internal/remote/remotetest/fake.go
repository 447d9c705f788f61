// Package remotetest provides in-memory remote sessions for tests.
package remotetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/bianoble/multi-restic/internal/remote"
)

// Response scripts the outcome of commands containing Match.
type Response struct {
	Match  string
	Status int
	Stdout string
	Stderr string
	Err    error // transport error
}

// StoredFile is a file written through WriteFile or seeded by a test.
type StoredFile struct {
	Data []byte
	Perm os.FileMode
}

// Session is an in-memory remote.Session. Commands are matched against
// Responses in order; the first whose Match is a substring wins. Unmatched
// commands succeed with no output. Handler, when set, takes precedence; it
// runs with the session locked and may touch Files directly but must not
// call Session methods.
type Session struct {
	mu sync.Mutex

	Target    remote.Target
	Responses []Response
	Handler   func(cmd string, input []byte) (*remote.Result, bool)
	Files     map[string]StoredFile

	Commands []string
	Inputs   map[string][]byte
	Closed   bool
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{Files: map[string]StoredFile{}, Inputs: map[string][]byte{}}
}

// On appends a scripted response and returns s for chaining.
func (s *Session) On(match string, status int, stdout, stderr string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, Response{Match: match, Status: status, Stdout: stdout, Stderr: stderr})
	return s
}

func (s *Session) Run(ctx context.Context, cmd string) (*remote.Result, error) {
	return s.RunInput(ctx, cmd, nil)
}

func (s *Session) RunInput(ctx context.Context, cmd string, input []byte) (*remote.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Commands = append(s.Commands, cmd)
	if input != nil {
		s.Inputs[cmd] = append([]byte(nil), input...)
	}

	if s.Handler != nil {
		if res, ok := s.Handler(cmd, input); ok {
			res.Command = cmd
			return res, nil
		}
	}

	for _, r := range s.Responses {
		if strings.Contains(cmd, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return &remote.Result{Command: cmd, ExitStatus: r.Status, Stdout: []byte(r.Stdout), Stderr: []byte(r.Stderr)}, nil
		}
	}
	return &remote.Result{Command: cmd}, nil
}

func (s *Session) WriteFile(path string, data []byte, perm os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[path] = StoredFile{Data: append([]byte(nil), data...), Perm: perm}
	return nil
}

func (s *Session) Open(path string) (remote.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.Files[path]
	if !ok {
		return nil, fmt.Errorf("opening remote file %s: %w", path, fs.ErrNotExist)
	}
	return &file{Reader: bytes.NewReader(f.Data), size: int64(len(f.Data))}, nil
}

// Interactive records cmd and answers with the exit status of the matching
// Response, writing its Stdout to stdout.
func (s *Session) Interactive(ctx context.Context, cmd string, stdin *os.File, stdout, stderr io.Writer) (int, error) {
	res, err := s.Run(ctx, cmd)
	if err != nil {
		return -1, err
	}
	if stdout != nil {
		_, _ = stdout.Write(res.Stdout)
	}
	return res.ExitStatus, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Ran reports whether any command containing substr was run.
func (s *Session) Ran(substr string) bool {
	return s.Index(substr) >= 0
}

// Index returns the position of the first command containing substr, or -1.
func (s *Session) Index(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.Commands {
		if strings.Contains(c, substr) {
			return i
		}
	}
	return -1
}

type file struct {
	io.Reader
	size int64
}

func (f *file) Size() int64  { return f.size }
func (f *file) Close() error { return nil }

// Dialer hands out a fresh Session per Dial. Setup, when set, configures
// each new session. Fail makes dials to the named agents fail.
type Dialer struct {
	mu sync.Mutex

	Setup func(target remote.Target, s *Session)
	Fail  map[string]error

	Sessions []*Session
}

func (d *Dialer) Dial(ctx context.Context, target remote.Target) (remote.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.Fail[target.Name]; ok {
		return nil, &remote.DialError{Target: target, Err: err}
	}
	s := NewSession()
	s.Target = target
	if d.Setup != nil {
		d.Setup(target, s)
	}
	d.Sessions = append(d.Sessions, s)
	return s, nil
}

// SessionsFor returns the sessions dialed for the named agent.
func (d *Dialer) SessionsFor(name string) []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Session
	for _, s := range d.Sessions {
		if s.Target.Name == name {
			out = append(out, s)
		}
	}
	return out
}
