// Package remote provides the connection abstraction used to drive agents:
// run a command and collect its exit status and output, write a file with
// permissions, and stream a remote file back.
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Session is one authenticated connection to one agent. A Session is owned
// by a single goroutine; concurrent workers each dial their own.
type Session interface {
	// Run executes cmd through the remote shell. A non-zero exit status is
	// reported in the Result, not as an error; the error is reserved for
	// transport failures.
	Run(ctx context.Context, cmd string) (*Result, error)

	// RunInput is Run with stdin fed from input.
	RunInput(ctx context.Context, cmd string, input []byte) (*Result, error)

	// WriteFile creates or truncates path with the given permissions and
	// writes data to it. Permissions are applied before the content.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Open opens a remote file for streaming reads.
	Open(path string) (File, error)

	Close() error
}

// File is a remote file opened for reading.
type File interface {
	io.ReadCloser
	Size() int64
}

// Target identifies the agent a Dialer connects to.
type Target struct {
	Name         string
	Host         string
	Port         int
	User         string
	IdentityFile string
}

// Address returns host:port.
func (t Target) Address() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s", t.User, t.Address())
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}

// Interactor is implemented by sessions that can attach a local terminal to
// a remote command.
type Interactor interface {
	Interactive(ctx context.Context, cmd string, stdin *os.File, stdout, stderr io.Writer) (int, error)
}

// Result is the outcome of a remote command.
type Result struct {
	Command    string
	ExitStatus int
	Stdout     []byte
	Stderr     []byte
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool {
	return r.ExitStatus == 0
}

// Err returns an *ExitError for a non-zero exit status, nil otherwise.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ExitError{
		Command: r.Command,
		Status:  r.ExitStatus,
		Stdout:  string(r.Stdout),
		Stderr:  string(r.Stderr),
	}
}

// ExitError is a remote command that exited non-zero. It carries the
// captured output so callers can surface it to the operator.
type ExitError struct {
	Command string
	Status  int
	Stdout  string
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("remote command exited with status %d", e.Status)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DialError is a failure to establish a session.
type DialError struct {
	Target Target
	Err    error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("connecting to %s: %s", e.Target, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// Exec runs cmd and folds a non-zero exit status into the returned error.
// The Result is returned in both cases when the command ran.
func Exec(ctx context.Context, s Session, cmd string) (*Result, error) {
	res, err := s.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res, res.Err()
}

// ExecInput is Exec with stdin.
func ExecInput(ctx context.Context, s Session, cmd string, input []byte) (*Result, error) {
	res, err := s.RunInput(ctx, cmd, input)
	if err != nil {
		return nil, err
	}
	return res, res.Err()
}

// Probe runs a read-only check and reports whether it exited 0. Transport
// failures count as a failed probe.
func Probe(ctx context.Context, s Session, cmd string) bool {
	res, err := s.Run(ctx, cmd)
	return err == nil && res.OK()
}

// Chain joins commands so that each runs only if the previous succeeded.
func Chain(cmds ...string) string {
	return strings.Join(cmds, " && ")
}
