package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

// DefaultDialTimeout bounds TCP connect and SSH handshake. Command
// execution itself is not bounded.
const DefaultDialTimeout = 3 * time.Second

var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// SSHDialer opens SSH sessions. Authentication uses the SSH agent, the
// target's identity file and the default keys in ~/.ssh, in that order.
type SSHDialer struct {
	// KnownHostsFile is consulted for host key verification. Empty means
	// ~/.ssh/known_hosts.
	KnownHostsFile string

	// AcceptNewHostKeys records keys of hosts missing from KnownHostsFile
	// instead of rejecting them. Changed keys are always rejected.
	AcceptNewHostKeys bool

	Timeout time.Duration
	Logger  zerolog.Logger

	// Serializes known_hosts appends from concurrent dials.
	knownHostsMu sync.Mutex
}

// Dial connects to target and returns a Session.
func (d *SSHDialer) Dial(ctx context.Context, target Target) (Session, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	hostKeyCallback, err := d.hostKeyCallback()
	if err != nil {
		return nil, &DialError{Target: target, Err: err}
	}

	auth, closeAgent := d.authMethods(target)
	defer closeAgent()

	cfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(target.Host, fmt.Sprintf("%d", target.Port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &DialError{Target: target, Err: err}
	}

	// Bound the handshake; cleared once the connection is established.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, &DialError{Target: target, Err: fmt.Errorf("ssh handshake: %w", err)}
	}
	_ = conn.SetDeadline(time.Time{})

	d.Logger.Debug().Str("target", target.String()).Msg("ssh session established")

	return &SSHSession{
		client: ssh.NewClient(c, chans, reqs),
		logger: d.Logger.With().Str("agent", target.Name).Logger(),
	}, nil
}

func (d *SSHDialer) authMethods(target Target) ([]ssh.AuthMethod, func()) {
	var methods []ssh.AuthMethod
	closeFn := func() {}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closeFn = func() { conn.Close() }
		} else {
			d.Logger.Debug().Err(err).Msg("ssh agent unavailable")
		}
	}

	var signers []ssh.Signer
	for _, path := range identityFiles(target.IdentityFile) {
		signer, err := loadSigner(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				d.Logger.Debug().Err(err).Str("key", path).Msg("skipping identity file")
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	return methods, closeFn
}

func identityFiles(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, expandHome(explicit))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return paths
	}
	for _, name := range defaultIdentityFiles {
		paths = append(paths, filepath.Join(home, ".ssh", name))
	}
	return paths
}

func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("key is passphrase protected, load it into ssh-agent instead")
		}
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SSHSession implements Session over one SSH connection. The SFTP
// subsystem is opened on first file operation.
type SSHSession struct {
	client *ssh.Client
	sftp   *sftp.Client
	logger zerolog.Logger
}

// Run executes cmd and waits for its exit status.
func (s *SSHSession) Run(ctx context.Context, cmd string) (*Result, error) {
	return s.run(ctx, cmd, nil)
}

// RunInput executes cmd with input on stdin.
func (s *SSHSession) RunInput(ctx context.Context, cmd string, input []byte) (*Result, error) {
	return s.run(ctx, cmd, input)
}

func (s *SSHSession) run(ctx context.Context, cmd string, input []byte) (*Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening ssh channel: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if input != nil {
		session.Stdin = bytes.NewReader(input)
	}

	s.logger.Debug().Str("command", cmd).Msg("running remote command")

	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("starting remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	}

	res := &Result{Command: cmd, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if waitErr != nil {
		var exitErr *ssh.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for remote command: %w", waitErr)
		}
		res.ExitStatus = exitErr.ExitStatus()
	}

	s.logger.Debug().Str("command", cmd).Int("status", res.ExitStatus).Msg("remote command finished")
	return res, nil
}

func (s *SSHSession) sftpClient() (*sftp.Client, error) {
	if s.sftp != nil {
		return s.sftp, nil
	}
	c, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("opening sftp subsystem: %w", err)
	}
	s.sftp = c
	return c, nil
}

// WriteFile uploads data to path with perm.
func (s *SSHSession) WriteFile(path string, data []byte, perm os.FileMode) error {
	c, err := s.sftpClient()
	if err != nil {
		return err
	}

	f, err := c.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("creating remote file %s: %w", path, err)
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing remote file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing remote file %s: %w", path, err)
	}
	return nil
}

// Open opens path for reading.
func (s *SSHSession) Open(path string) (File, error) {
	c, err := s.sftpClient()
	if err != nil {
		return nil, err
	}
	f, err := c.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening remote file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat remote file %s: %w", path, err)
	}
	return &sftpFile{File: f, size: info.Size()}, nil
}

type sftpFile struct {
	*sftp.File
	size int64
}

func (f *sftpFile) Size() int64 { return f.size }

// Interactive runs cmd with a PTY attached to the local terminal when stdin
// is one, and returns the remote exit status.
func (s *SSHSession) Interactive(ctx context.Context, cmd string, stdin *os.File, stdout, stderr io.Writer) (int, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("opening ssh channel: %w", err)
	}
	defer session.Close()

	if stdin != nil {
		session.Stdin = stdin
	}
	session.Stdout = stdout
	session.Stderr = stderr

	fd := int(stdin.Fd())
	if stdin != nil && term.IsTerminal(fd) {
		width, height, err := term.GetSize(fd)
		if err != nil {
			width, height = 80, 24
		}
		termType := os.Getenv("TERM")
		if termType == "" {
			termType = "xterm-256color"
		}
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty(termType, height, width, modes); err != nil {
			return 0, fmt.Errorf("requesting pty: %w", err)
		}

		state, err := term.MakeRaw(fd)
		if err != nil {
			return 0, fmt.Errorf("setting terminal raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	if err := session.Start(cmd); err != nil {
		return 0, fmt.Errorf("starting remote shell: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGHUP)
		return 0, ctx.Err()
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return 0, err
	}
	return 0, nil
}

// Close closes the SFTP subsystem, if open, and the connection.
func (s *SSHSession) Close() error {
	if s.sftp != nil {
		s.sftp.Close()
	}
	return s.client.Close()
}
