package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultKnownHostsFile returns ~/.ssh/known_hosts.
func DefaultKnownHostsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func (d *SSHDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	path := d.KnownHostsFile
	if path == "" {
		path = DefaultKnownHostsFile()
	}
	if path == "" {
		return nil, errors.New("no known_hosts file available for host key verification")
	}
	if err := ensureFile(path); err != nil {
		return nil, err
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("parsing known_hosts %s: %w", path, err)
	}

	return func(hostname string, remoteAddr net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remoteAddr, key)
		if !isUnknownHost(err) || !d.AcceptNewHostKeys {
			return err
		}

		d.knownHostsMu.Lock()
		defer d.knownHostsMu.Unlock()

		// Another dial may have recorded the host meanwhile.
		fresh, ferr := knownhosts.New(path)
		if ferr != nil {
			return fmt.Errorf("re-reading known_hosts %s: %w", path, ferr)
		}
		err = fresh(hostname, remoteAddr, key)
		if !isUnknownHost(err) {
			return err
		}

		if err := appendKnownHost(path, hostname, key); err != nil {
			return err
		}
		d.Logger.Info().Str("host", hostname).Str("fingerprint", ssh.FingerprintSHA256(key)).Msg("added new host key to known_hosts")
		return nil
	}, nil
}

// isUnknownHost reports a known_hosts miss, as opposed to a key mismatch.
func isUnknownHost(err error) bool {
	var keyErr *knownhosts.KeyError
	return errors.As(err, &keyErr) && len(keyErr.Want) == 0
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening known_hosts %s: %w", path, err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("writing known_hosts %s: %w", path, err)
	}
	return nil
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating known_hosts %s: %w", path, err)
	}
	return f.Close()
}
