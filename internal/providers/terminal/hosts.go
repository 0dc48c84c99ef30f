package terminal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sshconfig "github.com/kevinburke/ssh_config"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = 22

// HostResolver maps ssh_config aliases to the real host name and port.
type HostResolver struct {
	get func(alias, key string) string
}

// NewHostResolver reads the operator's ~/.ssh/config and /etc/ssh/ssh_config.
func NewHostResolver() *HostResolver {
	return &HostResolver{get: sshconfig.Get}
}

// NewHostResolverFrom decodes a config file's contents.
func NewHostResolverFrom(r io.Reader) (*HostResolver, error) {
	cfg, err := sshconfig.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh config: %w", err)
	}
	return &HostResolver{get: func(alias, key string) string {
		v, _ := cfg.Get(alias, key)
		return v
	}}, nil
}

// Resolve returns the dial host and port for a target. An explicit port
// always wins; otherwise the config's Port applies, falling back to 22.
func (r *HostResolver) Resolve(host string, port int) (string, int) {
	if r == nil || r.get == nil {
		if port == 0 {
			port = defaultSSHPort
		}
		return host, port
	}

	alias := host
	if h := r.get(alias, "HostName"); h != "" {
		host = h
	}
	if port == 0 {
		if p, err := strconv.Atoi(r.get(alias, "Port")); err == nil && p > 0 {
			port = p
		} else {
			port = defaultSSHPort
		}
	}
	return host, port
}

// HostKeyCallback verifies servers against a known_hosts file. With no
// file configured every key is accepted, which matches a home network
// panel talking to its own machines, and the choice is logged once.
func HostKeyCallback(knownHostsFile string, logger *zap.Logger) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		logger.Warn("No known_hosts file configured, accepting any host key")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if strings.HasPrefix(knownHostsFile, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		knownHostsFile = filepath.Join(home, knownHostsFile[1:])
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", knownHostsFile, err)
	}
	return cb, nil
}
