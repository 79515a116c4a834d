// Package tunnel makes remote database endpoints reachable through SSH by
// exposing each one as a local 127.0.0.1:<port> listener. Drivers connect to
// the local endpoint and stay oblivious to SSH; this package is the only
// place that understands forwarding semantics.
package tunnel

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// negotiationTimeout bounds the SSH connection attempt.
const negotiationTimeout = 30 * time.Second

// entry owns the resources of one tunnel: the SSH session, the local
// listener, and the bound port. Listeners and sessions are never shared
// across connection ids.
type entry struct {
	client    *ssh.Client
	listener  net.Listener
	localPort int
	closeOnce sync.Once
}

func (e *entry) close() {
	e.closeOnce.Do(func() {
		_ = e.listener.Close()
		_ = e.client.Close()
	})
}

// Manager is the tunnel registry: at most one tunnel per connection id.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	tunnels map[string]*entry
}

// NewManager creates an empty tunnel registry.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger,
		tunnels: make(map[string]*entry),
	}
}

// Open establishes a tunnel for the given connection id and returns the
// local port drivers should dial. A second Open for the same id is
// idempotent: it returns the existing port without opening another listener.
func (m *Manager) Open(id string, cfg domain.SSHConfig, remoteHost string, remotePort int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tunnels[id]; ok {
		return e.localPort, nil
	}

	clientCfg, err := clientConfig(cfg)
	if err != nil {
		return 0, &domain.TunnelError{ConnectionID: id, Err: err}
	}

	sshAddr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", sshPort(cfg)))
	client, err := ssh.Dial("tcp", sshAddr, clientCfg)
	if err != nil {
		return 0, &domain.TunnelError{ConnectionID: id, Err: fmt.Errorf("dialing %s: %w", sshAddr, err)}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return 0, &domain.TunnelError{ConnectionID: id, Err: fmt.Errorf("binding local listener: %w", err)}
	}

	e := &entry{
		client:    client,
		listener:  listener,
		localPort: listener.Addr().(*net.TCPAddr).Port,
	}
	m.tunnels[id] = e

	remoteAddr := net.JoinHostPort(remoteHost, fmt.Sprintf("%d", remotePort))
	go m.acceptLoop(id, e, remoteAddr)

	// The SSH session can die underneath us (network drop, server restart).
	// Drop the registry entry so Has reflects reality instead of a dead
	// session.
	go func() {
		_ = client.Wait()
		m.mu.Lock()
		if cur, ok := m.tunnels[id]; ok && cur == e {
			delete(m.tunnels, id)
			m.logger.Warn("ssh session closed, tunnel removed",
				slog.String("connection_id", id),
			)
		}
		m.mu.Unlock()
		e.close()
	}()

	m.logger.Info("tunnel opened",
		slog.String("connection_id", id),
		slog.String("ssh_addr", sshAddr),
		slog.String("remote_addr", remoteAddr),
		slog.Int("local_port", e.localPort),
	)

	return e.localPort, nil
}

// acceptLoop forwards every inbound local connection through an
// SSH-forwarded channel to the remote endpoint.
func (m *Manager) acceptLoop(id string, e *entry, remoteAddr string) {
	for {
		local, err := e.listener.Accept()
		if err != nil {
			// Listener closed; the tunnel is going away.
			return
		}

		go func() {
			remote, err := e.client.Dial("tcp", remoteAddr)
			if err != nil {
				// A failed forward kills only this local socket; the SSH
				// session stays usable for subsequent connections.
				m.logger.Warn("ssh forward failed",
					slog.String("connection_id", id),
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()),
				)
				_ = local.Close()
				return
			}
			pipe(local, remote)
		}()
	}
}

// pipe copies bytes in both directions until either side closes.
func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(a, b)
		_ = a.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(b, a)
		_ = b.Close()
	}()
	wg.Wait()
}

// Close tears down the tunnel for id. It is a no-op for unknown ids.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	e, ok := m.tunnels[id]
	if ok {
		delete(m.tunnels, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	e.close()
	m.logger.Info("tunnel closed", slog.String("connection_id", id))
}

// CloseAll tears down every registered tunnel; used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := make(map[string]*entry, len(m.tunnels))
	for id, e := range m.tunnels {
		entries[id] = e
	}
	m.tunnels = make(map[string]*entry)
	m.mu.Unlock()

	var g errgroup.Group
	for id, e := range entries {
		id, e := id, e
		g.Go(func() error {
			e.close()
			m.logger.Info("tunnel closed", slog.String("connection_id", id))
			return nil
		})
	}
	_ = g.Wait()
}

// Has reports whether a tunnel is registered for id.
func (m *Manager) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tunnels[id]
	return ok
}

// LocalPort returns the bound local port for id, or 0 when no tunnel exists.
func (m *Manager) LocalPort(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tunnels[id]; ok {
		return e.localPort
	}
	return 0
}

func sshPort(cfg domain.SSHConfig) int {
	if cfg.Port > 0 {
		return cfg.Port
	}
	return 22
}

// clientConfig builds the SSH client config from the connection's settings.
// Host keys are not verified: the trust decision belongs to the user who
// typed the hostname into the client, matching desktop tooling behavior.
func clientConfig(cfg domain.SSHConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	switch cfg.AuthMethod {
	case domain.SSHAuthPassword:
		auth = append(auth, ssh.Password(cfg.Password))
	case domain.SSHAuthPrivateKey:
		var signer ssh.Signer
		var err error
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(cfg.PrivateKey), []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	default:
		return nil, fmt.Errorf("unknown ssh auth method %q", cfg.AuthMethod)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         negotiationTimeout,
	}, nil
}
