package domain

import "fmt"

// DatabaseType identifies one of the supported backends.
type DatabaseType string

const (
	TypeSQLite     DatabaseType = "sqlite"
	TypeMySQL      DatabaseType = "mysql"
	TypeMariaDB    DatabaseType = "mariadb"
	TypePostgres   DatabaseType = "postgres"
	TypeClickHouse DatabaseType = "clickhouse"
	TypeMongoDB    DatabaseType = "mongodb"
	TypeRedis      DatabaseType = "redis"
)

// defaultPorts is the single source of truth for per-backend default ports.
// SQLite is file-based and has no port.
var defaultPorts = map[DatabaseType]int{
	TypeMySQL:      3306,
	TypeMariaDB:    3306,
	TypePostgres:   5432,
	TypeClickHouse: 9000,
	TypeMongoDB:    27017,
	TypeRedis:      6379,
}

// DefaultPort returns the conventional port for a backend type, or 0 for
// file-based backends.
func DefaultPort(t DatabaseType) int {
	return defaultPorts[t]
}

// IsFileBased reports whether the backend is an embedded, file-backed engine
// that never involves the network (and therefore never an SSH tunnel).
func (t DatabaseType) IsFileBased() bool {
	return t == TypeSQLite
}

// Valid reports whether t is one of the seven supported backends.
func (t DatabaseType) Valid() bool {
	switch t {
	case TypeSQLite, TypeMySQL, TypeMariaDB, TypePostgres, TypeClickHouse, TypeMongoDB, TypeRedis:
		return true
	}
	return false
}

// SSHAuthMethod selects how the SSH session authenticates.
type SSHAuthMethod string

const (
	SSHAuthPassword   SSHAuthMethod = "password"
	SSHAuthPrivateKey SSHAuthMethod = "privateKey"
)

// SSHConfig carries the settings for tunneling a connection through SSH.
type SSHConfig struct {
	Enabled    bool          `json:"enabled"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Username   string        `json:"username"`
	AuthMethod SSHAuthMethod `json:"authMethod"`
	Password   string        `json:"password,omitempty"`
	PrivateKey string        `json:"privateKey,omitempty"`
	Passphrase string        `json:"passphrase,omitempty"`
}

// TLSConfig carries optional TLS settings for backends that support them.
type TLSConfig struct {
	Enabled            bool   `json:"enabled"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify"`
	CACert             string `json:"caCert,omitempty"`
}

// ConnectionConfig describes a single logical connection. It is treated as
// immutable by the core: components that need to rewrite the target (for
// example to point a driver at a tunnel's local endpoint) work on a copy.
type ConnectionConfig struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Type     DatabaseType `json:"type"`
	Host     string       `json:"host"`
	Port     int          `json:"port"`
	Database string       `json:"database"`
	Username string       `json:"username"`
	Password string       `json:"password,omitempty"`
	TLS      *TLSConfig   `json:"tls,omitempty"`
	SSH      *SSHConfig   `json:"ssh,omitempty"`
}

// EffectivePort returns the explicit port, or the backend default when the
// config omits one.
func (c ConnectionConfig) EffectivePort() int {
	if c.Port > 0 {
		return c.Port
	}
	return DefaultPort(c.Type)
}

// EffectiveHost returns the explicit host, defaulting to localhost.
func (c ConnectionConfig) EffectiveHost() string {
	if c.Host != "" {
		return c.Host
	}
	return "localhost"
}

// SSHEnabled reports whether this connection should be tunneled. File-based
// backends never tunnel regardless of the flag.
func (c ConnectionConfig) SSHEnabled() bool {
	return c.SSH != nil && c.SSH.Enabled && !c.Type.IsFileBased()
}

// Validate checks the fields the core depends on.
func (c ConnectionConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("connection id is required")
	}
	if !c.Type.Valid() {
		return &UnsupportedTypeError{Type: string(c.Type)}
	}
	if c.SSHEnabled() {
		if c.SSH.Host == "" {
			return fmt.Errorf("ssh host is required when ssh is enabled")
		}
		switch c.SSH.AuthMethod {
		case SSHAuthPassword, SSHAuthPrivateKey:
		default:
			return fmt.Errorf("unknown ssh auth method %q", c.SSH.AuthMethod)
		}
	}
	return nil
}
