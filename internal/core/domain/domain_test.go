package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPorts(t *testing.T) {
	assert.Equal(t, 3306, DefaultPort(TypeMySQL))
	assert.Equal(t, 3306, DefaultPort(TypeMariaDB))
	assert.Equal(t, 5432, DefaultPort(TypePostgres))
	assert.Equal(t, 9000, DefaultPort(TypeClickHouse))
	assert.Equal(t, 27017, DefaultPort(TypeMongoDB))
	assert.Equal(t, 6379, DefaultPort(TypeRedis))
	assert.Zero(t, DefaultPort(TypeSQLite), "file-based backend has no port")
}

func TestEffectiveHostAndPort(t *testing.T) {
	cfg := ConnectionConfig{Type: TypePostgres}
	assert.Equal(t, "localhost", cfg.EffectiveHost())
	assert.Equal(t, 5432, cfg.EffectivePort())

	cfg.Host = "db.internal"
	cfg.Port = 6432
	assert.Equal(t, "db.internal", cfg.EffectiveHost())
	assert.Equal(t, 6432, cfg.EffectivePort())
}

func TestSSHEnabled(t *testing.T) {
	ssh := &SSHConfig{Enabled: true, Host: "bastion", AuthMethod: SSHAuthPassword}

	assert.False(t, ConnectionConfig{Type: TypePostgres}.SSHEnabled())
	assert.True(t, ConnectionConfig{Type: TypePostgres, SSH: ssh}.SSHEnabled())
	assert.False(t, ConnectionConfig{Type: TypePostgres, SSH: &SSHConfig{Enabled: false}}.SSHEnabled())
	assert.False(t, ConnectionConfig{Type: TypeSQLite, SSH: ssh}.SSHEnabled(),
		"file-based backends never tunnel")
}

func TestValidate(t *testing.T) {
	valid := ConnectionConfig{ID: "c1", Type: TypePostgres}
	assert.NoError(t, valid.Validate())

	assert.Error(t, ConnectionConfig{Type: TypePostgres}.Validate(), "id required")

	err := ConnectionConfig{ID: "c1", Type: "oracle"}.Validate()
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)

	missingHost := ConnectionConfig{
		ID:   "c1",
		Type: TypePostgres,
		SSH:  &SSHConfig{Enabled: true, AuthMethod: SSHAuthPassword},
	}
	assert.Error(t, missingHost.Validate())

	badAuth := ConnectionConfig{
		ID:   "c1",
		Type: TypePostgres,
		SSH:  &SSHConfig{Enabled: true, Host: "bastion", AuthMethod: "kerberos"},
	}
	assert.Error(t, badAuth.Validate())
}

func TestTypeValid(t *testing.T) {
	for _, tp := range []DatabaseType{
		TypeSQLite, TypeMySQL, TypeMariaDB, TypePostgres,
		TypeClickHouse, TypeMongoDB, TypeRedis,
	} {
		assert.True(t, tp.Valid(), string(tp))
	}
	assert.False(t, DatabaseType("oracle").Valid())
	assert.False(t, DatabaseType("").Valid())
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")

	connErr := &ConnectionError{Backend: TypePostgres, Err: cause}
	assert.ErrorIs(t, connErr, cause)
	assert.Contains(t, connErr.Error(), "postgres")

	tunErr := &TunnelError{ConnectionID: "c1", Err: cause}
	assert.ErrorIs(t, tunErr, cause)
	assert.Contains(t, tunErr.Error(), "c1")

	wrapped := fmt.Errorf("outer: %w", connErr)
	var target *ConnectionError
	assert.ErrorAs(t, wrapped, &target)
}

func TestErrorMessage(t *testing.T) {
	assert.Empty(t, ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
	assert.Equal(t, "plain string", ErrorMessage("plain string"))
	assert.Equal(t, "42", ErrorMessage(42))
}
