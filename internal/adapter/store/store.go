// Package store persists saved connections and query history in an embedded
// SQLite database. Credential material is encrypted at rest.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/crypto"
)

// ErrNotFound is returned when no saved connection exists for an id.
var ErrNotFound = errors.New("saved connection not found")

// savedConnection is the gorm model for one saved connection. Secrets are
// AES-GCM sealed before they touch disk.
type savedConnection struct {
	ID       string `gorm:"primaryKey"`
	Name     string
	Type     string
	Host     string
	Port     int
	Database string
	Username string

	EncryptedPassword []byte

	TLSEnabled  bool
	TLSInsecure bool
	TLSCACert   string

	SSHEnabled             bool
	SSHHost                string
	SSHPort                int
	SSHUsername            string
	SSHAuthMethod          string
	EncryptedSSHPassword   []byte
	EncryptedSSHPrivateKey []byte
	EncryptedSSHPassphrase []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (savedConnection) TableName() string { return "connections" }

// queryHistoryEntry is the gorm model for one executed query.
type queryHistoryEntry struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	ConnectionID    string `gorm:"index"`
	SQL             string
	ExecutionTimeMs int64
	ExecutedAt      time.Time
}

func (queryHistoryEntry) TableName() string { return "query_history" }

// Store is the embedded persistence layer. It implements port.ConfigStore
// and port.HistoryRepository.
type Store struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// Open opens (and migrates) the store at path. Use ":memory:" in tests.
func Open(path string, cipher *crypto.Cipher) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.AutoMigrate(&savedConnection{}, &queryHistoryEntry{}); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &Store{db: db, cipher: cipher}, nil
}

// SaveConnection inserts or updates a saved connection.
func (s *Store) SaveConnection(ctx context.Context, cfg domain.ConnectionConfig) error {
	rec, err := s.toRecord(cfg)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

// GetConnectionConfig loads one saved connection with decrypted secrets.
// Implements port.ConfigStore.
func (s *Store) GetConnectionConfig(ctx context.Context, id string) (*domain.ConnectionConfig, error) {
	var rec savedConnection
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading connection %s: %w", id, err)
	}
	return s.fromRecord(rec)
}

// ListConnections returns every saved connection, secrets decrypted.
func (s *Store) ListConnections(ctx context.Context) ([]domain.ConnectionConfig, error) {
	var recs []savedConnection
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	out := make([]domain.ConnectionConfig, 0, len(recs))
	for _, rec := range recs {
		cfg, err := s.fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, nil
}

// DeleteConnection removes a saved connection. Unknown ids are a no-op.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&savedConnection{}, "id = ?", id).Error
}

// InsertBatch writes query log events in one transaction. Implements
// port.HistoryRepository.
func (s *Store) InsertBatch(ctx context.Context, entries []domain.QueryLogEvent) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]queryHistoryEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, queryHistoryEntry{
			ConnectionID:    e.ConnectionID,
			SQL:             e.SQL,
			ExecutionTimeMs: e.ExecutionTime,
			ExecutedAt:      e.Timestamp,
		})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// ListQueryHistory returns the most recent history entries for a connection.
func (s *Store) ListQueryHistory(ctx context.Context, connectionID string, limit int) ([]domain.QueryLogEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []queryHistoryEntry
	err := s.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing query history: %w", err)
	}

	out := make([]domain.QueryLogEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.QueryLogEvent{
			ConnectionID:  r.ConnectionID,
			SQL:           r.SQL,
			ExecutionTime: r.ExecutionTimeMs,
			Timestamp:     r.ExecutedAt,
		})
	}
	return out, nil
}

func (s *Store) toRecord(cfg domain.ConnectionConfig) (*savedConnection, error) {
	rec := &savedConnection{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Type:     string(cfg.Type),
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		Username: cfg.Username,
	}

	var err error
	if rec.EncryptedPassword, err = s.cipher.EncryptString(cfg.Password); err != nil {
		return nil, fmt.Errorf("sealing password: %w", err)
	}

	if cfg.TLS != nil {
		rec.TLSEnabled = cfg.TLS.Enabled
		rec.TLSInsecure = cfg.TLS.InsecureSkipVerify
		rec.TLSCACert = cfg.TLS.CACert
	}

	if cfg.SSH != nil {
		rec.SSHEnabled = cfg.SSH.Enabled
		rec.SSHHost = cfg.SSH.Host
		rec.SSHPort = cfg.SSH.Port
		rec.SSHUsername = cfg.SSH.Username
		rec.SSHAuthMethod = string(cfg.SSH.AuthMethod)
		if rec.EncryptedSSHPassword, err = s.cipher.EncryptString(cfg.SSH.Password); err != nil {
			return nil, fmt.Errorf("sealing ssh password: %w", err)
		}
		if rec.EncryptedSSHPrivateKey, err = s.cipher.EncryptString(cfg.SSH.PrivateKey); err != nil {
			return nil, fmt.Errorf("sealing ssh private key: %w", err)
		}
		if rec.EncryptedSSHPassphrase, err = s.cipher.EncryptString(cfg.SSH.Passphrase); err != nil {
			return nil, fmt.Errorf("sealing ssh passphrase: %w", err)
		}
	}

	return rec, nil
}

func (s *Store) fromRecord(rec savedConnection) (*domain.ConnectionConfig, error) {
	cfg := &domain.ConnectionConfig{
		ID:       rec.ID,
		Name:     rec.Name,
		Type:     domain.DatabaseType(rec.Type),
		Host:     rec.Host,
		Port:     rec.Port,
		Database: rec.Database,
		Username: rec.Username,
	}

	var err error
	if cfg.Password, err = s.cipher.DecryptString(rec.EncryptedPassword); err != nil {
		return nil, fmt.Errorf("opening password for %s: %w", rec.ID, err)
	}

	if rec.TLSEnabled || rec.TLSCACert != "" {
		cfg.TLS = &domain.TLSConfig{
			Enabled:            rec.TLSEnabled,
			InsecureSkipVerify: rec.TLSInsecure,
			CACert:             rec.TLSCACert,
		}
	}

	if rec.SSHEnabled {
		ssh := &domain.SSHConfig{
			Enabled:    true,
			Host:       rec.SSHHost,
			Port:       rec.SSHPort,
			Username:   rec.SSHUsername,
			AuthMethod: domain.SSHAuthMethod(rec.SSHAuthMethod),
		}
		if ssh.Password, err = s.cipher.DecryptString(rec.EncryptedSSHPassword); err != nil {
			return nil, fmt.Errorf("opening ssh password for %s: %w", rec.ID, err)
		}
		if ssh.PrivateKey, err = s.cipher.DecryptString(rec.EncryptedSSHPrivateKey); err != nil {
			return nil, fmt.Errorf("opening ssh private key for %s: %w", rec.ID, err)
		}
		if ssh.Passphrase, err = s.cipher.DecryptString(rec.EncryptedSSHPassphrase); err != nil {
			return nil, fmt.Errorf("opening ssh passphrase for %s: %w", rec.ID, err)
		}
		cfg.SSH = ssh
	}

	return cfg, nil
}
