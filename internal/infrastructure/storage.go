package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/architeacher/svc-icqueue/internal/config"
)

const postgresDriver = "postgres"

var errStorageClosed = errors.New("storage is not initialized")

// Storage owns the Postgres connection pool backing the outbox.
type Storage struct {
	db *sqlx.DB
}

// NewStorage opens the pool lazily; the first query dials the database.
func NewStorage(cfg config.StorageConfig) (*Storage, error) {
	db, err := sqlx.Open(postgresDriver, DataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &Storage{db: db}, nil
}

// NewStorageFromDB wraps an existing pool.
func NewStorageFromDB(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) GetDB() (*sqlx.DB, error) {
	if s == nil || s.db == nil {
		return nil, errStorageClosed
	}

	return s.db, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	db, err := s.GetDB()
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// DataSourceName builds a lib/pq connection URL.
func DataSourceName(cfg config.StorageConfig) string {
	query := url.Values{}
	query.Set("sslmode", cfg.SSLMode)

	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}

	dsn := url.URL{
		Scheme:   postgresDriver,
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}

	return dsn.String()
}
