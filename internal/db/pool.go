package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/S4DIB/news-hud-sub001/internal/config"
	"github.com/S4DIB/news-hud-sub001/internal/globaltime"
)

var ErrNoRows = sql.ErrNoRows

var errPoolNotInitialized = errors.New("database pool is not initialized")

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

// CommandTag reports the effect of an Exec.
type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

type Row struct {
	row *sql.Row
	err error
}

func (r *Row) Scan(dest ...any) error {
	if r == nil {
		return ErrNoRows
	}
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r == nil || r.rows == nil {
		return
	}
	_ = r.rows.Close()
}

// Tx is the subset of Pool available inside WithTx.
type Tx interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

// rawSQL runs hand-written SQL with $n placeholders through gorm.
type rawSQL struct {
	gdb *gorm.DB
}

func (q rawSQL) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if q.gdb == nil {
		return &Row{err: errPoolNotInitialized}
	}
	return &Row{row: q.gdb.WithContext(ctx).Raw(query, args...).Row()}
}

func (q rawSQL) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if q.gdb == nil {
		return nil, errPoolNotInitialized
	}
	rows, err := q.gdb.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (q rawSQL) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	if q.gdb == nil {
		return CommandTag{}, errPoolNotInitialized
	}
	res := q.gdb.WithContext(ctx).Exec(query, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}

// Pool is the Postgres handle shared by every store query.
type Pool struct {
	rawSQL
	sqlDB *sql.DB
}

// NewPool opens Postgres through gorm, applies pool limits and migrates the
// news schema.
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  logger.Default.LogMode(gormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: globaltime.UTC,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := max(int(cfg.DBMaxConns), 1)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pool := &Pool{rawSQL: rawSQL{gdb: gdb}, sqlDB: sqlDB}
	if err := pool.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate news schema: %w", err)
	}
	return pool, nil
}

// WithTx runs fn in one transaction, committing when fn returns nil.
func (p *Pool) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if p == nil || p.gdb == nil {
		return errPoolNotInitialized
	}
	return p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(rawSQL{gdb: tx})
	})
}

// Ping checks connectivity for health probes.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolNotInitialized
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// gormLogLevel keeps gorm quieter than the application logger: SQL traces only
// at debug and below.
func gormLogLevel(appLogLevel, environment string) logger.LogLevel {
	raw := strings.ToLower(strings.TrimSpace(appLogLevel))
	if raw == "silent" {
		return logger.Silent
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
	switch {
	case level == zerolog.NoLevel:
		return logger.Warn
	case level <= zerolog.DebugLevel:
		return logger.Info
	case level <= zerolog.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}
