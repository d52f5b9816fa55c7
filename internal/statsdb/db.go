package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/yubzen/ballpark/internal/metrics"
)

// FailurePrefix starts every result string produced by a failed query.
const FailurePrefix = "query failed with error: "

var ErrDatabaseMissing = errors.New("statistics database not found")

type Options struct {
	Path     string
	ReadOnly bool
	Logger   *zap.Logger
}

// DB is the process-wide handle to the statistics file. It holds a single
// connection that every query goes through.
type DB struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger
}

func Open(ctx context.Context, opts Options) (*DB, error) {
	info, err := os.Stat(opts.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, opts.Path)
		}
		return nil, fmt.Errorf("stat database %q: %w", opts.Path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrDatabaseMissing, opts.Path)
	}

	conn, err := sql.Open("sqlite3", dsn(opts.Path, opts.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", opts.Path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database %q: %w", opts.Path, err)
	}
	// Ping never reads a page, so a file that is not SQLite only shows up here.
	var tables int
	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read database %q: %w", opts.Path, err)
	}

	return newDB(conn, opts.Path, opts.Logger), nil
}

func newDB(conn *sql.DB, path string, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{conn: conn, path: path, logger: logger}
}

// uriPathEscaper escapes the characters SQLite gives meaning to inside a
// file: URI path. '%' goes first so the other escapes are not doubled.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func dsn(path string, readOnly bool) string {
	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("file:%s?mode=%s", uriPathEscaper.Replace(path), mode)
}

func (db *DB) Path() string {
	return db.path
}

// Execute runs query verbatim and renders every row it returns. Errors never
// escape: they come back as text starting with FailurePrefix.
func (db *DB) Execute(ctx context.Context, query string) (result string) {
	start := time.Now()
	var rowCount int
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		metrics.ObserveQuery(err == nil, time.Since(start))
		if err != nil {
			db.logger.Warn("query failed", zap.String("query", query), zap.Error(err))
			result = FailurePrefix + err.Error()
			return
		}
		db.logger.Debug("query executed",
			zap.Int("rows", rowCount),
			zap.Duration("elapsed", time.Since(start)))
	}()

	var columns []string
	var rows [][]any
	columns, rows, err = db.query(ctx, query)
	if err != nil {
		return ""
	}
	rowCount = len(rows)
	return FormatTable(columns, rows)
}

func (db *DB) query(ctx context.Context, query string) ([]string, [][]any, error) {
	rs, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}
