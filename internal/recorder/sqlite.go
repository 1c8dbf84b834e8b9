package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"StockLens/internal/logging"
	"StockLens/internal/model"
)

// SQLiteStore keeps one table per ticker in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logging.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the snapshot endpoint read while a refresh is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite store opened")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// busyTimeout is how long a writer waits for another process holding the write lock.
const busyTimeout = 5 * time.Second

// dsn applies the busy timeout to every pooled connection and makes transactions take the
// write lock on BEGIN, so a writer queues behind another process instead of failing.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_txlock=immediate", dbPath, sep, busyTimeout.Milliseconds())
}

// TableName implements SnapshotStore.
func (s *SQLiteStore) TableName(ticker string) (string, error) {
	return TableName(ticker)
}

// Write replaces the ticker's table with the given series and indicator rows.
// An empty series leaves any existing table untouched.
func (s *SQLiteStore) Write(ticker string, series *model.Series, rows []model.IndicatorRow) error {
	if series.Len() == 0 {
		return nil
	}
	table, err := TableName(ticker)
	if err != nil {
		return err
	}
	joined, err := joinRows(series, rows)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(table)),
		fmt.Sprintf(`CREATE TABLE %s (
			date    TEXT NOT NULL PRIMARY KEY,
			open    REAL NOT NULL,
			high    REAL NOT NULL,
			low     REAL NOT NULL,
			close   REAL NOT NULL,
			volume  REAL NOT NULL,
			sma5    REAL,
			sma25   REAL,
			sma75   REAL,
			kairi25 REAL
		)`, quoteIdent(table)),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("replace table %s: %w", table, err)
		}
	}

	insert, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s
		(date, open, high, low, close, volume, sma5, sma25, sma75, kairi25)
		VALUES (?,?,?,?,?,?,?,?,?,?)`, quoteIdent(table)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for _, r := range joined {
		_, err := insert.Exec(
			r.Date.Format(model.DateLayout), r.Open, r.High, r.Low, r.Close, r.Volume,
			r.SMA5, r.SMA25, r.SMA75, r.Kairi25,
		)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", table, r.Date.Format(model.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug().Str("table", table).Int("rows", series.Len()).Msg("snapshot replaced")
	return nil
}

// Read returns the stored rows for ticker ordered by date.
func (s *SQLiteStore) Read(ticker string) ([]model.SnapshotRow, error) {
	table, err := TableName(ticker)
	if err != nil {
		return nil, err
	}

	var n int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", table, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}

	rows, err := s.db.Query(fmt.Sprintf(`SELECT
		date, open, high, low, close, volume, sma5, sma25, sma75, kairi25
		FROM %s ORDER BY date`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.SnapshotRow
	for rows.Next() {
		var (
			r    model.SnapshotRow
			date string
		)
		if err := rows.Scan(&date, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
			&r.SMA5, &r.SMA25, &r.SMA75, &r.Kairi25); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r.Date, err = time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.logger.Info().Msg("closing sqlite store")
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
