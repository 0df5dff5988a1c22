package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"switchmonitor/internal/config"
	"switchmonitor/internal/models"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS switch_status (
	id INT AUTO_INCREMENT PRIMARY KEY,
	ip VARCHAR(45) NOT NULL,
	name VARCHAR(50) NOT NULL,
	status ENUM('UP', 'DOWN') NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	INDEX idx_ip (ip),
	INDEX idx_timestamp (timestamp)
)`
	insertSQL = "INSERT INTO switch_status (ip, name, status, timestamp) VALUES (?, ?, ?, ?)"
	recentSQL = "SELECT id, ip, name, status, timestamp FROM switch_status ORDER BY timestamp DESC, id DESC LIMIT ?"

	connectMaxElapsed = 30 * time.Second
)

// SQLStore writes transitions to the switch_status table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenMySQL connects to MySQL, retrying the initial ping with exponential
// backoff, and makes sure the switch_status table exists.
func OpenMySQL(ctx context.Context, cfg config.MySQL) (*SQLStore, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	err = backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Printf("mysql ping failed: %v", err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	store := NewSQLStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("Connected to MySQL at %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return store, nil
}

func mysqlDSN(cfg config.MySQL) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Timeout = 5 * time.Second
	return mc.FormatDSN()
}

// EnsureSchema creates the switch_status table and its indexes if missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create switch_status: %w", err)
	}
	return nil
}

// Name implements Sink.
func (s *SQLStore) Name() string { return "mysql" }

// Record inserts one transition row.
func (s *SQLStore) Record(ctx context.Context, ev models.TransitionEvent) error {
	_, err := s.db.ExecContext(ctx, insertSQL,
		ev.Device.IP, ev.Device.Name, string(ev.NewStatus), ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert switch_status: %w", err)
	}
	return nil
}

// Recent returns the newest limit rows.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]models.TransitionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query switch_status: %w", err)
	}
	defer rows.Close()

	var out []models.TransitionRecord
	for rows.Next() {
		var (
			rec    models.TransitionRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.IP, &rec.Name, &status, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan switch_status: %w", err)
		}
		rec.Status = models.Status(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate switch_status: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
