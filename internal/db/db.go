// Package db stores finalized benchmark summaries in sqlite and exposes
// them to tailsql for ad-hoc queries.
package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/featurebench/internal/runstats"
)

type DB struct {
	*sql.DB
	path   string
	logger *slog.Logger
}

// NewDB opens (or creates) the results database at path and migrates it to
// the latest schema.
func NewDB(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Per-connection pragmas only hold when there is a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Write records one summary and its per-frame counts. It makes DB usable
// as a report sink.
func (db *DB) Write(s runstats.Summary) error {
	keypoints, err := json.Marshal(nonNil(s.NumKeypoints))
	if err != nil {
		return err
	}
	matches, err := json.Marshal(nonNil(s.NumMatches))
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (
			run_id, detector, descriptor, matcher, selector, frames,
			avg_detection_ns, avg_description_ns,
			neighborhood_mean, neighborhood_variance,
			num_keypoints, num_matches, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Detector, s.Descriptor, s.Matcher, s.Selector, s.Frames,
		int64(s.AvgDetection), int64(s.AvgDescription),
		nullFloat(s.NeighborhoodMean), nullFloat(s.NeighborhoodVariance),
		string(keypoints), string(matches),
		s.StartedAt.UTC().Format(time.RFC3339Nano), s.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", s.RunID, err)
	}

	for i, n := range s.NumKeypoints {
		var pairMatches sql.NullInt64
		if i > 0 && i-1 < len(s.NumMatches) {
			pairMatches = sql.NullInt64{Int64: int64(s.NumMatches[i-1]), Valid: true}
		}
		if _, err := tx.Exec(
			"INSERT INTO run_frames (run_id, position, keypoints, matches) VALUES (?, ?, ?, ?)",
			s.RunID, i, n, pairMatches,
		); err != nil {
			return fmt.Errorf("failed to insert frame %d of run %s: %w", i, s.RunID, err)
		}
	}
	return tx.Commit()
}

// Summaries returns up to limit stored summaries in insertion order.
// A limit <= 0 returns all of them.
func (db *DB) Summaries(limit int) ([]runstats.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT run_id, detector, descriptor, matcher, selector, frames,
			avg_detection_ns, avg_description_ns, neighborhood_mean, neighborhood_variance,
			num_keypoints, num_matches, started_at, finished_at
		FROM runs ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []runstats.Summary
	for rows.Next() {
		var (
			s                  runstats.Summary
			detNs, descNs      int64
			mean, variance     sql.NullFloat64
			keypoints, matches string
			started, finished  string
		)
		if err := rows.Scan(
			&s.RunID, &s.Detector, &s.Descriptor, &s.Matcher, &s.Selector, &s.Frames,
			&detNs, &descNs, &mean, &variance,
			&keypoints, &matches, &started, &finished,
		); err != nil {
			return nil, err
		}
		s.AvgDetection = time.Duration(detNs)
		s.AvgDescription = time.Duration(descNs)
		s.NeighborhoodMean = floatOrNaN(mean)
		s.NeighborhoodVariance = floatOrNaN(variance)
		if err := json.Unmarshal([]byte(keypoints), &s.NumKeypoints); err != nil {
			return nil, fmt.Errorf("failed to parse num_keypoints of run %s: %w", s.RunID, err)
		}
		if err := json.Unmarshal([]byte(matches), &s.NumMatches); err != nil {
			return nil, fmt.Errorf("failed to parse num_matches of run %s: %w", s.RunID, err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if s.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Benchmark results",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "featurebench-backup-")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup dir: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			db.logger.Warn("failed to remove backup dir", "dir", dir, "err", err)
		}
	}()

	name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		db.logger.Error("failed to stream backup", "err", err)
	}
}
