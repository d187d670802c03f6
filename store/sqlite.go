package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite"

	"github.com/gridrace/gridrace/race/engine"
)

// SQLiteStore persists everything in a single SQLite file. modernc's driver
// is pure Go, so the binary stays cgo-free. Writes are serialized through
// SQLite itself; the store adds no locking of its own.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY churn under WAL.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			data       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS races (
			id           TEXT PRIMARY KEY,
			track_id     TEXT NOT NULL,
			car_ids      TEXT NOT NULL,
			winner_ids   TEXT NOT NULL,
			rankings     TEXT NOT NULL,
			ticks        INTEGER NOT NULL,
			seed         INTEGER NOT NULL,
			play_by_play BLOB NOT NULL,
			tick_stats   TEXT NOT NULL,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_races_created ON races(created_at)`,
		`CREATE TABLE IF NOT EXISTS qvalues (
			car_id TEXT NOT NULL,
			state  TEXT NOT NULL,
			a0 INTEGER NOT NULL, a1 INTEGER NOT NULL, a2 INTEGER NOT NULL,
			a3 INTEGER NOT NULL, a4 INTEGER NOT NULL,
			PRIMARY KEY (car_id, state)
		)`,
		`CREATE TABLE IF NOT EXISTS car_stats (
			car_id      TEXT NOT NULL,
			track_id    TEXT NOT NULL,
			mode        TEXT NOT NULL,
			races       INTEGER NOT NULL DEFAULT 0,
			wins        INTEGER NOT NULL DEFAULT 0,
			finishes    INTEGER NOT NULL DEFAULT 0,
			best_steps  INTEGER NOT NULL DEFAULT 0,
			total_steps INTEGER NOT NULL DEFAULT 0,
			q_updates   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (car_id, track_id, mode)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveTrack(ctx context.Context, rec *TrackRecord) error {
	data, err := json.Marshal(rec.Track)
	if err != nil {
		return fmt.Errorf("marshal track: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tracks (id, name, data, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, string(data), rec.CreatedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) GetTrack(ctx context.Context, id string) (*TrackRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, data, created_at FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

func (s *SQLiteStore) ListTracks(ctx context.Context) ([]*TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, data, created_at FROM tracks ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TrackRecord
	for rows.Next() {
		rec, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*TrackRecord, error) {
	var rec TrackRecord
	var data string
	var createdMs int64
	if err := row.Scan(&rec.ID, &rec.Name, &data, &createdMs); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	rec.Track = &engine.Track{}
	if err := json.Unmarshal([]byte(data), rec.Track); err != nil {
		return nil, fmt.Errorf("unmarshal track %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.UnixMilli(createdMs)
	return &rec, nil
}

func (s *SQLiteStore) SaveRace(ctx context.Context, rec *RaceRecord) error {
	carIDs, err := json.Marshal(rec.CarIDs)
	if err != nil {
		return err
	}
	winners, err := json.Marshal(rec.WinnerIDs)
	if err != nil {
		return err
	}
	rankings, err := json.Marshal(rec.Rankings)
	if err != nil {
		return err
	}
	tickStats, err := json.Marshal(rec.TickStats)
	if err != nil {
		return err
	}
	playByPlay, err := compressLines(rec.PlayByPlay)
	if err != nil {
		return fmt.Errorf("compress play-by-play: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO races
		 (id, track_id, car_ids, winner_ids, rankings, ticks, seed, play_by_play, tick_stats, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TrackID, string(carIDs), string(winners), string(rankings),
		rec.Ticks, int64(rec.Seed), playByPlay, string(tickStats), rec.CreatedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) GetRace(ctx context.Context, id string) (*RaceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, car_ids, winner_ids, rankings, ticks, seed, play_by_play, tick_stats, created_at
		 FROM races WHERE id = ?`, id)
	return scanRace(row)
}

func (s *SQLiteStore) ListRecentRaces(ctx context.Context, limit int, filter RaceFilter) ([]*RaceRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, track_id, car_ids, winner_ids, rankings, ticks, seed, play_by_play, tick_stats, created_at
		 FROM races`
	var args []any
	if filter.TrackID != "" {
		query += ` WHERE track_id = ?`
		args = append(args, filter.TrackID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	// Only the track filter is indexable; car membership lives inside a
	// JSON column and is matched after scanning.
	if filter.CarID == "" {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RaceRecord
	for rows.Next() {
		rec, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func scanRace(row rowScanner) (*RaceRecord, error) {
	var rec RaceRecord
	var carIDs, winners, rankings, tickStats string
	var playByPlay []byte
	var seed, createdMs int64
	err := row.Scan(&rec.ID, &rec.TrackID, &carIDs, &winners, &rankings,
		&rec.Ticks, &seed, &playByPlay, &tickStats, &createdMs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(carIDs), &rec.CarIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(winners), &rec.WinnerIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rankings), &rec.Rankings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tickStats), &rec.TickStats); err != nil {
		return nil, err
	}
	rec.PlayByPlay, err = decompressLines(playByPlay)
	if err != nil {
		return nil, fmt.Errorf("decompress play-by-play %s: %w", rec.ID, err)
	}
	rec.Seed = uint64(seed)
	rec.CreatedAt = time.UnixMilli(createdMs)
	return &rec, nil
}

func (s *SQLiteStore) PruneRaces(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM races WHERE id NOT IN (
			SELECT id FROM races ORDER BY created_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) LoadQTable(ctx context.Context, carID string) (QTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, a0, a1, a2, a3, a4 FROM qvalues WHERE car_id = ?`, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(QTable)
	for rows.Next() {
		var state string
		var row [engine.ActionCount]int
		if err := rows.Scan(&state, &row[0], &row[1], &row[2], &row[3], &row[4]); err != nil {
			return nil, err
		}
		table[engine.StateHash(state)] = row
	}
	return table, rows.Err()
}

func (s *SQLiteStore) SaveQRows(ctx context.Context, carID string, rows QTable) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO qvalues (car_id, state, a0, a1, a2, a3, a4)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for state, row := range rows {
		if _, err := stmt.ExecContext(ctx, carID, string(state),
			row[0], row[1], row[2], row[3], row[4]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ResetQTable(ctx context.Context, carID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM qvalues WHERE car_id = ?`, carID)
	return err
}

func (s *SQLiteStore) RecordRaceStats(ctx context.Context, stats []CarStats) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, delta := range stats {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO car_stats (car_id, track_id, mode, races, wins, finishes, best_steps, total_steps, q_updates)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (car_id, track_id, mode) DO UPDATE SET
				races       = races + excluded.races,
				wins        = wins + excluded.wins,
				finishes    = finishes + excluded.finishes,
				total_steps = total_steps + excluded.total_steps,
				q_updates   = q_updates + excluded.q_updates,
				best_steps  = CASE
					WHEN excluded.best_steps <= 0 THEN best_steps
					WHEN best_steps <= 0 OR excluded.best_steps < best_steps THEN excluded.best_steps
					ELSE best_steps
				END`,
			delta.CarID, delta.TrackID, delta.Mode,
			delta.Races, delta.Wins, delta.Finishes, delta.BestSteps, delta.TotalSteps, delta.QUpdates)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetCarStats(ctx context.Context, carID string) ([]CarStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT car_id, track_id, mode, races, wins, finishes, best_steps, total_steps, q_updates
		 FROM car_stats WHERE car_id = ? ORDER BY track_id, mode`, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CarStats
	for rows.Next() {
		var cs CarStats
		if err := rows.Scan(&cs.CarID, &cs.TrackID, &cs.Mode,
			&cs.Races, &cs.Wins, &cs.Finishes, &cs.BestSteps, &cs.TotalSteps, &cs.QUpdates); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func compressLines(lines []string) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLines(blob []byte) ([]string, error) {
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return strings.Split(string(raw), "\n"), nil
}

var _ Store = (*SQLiteStore)(nil)
