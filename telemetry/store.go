package telemetry

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// TrackStore persists runs, tracks and summaries in SQLite.
type TrackStore struct {
	conn *sqlx.DB
}

// OpenTrackStore opens or creates a track store at path.
func OpenTrackStore(path string) (*TrackStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open track store: %w", err)
	}

	s := &TrackStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *TrackStore) Close() error {
	if s == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *TrackStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		larvae INTEGER NOT NULL,
		dt REAL NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL DEFAULT '',
		ticks INTEGER NOT NULL DEFAULT 0,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		larva_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		state TEXT NOT NULL,
		head_x REAL NOT NULL,
		head_y REAL NOT NULL,
		joint_x REAL NOT NULL,
		joint_y REAL NOT NULL,
		vel_x REAL NOT NULL,
		vel_y REAL NOT NULL,
		head_angle REAL NOT NULL,
		cast_dir INTEGER NOT NULL,
		concentration REAL NOT NULL,
		p_run_term REAL NOT NULL,
		p_cast_term REAL NOT NULL,
		p_wv REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		larva_id TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		window_end INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		ticks INTEGER NOT NULL,
		crawl_fraction REAL NOT NULL,
		wv_fraction REAL NOT NULL,
		casts_started INTEGER NOT NULL,
		runs_ended INTEGER NOT NULL,
		mean_run_sec REAL NOT NULL,
		mean_concentration REAL NOT NULL,
		dist_to_source REAL NOT NULL,
		path_length REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_larva ON tracks(run_id, larva_id, tick);
	CREATE INDEX IF NOT EXISTS idx_summaries_run ON summaries(run_id, window_end);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// BeginRun registers a run. StartedAt defaults to now.
func (s *TrackStore) BeginRun(run RunRecord) error {
	if run.StartedAt == "" {
		run.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.conn.NamedExec(`INSERT INTO runs
		(id, seed, larvae, dt, started_at, ended_at, ticks, config_yaml)
		VALUES (:id, :seed, :larvae, :dt, :started_at, :ended_at, :ticks, :config_yaml)`,
		run,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// EndRun stamps a run with its final tick count.
func (s *TrackStore) EndRun(runID string, ticks int64) error {
	_, err := s.conn.Exec(
		"UPDATE runs SET ended_at = ?, ticks = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, runID,
	)
	return err
}

// WriteTracks appends track rows in a single transaction.
func (s *TrackStore) WriteTracks(records []TrackRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO tracks
		(run_id, larva_id, tick, time, state, head_x, head_y, joint_x, joint_y,
		 vel_x, vel_y, head_angle, cast_dir, concentration, p_run_term, p_cast_term, p_wv)
		VALUES (:run_id, :larva_id, :tick, :time, :state, :head_x, :head_y, :joint_x, :joint_y,
		 :vel_x, :vel_y, :head_angle, :cast_dir, :concentration, :p_run_term, :p_cast_term, :p_wv)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert track %s@%d: %w", r.LarvaID, r.Tick, err)
		}
	}

	return tx.Commit()
}

// WriteSummaries appends summary rows in a single transaction.
func (s *TrackStore) WriteSummaries(records []SummaryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO summaries
		(run_id, larva_id, window_start, window_end, sim_time, ticks, crawl_fraction,
		 wv_fraction, casts_started, runs_ended, mean_run_sec, mean_concentration,
		 dist_to_source, path_length)
		VALUES (:run_id, :larva_id, :window_start, :window_end, :sim_time, :ticks, :crawl_fraction,
		 :wv_fraction, :casts_started, :runs_ended, :mean_run_sec, :mean_concentration,
		 :dist_to_source, :path_length)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert summary %s@%d: %w", r.LarvaID, r.WindowEnd, err)
		}
	}

	return tx.Commit()
}

// Run returns a stored run.
func (s *TrackStore) Run(runID string) (RunRecord, error) {
	var run RunRecord
	err := s.conn.Get(&run, `SELECT id, seed, larvae, dt, started_at, ended_at, ticks, config_yaml
		FROM runs WHERE id = ?`, runID)
	return run, err
}

// Track returns one larva's rows in tick order.
func (s *TrackStore) Track(runID, larvaID string) ([]TrackRecord, error) {
	var rows []TrackRecord
	err := s.conn.Select(&rows, `SELECT run_id, larva_id, tick, time, state, head_x, head_y,
		joint_x, joint_y, vel_x, vel_y, head_angle, cast_dir, concentration,
		p_run_term, p_cast_term, p_wv
		FROM tracks WHERE run_id = ? AND larva_id = ? ORDER BY tick`,
		runID, larvaID,
	)
	return rows, err
}

// Summaries returns a run's summary rows ordered by window then larva.
func (s *TrackStore) Summaries(runID string) ([]SummaryRecord, error) {
	var rows []SummaryRecord
	err := s.conn.Select(&rows, `SELECT run_id, larva_id, window_start, window_end, sim_time,
		ticks, crawl_fraction, wv_fraction, casts_started, runs_ended, mean_run_sec,
		mean_concentration, dist_to_source, path_length
		FROM summaries WHERE run_id = ? ORDER BY window_end, id`,
		runID,
	)
	return rows, err
}

// StateCounts counts track rows per state for a run.
func (s *TrackStore) StateCounts(runID string) (map[string]int, error) {
	var rows []struct {
		State string `db:"state"`
		N     int    `db:"n"`
	}
	err := s.conn.Select(&rows,
		"SELECT state, COUNT(*) AS n FROM tracks WHERE run_id = ? GROUP BY state",
		runID,
	)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.State] = r.N
	}
	return counts, nil
}
