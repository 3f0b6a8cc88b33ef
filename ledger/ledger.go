package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/acquire"
	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/ymusic"
)

const timeLayout = time.RFC3339Nano

var ErrRunNotFound = errors.New("run not found")

// Store keeps a history of acquisition runs in a sqlite database. It
// implements acquire.Recorder.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ acquire.Recorder = (*Store)(nil)

func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	flawP := flaw.P{"path": path}

	db, err := sql.Open("sqlite3", path)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to open ledger database: %v", err)).Append(flawP)
	}
	// A single connection keeps :memory: databases shared between calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		_ = db.Close()
		return nil, flaw.From(fmt.Errorf("failed to ping ledger database: %v", err)).Append(flawP)
	}

	s := &Store{db: db, logger: logger.With().Str("module", "ledger").Logger()}
	if err := s.migrate(ctx); nil != err {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to close ledger database: %v", err)).Append(flawP)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL DEFAULT '',
	playlist_key TEXT NOT NULL DEFAULT '',
	playlist_title TEXT NOT NULL DEFAULT '',
	dir TEXT NOT NULL DEFAULT '',
	successful INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	kind TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL DEFAULT '',
	finished_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS playlists (
	key TEXT PRIMARY KEY,
	ref TEXT NOT NULL,
	title TEXT NOT NULL,
	owner TEXT NOT NULL,
	track_count INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS playlist_tracks (
	playlist_key TEXT NOT NULL,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	PRIMARY KEY (playlist_key, position)
);

CREATE TABLE IF NOT EXISTS track_outcomes (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	track_id TEXT NOT NULL,
	success INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	bytes_written INTEGER NOT NULL,
	codec TEXT NOT NULL,
	bitrate_kbps INTEGER NOT NULL,
	path TEXT NOT NULL,
	error_kind TEXT NOT NULL,
	error_message TEXT NOT NULL,
	PRIMARY KEY (run_id, position, track_id)
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to migrate ledger database: %v", err)).Append(flawP)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if nil != err {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordPlaylist stores the playlist and its tracks and links the run to it.
func (s *Store) RecordPlaylist(ctx context.Context, runID string, p *ymusic.Playlist, tracks []ymusic.TrackMetadata) (err error) {
	flawP := flaw.P{"run_id": runID, "playlist": p.FlawP()}

	tx, err := s.db.BeginTx(ctx, nil)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to begin transaction: %v", err)).Append(flawP)
	}
	defer func() {
		if nil != err {
			if rollbackErr := tx.Rollback(); nil != rollbackErr && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.Warn().Err(rollbackErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	key := p.Ref.Key()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (key, ref, title, owner, track_count, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			ref=excluded.ref,
			title=excluded.title,
			owner=excluded.owner,
			track_count=excluded.track_count,
			updated_at=excluded.updated_at
	`, key, p.Ref.String(), p.Title, p.Owner, p.TrackCount, formatTime(time.Now())); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to save playlist: %v", err)).Append(flawP)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_key = ?", key); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to clear playlist tracks: %v", err)).Append(flawP)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_key, position, track_id, title, artist, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to prepare playlist track statement: %v", err)).Append(flawP)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(ctx, key, t.Position, t.ID, t.Title, t.ArtistDisplay, t.DurationSeconds); nil != err {
			flawP["track_id"] = t.ID
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return flaw.From(fmt.Errorf("failed to save playlist track: %v", err)).Append(flawP)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, playlist_key, playlist_title) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET playlist_key=excluded.playlist_key, playlist_title=excluded.playlist_title
	`, runID, key, p.Title); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to link run to playlist: %v", err)).Append(flawP)
	}

	if err := tx.Commit(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to commit transaction: %v", err)).Append(flawP)
	}
	return nil
}

func (s *Store) RecordTrack(ctx context.Context, runID string, r acquire.TrackResult) error {
	o := r.Outcome
	errMessage := ""
	if nil != o.Err {
		errMessage = o.Err.Error()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO track_outcomes (
			run_id, position, track_id, success, skipped, bytes_written,
			codec, bitrate_kbps, path, error_kind, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		r.Track.Position,
		r.Track.ID,
		boolInt(o.Success),
		boolInt(o.Skipped),
		o.BytesWritten,
		o.Codec,
		o.BitrateKbps,
		o.Path,
		string(o.ErrorKind),
		errMessage,
	); nil != err {
		flawP := flaw.P{"run_id": runID, "track_id": r.Track.ID, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to save track outcome: %v", err)).Append(flawP)
	}
	return nil
}

func (s *Store) RecordSummary(ctx context.Context, sum acquire.Summary) error {
	playlistKey, playlistTitle := "", ""
	if nil != sum.Playlist {
		playlistKey, playlistTitle = sum.Playlist.Ref.Key(), sum.Playlist.Title
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, identifier, playlist_key, playlist_title, dir, successful, failed, skipped,
			success, kind, message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identifier=excluded.identifier,
			playlist_key=excluded.playlist_key,
			playlist_title=excluded.playlist_title,
			dir=excluded.dir,
			successful=excluded.successful,
			failed=excluded.failed,
			skipped=excluded.skipped,
			success=excluded.success,
			kind=excluded.kind,
			message=excluded.message,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at
	`,
		sum.RunID,
		sum.Identifier,
		playlistKey,
		playlistTitle,
		sum.Dir,
		sum.Successful,
		sum.Failed,
		sum.Skipped,
		boolInt(sum.Success),
		string(sum.Kind),
		sum.Message,
		formatTime(sum.StartedAt),
		formatTime(sum.FinishedAt),
	); nil != err {
		flawP := flaw.P{"run_id": sum.RunID, "err_debug_tree": errutil.Tree(err).FlawP()}
		return flaw.From(fmt.Errorf("failed to save run summary: %v", err)).Append(flawP)
	}
	return nil
}
