package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/ymusic"
)

type Run struct {
	ID            string
	Identifier    string
	PlaylistTitle string
	Dir           string
	Successful    int
	Failed        int
	Skipped       int
	Success       bool
	Kind          ymusic.ErrorKind
	Message       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

type TrackOutcome struct {
	Position     int
	TrackID      string
	Success      bool
	Skipped      bool
	BytesWritten int64
	Codec        string
	BitrateKbps  int
	Path         string
	ErrorKind    ymusic.ErrorKind
	ErrorMessage string
}

const runColumns = `id, identifier, playlist_title, dir, successful, failed, skipped, success, kind, message, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                     Run
		success               int
		kind                  string
		startedAt, finishedAt string
	)
	if err := row.Scan(&r.ID, &r.Identifier, &r.PlaylistTitle, &r.Dir, &r.Successful, &r.Failed, &r.Skipped, &success, &kind, &r.Message, &startedAt, &finishedAt); nil != err {
		return Run{}, err
	}
	r.Success = success != 0
	r.Kind = ymusic.ErrorKind(kind)
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTime(finishedAt)
	return r, nil
}

// RecentRuns returns at most limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) (runs []Run, err error) {
	flawP := flaw.P{"limit": limit}

	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to query runs: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := rows.Close(); nil != closeErr && nil == err {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			err = flaw.From(fmt.Errorf("failed to close run rows: %v", closeErr)).Append(flawP)
		}
	}()

	for rows.Next() {
		r, err := scanRun(rows)
		if nil != err {
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to scan run: %v", err)).Append(flawP)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to iterate runs: %v", err)).Append(flawP)
	}
	return runs, nil
}

func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if nil != err {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		flawP := flaw.P{"run_id": id, "err_debug_tree": errutil.Tree(err).FlawP()}
		return Run{}, flaw.From(fmt.Errorf("failed to load run: %v", err)).Append(flawP)
	}
	return r, nil
}

// TrackOutcomes returns the per track results of a run in playlist order.
func (s *Store) TrackOutcomes(ctx context.Context, runID string) (out []TrackOutcome, err error) {
	flawP := flaw.P{"run_id": runID}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, track_id, success, skipped, bytes_written, codec, bitrate_kbps, path, error_kind, error_message
		FROM track_outcomes WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to query track outcomes: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := rows.Close(); nil != closeErr && nil == err {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			err = flaw.From(fmt.Errorf("failed to close track outcome rows: %v", closeErr)).Append(flawP)
		}
	}()

	for rows.Next() {
		var (
			o                TrackOutcome
			success, skipped int
			kind             string
		)
		if err := rows.Scan(&o.Position, &o.TrackID, &success, &skipped, &o.BytesWritten, &o.Codec, &o.BitrateKbps, &o.Path, &kind, &o.ErrorMessage); nil != err {
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to scan track outcome: %v", err)).Append(flawP)
		}
		o.Success = success != 0
		o.Skipped = skipped != 0
		o.ErrorKind = ymusic.ErrorKind(kind)
		out = append(out, o)
	}
	if err := rows.Err(); nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to iterate track outcomes: %v", err)).Append(flawP)
	}
	return out, nil
}
