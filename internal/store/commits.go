package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/timeremap/internal/codec"
)

// CommitRecord is one entry of a clip's commit log.
type CommitRecord struct {
	ID       string      `json:"id"`
	ClipID   string      `json:"clip_id"`
	Seq      int64       `json:"seq"`
	Reason   string      `json:"reason"`
	TimeMap  string      `json:"time_map"`
	Duration int         `json:"duration"`
	Flags    codec.Flags `json:"flags"`
	Hash     string      `json:"hash"`
	At       int64       `json:"at"`
}

// AppendCommit records a commit and advances the clip's committed state in
// one transaction. A duplicate commit ID is ignored. A commit whose seq is
// not newer than the clip's head is logged but does not move the head.
//
// Returns ErrNotFound if the clip does not exist.
func (s *Store) AppendCommit(ctx context.Context, rec CommitRecord) (err error) {
	flags, err := marshalFlags(rec.Flags)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", rec.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append commit %d: begin: %w", rec.Seq, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips WHERE id = ?`, rec.ClipID).Scan(&exists); err != nil {
		return fmt.Errorf("append commit %d: %w", rec.Seq, err)
	}
	if exists == 0 {
		err = fmt.Errorf("clip %s: %w", rec.ClipID, ErrNotFound)
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO commits (id, clip_id, seq, reason, time_map, duration, flags, hash, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.ClipID,
		rec.Seq,
		rec.Reason,
		rec.TimeMap,
		rec.Duration,
		flags,
		rec.Hash,
		rec.At,
	)
	if err != nil {
		return fmt.Errorf("append commit %d: insert: %w", rec.Seq, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE clips
		SET time_map = ?, duration = ?, flags = ?, head_seq = ?
		WHERE id = ? AND head_seq < ?
	`, rec.TimeMap, rec.Duration, flags, rec.Seq, rec.ClipID, rec.Seq)
	if err != nil {
		return fmt.Errorf("append commit %d: update clip: %w", rec.Seq, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("append commit %d: commit: %w", rec.Seq, err)
	}
	return nil
}

// ListCommits returns a clip's commit log ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the clip has no commits.
func (s *Store) ListCommits(ctx context.Context, clipID string) ([]CommitRecord, error) {
	return s.queryCommits(ctx, "clip_id = ?", clipID)
}

// FindCommitsByHash returns commits across all clips with the given content
// hash, ordered by seq ASC, id ASC.
func (s *Store) FindCommitsByHash(ctx context.Context, hash string) ([]CommitRecord, error) {
	return s.queryCommits(ctx, "hash = ?", hash)
}

// LastSeq returns the highest commit seq recorded for a clip, or 0.
func (s *Store) LastSeq(ctx context.Context, clipID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM commits WHERE clip_id = ?`, clipID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq %s: %w", clipID, err)
	}
	return seq.Int64, nil
}

func (s *Store) queryCommits(ctx context.Context, where string, arg any) ([]CommitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, clip_id, seq, reason, time_map, duration, flags, hash, at
		FROM commits
		WHERE `+where+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	commits := []CommitRecord{}
	for rows.Next() {
		var (
			rec   CommitRecord
			flags string
		)
		if err := rows.Scan(&rec.ID, &rec.ClipID, &rec.Seq, &rec.Reason, &rec.TimeMap, &rec.Duration, &flags, &rec.Hash, &rec.At); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		if rec.Flags, err = unmarshalFlags(flags); err != nil {
			return nil, fmt.Errorf("commit %s: %w", rec.ID, err)
		}
		commits = append(commits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}
