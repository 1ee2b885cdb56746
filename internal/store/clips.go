package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timeremap/internal/codec"
)

// Clip is the persisted remap state of one clip.
type Clip struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	FPS      float64     `json:"fps"`
	SourceIn int         `json:"source_in"`
	Duration int         `json:"duration"`
	TimeMap  string      `json:"time_map"`
	Flags    codec.Flags `json:"flags"`
	HeadSeq  int64       `json:"head_seq"` // seq of the last applied commit
}

// PutClip inserts a clip or updates its descriptive fields. The committed
// state (time_map, flags, duration, head_seq) of an existing clip only
// changes through AppendCommit.
func (s *Store) PutClip(ctx context.Context, c Clip) error {
	flags, err := marshalFlags(c.Flags)
	if err != nil {
		return fmt.Errorf("put clip %s: %w", c.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clips (id, name, fps, source_in, duration, time_map, flags, head_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			fps = excluded.fps,
			source_in = excluded.source_in
	`,
		c.ID,
		c.Name,
		c.FPS,
		c.SourceIn,
		c.Duration,
		c.TimeMap,
		flags,
		c.HeadSeq,
	)
	if err != nil {
		return fmt.Errorf("put clip %s: %w", c.ID, err)
	}
	return nil
}

// GetClip returns the clip with the given ID, or ErrNotFound.
func (s *Store) GetClip(ctx context.Context, id string) (Clip, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, fps, source_in, duration, time_map, flags, head_seq
		FROM clips
		WHERE id = ?
	`, id)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Clip{}, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Clip{}, fmt.Errorf("get clip %s: %w", id, err)
	}
	return c, nil
}

// ListClips returns all clips ordered by ID.
//
// Returns an empty slice (not nil) if there are no clips.
func (s *Store) ListClips(ctx context.Context) ([]Clip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fps, source_in, duration, time_map, flags, head_seq
		FROM clips
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	clips := []Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clips: %w", err)
	}
	return clips, nil
}

// DeleteClip removes a clip and its commit history. Turning remap off
// simply discards the state.
func (s *Store) DeleteClip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete clip %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClip(row scanner) (Clip, error) {
	var (
		c     Clip
		flags string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.FPS, &c.SourceIn, &c.Duration, &c.TimeMap, &flags, &c.HeadSeq); err != nil {
		return Clip{}, err
	}
	f, err := unmarshalFlags(flags)
	if err != nil {
		return Clip{}, fmt.Errorf("clip %s: %w", c.ID, err)
	}
	c.Flags = f
	return c, nil
}
