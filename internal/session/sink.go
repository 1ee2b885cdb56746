package session

import (
	"context"
	"fmt"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/reconcile"
	"github.com/roach88/timeremap/internal/store"
)

// StoreSink appends every commit of one clip to the store's commit log.
type StoreSink struct {
	store  *store.Store
	clipID string
	ids    IDGenerator
}

// NewStoreSink creates a sink for clipID. ids stamps commit IDs.
func NewStoreSink(st *store.Store, clipID string, ids IDGenerator) *StoreSink {
	return &StoreSink{store: st, clipID: clipID, ids: ids}
}

// Commit implements reconcile.Committer.
func (s *StoreSink) Commit(ctx context.Context, c reconcile.Commit) error {
	hash, err := c.Hash()
	if err != nil {
		return fmt.Errorf("hash commit %d: %w", c.Seq, err)
	}
	return s.store.AppendCommit(ctx, store.CommitRecord{
		ID:       s.ids.Generate(),
		ClipID:   s.clipID,
		Seq:      c.Seq,
		Reason:   string(c.Reason),
		TimeMap:  c.TimeMap,
		Duration: c.Duration,
		Flags:    c.Flags,
		Hash:     hash,
		At:       c.At,
	})
}

// OpenStored opens a session on a clip persisted in st, resuming its commit
// sequence and appending new commits to its log. c must use the clip's
// frame rate.
func OpenStored(ctx context.Context, st *store.Store, clipID string, c *codec.Codec, ids IDGenerator, opts ...Option) (*Clip, error) {
	rec, err := st.GetClip(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if c.FPS() != rec.FPS {
		return nil, fmt.Errorf("open clip %s: codec fps %g does not match clip fps %g", clipID, c.FPS(), rec.FPS)
	}
	seq, err := st.LastSeq(ctx, clipID)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{
		WithSink(NewStoreSink(st, clipID, ids)),
		WithResumeSeq(seq),
	}, opts...)
	return Open(Params{
		ID:       rec.ID,
		Name:     rec.Name,
		SourceIn: rec.SourceIn,
		Duration: rec.Duration,
		TimeMap:  rec.TimeMap,
		Flags:    rec.Flags,
	}, c, opts...)
}
