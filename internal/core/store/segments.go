package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/solatis/flagkeeper/internal/types"
)

// Segment looks up one audience segment of a project.
func (s *Store) Segment(ctx context.Context, projectKey, key string) (types.Segment, error) {
	var seg types.Segment
	err := s.q.Get(ctx, "get-segment", &seg, projectKey, key)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Segment{}, fmt.Errorf("%w: %s/%s", types.ErrSegmentNotFound, projectKey, key)
	}
	if err != nil {
		return types.Segment{}, fmt.Errorf("get segment %s/%s: %w", projectKey, key, err)
	}
	return seg, nil
}

// Segments lists the segments of a project ordered by key.
func (s *Store) Segments(ctx context.Context, projectKey string) ([]types.Segment, error) {
	var segs []types.Segment
	if err := s.q.Select(ctx, "list-segments", &segs, projectKey); err != nil {
		return nil, fmt.Errorf("list segments %s: %w", projectKey, err)
	}
	return segs, nil
}

// PutSegment creates or replaces a segment.
func (s *Store) PutSegment(ctx context.Context, seg types.Segment) error {
	if seg.ProjectKey == "" || seg.Key == "" {
		return fmt.Errorf("%w: segment needs project and key", types.ErrInvalidRequest)
	}
	if _, err := s.q.Exec(ctx, "upsert-segment", seg.ProjectKey, seg.Key, seg.Name, seg.Description); err != nil {
		return fmt.Errorf("put segment %s/%s: %w", seg.ProjectKey, seg.Key, err)
	}
	return nil
}
