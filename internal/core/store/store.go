// Package store is the SQL-backed persistence service for targeting
// configurations, approval requests, editor preferences and segments.
//
// Store implements the targeting.Publisher, targeting.Loader,
// targeting.Dictionary and targeting.SegmentRegistry contracts on top of
// the named queries in internal/core/db. Configuration bodies are stored as
// canonical JSON; every publish appends an immutable version row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

var (
	_ targeting.Publisher       = (*Store)(nil)
	_ targeting.Loader          = (*Store)(nil)
	_ targeting.Dictionary      = (*Store)(nil)
	_ targeting.SegmentRegistry = (*Store)(nil)
)

// Store persists targetings through named queries.
type Store struct {
	q      *db.Queries
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for publish events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over loaded queries.
func New(q *db.Queries, opts ...Option) *Store {
	s := &Store{
		q:      q,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// targetingRow mirrors the targetings table.
type targetingRow struct {
	ProjectKey             string    `db:"project_key"`
	EnvironmentKey         string    `db:"environment_key"`
	ToggleKey              string    `db:"toggle_key"`
	Version                string    `db:"version"`
	Disabled               bool      `db:"disabled"`
	Content                string    `db:"content"`
	ReturnType             string    `db:"return_type"`
	TrackEvents            bool      `db:"track_events"`
	AllowEnableTrackEvents bool      `db:"allow_enable_track_events"`
	EnableApproval         bool      `db:"enable_approval"`
	Reviewers              string    `db:"reviewers"`
	UpdatedAt              time.Time `db:"updated_at"`
}

func (r targetingRow) key() types.ToggleKey {
	return types.ToggleKey{Project: r.ProjectKey, Environment: r.EnvironmentKey, Toggle: r.ToggleKey}
}

func (r targetingRow) targeting() (types.Targeting, error) {
	content, err := decodeContent(r.Content)
	if err != nil {
		return types.Targeting{}, fmt.Errorf("targeting %s: %w", r.key(), err)
	}
	var reviewers []string
	if err := json.Unmarshal([]byte(r.Reviewers), &reviewers); err != nil {
		return types.Targeting{}, fmt.Errorf("targeting %s: reviewers: %w", r.key(), err)
	}

	return types.Targeting{
		Key:     r.key(),
		Version: types.VersionID(r.Version),
		Configuration: types.Configuration{
			Disabled: r.Disabled,
			Content:  content,
		},
		Toggle: types.ToggleInfo{
			ReturnType:             types.ReturnType(r.ReturnType),
			TrackEvents:            r.TrackEvents,
			AllowEnableTrackEvents: r.AllowEnableTrackEvents,
		},
		Approval: types.ApprovalInfo{
			EnableApproval: r.EnableApproval,
			Reviewers:      reviewers,
		},
	}, nil
}

// getTargeting loads the row for key; a missing row maps to ErrTargetingNotFound.
func getTargeting(ctx context.Context, q db.Querier, key types.ToggleKey) (targetingRow, error) {
	var row targetingRow
	err := q.Get(ctx, "get-targeting", &row, key.Project, key.Environment, key.Toggle)
	if errors.Is(err, sql.ErrNoRows) {
		return row, fmt.Errorf("%w: %s", types.ErrTargetingNotFound, key)
	}
	if err != nil {
		return row, fmt.Errorf("load targeting %s: %w", key, err)
	}
	return row, nil
}

// encodeContent renders content with non-nil lists so stored bodies
// always carry "rules": [] and "variations": [].
func encodeContent(c types.Content) (string, error) {
	if c.Variations == nil {
		c.Variations = []types.Variation{}
	}
	rules := make([]types.Rule, len(c.Rules))
	for i, r := range c.Rules {
		if r.Conditions == nil {
			r.Conditions = []types.Condition{}
		}
		rules[i] = r
	}
	c.Rules = rules
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(b), nil
}

func decodeContent(s string) (types.Content, error) {
	var c types.Content
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return types.Content{}, fmt.Errorf("decode content: %w", err)
	}
	return c, nil
}

func encodeReviewers(reviewers []string) (string, error) {
	if reviewers == nil {
		reviewers = []string{}
	}
	b, err := json.Marshal(reviewers)
	if err != nil {
		return "", fmt.Errorf("encode reviewers: %w", err)
	}
	return string(b), nil
}
