package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/types"
)

// Version is one published revision of a targeting.
type Version struct {
	ID                types.VersionID
	Key               types.ToggleKey
	Configuration     types.Configuration
	Comment           string
	TrackAccessEvents bool
	CreatedAt         time.Time
}

type versionRow struct {
	Version           string    `db:"version"`
	ProjectKey        string    `db:"project_key"`
	EnvironmentKey    string    `db:"environment_key"`
	ToggleKey         string    `db:"toggle_key"`
	Disabled          bool      `db:"disabled"`
	Content           string    `db:"content"`
	Comment           string    `db:"comment"`
	TrackAccessEvents bool      `db:"track_access_events"`
	CreatedAt         time.Time `db:"created_at"`
}

// Load returns the stored targeting of a toggle.
func (s *Store) Load(ctx context.Context, key types.ToggleKey) (types.Targeting, error) {
	row, err := getTargeting(ctx, s.q, key)
	if err != nil {
		return types.Targeting{}, err
	}
	return row.targeting()
}

// Create stores a new targeting with its first version. The Version field
// of t is ignored; the assigned version is returned.
func (s *Store) Create(ctx context.Context, t types.Targeting) (types.VersionID, error) {
	content, err := encodeContent(t.Configuration.Content)
	if err != nil {
		return "", err
	}
	reviewers, err := encodeReviewers(t.Approval.Reviewers)
	if err != nil {
		return "", err
	}
	returnType := t.Toggle.ReturnType
	if returnType == "" {
		returnType = types.ReturnBoolean
	}

	version := types.NewVersionID()
	now := s.timestamp()
	key := t.Key

	err = s.q.InTx(ctx, func(tx *db.Tx) error {
		var existing string
		err := tx.Get(ctx, "get-targeting-version", &existing, key.Project, key.Environment, key.Toggle)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", types.ErrTargetingExists, key)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("load targeting %s: %w", key, err)
		}

		if _, err := tx.Exec(ctx, "insert-targeting",
			key.Project, key.Environment, key.Toggle, string(version),
			t.Configuration.Disabled, content, string(returnType),
			t.Toggle.TrackEvents, t.Toggle.AllowEnableTrackEvents,
			t.Approval.EnableApproval, reviewers, now,
		); err != nil {
			return fmt.Errorf("insert targeting %s: %w", key, err)
		}
		return insertVersion(ctx, tx, version, key, t.Configuration.Disabled, content, "", false, now)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("targeting created", "toggle", key.String(), "version", version)
	return version, nil
}

// UpdateToggle replaces the toggle metadata and approval policy of a
// targeting without publishing a new version.
func (s *Store) UpdateToggle(ctx context.Context, key types.ToggleKey, toggle types.ToggleInfo, approval types.ApprovalInfo) error {
	reviewers, err := encodeReviewers(approval.Reviewers)
	if err != nil {
		return err
	}

	res, err := s.q.Exec(ctx, "update-targeting-toggle",
		string(toggle.ReturnType), toggle.TrackEvents, toggle.AllowEnableTrackEvents,
		approval.EnableApproval, reviewers, s.timestamp(),
		key.Project, key.Environment, key.Toggle,
	)
	if err != nil {
		return fmt.Errorf("update toggle %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", types.ErrTargetingNotFound, key)
	}
	return nil
}

// Submit publishes a configuration directly. Environments with approval
// enabled reject direct submits. A non-empty BaseVersion must match the
// stored version.
func (s *Store) Submit(ctx context.Context, key types.ToggleKey, req types.SubmitRequest) (types.Ack, error) {
	if err := req.Validate(); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %v", types.ErrInvalidRequest, err)
	}
	content, err := encodeContent(req.Content)
	if err != nil {
		return types.Ack{}, err
	}

	version := types.NewVersionID()
	now := s.timestamp()

	err = s.q.InTx(ctx, func(tx *db.Tx) error {
		row, err := getTargeting(ctx, tx, key)
		if err != nil {
			return err
		}
		if row.EnableApproval {
			return fmt.Errorf("%w: %s", types.ErrApprovalRequired, key)
		}
		if req.BaseVersion != "" && string(req.BaseVersion) != row.Version {
			return fmt.Errorf("%w: %s is at %s, not %s", types.ErrStaleVersion, key, row.Version, req.BaseVersion)
		}

		return publish(ctx, tx, row, version, req.Configuration, content, req.Comment, req.TrackAccessEvents, now)
	})
	if err != nil {
		return types.Ack{}, err
	}

	s.logger.Info("targeting published",
		"toggle", key.String(),
		"version", version,
		"base", req.BaseVersion)
	return types.Ack{Status: types.AckPublished, Version: version, At: now}, nil
}

// publish moves the targeting row from row.Version to version and records
// the revision. A concurrent publish shows up as zero affected rows.
func publish(ctx context.Context, tx *db.Tx, row targetingRow, version types.VersionID, cfg types.Configuration, content, comment string, trackAccess bool, now time.Time) error {
	key := row.key()
	res, err := tx.Exec(ctx, "publish-targeting",
		string(version), cfg.Disabled, content, row.TrackEvents || trackAccess, now,
		key.Project, key.Environment, key.Toggle, row.Version,
	)
	if err != nil {
		return fmt.Errorf("publish targeting %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", types.ErrStaleVersion, key)
	}
	return insertVersion(ctx, tx, version, key, cfg.Disabled, content, comment, trackAccess, now)
}

func insertVersion(ctx context.Context, tx *db.Tx, version types.VersionID, key types.ToggleKey, disabled bool, content, comment string, trackAccess bool, now time.Time) error {
	if _, err := tx.Exec(ctx, "insert-targeting-version",
		string(version), key.Project, key.Environment, key.Toggle,
		disabled, content, comment, trackAccess, now,
	); err != nil {
		return fmt.Errorf("insert version %s: %w", version, err)
	}
	return nil
}

// Versions lists the most recent published revisions of a toggle, newest first.
func (s *Store) Versions(ctx context.Context, key types.ToggleKey, limit int) ([]Version, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []versionRow
	if err := s.q.Select(ctx, "list-targeting-versions", &rows, key.Project, key.Environment, key.Toggle, limit); err != nil {
		return nil, fmt.Errorf("list versions %s: %w", key, err)
	}

	versions := make([]Version, 0, len(rows))
	for _, r := range rows {
		content, err := decodeContent(r.Content)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", r.Version, err)
		}
		versions = append(versions, Version{
			ID:                types.VersionID(r.Version),
			Key:               key,
			Configuration:     types.Configuration{Disabled: r.Disabled, Content: content},
			Comment:           r.Comment,
			TrackAccessEvents: r.TrackAccessEvents,
			CreatedAt:         r.CreatedAt,
		})
	}
	return versions, nil
}
