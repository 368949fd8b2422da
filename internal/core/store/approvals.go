package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/types"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// Approval is a configuration waiting for a reviewer.
type Approval struct {
	ID            types.ApprovalID
	Key           types.ToggleKey
	BaseVersion   types.VersionID
	Configuration types.Configuration
	Comment       string
	Reviewers     []string
	Status        ApprovalStatus
	CreatedAt     time.Time
}

type approvalRow struct {
	ApprovalID     string    `db:"approval_id"`
	ProjectKey     string    `db:"project_key"`
	EnvironmentKey string    `db:"environment_key"`
	ToggleKey      string    `db:"toggle_key"`
	BaseVersion    string    `db:"base_version"`
	Disabled       bool      `db:"disabled"`
	Content        string    `db:"content"`
	Comment        string    `db:"comment"`
	Reviewers      string    `db:"reviewers"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r approvalRow) approval() (Approval, error) {
	content, err := decodeContent(r.Content)
	if err != nil {
		return Approval{}, fmt.Errorf("approval %s: %w", r.ApprovalID, err)
	}
	var reviewers []string
	if err := json.Unmarshal([]byte(r.Reviewers), &reviewers); err != nil {
		return Approval{}, fmt.Errorf("approval %s: reviewers: %w", r.ApprovalID, err)
	}
	return Approval{
		ID:            types.ApprovalID(r.ApprovalID),
		Key:           types.ToggleKey{Project: r.ProjectKey, Environment: r.EnvironmentKey, Toggle: r.ToggleKey},
		BaseVersion:   types.VersionID(r.BaseVersion),
		Configuration: types.Configuration{Disabled: r.Disabled, Content: content},
		Comment:       r.Comment,
		Reviewers:     reviewers,
		Status:        ApprovalStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}, nil
}

// RequestApproval records a configuration for review. The stored
// targeting is unchanged until the request is approved.
func (s *Store) RequestApproval(ctx context.Context, key types.ToggleKey, req types.ApprovalRequest) (types.Ack, error) {
	if err := req.Validate(); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %v", types.ErrInvalidRequest, err)
	}
	content, err := encodeContent(req.Content)
	if err != nil {
		return types.Ack{}, err
	}
	reviewers, err := encodeReviewers(req.Reviewers)
	if err != nil {
		return types.Ack{}, err
	}

	id := types.NewApprovalID()
	now := s.timestamp()

	err = s.q.InTx(ctx, func(tx *db.Tx) error {
		row, err := getTargeting(ctx, tx, key)
		if err != nil {
			return err
		}
		base := req.BaseVersion
		if base == "" {
			base = types.VersionID(row.Version)
		}
		if string(base) != row.Version {
			return fmt.Errorf("%w: %s is at %s, not %s", types.ErrStaleVersion, key, row.Version, base)
		}

		if _, err := tx.Exec(ctx, "insert-approval",
			string(id), key.Project, key.Environment, key.Toggle, string(base),
			req.Disabled, content, req.Comment, reviewers, now,
		); err != nil {
			return fmt.Errorf("insert approval %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return types.Ack{}, err
	}

	s.logger.Info("approval requested",
		"toggle", key.String(),
		"approval", id,
		"reviewers", len(req.Reviewers))
	return types.Ack{Status: types.AckPending, ApprovalID: id, At: now}, nil
}

// Approve publishes the configuration of a pending approval of key. The
// targeting must still be at the version the request was based on.
func (s *Store) Approve(ctx context.Context, key types.ToggleKey, id types.ApprovalID) (types.Ack, error) {
	version := types.NewVersionID()
	now := s.timestamp()

	err := s.q.InTx(ctx, func(tx *db.Tx) error {
		a, err := getApproval(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if a.Status != ApprovalPending {
			return fmt.Errorf("%w: %s is %s", types.ErrApprovalResolved, id, a.Status)
		}

		row, err := getTargeting(ctx, tx, a.Key)
		if err != nil {
			return err
		}
		if row.Version != string(a.BaseVersion) {
			return fmt.Errorf("%w: %s is at %s, approval based on %s", types.ErrStaleVersion, a.Key, row.Version, a.BaseVersion)
		}

		content, err := encodeContent(a.Configuration.Content)
		if err != nil {
			return err
		}
		if err := publish(ctx, tx, row, version, a.Configuration, content, a.Comment, false, now); err != nil {
			return err
		}
		return resolveApproval(ctx, tx, id, ApprovalApproved)
	})
	if err != nil {
		return types.Ack{}, err
	}

	s.logger.Info("approval applied", "toggle", key.String(), "approval", id, "version", version)
	return types.Ack{Status: types.AckPublished, Version: version, ApprovalID: id, At: now}, nil
}

// Decline closes a pending approval of key without publishing.
func (s *Store) Decline(ctx context.Context, key types.ToggleKey, id types.ApprovalID) error {
	return s.q.InTx(ctx, func(tx *db.Tx) error {
		a, err := getApproval(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if a.Status != ApprovalPending {
			return fmt.Errorf("%w: %s is %s", types.ErrApprovalResolved, id, a.Status)
		}
		return resolveApproval(ctx, tx, id, ApprovalDeclined)
	})
}

// PendingApprovals lists open approval requests of a toggle, oldest first.
func (s *Store) PendingApprovals(ctx context.Context, key types.ToggleKey) ([]Approval, error) {
	var rows []approvalRow
	if err := s.q.Select(ctx, "list-pending-approvals", &rows, key.Project, key.Environment, key.Toggle); err != nil {
		return nil, fmt.Errorf("list approvals %s: %w", key, err)
	}

	out := make([]Approval, 0, len(rows))
	for _, r := range rows {
		a, err := r.approval()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// getApproval loads an approval of key; approvals of other toggles are
// reported as not found.
func getApproval(ctx context.Context, q db.Querier, key types.ToggleKey, id types.ApprovalID) (Approval, error) {
	var row approvalRow
	err := q.Get(ctx, "get-approval", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return Approval{}, fmt.Errorf("%w: %s", types.ErrApprovalNotFound, id)
	}
	if err != nil {
		return Approval{}, fmt.Errorf("load approval %s: %w", id, err)
	}
	a, err := row.approval()
	if err != nil {
		return Approval{}, err
	}
	if a.Key != key {
		return Approval{}, fmt.Errorf("%w: %s", types.ErrApprovalNotFound, id)
	}
	return a, nil
}

func resolveApproval(ctx context.Context, tx *db.Tx, id types.ApprovalID, status ApprovalStatus) error {
	res, err := tx.Exec(ctx, "resolve-approval", string(status), string(id))
	if err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", types.ErrApprovalResolved, id)
	}
	return nil
}
