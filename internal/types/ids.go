package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EphemeralID tracks a list entry through one edit session.
// Never persisted or transmitted; a new session mints new ids.
type EphemeralID string

// VersionID identifies one published revision of a configuration (UUIDv7).
type VersionID string

// ApprovalID identifies one approval request (UUIDv7).
type ApprovalID string

// NewEphemeralID generates a random (v4) ephemeral identifier.
func NewEphemeralID() EphemeralID {
	return EphemeralID(uuid.NewString())
}

// NewVersionID generates a UUIDv7 version identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewVersionID() VersionID {
	return VersionID(uuid.Must(uuid.NewV7()).String())
}

// NewApprovalID generates a UUIDv7 approval identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewApprovalID() ApprovalID {
	return ApprovalID(uuid.Must(uuid.NewV7()).String())
}

// ParseVersionID validates a version identifier and returns it in
// canonical form.
func ParseVersionID(s string) (VersionID, error) {
	u, err := parseV7(s)
	return VersionID(u), err
}

// ParseApprovalID validates an approval identifier and returns it in
// canonical form.
func ParseApprovalID(s string) (ApprovalID, error) {
	u, err := parseV7(s)
	return ApprovalID(u), err
}

func parseV7(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: id %q: %v", ErrInvalidRequest, s, err)
	}
	if u.Version() != 7 {
		return "", fmt.Errorf("%w: id %q is not a UUIDv7", ErrInvalidRequest, s)
	}
	return u.String(), nil
}

// VersionIDTime extracts the timestamp embedded in a UUIDv7 ID, with
// millisecond precision. Returns zero time for invalid UUIDs.
func VersionIDTime(id VersionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil || u.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
