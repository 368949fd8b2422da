package targeting

import (
	"context"
	"fmt"

	"github.com/solatis/flagkeeper/internal/types"
)

// Publisher is the persistence service a session submits to.
type Publisher interface {
	Submit(ctx context.Context, key types.ToggleKey, req types.SubmitRequest) (types.Ack, error)
	RequestApproval(ctx context.Context, key types.ToggleKey, req types.ApprovalRequest) (types.Ack, error)
}

// Loader fetches the stored targeting a session starts from.
type Loader interface {
	Load(ctx context.Context, key types.ToggleKey) (types.Targeting, error)
}

// Dictionary stores per-user preferences. The engine never reads it; it
// is part of the persistence contract the editor shell relies on.
type Dictionary interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// SegmentRegistry looks up audience segments. Segment keys stay opaque
// operands inside the engine.
type SegmentRegistry interface {
	Segment(ctx context.Context, projectKey, key string) (types.Segment, error)
}

// TransportError wraps a failure of the persistence service. The session's
// edit state is untouched when one is returned, so the publish can be
// retried as is.
type TransportError struct {
	Op  string
	Key types.ToggleKey
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
