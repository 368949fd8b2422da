package types

import "errors"

// Sentinel errors for flagkeeper operations.
var (
	// ErrAmbiguousServe indicates a serve object carrying both select and split.
	ErrAmbiguousServe = errors.New("serve has both select and split")

	// ErrEmptyServe indicates a serve object carrying neither select nor split.
	ErrEmptyServe = errors.New("serve has neither select nor split")

	// ErrServeUnset indicates a serve strategy was required but not set.
	ErrServeUnset = errors.New("serve strategy not set")

	// ErrVariationIndex indicates a serve references a variation that does not exist.
	ErrVariationIndex = errors.New("variation index out of range")

	// ErrSplitLength indicates split weights are not index-aligned with variations.
	ErrSplitLength = errors.New("split weights do not match variation count")

	// ErrSplitTotal indicates split weights do not sum to SplitTotal.
	ErrSplitTotal = errors.New("split weights must sum to 10000")

	// ErrNegativeWeight indicates a negative split weight.
	ErrNegativeWeight = errors.New("split weight is negative")

	// ErrUnknownID indicates an ephemeral id that is not part of the session.
	ErrUnknownID = errors.New("unknown ephemeral id")

	// ErrTargetingNotFound indicates no configuration is stored for a toggle key.
	ErrTargetingNotFound = errors.New("targeting not found")

	// ErrSegmentNotFound indicates a segment key unknown to the registry.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrStaleVersion indicates a submit raced with another publish.
	ErrStaleVersion = errors.New("targeting changed since it was loaded")

	// ErrTargetingExists indicates a toggle key that already has a targeting.
	ErrTargetingExists = errors.New("targeting already exists")

	// ErrApprovalRequired indicates a direct submit to an environment that
	// only accepts approval requests.
	ErrApprovalRequired = errors.New("environment requires approval")

	// ErrApprovalNotFound indicates an unknown approval id.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrApprovalResolved indicates an approval that was already approved or declined.
	ErrApprovalResolved = errors.New("approval already resolved")

	// ErrInvalidRequest indicates a request body failing field validation.
	ErrInvalidRequest = errors.New("invalid request")
)
