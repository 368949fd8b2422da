package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// requestValidate is the shared validator for persistence request bodies.
var requestValidate = validator.New()

// SubmitRequest publishes a configuration directly.
// The embedded Configuration flattens into the body: {disabled, content, comment, ...}.
type SubmitRequest struct {
	Configuration
	Comment           string `json:"comment" validate:"max=1024"`
	TrackAccessEvents bool   `json:"trackAccessEvents,omitempty"`
	// BaseVersion, when set, must match the stored version (optimistic lock).
	BaseVersion VersionID `json:"baseVersion,omitempty"`
}

// ApprovalRequest asks reviewers to approve a configuration.
// Same body as SubmitRequest plus the reviewer list; a comment is mandatory.
type ApprovalRequest struct {
	Configuration
	Comment     string    `json:"comment" validate:"required,max=1024"`
	Reviewers   []string  `json:"reviewers" validate:"required,min=1,dive,required"`
	BaseVersion VersionID `json:"baseVersion,omitempty"`
}

// Validate checks request fields using validator tags.
func (r *SubmitRequest) Validate() error {
	return requestValidate.Struct(r)
}

// Validate checks request fields using validator tags.
func (r *ApprovalRequest) Validate() error {
	return requestValidate.Struct(r)
}

// AckStatus reports what the persistence service did with a request.
type AckStatus string

const (
	AckPublished AckStatus = "published"
	AckPending   AckStatus = "pending_approval"
)

// Ack acknowledges a successful submit or approval request.
type Ack struct {
	Status     AckStatus  `json:"status"`
	Version    VersionID  `json:"version,omitempty"`
	ApprovalID ApprovalID `json:"approvalId,omitempty"`
	At         time.Time  `json:"at"`
}

// ToggleInfo is the toggle metadata the editor needs alongside targeting.
type ToggleInfo struct {
	ReturnType             ReturnType `json:"returnType"`
	TrackEvents            bool       `json:"trackEvents"`
	AllowEnableTrackEvents bool       `json:"allowEnableTrackEvents"`
}

// ApprovalInfo describes the approval policy of a toggle's environment.
type ApprovalInfo struct {
	EnableApproval bool     `json:"enableApproval"`
	Reviewers      []string `json:"reviewers"`
}

// Targeting is a stored configuration with its version and toggle metadata.
type Targeting struct {
	Key           ToggleKey     `json:"key"`
	Version       VersionID     `json:"version"`
	Configuration Configuration `json:"configuration"`
	Toggle        ToggleInfo    `json:"toggle"`
	Approval      ApprovalInfo  `json:"approval"`
}

// Segment is an audience segment; its key is an opaque condition operand.
type Segment struct {
	ProjectKey  string `json:"projectKey" db:"project_key"`
	Key         string `json:"key" db:"segment_key"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}
