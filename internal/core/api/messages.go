package api

import (
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

// Request and response messages of the TargetingAPI service.

// LoadRequest asks for the stored targeting of a toggle.
type LoadRequest struct {
	Key types.ToggleKey `json:"key"`
}

// LoadResponse carries a stored targeting.
type LoadResponse struct {
	Targeting types.Targeting `json:"targeting"`
}

// SubmitRequest publishes a configuration directly.
type SubmitRequest struct {
	Key     types.ToggleKey     `json:"key"`
	Request types.SubmitRequest `json:"request"`
}

// RequestApprovalRequest asks reviewers to approve a configuration.
type RequestApprovalRequest struct {
	Key     types.ToggleKey       `json:"key"`
	Request types.ApprovalRequest `json:"request"`
}

// ResolveApprovalRequest approves or declines a pending approval.
type ResolveApprovalRequest struct {
	Key        types.ToggleKey  `json:"key"`
	ApprovalID types.ApprovalID `json:"approvalId"`
}

// AckResponse acknowledges a publish or approval operation.
type AckResponse struct {
	Ack types.Ack `json:"ack"`
}

// CheckRequest validates a configuration against a toggle's return type.
type CheckRequest struct {
	Configuration types.Configuration `json:"configuration"`
	Toggle        types.ToggleInfo    `json:"toggle"`
}

// FieldErrorView is a validation failure without edit-session ids.
type FieldErrorView struct {
	Path    string              `json:"path"`
	Kind    targeting.ErrorKind `json:"kind"`
	Message string              `json:"message"`
	Detail  string              `json:"detail,omitempty"`
}

// CheckResponse lists validation failures; none means valid.
type CheckResponse struct {
	Valid  bool             `json:"valid"`
	Errors []FieldErrorView `json:"errors,omitempty"`
}

// DiffRequest compares two configurations.
type DiffRequest struct {
	Before types.Configuration `json:"before"`
	After  types.Configuration `json:"after"`
}

// ChangeView is one classified difference.
type ChangeView struct {
	Section  targeting.Section    `json:"section"`
	Index    int                  `json:"index"`
	Field    string               `json:"field,omitempty"`
	Kind     targeting.ChangeKind `json:"kind"`
	Material bool                 `json:"material"`
}

// DiffResponse is the classification with its rendered report.
type DiffResponse struct {
	Equal    bool                      `json:"equal"`
	Material bool                      `json:"material"`
	Changes  []ChangeView              `json:"changes,omitempty"`
	Sections []targeting.ReportSection `json:"sections,omitempty"`
}

// PreferenceRequest reads or writes a project-scoped editor preference.
type PreferenceRequest struct {
	Project string `json:"project"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
}

// PreferenceResponse carries a preference value.
type PreferenceResponse struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// SegmentRequest looks up an audience segment.
type SegmentRequest struct {
	Project string `json:"project"`
	Key     string `json:"key"`
}

// SegmentResponse carries a segment.
type SegmentResponse struct {
	Segment types.Segment `json:"segment"`
}

// Empty is the response of operations with no result.
type Empty struct{}
