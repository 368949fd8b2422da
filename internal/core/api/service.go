// Package api provides the gRPC TargetingAPI: loading, publishing and
// reviewing targeting configurations, plus stateless check and diff
// operations backed by the targeting engine.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/flagkeeper/internal/core/auth"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

// Backend is the persistence the service delegates to.
// Implemented by *store.Store.
type Backend interface {
	targeting.Publisher
	targeting.Loader
	targeting.Dictionary
	targeting.SegmentRegistry
	Approve(ctx context.Context, key types.ToggleKey, id types.ApprovalID) (types.Ack, error)
	Decline(ctx context.Context, key types.ToggleKey, id types.ApprovalID) error
}

// TargetingService implements TargetingAPIServer.
// Thin orchestration layer over the backend and the targeting engine.
type TargetingService struct {
	backend Backend
	engine  *targeting.Engine
	logger  *slog.Logger
}

var _ TargetingAPIServer = (*TargetingService)(nil)

// NewTargetingService creates service instance with dependencies.
func NewTargetingService(backend Backend, engine *targeting.Engine, logger *slog.Logger) (*TargetingService, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TargetingService{backend: backend, engine: engine, logger: logger}, nil
}

// Load returns the stored targeting of a toggle.
func (s *TargetingService) Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error) {
	if err := auth.Authorize(ctx, req.Key); err != nil {
		return nil, toStatus(err)
	}
	t, err := s.backend.Load(ctx, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadResponse{Targeting: t}, nil
}

// Submit validates and publishes a configuration.
func (s *TargetingService) Submit(ctx context.Context, req *SubmitRequest) (*AckResponse, error) {
	if err := s.admit(ctx, req.Key, req.Request.Configuration); err != nil {
		return nil, err
	}
	ack, err := s.backend.Submit(ctx, req.Key, req.Request)
	if err != nil {
		return nil, toStatus(err)
	}
	publishesTotal.WithLabelValues(string(ack.Status)).Inc()
	s.logger.InfoContext(ctx, "targeting submitted", "toggle", req.Key.String(), "version", ack.Version)
	return &AckResponse{Ack: ack}, nil
}

// RequestApproval validates a configuration and records it for review.
func (s *TargetingService) RequestApproval(ctx context.Context, req *RequestApprovalRequest) (*AckResponse, error) {
	if err := s.admit(ctx, req.Key, req.Request.Configuration); err != nil {
		return nil, err
	}
	ack, err := s.backend.RequestApproval(ctx, req.Key, req.Request)
	if err != nil {
		return nil, toStatus(err)
	}
	publishesTotal.WithLabelValues(string(ack.Status)).Inc()
	s.logger.InfoContext(ctx, "approval requested", "toggle", req.Key.String(), "approval", ack.ApprovalID)
	return &AckResponse{Ack: ack}, nil
}

// Approve publishes a pending approval.
func (s *TargetingService) Approve(ctx context.Context, req *ResolveApprovalRequest) (*AckResponse, error) {
	if err := auth.Authorize(ctx, req.Key); err != nil {
		return nil, toStatus(err)
	}
	ack, err := s.backend.Approve(ctx, req.Key, req.ApprovalID)
	if err != nil {
		return nil, toStatus(err)
	}
	publishesTotal.WithLabelValues(string(ack.Status)).Inc()
	return &AckResponse{Ack: ack}, nil
}

// Decline closes a pending approval.
func (s *TargetingService) Decline(ctx context.Context, req *ResolveApprovalRequest) (*Empty, error) {
	if err := auth.Authorize(ctx, req.Key); err != nil {
		return nil, toStatus(err)
	}
	if err := s.backend.Decline(ctx, req.Key, req.ApprovalID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// Check validates a configuration without storing it.
func (s *TargetingService) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	res := s.engine.Check(req.Configuration, req.Toggle)
	return &CheckResponse{Valid: res.Valid(), Errors: fieldErrorViews(res)}, nil
}

// Diff classifies the transition between two configurations.
func (s *TargetingService) Diff(ctx context.Context, req *DiffRequest) (*DiffResponse, error) {
	cl := s.engine.Classifier().Classify(req.Before, req.After)
	resp := &DiffResponse{Equal: cl.Equal, Material: cl.Material}
	if cl.Equal {
		return resp, nil
	}

	for _, ch := range cl.Changes {
		resp.Changes = append(resp.Changes, ChangeView(ch))
	}
	report, err := targeting.BuildReport(s.engine.Localizer(), req.Before, req.After, cl)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp.Sections = report.Changed()
	return resp, nil
}

// GetPreference reads a project-scoped editor preference.
func (s *TargetingService) GetPreference(ctx context.Context, req *PreferenceRequest) (*PreferenceResponse, error) {
	if err := auth.AuthorizeProject(ctx, req.Project); err != nil {
		return nil, toStatus(err)
	}
	v, ok, err := s.backend.Get(ctx, preferenceKey(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return &PreferenceResponse{Value: v, Found: ok}, nil
}

// SetPreference writes a project-scoped editor preference.
func (s *TargetingService) SetPreference(ctx context.Context, req *PreferenceRequest) (*Empty, error) {
	if err := auth.AuthorizeProject(ctx, req.Project); err != nil {
		return nil, toStatus(err)
	}
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "preference key required")
	}
	if err := s.backend.Set(ctx, preferenceKey(req), req.Value); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// GetSegment looks up an audience segment.
func (s *TargetingService) GetSegment(ctx context.Context, req *SegmentRequest) (*SegmentResponse, error) {
	if err := auth.AuthorizeProject(ctx, req.Project); err != nil {
		return nil, toStatus(err)
	}
	seg, err := s.backend.Segment(ctx, req.Project, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SegmentResponse{Segment: seg}, nil
}

// admit authorizes a write and refuses configurations the editor would
// not let through, using the stored toggle's return type.
func (s *TargetingService) admit(ctx context.Context, key types.ToggleKey, cfg types.Configuration) error {
	if err := auth.Authorize(ctx, key); err != nil {
		return toStatus(err)
	}
	t, err := s.backend.Load(ctx, key)
	if err != nil {
		return toStatus(err)
	}
	res := s.engine.Check(cfg, t.Toggle)
	if first, ok := res.First(); ok {
		rejectedTotal.WithLabelValues(string(first.Kind)).Inc()
		s.logger.WarnContext(ctx, "configuration rejected",
			"toggle", key.String(),
			"errors", len(res.Errors),
			"first", first.Path)
		return status.Error(codes.InvalidArgument, fmt.Sprintf("%v: %v", types.ErrInvalidRequest, res.Err()))
	}
	return nil
}

func preferenceKey(req *PreferenceRequest) string {
	return req.Project + ":" + req.Key
}

func fieldErrorViews(res targeting.ValidationResult) []FieldErrorView {
	var out []FieldErrorView
	for _, fe := range res.Errors {
		v := FieldErrorView{Path: fe.Path, Kind: fe.Kind, Message: fe.Message}
		if fe.Err != nil {
			v.Detail = fe.Err.Error()
		}
		out = append(out, v)
	}
	return out
}
