// internal/targeting/session.go
package targeting

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solatis/flagkeeper/internal/types"
)

/*
 * Edit session.
 *
 * One session per loaded targeting. The session owns the edit model and is
 * the only path through which it changes: every mutation re-normalizes the
 * model into the canonical snapshot and recomputes the dirty flag before
 * returning, so every read (Canonical, IsDirty, Classify) sees the latest
 * state without a separate sync step.
 *
 * Publish flow:
 *   1. OpenConfirmation validates, classifies, and builds the diff report.
 *      Invalid models expand the offending rules and open nothing.
 *   2. Publish submits the snapshot captured at step 1. Any mutation after
 *      step 1 closes the confirmation.
 *   3. While a submit is in flight further publishes fail with
 *      ErrPublishInFlight. Transport failures leave the model as it was.
 *
 * A Session is not safe for concurrent use. The editor drives it from one
 * logical thread; Publish is the only call that blocks.
 */

var (
	// ErrPublishInFlight indicates a publish is already being submitted.
	ErrPublishInFlight = errors.New("publish already in flight")

	// ErrNoChanges indicates the canonical snapshot equals the loaded one.
	ErrNoChanges = errors.New("no changes to publish")

	// ErrNotConfirming indicates Publish without an open confirmation.
	ErrNotConfirming = errors.New("no confirmation open")

	// ErrCommentRequired indicates an approval request without a comment.
	ErrCommentRequired = errors.New("comment required when approval is enabled")

	// ErrTrackChoiceRequired indicates the access-event question was not answered.
	ErrTrackChoiceRequired = errors.New("choose whether to track access events")

	// ErrDisclosureRequired indicates a material change was not acknowledged.
	ErrDisclosureRequired = errors.New("material change must be acknowledged")

	// ErrNoPublisher indicates the engine was built without a publisher.
	ErrNoPublisher = errors.New("no publisher configured")
)

// Session is the context object of one edit session.
type Session struct {
	engine     *Engine
	target     types.Targeting
	initial    types.Configuration
	model      EditModel
	canonical  types.Configuration
	dirty      bool
	confirm    *Confirmation
	publishing bool
}

// Key returns the toggle key the session edits.
func (s *Session) Key() types.ToggleKey { return s.target.Key }

// Model returns a deep copy of the edit model.
func (s *Session) Model() EditModel { return s.model.clone() }

// Initial returns a deep copy of the configuration the session was opened on.
func (s *Session) Initial() types.Configuration { return s.initial.Clone() }

// IsDirty reports whether the canonical snapshot differs from the loaded one.
func (s *Session) IsDirty() bool { return s.dirty }

// Canonical returns what would be submitted now.
func (s *Session) Canonical() types.Configuration { return s.canonical.Clone() }

// Validate checks the current model.
func (s *Session) Validate() ValidationResult {
	return s.engine.validator.Validate(s.model, s.target.Toggle)
}

// Classify compares the loaded configuration with the current snapshot.
func (s *Session) Classify() Classification {
	return s.engine.classifier.Classify(s.initial, s.canonical)
}

// Form returns the serve fields to bind, with dangling references unset.
func (s *Session) Form() Form {
	return s.engine.normalizer.Form(s.model)
}

// Publishing reports whether a publish is in flight.
func (s *Session) Publishing() bool { return s.publishing }

// Update applies fn to the edit model. Ids in the model must stay unique;
// use NewID for entries fn adds.
func (s *Session) Update(fn func(m *EditModel) error) error {
	err := fn(&s.model)
	s.refresh()
	return err
}

// NewID mints an ephemeral id from the engine's id source.
func (s *Session) NewID() types.EphemeralID { return s.engine.newID() }

// SetDisabled sets the toggle's disabled state.
func (s *Session) SetDisabled(disabled bool) {
	s.model.Disabled = disabled
	s.refresh()
}

// AppendVariation adds a variation and returns its id.
func (s *Session) AppendVariation(v types.Variation) types.EphemeralID {
	id := s.engine.newID()
	s.model.AppendVariation(id, v)
	s.refresh()
	return id
}

// EditVariation replaces the fields of an existing variation.
func (s *Session) EditVariation(id types.EphemeralID, v types.Variation) error {
	return s.Update(func(m *EditModel) error {
		ev, err := m.Variation(id)
		if err != nil {
			return err
		}
		ev.Name, ev.Value, ev.Description = v.Name, v.Value, v.Description
		return nil
	})
}

// RemoveVariation deletes a variation.
func (s *Session) RemoveVariation(id types.EphemeralID) error {
	return s.Update(func(m *EditModel) error { return m.RemoveVariation(id) })
}

// AppendRule adds an empty expanded rule and returns its id.
func (s *Session) AppendRule() types.EphemeralID {
	id := s.engine.newID()
	s.model.AppendRule(id)
	s.refresh()
	return id
}

// RemoveRule deletes a rule.
func (s *Session) RemoveRule(id types.EphemeralID) error {
	return s.Update(func(m *EditModel) error { return m.RemoveRule(id) })
}

// MoveRule changes a rule's priority.
func (s *Session) MoveRule(id types.EphemeralID, to int) error {
	return s.Update(func(m *EditModel) error { return m.MoveRule(id, to) })
}

// SetRuleName renames a rule.
func (s *Session) SetRuleName(id types.EphemeralID, name string) error {
	return s.Update(func(m *EditModel) error {
		r, err := m.Rule(id)
		if err != nil {
			return err
		}
		r.Name = name
		return nil
	})
}

// SetRuleServe sets the serve of a rule.
func (s *Session) SetRuleServe(id types.EphemeralID, serve types.Serve) error {
	return s.Update(func(m *EditModel) error {
		r, err := m.Rule(id)
		if err != nil {
			return err
		}
		r.Serve = serve.Clone()
		return nil
	})
}

// SetRuleActive expands or collapses a rule. The flag is edit-only and
// does not make the session dirty.
func (s *Session) SetRuleActive(id types.EphemeralID, active bool) error {
	return s.model.SetRuleActive(id, active)
}

// AppendCondition converts c to its edit shape and appends it to a rule.
func (s *Session) AppendCondition(ruleID types.EphemeralID, c types.Condition) (types.EphemeralID, error) {
	ec := s.engine.codec.ToEdit(c)
	err := s.Update(func(m *EditModel) error { return m.AppendCondition(ruleID, ec) })
	if err != nil {
		return "", err
	}
	return ec.ID, nil
}

// EditCondition applies fn to a condition in place.
func (s *Session) EditCondition(id types.EphemeralID, fn func(c *EditCondition)) error {
	return s.Update(func(m *EditModel) error {
		c, err := m.Condition(id)
		if err != nil {
			return err
		}
		fn(c)
		return nil
	})
}

// RemoveCondition deletes a condition.
func (s *Session) RemoveCondition(id types.EphemeralID) error {
	return s.Update(func(m *EditModel) error { return m.RemoveCondition(id) })
}

// SetDefaultServe sets the serve used when no rule matches.
func (s *Session) SetDefaultServe(serve types.Serve) {
	s.model.DefaultServe = serve.Clone()
	s.refresh()
}

// SetDisabledServe sets the serve used while the toggle is disabled.
func (s *Session) SetDisabledServe(serve types.Serve) {
	s.model.DisabledServe = serve.Clone()
	s.refresh()
}

// Discard drops every edit and starts over from the loaded configuration.
func (s *Session) Discard() {
	s.model = s.engine.normalizer.ToEditModel(s.initial)
	s.refresh()
}

// refresh re-normalizes the model and recomputes the dirty flag. Any open
// confirmation describes an older snapshot and is closed.
func (s *Session) refresh() {
	s.canonical = s.engine.normalizer.ToWireModel(s.model)
	s.dirty = !s.engine.classifier.Equal(s.initial, s.canonical)
	s.confirm = nil
}

// Confirmation is the state of an open publish confirmation.
type Confirmation struct {
	Snapshot       types.Configuration
	Classification Classification
	Report         Report
	// DisclosureRequired is set for material changes to toggles that
	// track access events.
	DisclosureRequired bool
	// ApprovalRequired routes the publish through RequestApproval.
	ApprovalRequired bool
	// TrackChoiceRequired asks whether to start tracking access events.
	TrackChoiceRequired bool
	Reviewers           []string
}

// OpenConfirmation prepares a publish. An invalid model returns the
// validation result, expands the rules holding errors, and opens nothing.
func (s *Session) OpenConfirmation() (*Confirmation, ValidationResult, error) {
	if s.publishing {
		return nil, ValidationResult{}, ErrPublishInFlight
	}
	if !s.dirty {
		return nil, ValidationResult{}, ErrNoChanges
	}

	res := s.Validate()
	if !res.Valid() {
		s.model.ExpandInvalid(res)
		return nil, res, nil
	}

	snapshot := s.canonical.Clone()
	cl := s.engine.classifier.Classify(s.initial, snapshot)
	report, err := BuildReport(s.engine.localizer, s.initial, snapshot, cl)
	if err != nil {
		return nil, res, err
	}

	approval := s.target.Approval.EnableApproval
	s.confirm = &Confirmation{
		Snapshot:            snapshot,
		Classification:      cl,
		Report:              report,
		DisclosureRequired:  cl.Material && s.target.Toggle.TrackEvents,
		ApprovalRequired:    approval,
		TrackChoiceRequired: !approval && s.target.Toggle.AllowEnableTrackEvents,
		Reviewers:           append([]string{}, s.target.Approval.Reviewers...),
	}

	s.engine.logger.Debug("publish confirmation opened",
		"toggle", s.target.Key.String(),
		"material", cl.Material,
		"changes", len(cl.Changes))
	return s.confirm, res, nil
}

// CancelConfirmation closes an open confirmation.
func (s *Session) CancelConfirmation() {
	s.confirm = nil
}

// PublishOptions carries the answers given in the confirmation dialog.
type PublishOptions struct {
	Comment string
	// TrackAccessEvents is the yes/no answer; nil means unanswered.
	TrackAccessEvents      *bool
	DisclosureAcknowledged bool
}

// Publish submits the confirmed snapshot. On success the session is
// finished; the caller loads the new targeting and opens a new session.
func (s *Session) Publish(ctx context.Context, opts PublishOptions) (types.Ack, error) {
	if s.publishing {
		return types.Ack{}, ErrPublishInFlight
	}
	c := s.confirm
	if c == nil {
		return types.Ack{}, ErrNotConfirming
	}
	if s.engine.publisher == nil {
		return types.Ack{}, ErrNoPublisher
	}
	if c.ApprovalRequired && opts.Comment == "" {
		return types.Ack{}, ErrCommentRequired
	}
	if c.TrackChoiceRequired && opts.TrackAccessEvents == nil {
		return types.Ack{}, ErrTrackChoiceRequired
	}
	if c.DisclosureRequired && !opts.DisclosureAcknowledged {
		return types.Ack{}, ErrDisclosureRequired
	}

	ctx, span := s.engine.tracer.Start(ctx, "targeting.Publish", trace.WithAttributes(
		attribute.String("toggle", s.target.Key.String()),
		attribute.Bool("material", c.Classification.Material),
		attribute.Bool("approval", c.ApprovalRequired),
	))
	defer span.End()

	s.publishing = true
	defer func() { s.publishing = false }()

	var (
		ack types.Ack
		err error
		op  string
	)
	if c.ApprovalRequired {
		op = "request approval"
		ack, err = s.engine.publisher.RequestApproval(ctx, s.target.Key, types.ApprovalRequest{
			Configuration: c.Snapshot,
			Comment:       opts.Comment,
			Reviewers:     c.Reviewers,
			BaseVersion:   s.target.Version,
		})
	} else {
		op = "submit"
		req := types.SubmitRequest{
			Configuration: c.Snapshot,
			Comment:       opts.Comment,
			BaseVersion:   s.target.Version,
		}
		if c.TrackChoiceRequired {
			req.TrackAccessEvents = *opts.TrackAccessEvents
		}
		ack, err = s.engine.publisher.Submit(ctx, s.target.Key, req)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.engine.logger.Warn("publish failed",
			"toggle", s.target.Key.String(),
			"op", op,
			"error", err)
		var te *TransportError
		if errors.As(err, &te) {
			return types.Ack{}, err
		}
		return types.Ack{}, &TransportError{Op: op, Key: s.target.Key, Err: err}
	}

	s.confirm = nil
	s.engine.logger.Info("targeting published",
		"toggle", s.target.Key.String(),
		"status", ack.Status,
		"version", ack.Version)
	return ack, nil
}

func (m EditModel) clone() EditModel {
	out := EditModel{
		Disabled:      m.Disabled,
		DefaultServe:  m.DefaultServe.Clone(),
		DisabledServe: m.DisabledServe.Clone(),
	}
	if m.Variations != nil {
		out.Variations = append([]EditVariation{}, m.Variations...)
	}
	if m.Rules != nil {
		out.Rules = make([]EditRule, len(m.Rules))
		for i, r := range m.Rules {
			nr := r
			nr.Serve = r.Serve.Clone()
			if r.Conditions != nil {
				nr.Conditions = make([]EditCondition, len(r.Conditions))
				for j, c := range r.Conditions {
					c.Objects = cloneStrings(c.Objects)
					nr.Conditions[j] = c
				}
			}
			out.Rules[i] = nr
		}
	}
	return out
}
