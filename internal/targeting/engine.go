// Package targeting is the targeting configuration engine: conversion
// between the canonical configuration and its edit model, pre-publish
// validation, change classification, and the edit session that ties them
// together around a Publisher.
package targeting

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/solatis/flagkeeper/internal/types"
)

const tracerName = "github.com/solatis/flagkeeper/internal/targeting"

// Engine holds the collaborators shared by all sessions. Safe for
// concurrent use; sessions created from it are not.
type Engine struct {
	localizer  Localizer
	now        func() time.Time
	newID      func() types.EphemeralID
	publisher  Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
	cosmetic   []string
	codec      Codec
	normalizer Normalizer
	validator  Validator
	classifier Classifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocalizer sets the message catalog for placeholders and errors.
func WithLocalizer(l Localizer) Option {
	return func(e *Engine) { e.localizer = l }
}

// WithClock sets the clock used for datetime condition defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDSource sets the ephemeral id generator.
func WithIDSource(newID func() types.EphemeralID) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithPublisher sets the persistence service sessions publish to.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer for publish spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithCosmeticVariationFields overrides which variation fields can change
// without the change counting as material.
func WithCosmeticVariationFields(fields ...string) Option {
	return func(e *Engine) { e.cosmetic = fields }
}

// NewEngine builds an engine. Without WithPublisher, sessions can edit and
// classify but Publish fails.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		localizer: KeyLocalizer{},
		now:       time.Now,
		newID:     types.NewEphemeralID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	e.codec = NewCodec(e.localizer, e.now, e.newID)
	e.normalizer = NewNormalizer(e.codec)
	e.validator = NewValidator(e.localizer)
	e.classifier = NewClassifier(e.cosmetic...)
	return e
}

// Codec returns the engine's condition codec.
func (e *Engine) Codec() Codec { return e.codec }

// Normalizer returns the engine's configuration normalizer.
func (e *Engine) Normalizer() Normalizer { return e.normalizer }

// Validator returns the engine's validator.
func (e *Engine) Validator() Validator { return e.validator }

// Classifier returns the engine's change classifier.
func (e *Engine) Classifier() Classifier { return e.classifier }

// Localizer returns the engine's message catalog.
func (e *Engine) Localizer() Localizer { return e.localizer }

// Check validates a canonical configuration outside of a session, as the
// editor would on publish.
func (e *Engine) Check(c types.Configuration, toggle types.ToggleInfo) ValidationResult {
	return e.validator.Validate(e.normalizer.ToEditModel(c), toggle)
}

// NewSession opens an edit session on a loaded targeting. The targeting's
// configuration is deep-cloned; the caller's copy is never touched.
func (e *Engine) NewSession(t types.Targeting) *Session {
	initial := t.Configuration.Clone()
	s := &Session{
		engine:  e,
		target:  t,
		initial: initial,
		model:   e.normalizer.ToEditModel(initial),
	}
	s.refresh()
	e.logger.Debug("edit session opened",
		"toggle", t.Key.String(),
		"version", t.Version,
		"rules", len(initial.Content.Rules),
		"variations", len(initial.Content.Variations))
	return s
}
