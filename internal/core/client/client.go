// Package client is a gRPC client of the targeting API. It implements the
// persistence contracts of internal/targeting, so an edit session can
// publish to a remote flagkeeper server the same way it publishes to a
// local store.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/solatis/flagkeeper/internal/core/api"
	"github.com/solatis/flagkeeper/internal/core/auth"
	"github.com/solatis/flagkeeper/internal/core/config"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

// APIKeyEnv is the environment variable holding the client's API key.
const APIKeyEnv = "FK_API_KEY"

var (
	_ targeting.Publisher       = (*Client)(nil)
	_ targeting.Loader          = (*Client)(nil)
	_ targeting.SegmentRegistry = (*Client)(nil)
)

// Client calls a remote TargetingAPI.
type Client struct {
	cc      *grpc.ClientConn
	apiKey  string
	timeout time.Duration
	retry   retryConfig
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	apiKey   string
	logger   *slog.Logger
	dialOpts []grpc.DialOption
}

// WithAPIKey sets the API key instead of reading FK_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithLogger sets the logger for retry events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

// New creates a client for cfg.Address. The connection is established
// lazily on the first call.
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	o := options{
		apiKey: os.Getenv(APIKeyEnv),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf("API key required (set %s)", APIKeyEnv)
	}
	if _, _, err := auth.ParseAPIKey(o.apiKey); err != nil {
		return nil, fmt.Errorf("%s: %w", APIKeyEnv, err)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	}, o.dialOpts...)

	cc, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
	}

	return &Client{
		cc:      cc,
		apiKey:  o.apiKey,
		timeout: cfg.Timeout,
		retry: retryConfig{
			maxRetries: cfg.MaxRetries,
			baseDelay:  cfg.RetryBaseDelay,
			maxDelay:   cfg.RetryBaseDelay * 16,
		},
		logger: o.logger,
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.cc.Close()
}

// invoke calls one method with the API key attached and a per-attempt
// timeout. Transient failures of retryable methods are retried. Status
// errors come back wrapping their domain sentinel.
func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	ctx = metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, c.apiKey)
	attempt := 0

	rc := c.retry
	if !retryableMethods[method] {
		rc.maxRetries = 0
	}
	err := retryOp(ctx, rc, func(ctx context.Context) error {
		if attempt > 0 {
			c.logger.Debug("retrying targeting api call", "method", method, "attempt", attempt)
		}
		attempt++

		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.cc.Invoke(ctx, api.FullMethod(method), req, resp)
	})
	if err != nil {
		return api.FromStatus(err)
	}
	return nil
}

// Load fetches the stored targeting of a toggle.
func (c *Client) Load(ctx context.Context, key types.ToggleKey) (types.Targeting, error) {
	var resp api.LoadResponse
	if err := c.invoke(ctx, api.MethodLoad, &api.LoadRequest{Key: key}, &resp); err != nil {
		return types.Targeting{}, err
	}
	return resp.Targeting, nil
}

// Submit publishes a configuration directly.
func (c *Client) Submit(ctx context.Context, key types.ToggleKey, req types.SubmitRequest) (types.Ack, error) {
	var resp api.AckResponse
	if err := c.invoke(ctx, api.MethodSubmit, &api.SubmitRequest{Key: key, Request: req}, &resp); err != nil {
		return types.Ack{}, err
	}
	return resp.Ack, nil
}

// RequestApproval records a configuration for review.
func (c *Client) RequestApproval(ctx context.Context, key types.ToggleKey, req types.ApprovalRequest) (types.Ack, error) {
	var resp api.AckResponse
	if err := c.invoke(ctx, api.MethodRequestApproval, &api.RequestApprovalRequest{Key: key, Request: req}, &resp); err != nil {
		return types.Ack{}, err
	}
	return resp.Ack, nil
}

// Approve publishes a pending approval.
func (c *Client) Approve(ctx context.Context, key types.ToggleKey, id types.ApprovalID) (types.Ack, error) {
	var resp api.AckResponse
	if err := c.invoke(ctx, api.MethodApprove, &api.ResolveApprovalRequest{Key: key, ApprovalID: id}, &resp); err != nil {
		return types.Ack{}, err
	}
	return resp.Ack, nil
}

// Decline closes a pending approval.
func (c *Client) Decline(ctx context.Context, key types.ToggleKey, id types.ApprovalID) error {
	return c.invoke(ctx, api.MethodDecline, &api.ResolveApprovalRequest{Key: key, ApprovalID: id}, &api.Empty{})
}

// Check validates a configuration on the server.
func (c *Client) Check(ctx context.Context, cfg types.Configuration, toggle types.ToggleInfo) (*api.CheckResponse, error) {
	var resp api.CheckResponse
	if err := c.invoke(ctx, api.MethodCheck, &api.CheckRequest{Configuration: cfg, Toggle: toggle}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Diff classifies a transition on the server.
func (c *Client) Diff(ctx context.Context, before, after types.Configuration) (*api.DiffResponse, error) {
	var resp api.DiffResponse
	if err := c.invoke(ctx, api.MethodDiff, &api.DiffRequest{Before: before, After: after}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Segment looks up an audience segment.
func (c *Client) Segment(ctx context.Context, projectKey, key string) (types.Segment, error) {
	var resp api.SegmentResponse
	if err := c.invoke(ctx, api.MethodGetSegment, &api.SegmentRequest{Project: projectKey, Key: key}, &resp); err != nil {
		return types.Segment{}, err
	}
	return resp.Segment, nil
}

// Preferences returns the editor preference dictionary of a project.
func (c *Client) Preferences(project string) targeting.Dictionary {
	return preferences{c: c, project: project}
}

type preferences struct {
	c       *Client
	project string
}

func (p preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var resp api.PreferenceResponse
	if err := p.c.invoke(ctx, api.MethodGetPreference, &api.PreferenceRequest{Project: p.project, Key: key}, &resp); err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

func (p preferences) Set(ctx context.Context, key, value string) error {
	return p.c.invoke(ctx, api.MethodSetPreference, &api.PreferenceRequest{Project: p.project, Key: key, Value: value}, &api.Empty{})
}
