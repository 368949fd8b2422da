package client

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/flagkeeper/internal/core/api"
	"github.com/solatis/flagkeeper/internal/core/auth"
	"github.com/solatis/flagkeeper/internal/core/config"
	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/core/server"
	"github.com/solatis/flagkeeper/internal/core/store"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var (
	checkoutKey = types.ToggleKey{Project: "shop", Environment: "prod", Toggle: "checkout"}
	dummyKey    = auth.FormatAPIKey(testSecretID, strings.Repeat("0", 64))
)

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		Address:        "passthrough:///bufnet",
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

func bufDialer(lis *bufconn.Listener) Option {
	return WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
}

// flakyServer fails Load with UNAVAILABLE until failures runs out.
type flakyServer struct {
	api.UnimplementedTargetingAPIServer
	failures atomic.Int32
	calls    atomic.Int32
	apiKeys  chan string
}

func (f *flakyServer) Load(ctx context.Context, req *api.LoadRequest) (*api.LoadResponse, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, status.Error(codes.Unavailable, "warming up")
	}
	return &api.LoadResponse{Targeting: types.Targeting{Key: req.Key, Version: "v1"}}, nil
}

func (f *flakyServer) Submit(ctx context.Context, req *api.SubmitRequest) (*api.AckResponse, error) {
	f.calls.Add(1)
	return nil, status.Error(codes.NotFound, fmt.Sprintf("%v: %s", types.ErrTargetingNotFound, req.Key))
}

func (f *flakyServer) RequestApproval(ctx context.Context, req *api.RequestApprovalRequest) (*api.AckResponse, error) {
	f.calls.Add(1)
	return nil, status.Error(codes.Unavailable, "connection reset")
}

func (f *flakyServer) Approve(ctx context.Context, req *api.ResolveApprovalRequest) (*api.AckResponse, error) {
	f.calls.Add(1)
	return nil, status.Error(codes.DeadlineExceeded, "took too long")
}

func startFake(t *testing.T, srv api.TargetingAPIServer) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	api.RegisterTargetingAPIServer(s, srv)
	go s.Serve(lis)
	t.Cleanup(s.Stop)
	return lis
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := New(testClientConfig())
	assert.Error(t, err)

	_, err = New(testClientConfig(), WithAPIKey("not-a-key"))
	assert.ErrorIs(t, err, auth.ErrInvalidKeyFormat)

	t.Setenv(APIKeyEnv, dummyKey)
	c, err := New(testClientConfig())
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestRetriesTransientErrors(t *testing.T) {
	fake := &flakyServer{}
	fake.failures.Store(2)
	lis := startFake(t, fake)

	c, err := New(testClientConfig(), WithAPIKey(dummyKey), bufDialer(lis))
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Load(context.Background(), checkoutKey)
	require.NoError(t, err)
	assert.Equal(t, types.VersionID("v1"), got.Version)
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	fake := &flakyServer{}
	fake.failures.Store(100)
	lis := startFake(t, fake)

	c, err := New(testClientConfig(), WithAPIKey(dummyKey), bufDialer(lis))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Load(context.Background(), checkoutKey)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, int32(4), fake.calls.Load(), "one call plus three retries")
}

func TestDoesNotRetryDomainErrors(t *testing.T) {
	fake := &flakyServer{}
	lis := startFake(t, fake)

	c, err := New(testClientConfig(), WithAPIKey(dummyKey), bufDialer(lis))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Submit(context.Background(), checkoutKey, types.SubmitRequest{})
	assert.ErrorIs(t, err, types.ErrTargetingNotFound)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestApprovalCallsRunOnce(t *testing.T) {
	fake := &flakyServer{}
	lis := startFake(t, fake)

	c, err := New(testClientConfig(), WithAPIKey(dummyKey), bufDialer(lis))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.RequestApproval(context.Background(), checkoutKey, types.ApprovalRequest{Comment: "ship it", Reviewers: []string{"ann"}})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, int32(1), fake.calls.Load(), "approval requests are never resent")

	_, err = c.Approve(context.Background(), checkoutKey, "a1")
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestRetryableMethods(t *testing.T) {
	for _, m := range []string{api.MethodRequestApproval, api.MethodApprove, api.MethodDecline} {
		assert.False(t, retryableMethods[m], m)
	}
	for _, m := range []string{api.MethodLoad, api.MethodSubmit, api.MethodCheck, api.MethodDiff, api.MethodGetSegment} {
		assert.True(t, retryableMethods[m], m)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := retryConfig{maxRetries: 5, baseDelay: 50 * time.Millisecond, maxDelay: 200 * time.Millisecond}

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{0, 50 * time.Millisecond, 100 * time.Millisecond},
		{1, 100 * time.Millisecond, 150 * time.Millisecond},
		{2, 200 * time.Millisecond, 250 * time.Millisecond},
		{5, 200 * time.Millisecond, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		d := backoffDelay(cfg, tt.attempt)
		if d < tt.min || d >= tt.max {
			t.Errorf("backoffDelay(%d) = %v, want in [%v, %v)", tt.attempt, d, tt.min, tt.max)
		}
	}
}

func TestRetryStopsOnContextEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryOp(ctx, retryConfig{maxRetries: 10, baseDelay: time.Hour, maxDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, 1, calls)
}

// An edit session publishes through the client to a real server.
func TestSessionPublishesThroughServer(t *testing.T) {
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = db.MigrateUp(ctx, conn)
	require.NoError(t, err)
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: make([]byte, 32)}, q)
	_, key, err := authenticator.Issue(ctx, "shop", "editor", testSecretID)
	require.NoError(t, err)

	st := store.New(q)
	_, err = st.Create(ctx, types.Targeting{
		Key: checkoutKey,
		Configuration: types.Configuration{Content: types.Content{
			Variations:    []types.Variation{{Name: "off", Value: "false"}, {Name: "on", Value: "true"}},
			DefaultServe:  types.SelectServe(0),
			DisabledServe: types.SelectServe(0),
		}},
		Toggle: types.ToggleInfo{ReturnType: types.ReturnBoolean},
	})
	require.NoError(t, err)
	require.NoError(t, st.PutSegment(ctx, types.Segment{ProjectKey: "shop", Key: "vip", Name: "VIP"}))

	svc, err := api.NewTargetingService(st, targeting.NewEngine(), nil)
	require.NoError(t, err)
	apiCfg := config.Default().TargetingAPI
	srv, err := server.NewGRPCServer(&apiCfg, svc, authenticator, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	c, err := New(testClientConfig(), WithAPIKey(key), bufDialer(lis))
	require.NoError(t, err)
	defer c.Close()

	loaded, err := c.Load(ctx, checkoutKey)
	require.NoError(t, err)

	session := targeting.NewEngine(targeting.WithPublisher(c)).NewSession(loaded)
	ruleID := session.AppendRule()
	_, err = session.AppendCondition(ruleID, types.Condition{Type: types.ConditionSegment, Predicate: "is in", Objects: []string{"vip"}})
	require.NoError(t, err)
	require.NoError(t, session.SetRuleServe(ruleID, types.SelectServe(1)))

	_, res, err := session.OpenConfirmation()
	require.NoError(t, err)
	require.True(t, res.Valid(), "validation: %v", res.Err())

	ack, err := session.Publish(ctx, targeting.PublishOptions{Comment: "vip beta"})
	require.NoError(t, err)
	assert.Equal(t, types.AckPublished, ack.Status)

	reloaded, err := c.Load(ctx, checkoutKey)
	require.NoError(t, err)
	require.Len(t, reloaded.Configuration.Content.Rules, 1)
	assert.Equal(t, []string{"vip"}, reloaded.Configuration.Content.Rules[0].Conditions[0].Objects)
	assert.Empty(t, reloaded.Configuration.Content.Rules[0].Conditions[0].Subject, "segment subject is never persisted")

	seg, err := c.Segment(ctx, "shop", "vip")
	require.NoError(t, err)
	assert.Equal(t, "VIP", seg.Name)

	prefs := c.Preferences("shop")
	require.NoError(t, prefs.Set(ctx, "layout", "wide"))
	v, ok, err := prefs.Get(ctx, "layout")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "wide", v)

	_, err = c.Load(ctx, types.ToggleKey{Project: "blog", Environment: "prod", Toggle: "x"})
	assert.ErrorIs(t, err, auth.ErrWrongProject)

	check, err := c.Check(ctx, reloaded.Configuration, reloaded.Toggle)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	diff, err := c.Diff(ctx, loaded.Configuration, reloaded.Configuration)
	require.NoError(t, err)
	assert.True(t, diff.Material)
}
