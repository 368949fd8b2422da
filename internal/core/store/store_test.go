package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/flagkeeper/internal/core/db"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

var checkoutKey = types.ToggleKey{Project: "shop", Environment: "prod", Toggle: "checkout"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.MigrateUp(ctx, conn)
	require.NoError(t, err)
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return New(q, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
}

func boolConfig() types.Configuration {
	return types.Configuration{
		Content: types.Content{
			Variations: []types.Variation{
				{Name: "off", Value: "false"},
				{Name: "on", Value: "true"},
			},
			Rules: []types.Rule{{
				Name: "beta",
				Conditions: []types.Condition{
					{Type: types.ConditionString, Subject: "city", Predicate: "is one of", Objects: []string{"Paris"}},
				},
				Serve: types.SelectServe(1),
			}},
			DefaultServe:  types.SplitServe(2500, 7500),
			DisabledServe: types.SelectServe(0),
		},
	}
}

func createCheckout(t *testing.T, s *Store, approval bool) types.VersionID {
	t.Helper()
	v, err := s.Create(context.Background(), types.Targeting{
		Key:           checkoutKey,
		Configuration: boolConfig(),
		Toggle:        types.ToggleInfo{ReturnType: types.ReturnBoolean, AllowEnableTrackEvents: true},
		Approval:      types.ApprovalInfo{EnableApproval: approval, Reviewers: []string{"alice"}},
	})
	require.NoError(t, err)
	return v
}

func TestCreateLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	version := createCheckout(t, s, false)

	got, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)

	assert.Equal(t, version, got.Version)
	assert.Equal(t, types.ReturnBoolean, got.Toggle.ReturnType)
	assert.True(t, got.Toggle.AllowEnableTrackEvents)
	assert.Equal(t, []string{"alice"}, got.Approval.Reviewers)
	if diff := cmp.Diff(boolConfig(), got.Configuration, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() configuration mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Create(ctx, types.Targeting{Key: checkoutKey})
	assert.ErrorIs(t, err, types.ErrTargetingExists)
}

func TestLoadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), checkoutKey)
	assert.ErrorIs(t, err, types.ErrTargetingNotFound)
}

func TestSubmit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := createCheckout(t, s, false)

	cfg := boolConfig()
	cfg.Content.DefaultServe = types.SelectServe(1)

	ack, err := s.Submit(ctx, checkoutKey, types.SubmitRequest{
		Configuration:     cfg,
		Comment:           "ship it",
		TrackAccessEvents: true,
		BaseVersion:       base,
	})
	require.NoError(t, err)
	assert.Equal(t, types.AckPublished, ack.Status)
	assert.NotEqual(t, base, ack.Version)

	got, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.Equal(t, ack.Version, got.Version)
	assert.Equal(t, types.SelectServe(1), got.Configuration.Content.DefaultServe)
	assert.True(t, got.Toggle.TrackEvents, "track access choice should be persisted")

	versions, err := s.Versions(ctx, checkoutKey, 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, ack.Version, versions[0].ID)
	assert.Equal(t, "ship it", versions[0].Comment)
	assert.Equal(t, base, versions[1].ID)
}

func TestSubmitStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := createCheckout(t, s, false)

	_, err := s.Submit(ctx, checkoutKey, types.SubmitRequest{Configuration: boolConfig(), BaseVersion: base})
	require.NoError(t, err)

	_, err = s.Submit(ctx, checkoutKey, types.SubmitRequest{Configuration: boolConfig(), BaseVersion: base})
	assert.ErrorIs(t, err, types.ErrStaleVersion)
}

func TestSubmitRejections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Submit(ctx, checkoutKey, types.SubmitRequest{Configuration: boolConfig()})
	assert.ErrorIs(t, err, types.ErrTargetingNotFound)

	createCheckout(t, s, false)
	_, err = s.Submit(ctx, checkoutKey, types.SubmitRequest{
		Configuration: boolConfig(),
		Comment:       strings.Repeat("x", 1025),
	})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestSubmitRequiresApprovalWhenEnabled(t *testing.T) {
	s := newTestStore(t)
	createCheckout(t, s, true)

	_, err := s.Submit(context.Background(), checkoutKey, types.SubmitRequest{Configuration: boolConfig()})
	assert.ErrorIs(t, err, types.ErrApprovalRequired)
}

func TestApprovalFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := createCheckout(t, s, true)

	cfg := boolConfig()
	cfg.Disabled = true

	_, err := s.RequestApproval(ctx, checkoutKey, types.ApprovalRequest{Configuration: cfg, Reviewers: []string{"alice"}})
	assert.ErrorIs(t, err, types.ErrInvalidRequest, "comment is mandatory")

	ack, err := s.RequestApproval(ctx, checkoutKey, types.ApprovalRequest{
		Configuration: cfg,
		Comment:       "turn it off",
		Reviewers:     []string{"alice"},
		BaseVersion:   base,
	})
	require.NoError(t, err)
	assert.Equal(t, types.AckPending, ack.Status)
	require.NotEmpty(t, ack.ApprovalID)

	pending, err := s.PendingApprovals(ctx, checkoutKey)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "turn it off", pending[0].Comment)

	got, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.False(t, got.Configuration.Disabled, "request alone must not publish")

	published, err := s.Approve(ctx, checkoutKey, ack.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, types.AckPublished, published.Status)

	got, err = s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.True(t, got.Configuration.Disabled)
	assert.Equal(t, published.Version, got.Version)

	_, err = s.Approve(ctx, checkoutKey, ack.ApprovalID)
	assert.ErrorIs(t, err, types.ErrApprovalResolved)
	assert.ErrorIs(t, s.Decline(ctx, checkoutKey, ack.ApprovalID), types.ErrApprovalResolved)

	_, err = s.Approve(ctx, checkoutKey, "missing")
	assert.ErrorIs(t, err, types.ErrApprovalNotFound)

	other := checkoutKey
	other.Environment = "dev"
	_, err = s.Approve(ctx, other, ack.ApprovalID)
	assert.ErrorIs(t, err, types.ErrApprovalNotFound)
}

func TestApproveStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := createCheckout(t, s, true)

	req := types.ApprovalRequest{Configuration: boolConfig(), Comment: "a", Reviewers: []string{"alice"}, BaseVersion: base}
	first, err := s.RequestApproval(ctx, checkoutKey, req)
	require.NoError(t, err)
	second, err := s.RequestApproval(ctx, checkoutKey, req)
	require.NoError(t, err)

	_, err = s.Approve(ctx, checkoutKey, first.ApprovalID)
	require.NoError(t, err)
	_, err = s.Approve(ctx, checkoutKey, second.ApprovalID)
	assert.ErrorIs(t, err, types.ErrStaleVersion)

	require.NoError(t, s.Decline(ctx, checkoutKey, second.ApprovalID))
	pending, err := s.PendingApprovals(ctx, checkoutKey)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUpdateToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createCheckout(t, s, false)

	err := s.UpdateToggle(ctx, checkoutKey,
		types.ToggleInfo{ReturnType: types.ReturnString, TrackEvents: true},
		types.ApprovalInfo{EnableApproval: true, Reviewers: []string{"bob", "carol"}})
	require.NoError(t, err)

	got, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.Equal(t, types.ReturnString, got.Toggle.ReturnType)
	assert.True(t, got.Approval.EnableApproval)
	assert.Equal(t, []string{"bob", "carol"}, got.Approval.Reviewers)

	missing := checkoutKey
	missing.Toggle = "nope"
	assert.ErrorIs(t, s.UpdateToggle(ctx, missing, types.ToggleInfo{ReturnType: types.ReturnBoolean}, types.ApprovalInfo{}), types.ErrTargetingNotFound)
}

func TestDictionary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "targeting.layout")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "targeting.layout", "compact"))
	require.NoError(t, s.Set(ctx, "targeting.layout", "wide"))

	v, ok, err := s.Get(ctx, "targeting.layout")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "wide", v)

	assert.Error(t, s.Set(ctx, "", "x"))
}

func TestSegments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Segment(ctx, "shop", "vip")
	assert.ErrorIs(t, err, types.ErrSegmentNotFound)

	require.NoError(t, s.PutSegment(ctx, types.Segment{ProjectKey: "shop", Key: "vip", Name: "VIP"}))
	require.NoError(t, s.PutSegment(ctx, types.Segment{ProjectKey: "shop", Key: "beta", Name: "Beta", Description: "testers"}))

	seg, err := s.Segment(ctx, "shop", "vip")
	require.NoError(t, err)
	assert.Equal(t, "VIP", seg.Name)

	segs, err := s.Segments(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "beta", segs[0].Key)

	assert.ErrorIs(t, s.PutSegment(ctx, types.Segment{ProjectKey: "shop"}), types.ErrInvalidRequest)
}

// A session edits what the store loaded and publishes back through it.
func TestSessionPublishesThroughStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createCheckout(t, s, false)

	loaded, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)

	engine := targeting.NewEngine(targeting.WithPublisher(s))
	session := engine.NewSession(loaded)
	require.False(t, session.IsDirty())

	session.SetDefaultServe(types.SelectServe(0))
	require.True(t, session.IsDirty())

	confirm, res, err := session.OpenConfirmation()
	require.NoError(t, err)
	require.True(t, res.Valid(), "validation: %v", res.Err())
	require.NotNil(t, confirm)
	assert.True(t, confirm.Classification.Material)
	assert.True(t, confirm.TrackChoiceRequired)

	no := false
	ack, err := session.Publish(ctx, targeting.PublishOptions{TrackAccessEvents: &no})
	require.NoError(t, err)

	reloaded, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.Equal(t, ack.Version, reloaded.Version)
	assert.Equal(t, types.SelectServe(0), reloaded.Configuration.Content.DefaultServe)

	// The old session is based on a superseded version now.
	session.SetDefaultServe(types.SelectServe(1))
	_, _, err = session.OpenConfirmation()
	require.NoError(t, err)
	_, err = session.Publish(ctx, targeting.PublishOptions{TrackAccessEvents: &no})
	var te *targeting.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, types.ErrStaleVersion)
}

// An empty split is stored as {"split":[]} and loads back unchanged.
func TestEmptySplitSurvivesStorage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := boolConfig()
	cfg.Content.DisabledServe = types.SplitServe()
	_, err := s.Create(ctx, types.Targeting{
		Key:           checkoutKey,
		Configuration: cfg,
		Toggle:        types.ToggleInfo{ReturnType: types.ReturnBoolean},
	})
	require.NoError(t, err)

	got, err := s.Load(ctx, checkoutKey)
	require.NoError(t, err)
	assert.Equal(t, types.SplitServe(), got.Configuration.Content.DisabledServe)
}
