package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navguard/internal/config"
	"navguard/internal/session"
	"navguard/internal/version"
	"navguard/pkg/model"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sqlite.Dsn = filepath.Join(t.TempDir(), "journal.db")
	s := New(cfg, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCheck(t *testing.T) {
	s := newTestService(t)

	d := s.Check(model.NavigationRequest{URL: "https://a.com/", LockIdentifier: 2, IsTopFrame: true})
	assert.True(t, d.ShouldStart)
	assert.Contains(t, d.Effects, model.Effect(model.Acknowledge{Lock: 2, Allow: true, URL: "https://a.com/"}))

	d = s.Check(model.NavigationRequest{URL: "javascript:alert(1)", IsTopFrame: true})
	assert.False(t, d.ShouldStart)
}

func TestCheckGate(t *testing.T) {
	s := newTestService(t)

	assert.True(t, s.CheckGate("120.0.6099.109", "").Passed())
	assert.False(t, s.CheckGate("99.0", "").Passed())

	res := s.CheckGate("120.0", "121")
	assert.Equal(t, model.GateBlocked, res.Status)
	assert.Contains(t, res.Reason, "121")
}

func TestViewEventsAndJournal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id := s.CreateView(ViewConfig{StartURL: "https://a.com/"})
	events, err := s.SubscribeEvents(id)
	require.NoError(t, err)

	v, ok := s.views.Get(id)
	require.True(t, ok)
	v.SetGateResult(version.Result{Status: model.GatePassed, Version: "120.0"})
	v.Dispatch(model.ShouldStartLoad{NavigationRequest: model.NavigationRequest{URL: "http://evil.example/", IsTopFrame: true}})

	evt := <-events
	assert.Equal(t, model.EventShouldStartLoad, evt.Event)
	assert.Equal(t, model.VerdictDeny, evt.Verdict)
	assert.Equal(t, id, evt.View)

	recs, err := s.Recent(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, string(model.KindNavigation), recs[0].Kind)
	assert.Equal(t, "http://evil.example/", recs[0].URL)
	assert.Equal(t, string(model.KindVersion), recs[1].Kind)
	assert.Equal(t, string(model.VerdictAllow), recs[1].Verdict)
}

func TestUnknownView(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.SubscribeEvents("nope")
	assert.ErrorIs(t, err, session.ErrViewNotFound)
	assert.ErrorIs(t, s.Attach(ctx, "nope", ""), session.ErrViewNotFound)
	assert.ErrorIs(t, s.UpdatePolicy("nope", s.policy(nil), nil), session.ErrViewNotFound)
	assert.ErrorIs(t, s.CloseView("nope"), session.ErrViewNotFound)
	_, err = s.Lifecycle("nope")
	assert.ErrorIs(t, err, session.ErrViewNotFound)
	_, err = s.Done("nope")
	assert.ErrorIs(t, err, session.ErrViewNotFound)
}

func TestCloseView(t *testing.T) {
	s := newTestService(t)

	id := s.CreateView(ViewConfig{})
	m, err := s.Lifecycle(id)
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, m.State())

	require.NoError(t, s.CloseView(id))
	_, err = s.SubscribeEvents(id)
	assert.ErrorIs(t, err, session.ErrViewNotFound)
	assert.Empty(t, s.views.List())
}
