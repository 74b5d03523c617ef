package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navguard/pkg/model"
)

func openExternals(effects []model.Effect) []model.OpenExternal {
	var out []model.OpenExternal
	for _, e := range effects {
		if oe, ok := e.(model.OpenExternal); ok {
			out = append(out, oe)
		}
	}
	return out
}

func ack(effects []model.Effect) (model.Acknowledge, bool) {
	for _, e := range effects {
		if a, ok := e.(model.Acknowledge); ok {
			return a, true
		}
	}
	return model.Acknowledge{}, false
}

func TestWhitelistedNavigationStarts(t *testing.T) {
	e := New(Config{})
	d := e.Decide(model.NavigationRequest{URL: "https://www.example.com/", LockIdentifier: 1})

	assert.True(t, d.ShouldStart)
	assert.Empty(t, openExternals(d.Effects))
	a, ok := ack(d.Effects)
	require.True(t, ok)
	assert.Equal(t, model.Acknowledge{Lock: 1, Allow: true, URL: "https://www.example.com/"}, a)
}

func TestOverrideDecidesWhitelisted(t *testing.T) {
	deny := New(Config{Override: func(model.NavigationRequest) bool { return false }})
	d := deny.Decide(model.NavigationRequest{URL: "https://www.example.com/", LockIdentifier: 1, IsTopFrame: true})
	assert.False(t, d.ShouldStart)
	assert.Empty(t, openExternals(d.Effects))

	allow := New(Config{Override: func(model.NavigationRequest) bool { return true }})
	d = allow.Decide(model.NavigationRequest{URL: "https://www.example.com/", LockIdentifier: 1})
	assert.True(t, d.ShouldStart)
}

func TestOverrideIsNotConsultedOutsideWhitelist(t *testing.T) {
	called := false
	e := New(Config{
		DeeplinkWhitelist: []string{"invalid:*"},
		Override: func(model.NavigationRequest) bool {
			called = true
			return true
		},
	})
	d := e.Decide(model.NavigationRequest{URL: "invalid://example.com/", IsTopFrame: true, LockIdentifier: 1})

	assert.False(t, called)
	assert.False(t, d.ShouldStart)
	assert.Len(t, openExternals(d.Effects), 1)
}

func TestOverridePanicDenies(t *testing.T) {
	e := New(Config{Override: func(model.NavigationRequest) bool { panic("host bug") }})
	d := e.Decide(model.NavigationRequest{URL: "https://www.example.com/", LockIdentifier: 4})

	assert.False(t, d.ShouldStart)
	a, ok := ack(d.Effects)
	require.True(t, ok)
	assert.False(t, a.Allow)
}

func TestAllowlistOpensExternally(t *testing.T) {
	e := New(Config{OriginWhitelist: []string{"https://*"}, DeeplinkWhitelist: []string{"bitcoin:*"}})
	good := "bitcoin:175tWpb8K1S7NmH4Zx6rewF9WQrcZv245W?amount=50&label=Luke-Jr"

	d := e.Decide(model.NavigationRequest{URL: good, IsTopFrame: true, LockIdentifier: 1})

	assert.False(t, d.ShouldStart)
	require.Len(t, openExternals(d.Effects), 1)
	assert.Equal(t, model.OpenExternal{URL: good, Scheme: "bitcoin:", IsTopFrame: true}, openExternals(d.Effects)[0])
}

func TestBlocklistBeatsAllowlist(t *testing.T) {
	bad := []string{
		"javascript:alert(1)",
		"JavaScript:alert(1)",
		"java\tscript:alert(1)",
		"http://insecure.com/",
		"file:///etc/passwd",
	}
	e := New(Config{
		OriginWhitelist:   []string{},
		DeeplinkWhitelist: []string{"javascript:*", "http:*", "file:*", "*"},
	})
	for _, u := range bad {
		d := e.Decide(model.NavigationRequest{URL: u, IsTopFrame: true, LockIdentifier: 1})
		assert.False(t, d.ShouldStart, u)
		assert.Empty(t, openExternals(d.Effects), u)
	}
}

func TestLimitedAllowlist(t *testing.T) {
	e := New(Config{
		OriginWhitelist:   []string{"https://*"},
		DeeplinkWhitelist: []string{"git+https:*", "fakehttps:*"},
	})

	tests := []struct {
		url      string
		start    bool
		external bool
	}{
		{"https://www.example.com/", true, false},
		{"http://insecure.com/", false, false},
		{"git+https://insecure.com/", false, true},
		{"fakehttps://insecure.com/", false, true},
		{"ftp://files.example.com/", false, false},
	}
	for i, tt := range tests {
		d := e.Decide(model.NavigationRequest{URL: tt.url, IsTopFrame: true, LockIdentifier: model.LockID(i + 1)})
		assert.Equal(t, tt.start, d.ShouldStart, tt.url)
		assert.Equal(t, tt.external, len(openExternals(d.Effects)) == 1, tt.url)
		a, ok := ack(d.Effects)
		require.True(t, ok, tt.url)
		assert.Equal(t, model.LockID(i+1), a.Lock)
	}
}

func TestMalformedSchemeDenied(t *testing.T) {
	e := New(Config{DeeplinkWhitelist: []string{"0invalid:*", "+invalid:*", "*"}})
	for _, u := range []string{"0invalid://www.example.com/", "+invalid://www.example.com/", "::"} {
		d := e.Decide(model.NavigationRequest{URL: u, IsTopFrame: true, LockIdentifier: 1})
		assert.False(t, d.ShouldStart, u)
		assert.Empty(t, openExternals(d.Effects), u)
	}
}

func TestDefaultAllowlistOpensNonWhitelistedHTTPS(t *testing.T) {
	e := New(Config{OriginWhitelist: []string{"https://app.example.com"}})
	d := e.Decide(model.NavigationRequest{URL: "https://other.example.com/", IsTopFrame: true, LockIdentifier: 1})

	assert.False(t, d.ShouldStart)
	assert.Len(t, openExternals(d.Effects), 1)
}

func TestUnlistedSchemeLogs(t *testing.T) {
	e := New(Config{})
	d := e.Decide(model.NavigationRequest{URL: "tel:+123456", IsTopFrame: true, LockIdentifier: 1})

	assert.False(t, d.ShouldStart)
	var logged bool
	for _, eff := range d.Effects {
		if l, ok := eff.(model.Log); ok {
			logged = true
			assert.Equal(t, model.VerdictDeny, l.Verdict)
		}
	}
	assert.True(t, logged)
}

func TestVerdictWithoutLock(t *testing.T) {
	e := New(Config{})

	d := e.Decide(model.NavigationRequest{URL: "https://www.example.com/"})
	_, hasAck := ack(d.Effects)
	assert.False(t, hasAck)
	assert.Contains(t, d.Effects, model.Effect(model.LoadURL{URL: "https://www.example.com/"}))

	d = e.Decide(model.NavigationRequest{URL: "http://www.example.com/"})
	for _, eff := range d.Effects {
		_, isLoad := eff.(model.LoadURL)
		assert.False(t, isLoad)
	}
}

func TestShouldOpenExternally(t *testing.T) {
	assert.True(t, ShouldOpenExternally(true, true, "bitcoin:"))
	assert.False(t, ShouldOpenExternally(true, false, "bitcoin:"))
	assert.False(t, ShouldOpenExternally(false, true, "bitcoin:"))
	assert.True(t, ShouldOpenExternally(false, false, "mailto:"))
	assert.True(t, ShouldOpenExternally(true, false, "mailto:"))
}

func TestUpdateRecompiles(t *testing.T) {
	e := New(Config{OriginWhitelist: []string{"https://a.com"}})
	assert.False(t, e.Decide(model.NavigationRequest{URL: "https://b.com/"}).ShouldStart)

	e.Update(Config{OriginWhitelist: []string{"https://b.com"}})
	assert.True(t, e.Decide(model.NavigationRequest{URL: "https://b.com/"}).ShouldStart)
	assert.True(t, e.Whitelist().Matches("https://b.com"))
}
