package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		url      string
		want     bool
	}{
		{"default https", DefaultOriginWhitelist, "https://www.example.com/", true},
		{"default rejects http", DefaultOriginWhitelist, "http://example.com/", false},
		{"about blank always", nil, "about:blank", true},
		{"about blank with custom list", []string{"https://a.com"}, "about:blank", true},
		{"javascript rejected", DefaultOriginWhitelist, "javascript:alert(1)", false},
		{"not a url", DefaultOriginWhitelist, "not a url", false},
		{"empty", DefaultOriginWhitelist, "", false},
		{"https without host", DefaultOriginWhitelist, "https://", false},
		{"subdomain wildcard", []string{"https://*.example.com"}, "https://api.example.com/x", true},
		{"wildcard needs subdomain", []string{"https://*.example.com"}, "https://example.com/", false},
		{"anchored suffix", []string{"https://*.example.com"}, "https://api.example.com.evil.com/", false},
		{"query ignored", []string{"https://*.example.com"}, "https://evil.com/?x=.example.com", false},
		{"userinfo ignored", []string{"https://*.example.com"}, "https://api.example.com@evil.com/", false},
		{"backslash is path", []string{"https://evil.com"}, "https://evil.com\\@api.example.com", true},
		{"backslash cannot smuggle host", []string{"https://*.example.com"}, "https://evil.com\\@api.example.com", false},
		{"default port dropped", []string{"https://a.com"}, "https://a.com:443/path", true},
		{"custom port kept", []string{"https://a.com"}, "https://a.com:8443/", false},
		{"custom port pattern", []string{"https://a.com:8443"}, "https://a.com:8443/", true},
		{"case insensitive", []string{"https://a.com"}, "HTTPS://A.COM/x", true},
		{"dot is literal", []string{"https://a.com"}, "https://aXcom/", false},
		{"exact anchored", []string{"https://a.com"}, "https://a.com.evil.com/", false},
		{"opaque origin falls back to href", []string{"plus+https://*"}, "plus+https://www.example.com/", true},
		{"opaque origin href mismatch", DefaultOriginWhitelist, "plus+https://www.example.com/", false},
		{"file url uses href", []string{"file:///data/*"}, "file:///data/index.html", true},
		{"idna host", []string{"https://xn--bcher-kva.example"}, "https://bücher.example/", true},
		{"bad port", DefaultOriginWhitelist, "https://a.com:99999/", false},
		{"forbidden host char", DefaultOriginWhitelist, "https://a<b.com/", false},
		{"digit scheme", []string{"*"}, "0invalid://www.example.com/", false},
		{"star matches everything parseable", []string{"*"}, "bitcoin:abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compile(tt.patterns).Matches(tt.url))
		})
	}
}

func TestNilWhitelistFailsClosed(t *testing.T) {
	var w *Whitelist
	assert.False(t, w.Matches("https://a.com"))
}

func TestCompileIsCachedPerList(t *testing.T) {
	a := Compile([]string{"https://a.com", "https://b.com"})
	b := Compile([]string{"https://a.com", "https://b.com"})
	c := Compile([]string{"https://a.com"})

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, []string{"https://a.com"}, c.Patterns())
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		url    string
		origin string
		ok     bool
	}{
		{"https://A.com:443/x?y#z", "https://a.com", true},
		{"http://a.com:8080", "http://a.com:8080", true},
		{"wss://chat.a.com/socket", "wss://chat.a.com", true},
		{"https://user:pw@a.com/", "https://a.com", true},
		{"https://[::1]:8443/", "https://[::1]:8443", true},
		{"about:blank", "", false},
		{"mailto:a@b.com", "", false},
		{"file:///etc/passwd", "", false},
		{"::", "", false},
	}
	for _, tt := range tests {
		got, ok := Origin(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.origin, got, tt.url)
	}
}

func TestScheme(t *testing.T) {
	tests := []struct {
		url    string
		scheme string
		ok     bool
	}{
		{"https://a.com", "https:", true},
		{"BITCOIN:175tWpb8K1S7NmH4Zx6rewF9WQrcZv245W", "bitcoin:", true},
		{"git+https://insecure.com/", "git+https:", true},
		{"java\tscript:alert(1)", "javascript:", true},
		{"  mailto:a@b.com  ", "mailto:", true},
		{"0invalid://www.example.com/", "", false},
		{"+invalid://www.example.com/", "", false},
		{"_invalid:x", "", false},
		{"no-scheme-here", "", false},
		{"http://", "", false},
	}
	for _, tt := range tests {
		got, ok := Scheme(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.scheme, got, tt.url)
	}
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("HTTPS://Example.COM")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/", got)

	got, ok = Normalize("https://example.com\\a\\b?q=\\x")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a/b?q=\\x", got)

	got, ok = Normalize("About:blank")
	require.True(t, ok)
	assert.Equal(t, "about:blank", got)
}

func TestSourceURI(t *testing.T) {
	w := Compile([]string{"https://app.example.com"})
	assert.Equal(t, "https://app.example.com/home", w.SourceURI("https://app.example.com/home"))
	assert.Equal(t, AboutBlank, w.SourceURI("https://evil.com/"))
	assert.Equal(t, AboutBlank, w.SourceURI("::bad"))
}

func TestValidateHTMLSource(t *testing.T) {
	assert.ErrorIs(t, ValidateHTMLSource(nil), ErrInlineHTMLWhitelist)
	assert.ErrorIs(t, ValidateHTMLSource([]string{"*", "http://localhost"}), ErrInlineHTMLWhitelist)
	assert.NoError(t, ValidateHTMLSource([]string{"http://localhost"}))
}
