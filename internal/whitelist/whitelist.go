package whitelist

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// AboutBlank 始终放行的占位页面
const AboutBlank = "about:blank"

// DefaultOriginWhitelist 默认来源白名单
var DefaultOriginWhitelist = []string{"https://*"}

// Whitelist 编译后的来源白名单，创建后不可变
type Whitelist struct {
	patterns []string
	compiled []*regexp.Regexp
}

var cache = struct {
	sync.Mutex
	lists map[string]*Whitelist
}{lists: make(map[string]*Whitelist)}

// Compile 将通配符模式编译为锚定的正则，about:blank 总是包含在内。
// 相同的列表只编译一次。
func Compile(patterns []string) *Whitelist {
	key := strconv.Itoa(len(patterns)) + "\x00" + strings.Join(patterns, "\x00")

	cache.Lock()
	defer cache.Unlock()
	if w, ok := cache.lists[key]; ok {
		return w
	}

	all := append([]string{AboutBlank}, patterns...)
	w := &Whitelist{
		patterns: append([]string(nil), patterns...),
		compiled: CompilePatterns(all),
	}
	cache.lists[key] = w
	return w
}

// CompilePatterns 转义字面字符、将 * 展开为 .* 并整体锚定
func CompilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(p), `\*`, ".*") + "$"
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// MatchAny 任一正则匹配即返回 true
func MatchAny(compiled []*regexp.Regexp, value string) bool {
	for _, re := range compiled {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// Patterns 返回宿主配置的原始模式（不含 about:blank）
func (w *Whitelist) Patterns() []string {
	return append([]string(nil), w.patterns...)
}

// Matches 优先匹配来源，来源不透明时回退到完整URL；无法解析的URL一律不匹配
func (w *Whitelist) Matches(rawURL string) bool {
	if w == nil {
		return false
	}
	u, err := parse(rawURL)
	if err != nil {
		return false
	}
	if origin := u.origin(); origin != "" {
		return MatchAny(w.compiled, origin)
	}
	return MatchAny(w.compiled, u.href())
}

// SourceURI 初始加载地址未通过白名单时替换为 about:blank
func (w *Whitelist) SourceURI(uri string) string {
	if w.Matches(uri) {
		return uri
	}
	return AboutBlank
}

// Origin 返回URL的来源，不透明来源或无法解析时返回 false
func Origin(rawURL string) (string, bool) {
	u, err := parse(rawURL)
	if err != nil {
		return "", false
	}
	o := u.origin()
	return o, o != ""
}

// Scheme 返回小写且带冒号的协议，例如 "https:"
func Scheme(rawURL string) (string, bool) {
	u, err := parse(rawURL)
	if err != nil {
		return "", false
	}
	return u.scheme + ":", true
}

// Normalize 返回规范化后的完整URL
func Normalize(rawURL string) (string, bool) {
	u, err := parse(rawURL)
	if err != nil {
		return "", false
	}
	return u.href(), true
}

var ErrInlineHTMLWhitelist = errors.New("originWhitelist is required when loading inline html and cannot include *")

// ValidateHTMLSource 加载内联HTML时白名单必须非空且不能包含 "*"
func ValidateHTMLSource(patterns []string) error {
	if len(patterns) == 0 {
		return ErrInlineHTMLWhitelist
	}
	for _, p := range patterns {
		if p == "*" {
			return ErrInlineHTMLWhitelist
		}
	}
	return nil
}
