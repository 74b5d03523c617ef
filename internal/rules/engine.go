package rules

import (
	"fmt"
	"regexp"
	"strings"

	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

// DefaultDeeplinkWhitelist 默认深链允许列表
var DefaultDeeplinkWhitelist = []string{"https:"}

// 硬编码的深链阻止列表，优先级高于任何宿主配置
var deeplinkBlocklist = [...]string{"http:", "file:", "javascript:"}

// 无论是否顶层帧都允许外部打开的邮件协议
var mailComposeSchemes = [...]string{"mailto:"}

// OverrideFunc 宿主对白名单内导航的二次裁决
type OverrideFunc func(req model.NavigationRequest) bool

// Config 深链策略配置
type Config struct {
	OriginWhitelist   []string
	DeeplinkWhitelist []string
	Override          OverrideFunc
}

// Engine 深链仲裁引擎
type Engine struct {
	origins   *whitelist.Whitelist
	allowlist []*regexp.Regexp
	override  OverrideFunc
}

// Decision 同步得出的导航决策及其副作用
type Decision struct {
	ShouldStart bool
	Effects     []model.Effect
}

func New(cfg Config) *Engine {
	e := &Engine{}
	e.Update(cfg)
	return e
}

// Update 重新编译白名单与允许列表
func (e *Engine) Update(cfg Config) {
	origins := cfg.OriginWhitelist
	if origins == nil {
		origins = whitelist.DefaultOriginWhitelist
	}
	deeplinks := cfg.DeeplinkWhitelist
	if deeplinks == nil {
		deeplinks = DefaultDeeplinkWhitelist
	}
	e.origins = whitelist.Compile(origins)
	lowered := make([]string, len(deeplinks))
	for i, p := range deeplinks {
		lowered[i] = strings.ToLower(p)
	}
	e.allowlist = whitelist.CompilePatterns(lowered)
	e.override = cfg.Override
}

// Whitelist 返回当前来源白名单
func (e *Engine) Whitelist() *whitelist.Whitelist { return e.origins }

// IsBlocked 协议是否命中硬编码阻止列表
func IsBlocked(scheme string) bool {
	for _, s := range deeplinkBlocklist {
		if s == scheme {
			return true
		}
	}
	return false
}

// IsMailCompose 是否为邮件协议
func IsMailCompose(scheme string) bool {
	for _, s := range mailComposeSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// ShouldOpenExternally 外部处理器探测完成后决定是否真正打开
func ShouldOpenExternally(supported, isTopFrame bool, scheme string) bool {
	return (supported && isTopFrame) || IsMailCompose(scheme)
}

// Decide 按 白名单 → 协议解析 → 阻止列表 → 允许列表 的顺序仲裁导航
func (e *Engine) Decide(req model.NavigationRequest) Decision {
	var d Decision

	if e.origins.Matches(req.URL) {
		d.ShouldStart = e.runOverride(req, &d)
		return d.withVerdict(req)
	}

	scheme, ok := whitelist.Scheme(req.URL)
	switch {
	case !ok:
		d.log(model.LevelWarn, req.URL, "深链协议无法解析")
	case IsBlocked(scheme):
		d.log(model.LevelWarn, req.URL, fmt.Sprintf("深链协议 %s 命中默认阻止列表", scheme))
	case whitelist.MatchAny(e.allowlist, scheme):
		d.Effects = append(d.Effects, model.OpenExternal{
			URL:        req.URL,
			Scheme:     scheme,
			IsTopFrame: req.IsTopFrame,
		})
	default:
		d.log(model.LevelWarn, req.URL, "深链未通过允许列表")
	}

	d.ShouldStart = false
	return d.withVerdict(req)
}

// runOverride 执行宿主裁决，宿主 panic 视为拒绝
func (e *Engine) runOverride(req model.NavigationRequest, d *Decision) (allow bool) {
	if e.override == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			allow = false
			d.log(model.LevelError, req.URL, fmt.Sprintf("宿主导航裁决异常: %v", r))
		}
	}()
	return e.override(req)
}

func (d *Decision) log(level model.LogLevel, url, msg string) {
	d.Effects = append(d.Effects, model.Log{
		Level:   level,
		Kind:    model.KindNavigation,
		Verdict: model.VerdictDeny,
		URL:     url,
		Message: msg,
	})
}

// withVerdict 追加决策回执：有锁时回复锁，无锁且放行时直接加载
func (d Decision) withVerdict(req model.NavigationRequest) Decision {
	switch {
	case req.LockIdentifier != 0:
		d.Effects = append(d.Effects, model.Acknowledge{
			Lock:  req.LockIdentifier,
			Allow: d.ShouldStart,
			URL:   req.URL,
		})
	case d.ShouldStart:
		d.Effects = append(d.Effects, model.LoadURL{URL: req.URL})
	}
	return d
}
