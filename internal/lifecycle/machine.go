package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"navguard/internal/logger"
	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

// Commander 视图的命令式操作，由平台绑定实现
type Commander interface {
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	StopLoading(ctx context.Context) error
	PostMessage(ctx context.Context, data string) error
}

// Hooks 宿主的加载回调，均可为空
type Hooks struct {
	OnLoadStart func(ev model.LoadStart)
	OnLoad      func(ev model.LoadFinish)
	// OnLoadEnd 在加载完成与加载失败时都会调用，参数为 model.LoadFinish 或 model.LoadError
	OnLoadEnd func(ev model.NativeEvent)
	OnError   func(n *ErrorNotice)
}

// ErrorNotice 交给宿主的加载错误，宿主可调用 PreventDefault 阻止进入错误状态
type ErrorNotice struct {
	Event     model.LoadError
	prevented bool
}

func (n *ErrorNotice) PreventDefault() { n.prevented = true }

func (n *ErrorNotice) DefaultPrevented() bool { return n.prevented }

// Config 状态机配置
type Config struct {
	Platform            model.Platform
	Whitelist           *whitelist.Whitelist
	Hooks               Hooks
	Commander           Commander
	StartInLoadingState bool
	Logger              logger.Logger
}

// Machine 单个视图的加载状态机
type Machine struct {
	mu        sync.Mutex
	state     model.LoadingState
	lastError *model.ErrorEvent
	startURL  string

	platform  model.Platform
	whitelist *whitelist.Whitelist
	hooks     Hooks
	cmd       Commander
	log       logger.Logger
}

func New(cfg Config) *Machine {
	m := &Machine{
		platform:  cfg.Platform,
		whitelist: cfg.Whitelist,
		hooks:     cfg.Hooks,
		cmd:       cfg.Commander,
		log:       cfg.Logger,
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	if cfg.StartInLoadingState {
		m.state = model.StateLoading
	}
	return m
}

// SetWhitelist 白名单更新后替换
func (m *Machine) SetWhitelist(w *whitelist.Whitelist) {
	m.mu.Lock()
	m.whitelist = w
	m.mu.Unlock()
}

// SetCommander 绑定原生视图后设置
func (m *Machine) SetCommander(c Commander) {
	m.mu.Lock()
	m.cmd = c
	m.mu.Unlock()
}

// State 当前状态
func (m *Machine) State() model.LoadingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError 最近一次导致错误状态的加载错误
func (m *Machine) LastError() *model.ErrorEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastError == nil {
		return nil
	}
	e := *m.lastError
	return &e
}

// StartURL 当前导航的起始URL锚点
func (m *Machine) StartURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startURL
}

// OnLoadStart 记录起始URL锚点，状态不变
func (m *Machine) OnLoadStart(ev model.LoadStart) {
	m.mu.Lock()
	m.startURL = ev.URL
	m.mu.Unlock()

	if m.hooks.OnLoadStart != nil {
		m.call("onLoadStart", func() { m.hooks.OnLoadStart(ev) })
	}
}

// OnLoadingError 通知宿主后进入错误状态，宿主阻止默认行为时状态不变
func (m *Machine) OnLoadingError(ev model.LoadError) {
	notice := &ErrorNotice{Event: ev}
	if m.hooks.OnError != nil {
		m.call("onError", func() { m.hooks.OnError(notice) })
	} else {
		m.log.Warn("页面加载出错", "url", ev.URL, "domain", ev.Error.Domain, "code", ev.Error.Code, "description", ev.Error.Description)
	}
	if m.hooks.OnLoadEnd != nil {
		m.call("onLoadEnd", func() { m.hooks.OnLoadEnd(ev) })
	}
	if notice.DefaultPrevented() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	errEv := ev.Error
	m.state = model.StateError
	m.lastError = &errEv
}

// OnLoadingFinish 通知宿主，URL通过白名单且属于当前导航时回到空闲状态
func (m *Machine) OnLoadingFinish(ev model.LoadFinish) {
	if m.hooks.OnLoad != nil {
		m.call("onLoad", func() { m.hooks.OnLoad(ev) })
	}
	if m.hooks.OnLoadEnd != nil {
		m.call("onLoadEnd", func() { m.hooks.OnLoadEnd(ev) })
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.whitelist.Matches(ev.URL) {
		m.log.Debug("忽略非白名单帧的加载完成事件", "url", ev.URL)
		return
	}
	// 无法区分子帧完成事件的平台只认起始URL
	if m.platform.ReliableTopFrame() || ev.URL == m.startURL {
		m.state = model.StateIdle
	}
}

// OnLoadingProgress 在以进度作为完成信号的平台上，进度达到 1 时结束加载
func (m *Machine) OnLoadingProgress(ev model.LoadProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.whitelist.Matches(ev.URL) {
		return
	}
	if m.platform.ProgressCompletesLoad() && ev.Progress >= 1 && m.state == model.StateLoading {
		m.state = model.StateIdle
	}
}

// Reload 先进入加载状态再下发刷新命令
func (m *Machine) Reload(ctx context.Context) error {
	m.mu.Lock()
	m.state = model.StateLoading
	m.mu.Unlock()
	return m.command(func(c Commander) error { return c.Reload(ctx) })
}

func (m *Machine) GoBack(ctx context.Context) error {
	return m.command(func(c Commander) error { return c.GoBack(ctx) })
}

func (m *Machine) GoForward(ctx context.Context) error {
	return m.command(func(c Commander) error { return c.GoForward(ctx) })
}

func (m *Machine) StopLoading(ctx context.Context) error {
	return m.command(func(c Commander) error { return c.StopLoading(ctx) })
}

func (m *Machine) PostMessage(ctx context.Context, data string) error {
	return m.command(func(c Commander) error { return c.PostMessage(ctx, data) })
}

var errNoCommander = errors.New("view has no native commander attached")

func (m *Machine) command(fn func(Commander) error) error {
	m.mu.Lock()
	c := m.cmd
	m.mu.Unlock()
	if c == nil {
		return errNoCommander
	}
	return fn(c)
}

// call 执行宿主回调，回调 panic 只记录不扩散
func (m *Machine) call(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("宿主回调异常", "hook", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
