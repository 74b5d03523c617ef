package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/sjson"

	"navguard/internal/lock"
	"navguard/internal/logger"
	"navguard/internal/session"
	"navguard/internal/version"
	"navguard/pkg/model"
)

var (
	ErrNotAttached = errors.New("not attached to a target")
	ErrNoTarget    = errors.New("no matching page target")
	ErrNoHistory   = errors.New("no history entry in that direction")
)

// Config 绑定配置
type Config struct {
	DevToolsURL string
	LockTimeout time.Duration
	// CommandTimeout 单条 CDP 命令的超时
	CommandTimeout time.Duration
	Logger         logger.Logger
}

// Manager Chromium 视图绑定：把 CDP 事件翻译成原生事件交给视图，并实现视图的命令通道
type Manager struct {
	devtoolsURL    string
	commandTimeout time.Duration
	conn           *rpcc.Conn
	client         *cdp.Client
	ctx            context.Context
	cancel         context.CancelFunc
	locks          *lock.Table
	log            logger.Logger

	view *session.View

	mu        sync.Mutex
	mainFrame page.FrameID
	mainURL   string
	contexts  map[runtime.ExecutionContextID]page.FrameID
	origins   map[runtime.ExecutionContextID]string
	documents map[network.RequestID]string
}

// New 创建绑定
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	return &Manager{
		devtoolsURL:    cfg.DevToolsURL,
		commandTimeout: cfg.CommandTimeout,
		locks:          lock.NewTable(cfg.LockTimeout),
		log:            cfg.Logger.With("component", "cdp"),
		contexts:       make(map[runtime.ExecutionContextID]page.FrameID),
		origins:        make(map[runtime.ExecutionContextID]string),
		documents:      make(map[network.RequestID]string),
	}
}

// AttachTarget 连接到指定页面目标，target 为空时选择第一个页面
func (m *Manager) AttachTarget(ctx context.Context, target string) error {
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if target == "" || string(t.ID) == target {
			sel = t
			break
		}
	}
	if sel == nil {
		return ErrNoTarget
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		m.cancel()
		return fmt.Errorf("dial %s: %w", sel.WebSocketDebuggerURL, err)
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.log.Info("已连接目标", "target", string(sel.ID), "url", sel.URL)
	return nil
}

// Version 读取浏览器 User-Agent 中的 Chrome 版本
func (m *Manager) Version(ctx context.Context) (string, error) {
	if m.client == nil {
		return "", ErrNotAttached
	}
	reply, err := m.client.Browser.GetVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("browser version: %w", err)
	}
	v, ok := version.ChromeVersion(reply.UserAgent)
	if !ok {
		return "", fmt.Errorf("no chrome version in user agent %q", reply.UserAgent)
	}
	return v, nil
}

// Guard 启用拦截并开始守护视图；startURL 非空时先校验白名单再加载
func (m *Manager) Guard(ctx context.Context, view *session.View, startURL string) error {
	if m.client == nil {
		return ErrNotAttached
	}
	m.view = view

	if err := m.client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("page enable: %w", err)
	}
	if err := m.client.Network.Enable(ctx, nil); err != nil {
		return fmt.Errorf("network enable: %w", err)
	}
	tree, err := m.client.Page.GetFrameTree(ctx)
	if err != nil {
		return fmt.Errorf("frame tree: %w", err)
	}
	m.mu.Lock()
	m.mainFrame = tree.FrameTree.Frame.ID
	m.mainURL = tree.FrameTree.Frame.URL
	m.mu.Unlock()

	if err := m.installBinding(ctx, view.Channel()); err != nil {
		return err
	}

	p := "*"
	rt := network.ResourceTypeDocument
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, ResourceType: &rt, RequestStage: fetch.RequestStageRequest},
	}
	if err := m.client.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return fmt.Errorf("fetch enable: %w", err)
	}

	if err := m.startConsumers(); err != nil {
		return err
	}
	view.Attach(m)

	if startURL != "" {
		src := view.SourceURI(startURL)
		if src != startURL {
			m.log.Warn("初始地址未通过白名单，改为空白页", "url", startURL)
		}
		return m.LoadURL(ctx, src)
	}
	return nil
}

// installBinding 注册消息绑定并注入页面侧的 postMessage 封装
func (m *Manager) installBinding(ctx context.Context, channel string) error {
	if err := m.client.Runtime.Enable(ctx); err != nil {
		return fmt.Errorf("runtime enable: %w", err)
	}
	if err := m.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(channel)); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	_, err := m.client.Page.AddScriptToEvaluateOnNewDocument(ctx, page.NewAddScriptToEvaluateOnNewDocumentArgs(bridgeScript(channel)))
	if err != nil {
		return fmt.Errorf("inject bridge script: %w", err)
	}
	return nil
}

// Detach 断开连接，挂起的导航按超时拒绝
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Done 连接断开或 Detach 后关闭
func (m *Manager) Done() <-chan struct{} {
	if m.ctx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.ctx.Done()
}

// Acknowledge 投递导航决策
func (m *Manager) Acknowledge(_ context.Context, id model.LockID, allow bool) error {
	return m.locks.Resolve(id, lock.Decision{Allow: allow})
}

// LoadURL 直接加载
func (m *Manager) LoadURL(ctx context.Context, url string) error {
	return m.command(ctx, func(ctx context.Context) error {
		reply, err := m.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
		if err != nil {
			return err
		}
		if reply.ErrorText != nil && *reply.ErrorText != "" {
			m.log.Debug("导航未完成", "url", url, "error", *reply.ErrorText)
		}
		return nil
	})
}

func (m *Manager) Reload(ctx context.Context) error {
	return m.command(ctx, func(ctx context.Context) error {
		return m.client.Page.Reload(ctx, page.NewReloadArgs())
	})
}

func (m *Manager) StopLoading(ctx context.Context) error {
	return m.command(ctx, func(ctx context.Context) error {
		return m.client.Page.StopLoading(ctx)
	})
}

func (m *Manager) GoBack(ctx context.Context) error {
	return m.history(ctx, -1)
}

func (m *Manager) GoForward(ctx context.Context) error {
	return m.history(ctx, 1)
}

// history 按偏移跳转历史记录
func (m *Manager) history(ctx context.Context, delta int) error {
	return m.command(ctx, func(ctx context.Context) error {
		h, err := m.client.Page.GetNavigationHistory(ctx)
		if err != nil {
			return err
		}
		i := h.CurrentIndex + delta
		if i < 0 || i >= len(h.Entries) {
			return ErrNoHistory
		}
		return m.client.Page.NavigateToHistoryEntry(ctx, page.NewNavigateToHistoryEntryArgs(h.Entries[i].ID))
	})
}

// PostMessage 以 message 事件的形式把数据投递给页面
func (m *Manager) PostMessage(ctx context.Context, data string) error {
	init, err := sjson.Set("{}", "data", data)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	expr := "window.dispatchEvent(new MessageEvent('message', " + init + "));"
	return m.command(ctx, func(ctx context.Context) error {
		reply, err := m.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr))
		if err != nil {
			return err
		}
		if reply.ExceptionDetails != nil {
			return fmt.Errorf("post message: %s", reply.ExceptionDetails.Text)
		}
		return nil
	})
}

func (m *Manager) command(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.client == nil {
		return ErrNotAttached
	}
	ctx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()
	return fn(ctx)
}

// bridgeScript 页面侧注入的 postMessage 封装，消息以信封形式经绑定发出
func bridgeScript(channel string) string {
	return `(function () {
  var send = window["` + channel + `"];
  if (typeof send !== "function") { return; }
  delete window["` + channel + `"];
  var post = function (data) {
    send(JSON.stringify({
      data: data,
      title: document.title,
      loading: document.readyState !== "complete",
      canGoBack: history.length > 1,
      canGoForward: false
    }));
  };
  Object.defineProperty(window, "NavguardWebView", {
    value: Object.freeze({ postMessage: post }),
    configurable: false,
    writable: false
  });
})();`
}
