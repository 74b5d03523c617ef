package executor

import (
	"context"
	"fmt"
	"sync"

	"navguard/internal/lifecycle"
	"navguard/internal/logger"
	"navguard/internal/rules"
	"navguard/pkg/model"
)

// Bridge 原生视图命令通道，由平台绑定实现
type Bridge interface {
	lifecycle.Commander
	// Acknowledge 通过锁标识回复挂起的导航
	Acknowledge(ctx context.Context, lock model.LockID, allow bool) error
	// LoadURL 无锁时直接加载
	LoadURL(ctx context.Context, url string) error
}

// Linker 外部处理器（系统浏览器、钱包、邮件客户端等）
type Linker interface {
	CanOpenURL(ctx context.Context, url string) (bool, error)
	OpenURL(ctx context.Context, url string) error
}

// Recorder 决策审计
type Recorder interface {
	RecordLog(ctx context.Context, viewID model.ViewID, l model.Log) error
}

// Host 宿主的消息回调
type Host struct {
	OnMessage    func(msg model.WebViewMessage)
	OnOpenWindow func(targetURL string)
}

// Config 执行器配置
type Config struct {
	ViewID  model.ViewID
	Bridge  Bridge
	Linker  Linker
	Host    Host
	Journal Recorder
	Logger  logger.Logger
}

// Executor 将策略副作用落地到原生层、宿主与审计日志
type Executor struct {
	viewID  model.ViewID
	mu      sync.RWMutex
	bridge  Bridge
	linker  Linker
	host    Host
	journal Recorder
	log     logger.Logger
	wg      sync.WaitGroup
}

// New 创建执行器
func New(cfg Config) *Executor {
	e := &Executor{
		viewID:  cfg.ViewID,
		bridge:  cfg.Bridge,
		linker:  cfg.Linker,
		host:    cfg.Host,
		journal: cfg.Journal,
		log:     cfg.Logger,
	}
	if e.log == nil {
		e.log = logger.NewNop()
	}
	return e
}

// SetBridge 原生视图绑定后设置
func (e *Executor) SetBridge(b Bridge) {
	e.mu.Lock()
	e.bridge = b
	e.mu.Unlock()
}

// Apply 按顺序执行副作用。外部打开在独立 goroutine 中进行，不阻塞调用方。
func (e *Executor) Apply(ctx context.Context, effects []model.Effect) {
	e.mu.RLock()
	bridge := e.bridge
	e.mu.RUnlock()

	for _, eff := range effects {
		switch v := eff.(type) {
		case model.Acknowledge:
			if bridge == nil {
				e.log.Warn("未绑定原生视图，丢弃导航回执", "lock", v.Lock)
				continue
			}
			if err := bridge.Acknowledge(ctx, v.Lock, v.Allow); err != nil {
				e.log.Err(err, "回复导航锁失败", "lock", v.Lock, "allow", v.Allow, "url", v.URL)
			}
		case model.LoadURL:
			if bridge == nil {
				e.log.Warn("未绑定原生视图，丢弃加载指令", "url", v.URL)
				continue
			}
			if err := bridge.LoadURL(ctx, v.URL); err != nil {
				e.log.Err(err, "加载URL失败", "url", v.URL)
			}
		case model.OpenExternal:
			e.openExternal(ctx, v)
		case model.Log:
			e.record(ctx, v)
		case model.Deliver:
			if e.host.OnMessage != nil {
				e.callHost("onMessage", func() { e.host.OnMessage(v.Message) })
			}
		case model.NotifyOpenWindow:
			if e.host.OnOpenWindow != nil {
				e.callHost("onOpenWindow", func() { e.host.OnOpenWindow(v.TargetURL) })
			}
		case model.None, nil:
		default:
			e.log.Error("未知的副作用类型", "type", fmt.Sprintf("%T", eff))
		}
	}
}

// Wait 等待所有外部打开任务结束
func (e *Executor) Wait() {
	e.wg.Wait()
}

// openExternal 探测外部处理器后决定是否打开，结果只影响日志与审计
func (e *Executor) openExternal(ctx context.Context, v model.OpenExternal) {
	if e.linker == nil {
		e.record(ctx, model.Log{
			Level: model.LevelWarn, Kind: model.KindExternal, Verdict: model.VerdictDeny,
			URL: v.URL, Message: "未配置外部处理器",
		})
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		supported, err := e.linker.CanOpenURL(ctx, v.URL)
		if err != nil {
			e.record(ctx, model.Log{
				Level: model.LevelWarn, Kind: model.KindExternal, Verdict: model.VerdictFault,
				URL: v.URL, Message: "探测外部处理器失败: " + err.Error(),
			})
			return
		}
		if !rules.ShouldOpenExternally(supported, v.IsTopFrame, v.Scheme) {
			e.record(ctx, model.Log{
				Level: model.LevelInfo, Kind: model.KindExternal, Verdict: model.VerdictDeny,
				URL: v.URL, Message: fmt.Sprintf("不满足外部打开条件 supported=%t topFrame=%t", supported, v.IsTopFrame),
			})
			return
		}
		if err := e.linker.OpenURL(ctx, v.URL); err != nil {
			e.record(ctx, model.Log{
				Level: model.LevelWarn, Kind: model.KindExternal, Verdict: model.VerdictFault,
				URL: v.URL, Message: "外部打开失败: " + err.Error(),
			})
			return
		}
		e.record(ctx, model.Log{
			Level: model.LevelInfo, Kind: model.KindExternal, Verdict: model.VerdictOpen,
			URL: v.URL, Message: "已交给外部处理器",
		})
	}()
}

// record 写日志并写入审计库
func (e *Executor) record(ctx context.Context, l model.Log) {
	kv := []any{"viewId", e.viewID, "kind", l.Kind, "verdict", l.Verdict, "url", l.URL}
	switch l.Level {
	case model.LevelDebug:
		e.log.Debug(l.Message, kv...)
	case model.LevelWarn:
		e.log.Warn(l.Message, kv...)
	case model.LevelError:
		e.log.Error(l.Message, kv...)
	default:
		e.log.Info(l.Message, kv...)
	}

	if e.journal == nil || l.Verdict == "" {
		return
	}
	if err := e.journal.RecordLog(context.WithoutCancel(ctx), e.viewID, l); err != nil {
		e.log.Err(err, "写入审计日志失败", "viewId", e.viewID)
	}
}

func (e *Executor) callHost(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("宿主回调异常", "hook", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
