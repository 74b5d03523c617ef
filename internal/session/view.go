package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"navguard/internal/ctxkeys"
	"navguard/internal/executor"
	"navguard/internal/handler"
	"navguard/internal/lifecycle"
	"navguard/internal/logger"
	"navguard/internal/message"
	"navguard/internal/rules"
	"navguard/internal/version"
	"navguard/pkg/model"
)

// ChannelPrefix 视图消息通道名前缀
const ChannelPrefix = "navguardMessage_"

// Options 视图配置
type Options struct {
	Platform            model.Platform
	Policy              rules.Config
	Downloads           []model.DownloadRule
	MinimumVersion      string
	StartInLoadingState bool

	DataValidator message.DataValidator
	MetaValidator message.MetaValidator

	Hooks   lifecycle.Hooks
	Host    executor.Host
	Linker  executor.Linker
	Journal executor.Recorder
	Events  chan model.DecisionEvent
}

// View 一个嵌入视图实例，事件在视图内串行处理
type View struct {
	id      model.ViewID
	channel string

	// dispatchMu 保证事件按序处理；mu 只保护配置与门禁结果，宿主回调期间不持有
	dispatchMu sync.Mutex
	mu         sync.Mutex
	opts       Options
	handler   *handler.Handler
	machine   *lifecycle.Machine
	exec      *executor.Executor
	gate      version.Result
	gateReady chan struct{}
	gateOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Logger
}

// NewView 创建视图，版本门禁解析前不评估任何策略
func NewView(opts Options, l logger.Logger) *View {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Platform == "" {
		opts.Platform = model.PlatformChromium
	}
	id := uuid.New()
	v := &View{
		id:        model.ViewID(id.String()),
		channel:   ChannelPrefix + strings.ReplaceAll(id.String(), "-", ""),
		opts:      opts,
		gate:      version.Result{Status: model.GatePending},
		gateReady: make(chan struct{}),
	}
	v.log = l.With("viewId", string(v.id))
	v.ctx, v.cancel = context.WithCancel(ctxkeys.WithTraceID(context.Background(), string(v.id)))

	engine := rules.New(opts.Policy)
	v.machine = lifecycle.New(lifecycle.Config{
		Platform:            opts.Platform,
		Whitelist:           engine.Whitelist(),
		Hooks:               opts.Hooks,
		StartInLoadingState: opts.StartInLoadingState,
		Logger:              v.log,
	})
	v.handler = handler.New(handler.Config{
		View:      v.id,
		Engine:    engine,
		Validator: v.newValidator(engine),
		Machine:   v.machine,
		Events:    opts.Events,
		Logger:    v.log,
	})
	v.exec = executor.New(executor.Config{
		ViewID:  v.id,
		Host:    opts.Host,
		Linker:  opts.Linker,
		Journal: opts.Journal,
		Logger:  v.log,
	})
	return v
}

func (v *View) newValidator(engine *rules.Engine) *message.Validator {
	return message.NewValidator(message.Config{
		Whitelist: engine.Whitelist(),
		Downloads: v.opts.Downloads,
		Data:      v.opts.DataValidator,
		Meta:      v.opts.MetaValidator,
	})
}

// ID 视图ID
func (v *View) ID() model.ViewID { return v.id }

// Channel 页面消息通道名，每个实例唯一
func (v *View) Channel() string { return v.channel }

// Platform 视图所在平台
func (v *View) Platform() model.Platform { return v.opts.Platform }

// Context 视图生命周期上下文，视图关闭后取消
func (v *View) Context() context.Context { return v.ctx }

// Lifecycle 加载状态机，宿主通过它执行 reload/goBack 等操作
func (v *View) Lifecycle() *lifecycle.Machine { return v.machine }

// Attach 绑定原生视图
func (v *View) Attach(b executor.Bridge) {
	v.exec.SetBridge(b)
	v.machine.SetCommander(b)
}

// SourceURI 初始加载地址未通过白名单时替换为 about:blank
func (v *View) SourceURI(uri string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return rules.New(v.opts.Policy).Whitelist().SourceURI(uri)
}

// Dispatch 串行处理一个原生事件并执行产生的副作用。
// 宿主回调中可以调用视图的其他方法，但不能再次调用 Dispatch。
func (v *View) Dispatch(ev model.NativeEvent) []model.Effect {
	v.dispatchMu.Lock()
	defer v.dispatchMu.Unlock()
	if v.ctx.Err() != nil {
		return nil
	}
	effects := v.handler.Handle(ev)
	v.exec.Apply(v.ctx, effects)
	return effects
}

// UpdatePolicy 更新白名单与下载规则
func (v *View) UpdatePolicy(policy rules.Config, downloads []model.DownloadRule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opts.Policy = policy
	v.opts.Downloads = downloads
	engine := rules.New(policy)
	v.handler.SetPolicy(engine, v.newValidator(engine))
}

// ResolveGate 等待运行时版本探测结果后设置门禁，视图先关闭时不做任何事
func (v *View) ResolveGate(p *version.Probe) {
	p.OnResolved(v.ctx, func(ver string, err error) {
		if err != nil {
			v.log.Err(err, "探测运行时版本失败")
			ver = ""
		}
		v.SetGateResult(version.Gate{Platform: v.opts.Platform, Minimum: v.opts.MinimumVersion}.Check(ver))
	})
}

// SetGateResult 记录门禁结果，只接受第一次结果
func (v *View) SetGateResult(res version.Result) {
	v.mu.Lock()
	if v.ctx.Err() != nil || v.gate.Status != model.GatePending {
		v.mu.Unlock()
		return
	}
	v.gate = res
	v.handler.SetGate(res.Status)
	v.mu.Unlock()

	l := model.Log{Level: model.LevelInfo, Kind: model.KindVersion, Verdict: model.VerdictAllow, Message: "运行时版本 " + res.Version + " 通过门禁"}
	if !res.Passed() {
		l = model.Log{Level: model.LevelError, Kind: model.KindVersion, Verdict: model.VerdictDeny, Message: "拒绝渲染: " + res.Reason}
	}
	v.exec.Apply(v.ctx, []model.Effect{l})
	v.gateOnce.Do(func() { close(v.gateReady) })
}

// Gate 当前门禁结果
func (v *View) Gate() version.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gate
}

// GateReady 门禁结果确定后关闭
func (v *View) GateReady() <-chan struct{} { return v.gateReady }

// Close 销毁视图，尚未完成的异步回调不再生效
func (v *View) Close() {
	v.cancel()
}

// Wait 等待外部打开等后台任务结束
func (v *View) Wait() {
	v.exec.Wait()
}
