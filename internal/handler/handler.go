package handler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"navguard/internal/lifecycle"
	"navguard/internal/logger"
	"navguard/internal/message"
	"navguard/internal/rules"
	"navguard/pkg/model"
)

// Handler 单个视图的事件处理器，负责协调版本门禁、深链仲裁、消息校验与加载状态机。
// 调用方需保证同一视图的事件串行投递；门禁与策略可在任意 goroutine 中更新。
type Handler struct {
	view    model.ViewID
	machine *lifecycle.Machine
	events  chan model.DecisionEvent
	log     logger.Logger

	mu        sync.RWMutex
	engine    *rules.Engine
	validator *message.Validator
	gate      model.GateStatus
}

// Config 配置选项
type Config struct {
	View      model.ViewID
	Engine    *rules.Engine
	Validator *message.Validator
	Machine   *lifecycle.Machine
	Events    chan model.DecisionEvent
	Logger    logger.Logger
}

// New 创建事件处理器，初始门禁状态为待定
func New(cfg Config) *Handler {
	h := &Handler{
		view:      cfg.View,
		engine:    cfg.Engine,
		validator: cfg.Validator,
		machine:   cfg.Machine,
		gate:      model.GatePending,
		events:    cfg.Events,
		log:       cfg.Logger,
	}
	if h.log == nil {
		h.log = logger.NewNop()
	}
	return h
}

// SetGate 设置版本门禁状态
func (h *Handler) SetGate(status model.GateStatus) {
	h.mu.Lock()
	h.gate = status
	h.mu.Unlock()
}

// Gate 当前版本门禁状态
func (h *Handler) Gate() model.GateStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gate
}

// SetPolicy 策略更新后替换引擎与消息校验器
func (h *Handler) SetPolicy(engine *rules.Engine, validator *message.Validator) {
	h.mu.Lock()
	h.engine = engine
	h.validator = validator
	h.mu.Unlock()
	if h.machine != nil {
		h.machine.SetWhitelist(engine.Whitelist())
	}
}

// Handle 处理一个原生事件并返回需要执行的副作用
func (h *Handler) Handle(ev model.NativeEvent) []model.Effect {
	if ev == nil {
		return nil
	}
	h.mu.RLock()
	engine, validator, gate := h.engine, h.validator, h.gate
	h.mu.RUnlock()
	if gate != model.GatePassed {
		return h.suspended(gate, ev)
	}

	switch e := ev.(type) {
	case model.ShouldStartLoad:
		return h.handleNavigation(engine, e.NavigationRequest)
	case model.LoadStart:
		h.machine.OnLoadStart(e)
	case model.LoadProgress:
		h.machine.OnLoadingProgress(e)
	case model.LoadFinish:
		h.machine.OnLoadingFinish(e)
		h.emit(ev.Kind(), e.URL, model.VerdictAllow, h.machine.State().String())
	case model.LoadError:
		h.machine.OnLoadingError(e)
		detail := fmt.Sprintf("%s %d %s", e.Error.Domain, e.Error.Code, e.Error.Description)
		h.emit(ev.Kind(), e.URL, model.VerdictFault, detail)
		return []model.Effect{model.Log{
			Level: model.LevelWarn, Kind: model.KindLifecycle, Verdict: model.VerdictFault,
			URL: e.URL, Message: "页面加载失败: " + detail,
		}}
	case model.Message:
		return h.handleMessage(validator, e)
	case model.OpenWindow:
		h.emit(ev.Kind(), e.TargetURL, model.VerdictAllow, "")
		return []model.Effect{model.NotifyOpenWindow{TargetURL: e.TargetURL}}
	default:
		h.log.Error("未知的原生事件类型", "type", fmt.Sprintf("%T", ev))
	}
	return nil
}

// handleNavigation 深链仲裁
func (h *Handler) handleNavigation(engine *rules.Engine, req model.NavigationRequest) []model.Effect {
	start := time.Now()
	d := engine.Decide(req)

	verdict := model.VerdictDeny
	if d.ShouldStart {
		verdict = model.VerdictAllow
	}
	for _, eff := range d.Effects {
		if _, ok := eff.(model.OpenExternal); ok {
			verdict = model.VerdictOpen
		}
	}
	h.emit(model.EventShouldStartLoad, req.URL, verdict, "")
	h.log.Debug("导航仲裁完成", "url", req.URL, "lock", req.LockIdentifier, "topFrame", req.IsTopFrame, "verdict", verdict, "duration", time.Since(start))
	return d.Effects
}

// handleMessage 校验页面消息，失败时丢弃并记录原因
func (h *Handler) handleMessage(validator *message.Validator, ev model.Message) []model.Effect {
	msg, err := validator.Process(ev)
	if err != nil {
		kind := model.KindMessage
		if errors.Is(err, message.ErrDownloadDenied) {
			kind = model.KindDownload
		}
		h.emit(model.EventMessage, ev.URL, model.VerdictDrop, err.Error())
		return []model.Effect{model.Log{
			Level: model.LevelWarn, Kind: kind, Verdict: model.VerdictDrop,
			URL: ev.URL, Message: "丢弃页面消息: " + err.Error(),
		}}
	}
	h.emit(model.EventMessage, ev.URL, model.VerdictAllow, "")
	return []model.Effect{model.Deliver{Message: msg}}
}

// suspended 版本门禁未通过时不评估任何策略，挂起的导航一律拒绝
func (h *Handler) suspended(gate model.GateStatus, ev model.NativeEvent) []model.Effect {
	req, ok := ev.(model.ShouldStartLoad)
	if !ok {
		h.log.Debug("版本门禁未通过，丢弃事件", "event", ev.Kind(), "gate", gate)
		return nil
	}

	h.emit(ev.Kind(), req.URL, model.VerdictDeny, "version gate "+gate.String())
	effects := []model.Effect{model.Log{
		Level: model.LevelWarn, Kind: model.KindVersion, Verdict: model.VerdictDeny,
		URL: req.URL, Message: "版本门禁未通过，拒绝导航 (" + gate.String() + ")",
	}}
	if req.LockIdentifier != 0 {
		effects = append(effects, model.Acknowledge{Lock: req.LockIdentifier, Allow: false, URL: req.URL})
	}
	return effects
}

// emit 非阻塞地推送决策事件
func (h *Handler) emit(kind model.EventKind, url string, verdict model.Verdict, detail string) {
	if h.events == nil {
		return
	}
	evt := model.DecisionEvent{
		View:      h.view,
		Event:     kind,
		URL:       url,
		Verdict:   verdict,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case h.events <- evt:
	default:
	}
}
