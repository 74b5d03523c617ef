package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"navguard/internal/cdp"
	"navguard/internal/config"
	"navguard/internal/executor"
	"navguard/internal/lifecycle"
	"navguard/internal/logger"
	"navguard/internal/message"
	"navguard/internal/rules"
	"navguard/internal/session"
	"navguard/internal/storage"
	"navguard/internal/version"
	"navguard/pkg/model"
)

// eventBuffer 每个视图的决策事件缓冲，满了直接丢弃
const eventBuffer = 256

var (
	ErrRuntimeBlocked = errors.New("runtime version blocked")
	ErrAlreadyGuarded = errors.New("view already attached")
)

// ViewConfig 宿主创建视图时提供的回调与校验器，策略取自配置
type ViewConfig struct {
	StartURL      string
	Override      rules.OverrideFunc
	DataValidator message.DataValidator
	MetaValidator message.MetaValidator
	Hooks         lifecycle.Hooks
	Host          executor.Host
}

// Service 视图服务：按配置创建视图、连接目标并汇总审计
type Service struct {
	cfg   *config.Config
	views *session.Manager
	log   logger.Logger

	mu       sync.Mutex
	events   map[model.ViewID]chan model.DecisionEvent
	starts   map[model.ViewID]string
	bindings map[model.ViewID]*cdp.Manager

	journalOnce sync.Once
	journal     *storage.Journal
	journalErr  error
}

// New 创建服务
func New(cfg *config.Config, l logger.Logger) *Service {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{
		cfg:      cfg,
		views:    session.NewManager(l),
		log:      l,
		events:   make(map[model.ViewID]chan model.DecisionEvent),
		starts:   make(map[model.ViewID]string),
		bindings: make(map[model.ViewID]*cdp.Manager),
	}
}

// Journal 首次使用时打开审计库
func (s *Service) Journal() (*storage.Journal, error) {
	s.journalOnce.Do(func() {
		s.journal, s.journalErr = storage.Open(s.cfg.StorageOptions(), s.log)
	})
	return s.journal, s.journalErr
}

func (s *Service) policy(override rules.OverrideFunc) rules.Config {
	p := s.cfg.RulesConfig()
	p.Override = override
	return p
}

// Check 用配置中的名单对单个导航请求做裁决，不依赖视图
func (s *Service) Check(req model.NavigationRequest) rules.Decision {
	return rules.New(s.policy(nil)).Decide(req)
}

// CheckGate 用配置平台检查版本，spec 为空时使用配置中的最低版本
func (s *Service) CheckGate(ver, spec string) version.Result {
	if spec == "" {
		spec = s.cfg.Policy.MinimumVersion
	}
	return version.Gate{Platform: model.Platform(s.cfg.Policy.Platform), Minimum: spec}.Check(ver)
}

// CreateView 按配置创建视图
func (s *Service) CreateView(vc ViewConfig) model.ViewID {
	events := make(chan model.DecisionEvent, eventBuffer)
	opts := session.Options{
		Platform:            model.Platform(s.cfg.Policy.Platform),
		Policy:              s.policy(vc.Override),
		Downloads:           s.cfg.Policy.DownloadWhitelist,
		MinimumVersion:      s.cfg.Policy.MinimumVersion,
		StartInLoadingState: s.cfg.Policy.StartInLoadingState,
		DataValidator:       vc.DataValidator,
		MetaValidator:       vc.MetaValidator,
		Hooks:               vc.Hooks,
		Host:                vc.Host,
		Linker:              executor.CommandLinker{Command: s.cfg.Bridge.OpenCommand, Schemes: s.cfg.Bridge.OpenSchemes},
		Events:              events,
	}
	if j, err := s.Journal(); err != nil {
		s.log.Err(err, "审计库不可用，决策不落库")
	} else {
		opts.Journal = j
	}

	v := s.views.Create(opts)

	s.mu.Lock()
	s.events[v.ID()] = events
	s.starts[v.ID()] = vc.StartURL
	s.mu.Unlock()
	return v.ID()
}

// Attach 连接 Chromium 目标：先等待版本门禁，通过后才开始守护并加载初始地址
func (s *Service) Attach(ctx context.Context, id model.ViewID, target string) error {
	v, ok := s.views.Get(id)
	if !ok {
		return session.ErrViewNotFound
	}
	s.mu.Lock()
	if _, ok := s.bindings[id]; ok {
		s.mu.Unlock()
		return ErrAlreadyGuarded
	}
	start := s.starts[id]
	s.mu.Unlock()

	m := cdp.New(cdp.Config{
		DevToolsURL:    s.cfg.Bridge.DevToolsURL,
		LockTimeout:    s.cfg.Bridge.LockTimeout,
		CommandTimeout: s.cfg.Bridge.CommandTimeout,
		Logger:         s.log.With("viewId", string(id)),
	})
	if err := m.AttachTarget(ctx, target); err != nil {
		return fmt.Errorf("attach target: %w", err)
	}

	// 1. 运行时版本按 DevTools 地址共享探测
	v.ResolveGate(version.SharedProbe(s.cfg.Bridge.DevToolsURL, m.Version))
	select {
	case <-v.GateReady():
	case <-ctx.Done():
		_ = m.Detach()
		return ctx.Err()
	}
	if res := v.Gate(); !res.Passed() {
		_ = m.Detach()
		return fmt.Errorf("%w: %s", ErrRuntimeBlocked, res.Reason)
	}

	// 2. 启用拦截并加载
	if err := m.Guard(ctx, v, start); err != nil {
		_ = m.Detach()
		return fmt.Errorf("guard view: %w", err)
	}

	s.mu.Lock()
	s.bindings[id] = m
	s.mu.Unlock()
	return nil
}

// Done 视图绑定断开时关闭
func (s *Service) Done(id model.ViewID) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.bindings[id]
	if !ok {
		return nil, session.ErrViewNotFound
	}
	return m.Done(), nil
}

// Lifecycle 宿主执行 reload/goBack/postMessage 等操作的入口
func (s *Service) Lifecycle(id model.ViewID) (*lifecycle.Machine, error) {
	v, ok := s.views.Get(id)
	if !ok {
		return nil, session.ErrViewNotFound
	}
	return v.Lifecycle(), nil
}

// UpdatePolicy 使用新名单更新视图
func (s *Service) UpdatePolicy(id model.ViewID, policy rules.Config, downloads []model.DownloadRule) error {
	v, ok := s.views.Get(id)
	if !ok {
		return session.ErrViewNotFound
	}
	v.UpdatePolicy(policy, downloads)
	return nil
}

// SubscribeEvents 订阅视图的决策事件
func (s *Service) SubscribeEvents(id model.ViewID) (<-chan model.DecisionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.events[id]
	if !ok {
		return nil, session.ErrViewNotFound
	}
	return ch, nil
}

// Recent 读取最近的审计记录
func (s *Service) Recent(ctx context.Context, id model.ViewID, limit int) ([]storage.DecisionRecord, error) {
	j, err := s.Journal()
	if err != nil {
		return nil, err
	}
	return j.Recent(ctx, string(id), limit)
}

// CloseView 断开绑定并销毁视图
func (s *Service) CloseView(id model.ViewID) error {
	s.mu.Lock()
	m := s.bindings[id]
	delete(s.bindings, id)
	delete(s.events, id)
	delete(s.starts, id)
	s.mu.Unlock()

	if m != nil {
		if err := m.Detach(); err != nil {
			s.log.Err(err, "断开目标失败", "viewId", string(id))
		}
	}
	v, ok := s.views.Get(id)
	if err := s.views.Delete(id); err != nil {
		return err
	}
	if ok {
		v.Wait()
	}
	return nil
}

// Close 关闭所有视图与审计库
func (s *Service) Close() error {
	for _, v := range s.views.List() {
		if err := s.CloseView(v.ID()); err != nil && !errors.Is(err, session.ErrViewNotFound) {
			return err
		}
	}
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}
