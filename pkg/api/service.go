package api

import (
	"context"

	"navguard/internal/config"
	"navguard/internal/lifecycle"
	"navguard/internal/logger"
	"navguard/internal/rules"
	"navguard/internal/service"
	"navguard/internal/storage"
	"navguard/internal/version"
	"navguard/pkg/model"
)

// ViewConfig 创建视图时的宿主回调
type ViewConfig = service.ViewConfig

// Service 服务接口
type Service interface {
	// Check 用配置的名单裁决单个导航请求
	Check(req model.NavigationRequest) rules.Decision

	// CheckGate 检查运行时版本
	CheckGate(ver, spec string) version.Result

	// CreateView 创建视图
	CreateView(vc ViewConfig) model.ViewID

	// Attach 连接 Chromium 目标并守护视图
	Attach(ctx context.Context, id model.ViewID, target string) error

	// Done 目标连接断开时关闭
	Done(id model.ViewID) (<-chan struct{}, error)

	// Lifecycle 视图加载状态机
	Lifecycle(id model.ViewID) (*lifecycle.Machine, error)

	// UpdatePolicy 更新视图名单
	UpdatePolicy(id model.ViewID, policy rules.Config, downloads []model.DownloadRule) error

	// SubscribeEvents 订阅事件
	SubscribeEvents(id model.ViewID) (<-chan model.DecisionEvent, error)

	// Recent 最近的审计记录
	Recent(ctx context.Context, id model.ViewID, limit int) ([]storage.DecisionRecord, error)

	// CloseView 销毁视图
	CloseView(id model.ViewID) error

	// Close 关闭服务
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) Service {
	return service.New(cfg, l)
}
