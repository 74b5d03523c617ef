package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"navguard/internal/ctxkeys"
	"navguard/internal/logger"
	"navguard/pkg/model"
)

// DefaultRecentLimit Recent 未指定数量时返回的条数
const DefaultRecentLimit = 50

// DecisionRecord 一条策略决策审计记录
type DecisionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ViewID    string    `gorm:"size:64;index" json:"viewId"`
	Kind      string    `gorm:"size:32;index" json:"kind"`
	URL       string    `json:"url"`
	Verdict   string    `gorm:"size:16" json:"verdict"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Options 审计库配置
type Options struct {
	Dsn    string
	Prefix string
}

// Journal 基于 sqlite 的决策审计日志
type Journal struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开（必要时创建）审计库并迁移表结构
func Open(opts Options, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(opts.Dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", opts.Dsn, err)
	}
	if err := db.AutoMigrate(&DecisionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, log: l}, nil
}

// Record 写入一条记录，视图ID为空时从上下文读取
func (j *Journal) Record(ctx context.Context, rec *DecisionRecord) error {
	if rec.ViewID == "" {
		rec.ViewID = ctxkeys.TraceID(ctx)
	}
	if err := j.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// RecordLog 将日志副作用写入审计库
func (j *Journal) RecordLog(ctx context.Context, viewID model.ViewID, l model.Log) error {
	return j.Record(ctx, &DecisionRecord{
		ViewID:  string(viewID),
		Kind:    string(l.Kind),
		URL:     l.URL,
		Verdict: string(l.Verdict),
		Detail:  l.Message,
	})
}

// Recent 按时间倒序返回最近的记录，viewID 为空时不过滤
func (j *Journal) Recent(ctx context.Context, viewID string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := j.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if viewID != "" {
		q = q.Where("view_id = ?", viewID)
	}
	var out []DecisionRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return out, nil
}

// Close 关闭数据库连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
