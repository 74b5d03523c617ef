package version

import (
	"context"
	"sync"
)

// ResolveFunc 查询运行时版本，例如读取 User-Agent
type ResolveFunc func(ctx context.Context) (string, error)

// Probe 运行时版本探测，结果在进程内只解析一次
type Probe struct {
	once    sync.Once
	done    chan struct{}
	resolve ResolveFunc
	version string
	err     error
}

func NewProbe(resolve ResolveFunc) *Probe {
	return &Probe{resolve: resolve, done: make(chan struct{})}
}

var probes = struct {
	sync.Mutex
	m map[string]*Probe
}{m: make(map[string]*Probe)}

// SharedProbe 按键共享探测实例，同一运行时的多个视图只探测一次。
// 键已存在时忽略 resolve。
func SharedProbe(key string, resolve ResolveFunc) *Probe {
	probes.Lock()
	defer probes.Unlock()
	if p, ok := probes.m[key]; ok {
		return p
	}
	p := NewProbe(resolve)
	probes.m[key] = p
	return p
}

// Start 在后台开始解析，可重复调用
func (p *Probe) Start(ctx context.Context) {
	p.once.Do(func() {
		go func() {
			defer close(p.done)
			if p.resolve == nil {
				return
			}
			p.version, p.err = p.resolve(ctx)
		}()
	})
}

// Result 阻塞直到解析完成或 ctx 取消
func (p *Probe) Result(ctx context.Context) (string, error) {
	p.Start(context.WithoutCancel(ctx))
	select {
	case <-p.done:
		return p.version, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OnResolved 解析完成后在独立 goroutine 中回调；ctx 先被取消（视图已销毁）时不回调
func (p *Probe) OnResolved(ctx context.Context, fn func(version string, err error)) {
	p.Start(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			return
		}
		if ctx.Err() != nil {
			return
		}
		fn(p.version, p.err)
	}()
}
