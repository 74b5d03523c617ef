package cdp

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"

	adapter "navguard/internal/adapter/cdp"
)

// startConsumers 订阅所需事件，每类事件一个 goroutine
func (m *Manager) startConsumers() error {
	ctx := m.ctx

	paused, err := m.client.Fetch.RequestPaused(ctx)
	if err != nil {
		return fmt.Errorf("subscribe requestPaused: %w", err)
	}
	bindings, err := m.client.Runtime.BindingCalled(ctx)
	if err != nil {
		return fmt.Errorf("subscribe bindingCalled: %w", err)
	}
	created, err := m.client.Runtime.ExecutionContextCreated(ctx)
	if err != nil {
		return fmt.Errorf("subscribe executionContextCreated: %w", err)
	}
	cleared, err := m.client.Runtime.ExecutionContextsCleared(ctx)
	if err != nil {
		return fmt.Errorf("subscribe executionContextsCleared: %w", err)
	}
	navigated, err := m.client.Page.FrameNavigated(ctx)
	if err != nil {
		return fmt.Errorf("subscribe frameNavigated: %w", err)
	}
	loaded, err := m.client.Page.LoadEventFired(ctx)
	if err != nil {
		return fmt.Errorf("subscribe loadEventFired: %w", err)
	}
	failed, err := m.client.Network.LoadingFailed(ctx)
	if err != nil {
		return fmt.Errorf("subscribe loadingFailed: %w", err)
	}
	windows, err := m.client.Page.WindowOpen(ctx)
	if err != nil {
		return fmt.Errorf("subscribe windowOpen: %w", err)
	}

	go consume(m, paused, paused.Recv, m.handlePaused)
	go consume(m, bindings, bindings.Recv, m.handleBinding)
	go consume(m, created, created.Recv, m.handleContextCreated)
	go consume(m, cleared, cleared.Recv, m.handleContextsCleared)
	go consume(m, navigated, navigated.Recv, m.handleNavigated)
	go consume(m, loaded, loaded.Recv, m.handleLoaded)
	go consume(m, failed, failed.Recv, m.handleFailed)
	go consume(m, windows, windows.Recv, m.handleWindowOpen)
	return nil
}

// consume 循环接收事件直到连接关闭，任一事件流结束即视为断开
func consume[T any](m *Manager, stream rpcc.Stream, recv func() (T, error), handle func(T)) {
	defer stream.Close()
	for {
		ev, err := recv()
		if err != nil {
			if m.ctx.Err() == nil {
				m.log.Err(err, "事件流中断")
				m.cancel()
			}
			return
		}
		handle(ev)
	}
}

// handlePaused 文档请求挂起后交给视图裁决，在锁超时前未收到放行决策则拒绝
func (m *Manager) handlePaused(ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(m.ctx, m.commandTimeout)
	defer cancel()

	if !adapter.IsDocumentRequest(ev) {
		m.continueRequest(ctx, ev)
		return
	}

	m.mu.Lock()
	mainFrame := m.mainFrame
	if ev.NetworkID != nil && ev.FrameID == mainFrame {
		m.documents[*ev.NetworkID] = ev.Request.URL
	}
	m.mu.Unlock()

	id := m.locks.New()
	m.view.Dispatch(adapter.ToNavigationRequest(ev, mainFrame, id))

	d, ok := m.locks.Wait(ctx, id)
	if !ok {
		m.log.Warn("导航决策超时，拒绝请求", "url", ev.Request.URL, "lock", id, "timeout", m.locks.Timeout().String())
	}
	if ok && d.Allow {
		m.continueRequest(ctx, ev)
		return
	}
	m.failRequest(ctx, ev)
}

func (m *Manager) continueRequest(ctx context.Context, ev *fetch.RequestPausedReply) {
	if err := m.client.Fetch.ContinueRequest(ctx, fetch.NewContinueRequestArgs(ev.RequestID)); err != nil {
		m.log.Err(err, "继续请求失败", "url", ev.Request.URL)
	}
}

func (m *Manager) failRequest(ctx context.Context, ev *fetch.RequestPausedReply) {
	if err := m.client.Fetch.FailRequest(ctx, fetch.NewFailRequestArgs(ev.RequestID, network.ErrorReasonBlockedByClient)); err != nil {
		m.log.Err(err, "拒绝请求失败", "url", ev.Request.URL)
	}
}
