package cdp

import (
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"

	adapter "navguard/internal/adapter/cdp"
)

// handleBinding 页面消息。只接受本视图通道的调用，URL 取自执行上下文
func (m *Manager) handleBinding(ev *runtime.BindingCalledReply) {
	if ev.Name != m.view.Channel() {
		return
	}
	msg, err := adapter.ToMessage(ev, m.contextURL(ev.ExecutionContextID))
	if err != nil {
		m.log.Debug("忽略无效的页面消息", "error", err.Error())
		return
	}
	m.view.Dispatch(msg)
}

// contextURL 主帧上下文返回主帧当前URL，其余返回上下文的安全来源
func (m *Manager) contextURL(id runtime.ExecutionContextID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frame, ok := m.contexts[id]; ok && frame == m.mainFrame {
		return m.mainURL
	}
	return m.origins[id]
}

func (m *Manager) handleContextCreated(ev *runtime.ExecutionContextCreatedReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[ev.Context.ID] = adapter.FrameIDFromAuxData(ev.Context.AuxData)
	m.origins[ev.Context.ID] = ev.Context.Origin
}

func (m *Manager) handleContextsCleared(*runtime.ExecutionContextsClearedReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = make(map[runtime.ExecutionContextID]page.FrameID)
	m.origins = make(map[runtime.ExecutionContextID]string)
}

// handleNavigated 主帧提交导航，记录当前URL
func (m *Manager) handleNavigated(ev *page.FrameNavigatedReply) {
	m.mu.Lock()
	if ev.Frame.ID != m.mainFrame {
		m.mu.Unlock()
		return
	}
	m.mainURL = ev.Frame.URL
	m.documents = make(map[network.RequestID]string)
	m.mu.Unlock()

	m.view.Dispatch(adapter.ToLoadStart(ev))
}

func (m *Manager) handleLoaded(*page.LoadEventFiredReply) {
	m.mu.Lock()
	url := m.mainURL
	m.mu.Unlock()
	m.view.Dispatch(adapter.ToLoadFinish(url))
}

// handleFailed 只关心主帧文档请求的失败
func (m *Manager) handleFailed(ev *network.LoadingFailedReply) {
	m.mu.Lock()
	url, ok := m.documents[ev.RequestID]
	delete(m.documents, ev.RequestID)
	m.mu.Unlock()
	if !ok {
		return
	}
	if le, ok := adapter.ToLoadError(ev, url); ok {
		m.view.Dispatch(le)
	}
}

func (m *Manager) handleWindowOpen(ev *page.WindowOpenReply) {
	m.view.Dispatch(adapter.ToOpenWindow(ev))
}
