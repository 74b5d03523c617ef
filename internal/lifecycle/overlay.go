package lifecycle

import "navguard/pkg/model"

// OverlayKind 覆盖在视图上的内容类型
type OverlayKind int

const (
	OverlayNone OverlayKind = iota
	OverlayLoading
	OverlayError
)

// Overlay 宿主应在视图上层渲染的内容
type Overlay struct {
	Kind  OverlayKind
	Error *model.ErrorEvent
}

// Overlay 根据当前状态给出覆盖层，状态非法时记录错误且不覆盖
func (m *Machine) Overlay() Overlay {
	m.mu.Lock()
	state, lastErr := m.state, m.lastError
	m.mu.Unlock()

	switch state {
	case model.StateIdle:
		return Overlay{Kind: OverlayNone}
	case model.StateLoading:
		return Overlay{Kind: OverlayLoading}
	case model.StateError:
		if lastErr == nil {
			m.log.Error("错误状态缺少错误详情", "state", state.String())
			return Overlay{Kind: OverlayNone}
		}
		e := *lastErr
		return Overlay{Kind: OverlayError, Error: &e}
	default:
		m.log.Error("遇到非法的加载状态", "state", state.String())
		return Overlay{Kind: OverlayNone}
	}
}
