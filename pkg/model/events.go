package model

// EventKind 原生事件类型
type EventKind string

const (
	EventShouldStartLoad EventKind = "shouldStartLoad"
	EventLoadStart       EventKind = "loadStart"
	EventLoadProgress    EventKind = "loadProgress"
	EventLoadFinish      EventKind = "loadFinish"
	EventLoadError       EventKind = "loadError"
	EventMessage         EventKind = "message"
	EventOpenWindow      EventKind = "openWindow"
)

// NativeEvent 原生视图层投递的事件
type NativeEvent interface {
	Kind() EventKind
}

// NavigationEvent 导航类事件的公共字段
type NavigationEvent struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Loading      bool   `json:"loading"`
	CanGoBack    bool   `json:"canGoBack"`
	CanGoForward bool   `json:"canGoForward"`
}

type ShouldStartLoad struct {
	NavigationRequest
}

type LoadStart struct {
	NavigationEvent
}

type LoadProgress struct {
	NavigationEvent
	Progress float64 `json:"progress"`
}

type LoadFinish struct {
	NavigationEvent
}

type LoadError struct {
	NavigationEvent
	Error ErrorEvent `json:"error"`
}

// Message 页面发出的消息，Data 为页面序列化后的原始字符串
type Message struct {
	NavigationEvent
	LockIdentifier LockID `json:"lockIdentifier"`
	Data           string `json:"data"`
}

type OpenWindow struct {
	TargetURL string `json:"targetUrl"`
}

func (ShouldStartLoad) Kind() EventKind { return EventShouldStartLoad }
func (LoadStart) Kind() EventKind       { return EventLoadStart }
func (LoadProgress) Kind() EventKind    { return EventLoadProgress }
func (LoadFinish) Kind() EventKind      { return EventLoadFinish }
func (LoadError) Kind() EventKind       { return EventLoadError }
func (Message) Kind() EventKind         { return EventMessage }
func (OpenWindow) Kind() EventKind      { return EventOpenWindow }

// DecisionEvent 一次事件处理的摘要，推送给订阅者
type DecisionEvent struct {
	View      ViewID    `json:"view"`
	Event     EventKind `json:"event"`
	URL       string    `json:"url"`
	Verdict   Verdict   `json:"verdict"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
