package model

import "fmt"

type ViewID string

// LockID 导航锁标识，0 表示没有锁
type LockID int

// Platform 宿主平台
type Platform string

const (
	PlatformIOS      Platform = "ios"
	PlatformAndroid  Platform = "android"
	PlatformChromium Platform = "chromium"
)

// Valid 是否为已知平台
func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformChromium:
		return true
	}
	return false
}

// ReliableTopFrame 平台能否区分顶层帧的加载完成事件
func (p Platform) ReliableTopFrame() bool {
	return p != PlatformAndroid
}

// ProgressCompletesLoad 平台是否以进度 1.0 作为加载完成信号
func (p Platform) ProgressCompletesLoad() bool {
	return p == PlatformAndroid
}

// LoadingState 视图加载状态
type LoadingState int

const (
	StateIdle LoadingState = iota
	StateLoading
	StateError
)

func (s LoadingState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLoading:
		return "LOADING"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("LoadingState(%d)", int(s))
	}
}

// ErrorEvent 页面加载错误
type ErrorEvent struct {
	Domain      string `json:"domain"`
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// NavigationRequest 一次待决的导航请求
type NavigationRequest struct {
	URL            string `json:"url"`
	LockIdentifier LockID `json:"lockIdentifier"`
	IsTopFrame     bool   `json:"isTopFrame"`
}

// DownloadRule 下载白名单规则
type DownloadRule struct {
	Origin                string   `json:"origin" yaml:"origin"`
	AllowedFileExtensions []string `json:"allowedFileExtensions" yaml:"allowedFileExtensions"`
}

// AllowsExtension 判断扩展名（小写、不含点）是否在规则内
func (r DownloadRule) AllowsExtension(ext string) bool {
	for _, e := range r.AllowedFileExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// WebViewMessage 校验后交付给宿主的页面消息
type WebViewMessage struct {
	URL            string `json:"url"`
	Loading        bool   `json:"loading"`
	Title          string `json:"title"`
	CanGoBack      bool   `json:"canGoBack"`
	CanGoForward   bool   `json:"canGoForward"`
	LockIdentifier LockID `json:"lockIdentifier"`
	Data           string `json:"data"`
}

// MessageMeta 从原生消息事件中提取的固定元数据
type MessageMeta struct {
	URL            string `json:"url"`
	Loading        bool   `json:"loading"`
	Title          string `json:"title"`
	CanGoBack      bool   `json:"canGoBack"`
	CanGoForward   bool   `json:"canGoForward"`
	LockIdentifier LockID `json:"lockIdentifier"`
}

// GateStatus 版本门禁状态
type GateStatus int

const (
	GatePending GateStatus = iota
	GatePassed
	GateBlocked
)

func (g GateStatus) String() string {
	switch g {
	case GatePending:
		return "pending"
	case GatePassed:
		return "passed"
	case GateBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("GateStatus(%d)", int(g))
	}
}
