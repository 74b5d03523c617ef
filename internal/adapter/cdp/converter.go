package cdp

import (
	"errors"
	"strings"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"

	"navguard/pkg/model"
)

// NetErrorDomain Chromium 网络错误所属的错误域
const NetErrorDomain = "net"

// 常见的 Chromium 网络错误码，其余统一记为 ERR_FAILED
var netErrorCodes = map[string]int{
	"net::ERR_FAILED":                   -2,
	"net::ERR_ABORTED":                  -3,
	"net::ERR_TIMED_OUT":                -7,
	"net::ERR_BLOCKED_BY_CLIENT":        -20,
	"net::ERR_BLOCKED_BY_RESPONSE":      -27,
	"net::ERR_CONNECTION_REFUSED":       -102,
	"net::ERR_CONNECTION_RESET":         -101,
	"net::ERR_NAME_NOT_RESOLVED":        -105,
	"net::ERR_INTERNET_DISCONNECTED":    -106,
	"net::ERR_SSL_PROTOCOL_ERROR":       -107,
	"net::ERR_CERT_COMMON_NAME_INVALID": -200,
	"net::ERR_CERT_DATE_INVALID":        -201,
	"net::ERR_CERT_AUTHORITY_INVALID":   -202,
}

var ErrEmptyPayload = errors.New("binding payload is empty")

// IsDocumentRequest 是否为文档（导航）请求
func IsDocumentRequest(ev *fetch.RequestPausedReply) bool {
	return ev.ResourceType == network.ResourceTypeDocument
}

// ToNavigationRequest 将挂起的文档请求转换为导航请求
func ToNavigationRequest(ev *fetch.RequestPausedReply, mainFrame page.FrameID, lock model.LockID) model.ShouldStartLoad {
	return model.ShouldStartLoad{NavigationRequest: model.NavigationRequest{
		URL:            ev.Request.URL,
		LockIdentifier: lock,
		IsTopFrame:     mainFrame == "" || ev.FrameID == mainFrame,
	}}
}

// ToMessage 解析页面通过绑定发送的消息信封。
// url 由调用方根据执行上下文给出，不采信页面自报的地址。
func ToMessage(ev *runtime.BindingCalledReply, url string) (model.Message, error) {
	if strings.TrimSpace(ev.Payload) == "" {
		return model.Message{}, ErrEmptyPayload
	}
	env := gjson.Parse(ev.Payload)
	msg := model.Message{
		NavigationEvent: model.NavigationEvent{URL: url},
	}
	if !env.IsObject() {
		// 非信封格式时整个负载作为消息体
		msg.Data = ev.Payload
		return msg, nil
	}

	data := env.Get("data")
	switch data.Type {
	case gjson.String:
		msg.Data = data.String()
	default:
		msg.Data = data.Raw
	}
	msg.Title = env.Get("title").String()
	msg.Loading = env.Get("loading").Bool()
	msg.CanGoBack = env.Get("canGoBack").Bool()
	msg.CanGoForward = env.Get("canGoForward").Bool()
	return msg, nil
}

// ToLoadStart 主帧提交导航时视为开始加载
func ToLoadStart(ev *page.FrameNavigatedReply) model.LoadStart {
	return model.LoadStart{NavigationEvent: model.NavigationEvent{
		URL:     ev.Frame.URL,
		Loading: true,
	}}
}

// ToLoadFinish 主帧 load 事件
func ToLoadFinish(url string) model.LoadFinish {
	return model.LoadFinish{NavigationEvent: model.NavigationEvent{URL: url}}
}

// ToLoadError 文档请求失败时转换为加载错误。
// 被本地拦截或主动取消的请求不是页面错误，返回 false。
func ToLoadError(ev *network.LoadingFailedReply, url string) (model.LoadError, bool) {
	if ev.Type != network.ResourceTypeDocument {
		return model.LoadError{}, false
	}
	if ev.Canceled != nil && *ev.Canceled {
		return model.LoadError{}, false
	}
	if ev.ErrorText == "net::ERR_BLOCKED_BY_CLIENT" {
		return model.LoadError{}, false
	}
	code, ok := netErrorCodes[ev.ErrorText]
	if !ok {
		code = netErrorCodes["net::ERR_FAILED"]
	}
	return model.LoadError{
		NavigationEvent: model.NavigationEvent{URL: url},
		Error: model.ErrorEvent{
			Domain:      NetErrorDomain,
			Code:        code,
			Description: ev.ErrorText,
		},
	}, true
}

// ToOpenWindow 页面请求打开新窗口
func ToOpenWindow(ev *page.WindowOpenReply) model.OpenWindow {
	return model.OpenWindow{TargetURL: ev.URL}
}

// FrameIDFromAuxData 从执行上下文附加数据中读取帧ID
func FrameIDFromAuxData(aux []byte) page.FrameID {
	return page.FrameID(gjson.GetBytes(aux, "frameId").String())
}
