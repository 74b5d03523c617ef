package model

// Effect 策略决策产生的副作用，由执行器统一落地
type Effect interface {
	effect()
}

// Acknowledge 通过锁标识回复原生层的导航决策
type Acknowledge struct {
	Lock  LockID
	Allow bool
	URL   string
}

// LoadURL 无锁时的直接加载指令
type LoadURL struct {
	URL string
}

// OpenExternal 请求交给外部处理器打开，异步且尽力而为
type OpenExternal struct {
	URL        string
	Scheme     string
	IsTopFrame bool
}

// LogLevel 诊断级别
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// DecisionKind 决策类别，用于日志与审计
type DecisionKind string

const (
	KindNavigation DecisionKind = "navigation"
	KindMessage    DecisionKind = "message"
	KindDownload   DecisionKind = "download"
	KindVersion    DecisionKind = "version"
	KindLifecycle  DecisionKind = "lifecycle"
	KindExternal   DecisionKind = "external"
)

// Verdict 决策结果
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictDrop  Verdict = "drop"
	VerdictOpen  Verdict = "open"
	VerdictFault Verdict = "fault"
)

// Log 诊断日志，同时写入审计日志
type Log struct {
	Level   LogLevel
	Kind    DecisionKind
	Verdict Verdict
	URL     string
	Message string
}

// Deliver 将校验后的消息交付给宿主
type Deliver struct {
	Message WebViewMessage
}

// NotifyOpenWindow 通知宿主页面请求打开新窗口
type NotifyOpenWindow struct {
	TargetURL string
}

// None 空副作用
type None struct{}

func (Acknowledge) effect()      {}
func (LoadURL) effect()          {}
func (OpenExternal) effect()     {}
func (Log) effect()              {}
func (Deliver) effect()          {}
func (NotifyOpenWindow) effect() {}
func (None) effect()             {}
