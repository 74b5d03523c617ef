package version

import (
	"regexp"

	"navguard/pkg/model"
)

// 各平台不可降低的最低运行时版本
var hardMinimums = map[model.Platform]string{
	model.PlatformIOS:      "12.5.6 <13, 13.6.1 <14, 14.8.1 <15, 15.7.1",
	model.PlatformAndroid:  "100.0",
	model.PlatformChromium: "100.0",
}

var chromePattern = regexp.MustCompile(`(?i)chrome/((?:[0-9]+\.)+[0-9]+)`)

// HardMinimum 返回平台内置的最低版本约束，未知平台返回空串
func HardMinimum(p model.Platform) string {
	return hardMinimums[p]
}

// ChromeVersion 从 User-Agent 中提取 Chrome 版本号
func ChromeVersion(userAgent string) (string, bool) {
	m := chromePattern.FindStringSubmatch(userAgent)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Gate 版本门禁：宿主配置的最低版本与平台内置最低版本必须同时满足
type Gate struct {
	Platform model.Platform
	Minimum  string
}

// Result 门禁检查结果
type Result struct {
	Status  model.GateStatus
	Version string
	Reason  string
}

// Passed 是否放行
func (r Result) Passed() bool { return r.Status == model.GatePassed }

// Check 检查运行时版本
func (g Gate) Check(version string) Result {
	res := Result{Status: model.GateBlocked, Version: version}
	hard := HardMinimum(g.Platform)
	switch {
	case version == "":
		res.Reason = "runtime version unknown"
	case hard == "":
		res.Reason = "unknown platform " + string(g.Platform)
	case !Passes(version, hard):
		res.Reason = "runtime " + version + " below platform minimum " + hard
	case g.Minimum != "" && !Passes(version, g.Minimum):
		res.Reason = "runtime " + version + " does not satisfy " + g.Minimum
	default:
		res.Status = model.GatePassed
	}
	return res
}
