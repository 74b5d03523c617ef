package version

import (
	"regexp"
	"strconv"
	"strings"
)

var boundPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// Passes 判断版本是否满足版本约束。
//
// 约束支持三种写法：
//
//	"15.7.1"                      单个下限
//	"12.5.6 <13"                  半开区间 [12.5.6, 13)
//	"12.5.6 <13, 13.6.1 <14, 15"  并集，除最后一项外都必须带上限
//
// 任何格式错误都视为不满足。
func Passes(version, spec string) bool {
	if version == "" || spec == "" {
		return false
	}

	if strings.Contains(spec, ", ") {
		members := strings.Split(spec, ", ")
		for _, m := range members[:len(members)-1] {
			if !strings.Contains(m, " <") {
				return false
			}
		}
		for _, m := range members {
			if Passes(version, strings.TrimSpace(m)) {
				return true
			}
		}
		return false
	}

	if strings.Contains(spec, " <") {
		parts := strings.Split(spec, " <")
		if len(parts) != 2 {
			return false
		}
		lo, hi := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		// 最后一项同时校验上限自身的格式
		return Passes(version, lo) && !Passes(version, hi) && Passes(hi, version)
	}

	return atLeast(version, spec)
}

// atLeast 逐段比较，缺失的段按 0 补齐
func atLeast(version, minimum string) bool {
	if !boundPattern.MatchString(version) || !boundPattern.MatchString(minimum) {
		return false
	}
	vs, ms := strings.Split(version, "."), strings.Split(minimum, ".")
	n := len(vs)
	if len(ms) > n {
		n = len(ms)
	}
	for i := 0; i < n; i++ {
		v, okV := component(vs, i)
		m, okM := component(ms, i)
		if !okV || !okM {
			return false
		}
		if v > m {
			return true
		}
		if v < m {
			return false
		}
	}
	return true
}

func component(parts []string, i int) (uint64, bool) {
	if i >= len(parts) {
		return 0, true
	}
	n, err := strconv.ParseUint(parts[i], 10, 64)
	return n, err == nil
}

// Valid 约束字符串能否被解析：每个边界都必须是合法版本号
func Valid(spec string) bool {
	if spec == "" {
		return false
	}
	members := strings.Split(spec, ", ")
	for i, m := range members {
		m = strings.TrimSpace(m)
		bounds := strings.Split(m, " <")
		if len(bounds) > 2 || (i < len(members)-1 && len(bounds) != 2) {
			return false
		}
		for _, b := range bounds {
			if !boundPattern.MatchString(strings.TrimSpace(b)) {
				return false
			}
		}
	}
	return true
}
