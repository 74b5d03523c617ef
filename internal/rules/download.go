package rules

import (
	"strings"

	"github.com/tidwall/gjson"

	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

const downloadMethod = "download"

// IsDownloadAllowed 判断页面消息是否为被允许的下载请求。
// 非JSON或非 download 方法的消息不是下载请求，直接放行。
func IsDownloadAllowed(data, rawURL string, rules []model.DownloadRule) bool {
	if !gjson.Valid(data) {
		return true
	}
	parsed := gjson.Parse(data)
	// 重复键在宿主侧以最后一个为准，与这里读到的值可能不同
	if _, dup := duplicateKey(parsed); dup {
		return false
	}
	if !parsed.IsObject() || parsed.Get("method").String() != downloadMethod {
		return true
	}

	origin, ok := whitelist.Origin(rawURL)
	if !ok {
		return false
	}
	ext := FileExtension(parsed.Get("params.fileName").String())
	if ext == "" {
		return false
	}

	for _, rule := range rules {
		if rule.Origin == origin && rule.AllowsExtension(ext) {
			return true
		}
	}
	return false
}

// FileExtension 返回最后一个点之后的小写扩展名，没有点时返回空串
func FileExtension(name string) string {
	i := strings.LastIndex(name, ".")
	if i == -1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// DuplicateKey 返回JSON中任一对象内重复出现的键，非法JSON视为没有重复
func DuplicateKey(data string) (string, bool) {
	if !gjson.Valid(data) {
		return "", false
	}
	return duplicateKey(gjson.Parse(data))
}

func duplicateKey(r gjson.Result) (key string, dup bool) {
	if !r.IsObject() && !r.IsArray() {
		return "", false
	}
	seen := make(map[string]struct{})
	r.ForEach(func(k, v gjson.Result) bool {
		if r.IsObject() {
			if _, ok := seen[k.String()]; ok {
				key, dup = k.String(), true
				return false
			}
			seen[k.String()] = struct{}{}
		}
		key, dup = duplicateKey(v)
		return !dup
	})
	return key, dup
}
