package whitelist

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	errNoScheme   = errors.New("missing or invalid scheme")
	errEmptyHost  = errors.New("empty host")
	errBadHost    = errors.New("invalid host")
	errBadPort    = errors.New("invalid port")
	errEmptyInput = errors.New("empty url")
)

// 需要权威部分（host）的特殊协议及其默认端口
var specialSchemes = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
	"file":  "",
}

var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.Transitional(false),
)

// parsedURL 解析后的绝对URL
type parsedURL struct {
	scheme string // 小写，不含冒号
	host   string
	port   string // 已去除默认端口
	rest   string // path + query + fragment
	opaque string // 非特殊协议冒号之后的全部内容
}

func (u *parsedURL) special() bool {
	_, ok := specialSchemes[u.scheme]
	return ok
}

// origin 特殊协议返回 scheme://host[:port]，其余为不透明来源（空串）
func (u *parsedURL) origin() string {
	if !u.special() || u.scheme == "file" {
		return ""
	}
	o := u.scheme + "://" + u.host
	if u.port != "" {
		o += ":" + u.port
	}
	return o
}

// href 规范化后的完整URL
func (u *parsedURL) href() string {
	if !u.special() {
		return u.scheme + ":" + u.opaque
	}
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.host)
	if u.port != "" {
		b.WriteString(":")
		b.WriteString(u.port)
	}
	if u.rest == "" || u.rest[0] == '?' || u.rest[0] == '#' {
		b.WriteString("/")
	}
	b.WriteString(u.rest)
	return b.String()
}

// parse 按浏览器的宽松规则解析绝对URL，任何歧义都返回错误
func parse(raw string) (*parsedURL, error) {
	s := clean(raw)
	if s == "" {
		return nil, errEmptyInput
	}

	scheme, rest, err := splitScheme(s)
	if err != nil {
		return nil, err
	}
	u := &parsedURL{scheme: scheme}
	if !u.special() {
		u.opaque = rest
		return u, nil
	}
	if scheme == "file" {
		u.rest = strings.TrimLeft(rest, "/\\")
		u.rest = "/" + u.rest
		return u, nil
	}

	rest = strings.TrimLeft(rest, "/\\")
	end := strings.IndexAny(rest, "/\\?#")
	if end == -1 {
		end = len(rest)
	}
	authority, tail := rest[:end], rest[end:]
	if at := strings.LastIndex(authority, "@"); at != -1 {
		authority = authority[at+1:]
	}

	host, port, err := splitHostPort(authority)
	if err != nil {
		return nil, err
	}
	if port == specialSchemes[scheme] {
		port = ""
	}
	u.host, u.port = host, port
	u.rest = normalizeTail(tail)
	return u, nil
}

// clean 去除首尾空白与控制字符，并删除内部的制表符和换行
func clean(raw string) string {
	s := strings.TrimFunc(raw, func(r rune) bool { return r <= ' ' })
	if strings.ContainsAny(s, "\t\n\r") {
		s = strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, s)
	}
	return s
}

func splitScheme(s string) (string, string, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isAlpha(c):
		case i > 0 && (isDigit(c) || c == '+' || c == '-' || c == '.'):
		case i > 0 && c == ':':
			return strings.ToLower(s[:i]), s[i+1:], nil
		default:
			return "", "", errNoScheme
		}
	}
	return "", "", errNoScheme
}

func splitHostPort(authority string) (string, string, error) {
	host, port := authority, ""
	if strings.HasPrefix(authority, "[") {
		end := strings.Index(authority, "]")
		if end == -1 {
			return "", "", errBadHost
		}
		host = authority[:end+1]
		after := authority[end+1:]
		if after != "" {
			if after[0] != ':' {
				return "", "", errBadHost
			}
			port = after[1:]
		}
	} else if i := strings.LastIndex(authority, ":"); i != -1 {
		host, port = authority[:i], authority[i+1:]
	}

	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 || strings.TrimLeft(port, "0123456789") != "" {
			return "", "", errBadPort
		}
		port = strconv.Itoa(n)
	}
	if host == "" {
		return "", "", errEmptyHost
	}
	h, err := normalizeHost(host)
	if err != nil {
		return "", "", err
	}
	return h, port, nil
}

func normalizeHost(host string) (string, error) {
	if strings.HasPrefix(host, "[") {
		return strings.ToLower(host), nil
	}
	if strings.ContainsAny(host, " #%/:<>?@[\\]^|") {
		return "", errBadHost
	}
	ascii := true
	for i := 0; i < len(host); i++ {
		if host[i] >= 0x80 || host[i] < 0x20 {
			ascii = false
			break
		}
	}
	if ascii {
		return strings.ToLower(host), nil
	}
	h, err := hostProfile.ToASCII(host)
	if err != nil || h == "" {
		return "", errBadHost
	}
	return strings.ToLower(h), nil
}

// normalizeTail 特殊协议的路径部分统一使用正斜杠
func normalizeTail(tail string) string {
	end := strings.IndexAny(tail, "?#")
	if end == -1 {
		end = len(tail)
	}
	if !strings.Contains(tail[:end], "\\") {
		return tail
	}
	return strings.ReplaceAll(tail[:end], "\\", "/") + tail[end:]
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
