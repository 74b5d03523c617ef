package message

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"navguard/internal/rules"
	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

// MaxTitleLength 交付给宿主的标题最大长度（按字符计）
const MaxTitleLength = 512

var (
	ErrUntrustedOrigin     = errors.New("message origin not in whitelist")
	ErrMalformedBody       = errors.New("message body is not valid json")
	ErrRejectedByValidator = errors.New("message rejected by validator")
	ErrDownloadDenied      = errors.New("download request rejected: origin or file extension not allowed")
)

// DataValidator 宿主对消息体的校验，入参与返回值均为JSON文本
type DataValidator interface {
	ValidateData(body string) (string, error)
}

// MetaValidator 宿主对消息元数据的校验
type MetaValidator interface {
	ValidateMeta(meta model.MessageMeta) (model.MessageMeta, error)
}

// DataFunc 函数形式的 DataValidator
type DataFunc func(body string) (string, error)

func (f DataFunc) ValidateData(body string) (string, error) { return f(body) }

// MetaFunc 函数形式的 MetaValidator
type MetaFunc func(meta model.MessageMeta) (model.MessageMeta, error)

func (f MetaFunc) ValidateMeta(meta model.MessageMeta) (model.MessageMeta, error) { return f(meta) }

type identity struct{}

func (identity) ValidateData(body string) (string, error) { return body, nil }

func (identity) ValidateMeta(meta model.MessageMeta) (model.MessageMeta, error) { return meta, nil }

// Config 消息校验配置
type Config struct {
	Whitelist *whitelist.Whitelist
	Downloads []model.DownloadRule
	Data      DataValidator
	Meta      MetaValidator
}

// Validator 页面消息校验器
type Validator struct {
	whitelist *whitelist.Whitelist
	downloads []model.DownloadRule
	data      DataValidator
	meta      MetaValidator
}

func NewValidator(cfg Config) *Validator {
	v := &Validator{
		whitelist: cfg.Whitelist,
		downloads: append([]model.DownloadRule(nil), cfg.Downloads...),
		data:      cfg.Data,
		meta:      cfg.Meta,
	}
	if v.data == nil {
		v.data = identity{}
	}
	if v.meta == nil {
		v.meta = identity{}
	}
	return v
}

// Process 依次执行 来源白名单 → JSON解析 → 数据校验 → 下载门禁 → 元数据校验，
// 任一步失败返回对应的丢弃原因，消息不会交付给宿主
func (v *Validator) Process(ev model.Message) (model.WebViewMessage, error) {
	if !v.whitelist.Matches(ev.URL) {
		return model.WebViewMessage{}, ErrUntrustedOrigin
	}
	if !gjson.Valid(ev.Data) {
		return model.WebViewMessage{}, ErrMalformedBody
	}

	body, err := v.validateData(ev.Data)
	if err != nil {
		return model.WebViewMessage{}, err
	}
	for _, payload := range downloadPayloads(body) {
		if key, dup := rules.DuplicateKey(payload); dup {
			return model.WebViewMessage{}, fmt.Errorf("%w: duplicate key %q", ErrMalformedBody, key)
		}
		if !rules.IsDownloadAllowed(payload, ev.URL, v.downloads) {
			return model.WebViewMessage{}, ErrDownloadDenied
		}
	}

	meta, err := v.validateMeta(ExtractMeta(ev))
	if err != nil {
		return model.WebViewMessage{}, err
	}

	return model.WebViewMessage{
		URL:            meta.URL,
		Loading:        meta.Loading,
		Title:          meta.Title,
		CanGoBack:      meta.CanGoBack,
		CanGoForward:   meta.CanGoForward,
		LockIdentifier: meta.LockIdentifier,
		Data:           gjson.Get(body, "@ugly").Raw,
	}, nil
}

func (v *Validator) validateData(body string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRejectedByValidator, r)
		}
	}()
	out, err = v.data.ValidateData(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejectedByValidator, err)
	}
	if !gjson.Valid(out) {
		return "", fmt.Errorf("%w: validator returned invalid json", ErrRejectedByValidator)
	}
	return out, nil
}

func (v *Validator) validateMeta(meta model.MessageMeta) (out model.MessageMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRejectedByValidator, r)
		}
	}()
	out, err = v.meta.ValidateMeta(meta)
	if err != nil {
		return model.MessageMeta{}, fmt.Errorf("%w: %v", ErrRejectedByValidator, err)
	}
	return out, nil
}

// downloadPayloads 门禁总是作用于整个消息体，带内层 data 字段时该字段也要通过
func downloadPayloads(body string) []string {
	payloads := []string{body}
	parsed := gjson.Parse(body)
	if !parsed.IsObject() {
		return payloads
	}
	switch inner := parsed.Get("data"); {
	case inner.Type == gjson.String:
		payloads = append(payloads, inner.String())
	case inner.IsObject(), inner.IsArray():
		payloads = append(payloads, inner.Raw)
	}
	return payloads
}

// ExtractMeta 提取元数据并截断过长的标题
func ExtractMeta(ev model.Message) model.MessageMeta {
	return model.MessageMeta{
		URL:            ev.URL,
		Loading:        ev.Loading,
		Title:          truncate(ev.Title, MaxTitleLength),
		CanGoBack:      ev.CanGoBack,
		CanGoForward:   ev.CanGoForward,
		LockIdentifier: ev.LockIdentifier,
	}
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
