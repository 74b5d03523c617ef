package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestNewWithWriterFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug").With("view", "v1")

	l.Warn("导航被拒绝", "url", "http://a.com", "lock", 3)

	line := buf.String()
	assert.Equal(t, "warn", gjson.Get(line, "level").String())
	assert.Equal(t, "导航被拒绝", gjson.Get(line, "message").String())
	assert.Equal(t, "v1", gjson.Get(line, "view").String())
	assert.Equal(t, "http://a.com", gjson.Get(line, "url").String())
	assert.Equal(t, int64(3), gjson.Get(line, "lock").Int())
}

func TestErrIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	l.Err(errors.New("boom"), "打开外部链接失败")

	assert.Equal(t, "boom", gjson.Get(buf.String(), "error").String())
	assert.Equal(t, "error", gjson.Get(buf.String(), "level").String())
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNopIsSafe(t *testing.T) {
	l := NewNop().With("k", "v")
	l.Debug("x")
	l.Err(errors.New("e"), "x")
}
