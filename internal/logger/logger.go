package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口，键值对形式记录字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志配置
type Options struct {
	Level   string
	Writer  []string // console / file
	File    string
	MaxSize int // MB
	Backups int
}

// DefaultOptions 默认日志配置
func DefaultOptions() Options {
	return Options{
		Level:   "info",
		Writer:  []string{"console"},
		File:    filepath.Join("logs", "navguard.log"),
		MaxSize: 20,
		Backups: 3,
	}
}

type zlog struct {
	z zerolog.Logger
}

// New 根据配置创建 zerolog 日志实例
func New(opts Options) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range opts.Writer {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			file := opts.File
			if file == "" {
				file = DefaultOptions().File
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    opts.MaxSize,
				MaxBackups: opts.Backups,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	z := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().
		Logger()
	return &zlog{z: z}
}

// NewWithWriter 使用指定输出创建日志，主要用于测试
func NewWithWriter(w io.Writer, level string) Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.DebugLevel
	}
	return &zlog{z: zerolog.New(w).Level(lv).With().Timestamp().Logger()}
}

func (l *zlog) Debug(msg string, kv ...any) { l.z.Debug().Fields(kv).Msg(msg) }
func (l *zlog) Info(msg string, kv ...any)  { l.z.Info().Fields(kv).Msg(msg) }
func (l *zlog) Warn(msg string, kv ...any)  { l.z.Warn().Fields(kv).Msg(msg) }
func (l *zlog) Error(msg string, kv ...any) { l.z.Error().Fields(kv).Msg(msg) }

func (l *zlog) Err(err error, msg string, kv ...any) {
	l.z.Error().Err(err).Fields(kv).Msg(msg)
}

func (l *zlog) With(kv ...any) Logger {
	return &zlog{z: l.z.With().Fields(kv).Logger()}
}

type nop struct{}

// NewNop 返回丢弃所有输出的日志实例
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any)      {}
func (nop) Info(string, ...any)       {}
func (nop) Warn(string, ...any)       {}
func (nop) Error(string, ...any)      {}
func (nop) Err(error, string, ...any) {}
func (n nop) With(...any) Logger      { return n }
