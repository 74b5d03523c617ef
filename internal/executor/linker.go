package executor

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"navguard/internal/whitelist"
)

// DefaultOpenCommand 当前系统打开外部链接的命令
func DefaultOpenCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// CommandLinker 通过系统命令交给外部处理器打开链接
type CommandLinker struct {
	Command string
	// Schemes 非空时只声明能处理这些协议，形如 "mailto:"
	Schemes []string
}

// CanOpenURL 命令存在且协议在声明范围内
func (c CommandLinker) CanOpenURL(_ context.Context, url string) (bool, error) {
	if len(c.Schemes) > 0 {
		scheme, ok := whitelist.Scheme(url)
		if !ok || !c.handles(scheme) {
			return false, nil
		}
	}
	if _, err := exec.LookPath(c.command()); err != nil {
		return false, nil
	}
	return true, nil
}

func (c CommandLinker) handles(scheme string) bool {
	for _, s := range c.Schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

func (c CommandLinker) OpenURL(ctx context.Context, url string) error {
	if err := exec.CommandContext(ctx, c.command(), url).Run(); err != nil {
		return fmt.Errorf("%s %s: %w", c.command(), url, err)
	}
	return nil
}

func (c CommandLinker) command() string {
	if c.Command == "" {
		return DefaultOpenCommand()
	}
	return c.Command
}
