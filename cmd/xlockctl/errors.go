package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/omeyang/xlockable/pkg/config/xconf"
)

// exitError 表示命令已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数或配置错误，退出码 2。
type usageError struct {
	msg string
	err error
}

func (e *usageError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *usageError) Unwrap() error { return e.err }

func newUsageError(msg string, err error) error {
	return &usageError{msg: msg, err: err}
}

// wrapConfigError 把配置内容错误归为参数错误，读文件等运行错误保持原样。
func wrapConfigError(what string, err error) error {
	switch {
	case errors.Is(err, xconf.ErrEmptyPath),
		errors.Is(err, xconf.ErrUnsupportedFormat),
		errors.Is(err, xconf.ErrParseFailed),
		errors.Is(err, xconf.ErrUnmarshalFailed),
		errors.Is(err, xconf.ErrInvalidConfig),
		errors.Is(err, xconf.ErrInvalidScenario):
		return newUsageError(what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// cliUsageMarkers 是 urfave/cli 参数错误的消息特征。
var cliUsageMarkers = []string{
	"flag provided but not defined",
	"Required flag",
	"required flag",
	"invalid value",
	"No help topic for",
	"command not found",
}

// isCLIUsageError 判断错误是否来自 CLI 框架的参数解析。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, m := range cliUsageMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
