package xalloc

import (
	"log/slog"
	"strings"
)

// 日志属性 Key
const (
	KeyRequest   = "request"
	KeyOwner     = "owner"
	KeyResource  = "resource"
	KeyResources = "resources"
	KeyGrant     = "grant"
	KeyLabel     = "label"
	KeySeq       = "seq"
)

// AttrRequest 请求（Continuation）ID
func AttrRequest(id string) slog.Attr { return slog.String(KeyRequest, id) }

// AttrOwner 持有者
func AttrOwner(owner string) slog.Attr { return slog.String(KeyOwner, owner) }

// AttrResource 单个资源名
func AttrResource(name string) slog.Attr { return slog.String(KeyResource, name) }

// AttrResources 资源名列表，格式与控制台输出一致：[a, b]
func AttrResources(names []string) slog.Attr {
	return slog.String(KeyResources, FormatNames(names))
}

// AttrGrant 授权 ID
func AttrGrant(id string) slog.Attr { return slog.String(KeyGrant, id) }

// AttrLabel 请求描述
func AttrLabel(label string) slog.Attr { return slog.String(KeyLabel, label) }

// AttrSeq 到达序号
func AttrSeq(seq uint64) slog.Attr { return slog.Uint64(KeySeq, seq) }

// FormatNames 把资源名格式化为 [a, b]。
func FormatNames(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}
