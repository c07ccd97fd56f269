// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 基于 Sonyflake 的分布式唯一 ID，用作执行与 Continuation 标识
package util
