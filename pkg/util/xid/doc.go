// Package xid 生成进程间唯一、大致按时间递增的 ID。
//
// 步骤执行以它作为 Continuation ID：ID 在持久化后仍然有效，
// 恢复时可按 ID 找回等待中的工作单元。
//
// 底层使用 Sonyflake v2（39 位时间 + 8 位序列 + 16 位机器），
// 字符串形式为 base36，可附加前缀，如 "exec-3kq9x0c2m1a"。
//
// 机器 ID 按以下顺序获取：
//
//  1. XLOCKABLE_NODE_ID 环境变量（0-65535）
//  2. HOSTNAME 环境变量的哈希
//  3. os.Hostname() 的哈希
//
// 多实例部署时应显式设置 XLOCKABLE_NODE_ID，哈希存在碰撞可能。
package xid
