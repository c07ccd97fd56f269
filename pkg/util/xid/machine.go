package xid

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
)

const (
	// EnvNodeID 直接指定机器 ID 的环境变量
	EnvNodeID = "XLOCKABLE_NODE_ID"
	// EnvHostname 主机名环境变量
	EnvHostname = "HOSTNAME"
)

// 测试注入点
var osHostname = os.Hostname

// DefaultMachineID 依次从环境变量、主机名获取机器 ID。
func DefaultMachineID() (uint16, error) {
	if s := os.Getenv(EnvNodeID); s != "" {
		id, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvNodeID, s, err)
		}
		return uint16(id), nil
	}
	if h := os.Getenv(EnvHostname); h != "" {
		return hashToMachineID(h), nil
	}
	h, err := osHostname()
	if err != nil {
		return 0, fmt.Errorf("xid: no machine id source: %w", err)
	}
	if h == "" {
		return 0, errors.New("xid: no machine id source: empty hostname")
	}
	return hashToMachineID(h), nil
}

// hashToMachineID FNV-1a 32 位哈希异或折叠为 16 位。
func hashToMachineID(s string) uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum&0xFFFF)
}
