package main

import (
	"fmt"
	"io"
)

// cmdCheck 校验配置并列出资源池。
func cmdCheck(w io.Writer, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "配置有效: %s\n", path)
	fmt.Fprintf(w, "资源: %d\n", len(cfg.Pool.Resources))
	if cfg.Snapshot.Enabled() {
		fmt.Fprintf(w, "快照: %s %v key=%s schedule=%q guard=%t\n",
			cfg.Snapshot.Backend, cfg.Snapshot.Addrs, cfg.Snapshot.Key, cfg.Snapshot.Schedule, cfg.Snapshot.Guard)
	} else {
		fmt.Fprintln(w, "快照: 未配置")
	}
	if len(cfg.Pool.Resources) > 0 {
		fmt.Fprintln(w)
		printPool(w, cfg.Pool.Resources)
	}
	return nil
}
