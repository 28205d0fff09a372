// 住院医师排班命令行工具
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
