package solver

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// RoundLimiter 限制进程内同时运行的 gophersat 求解轮数
//
// gophersat 的 Solve 没有中断入口：截止时间到达后被放弃的一轮仍在后台运行到结束。
// 每轮在启动前占用一个名额，运行结束后才归还，被放弃的轮次同样占着名额。
// 正常求解的轮次在名额不足时排队等待；被放弃的轮次占满全部名额时，新的求解直接被拒绝。
type RoundLimiter struct {
	sem       *semaphore.Weighted
	size      int
	inFlight  atomic.Int64
	abandoned atomic.Int64
}

// NewRoundLimiter 创建限制器，n <= 0 时取 CPU 核数
func NewRoundLimiter(n int) *RoundLimiter {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &RoundLimiter{
		sem:  semaphore.NewWeighted(int64(n)),
		size: n,
	}
}

var defaultLimiter = NewRoundLimiter(0)

// DefaultRoundLimiter 返回进程共享的限制器
func DefaultRoundLimiter() *RoundLimiter {
	return defaultLimiter
}

// Acquire 等待并占用一个名额，ctx 结束时返回其错误
func (l *RoundLimiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.inFlight.Add(1)
	return nil
}

// Release 归还名额
func (l *RoundLimiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// InFlight 返回正在运行的求解轮数，包括已被放弃但尚未结束的
func (l *RoundLimiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Abandoned 返回已被放弃但尚未结束的求解轮数
func (l *RoundLimiter) Abandoned() int {
	return int(l.abandoned.Load())
}

// Exhausted 被放弃的轮次是否已占满全部名额
func (l *RoundLimiter) Exhausted() bool {
	return l.Abandoned() >= l.size
}

// Size 返回名额总数
func (l *RoundLimiter) Size() int {
	return l.size
}

// 一轮求解的归属状态
const (
	roundRunning int32 = iota
	roundAbandoned
	roundFinished
)

// ticket 跟踪一轮求解是先结束还是先被放弃
type ticket struct {
	limiter *RoundLimiter
	state   atomic.Int32
}

// abandon 调用方不再等待这一轮
func (t *ticket) abandon() {
	if t.state.CompareAndSwap(roundRunning, roundAbandoned) {
		t.limiter.abandoned.Add(1)
	}
}

// finish 求解结束，归还名额
func (t *ticket) finish() {
	if !t.state.CompareAndSwap(roundRunning, roundFinished) {
		t.limiter.abandoned.Add(-1)
	}
	t.limiter.Release()
}
