package middleware

import (
	"sync"
	"time"
)

// RateLimiter 滑动窗口频率限制器
type RateLimiter struct {
	requests map[string][]time.Time // key -> 请求时间戳
	limit    int                    // 时间窗口内最大请求数
	window   time.Duration          // 时间窗口
	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建频率限制器，limit <= 0 时不限流
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}

	if limit > 0 && window > 0 {
		go rl.cleanup()
	}

	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	validReqs := pruned(rl.requests[key], now.Add(-rl.window))

	if len(validReqs) >= rl.limit {
		rl.requests[key] = validReqs
		return false
	}

	rl.requests[key] = append(validReqs, now)
	return true
}

// Stop 停止后台清理
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// cleanup 定期清理过期数据
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			windowStart := now.Add(-rl.window)
			for key, reqs := range rl.requests {
				if valid := pruned(reqs, windowStart); len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

// pruned 保留 windowStart 之后的时间戳
func pruned(reqs []time.Time, windowStart time.Time) []time.Time {
	var valid []time.Time
	for _, t := range reqs {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}
