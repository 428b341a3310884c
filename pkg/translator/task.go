package translator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/provider"
)

// RetryPolicy 决定一次失败后是否重试，以及重试前等待多久
// attempt 从 1 开始，表示刚刚失败的是第几次调用
type RetryPolicy interface {
	Next(attempt int, err error) (delay time.Duration, retry bool)
}

// NoRetry 每次提交只调用一次翻译服务
type NoRetry struct{}

func (NoRetry) Next(int, error) (time.Duration, bool) { return 0, false }

// Backoff 以固定间隔重试临时错误，最多调用 Attempts 次
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

func (b Backoff) Next(attempt int, err error) (time.Duration, bool) {
	if attempt >= b.Attempts || provider.Permanent(err) {
		return 0, false
	}
	return b.Delay, true
}

// Task 描述一次后台翻译所需的全部输入
type Task struct {
	Provider provider.Provider
	Request  Request
	Retry    RetryPolicy
	Timeout  time.Duration // 每次调用的超时，0 表示不限制
	Logger   *logger.Logger
}

// Start 在新的 goroutine 中执行翻译，并通过 deliver 恰好交付一个 Outcome，
// 交付后调用 wake（可为 nil）唤醒交互线程。任务从不触碰控制器或界面状态。
func Start(ctx context.Context, t Task, deliver func(Outcome), wake func()) {
	go func() {
		outcome := t.run(ctx)
		deliver(outcome)
		if wake != nil {
			wake()
		}
	}()
}

// run 执行全部尝试；翻译服务中的 panic 也被转换为失败结果
func (t Task) run(ctx context.Context) (outcome Outcome) {
	start := time.Now()
	outcome.Request = t.Request

	defer func() {
		if r := recover(); r != nil {
			if t.Logger != nil {
				t.Logger.Errorf("provider panic for request %s: %v\n%s", t.Request.ID, r, debug.Stack())
			}
			outcome.Text = ""
			outcome.Err = fmt.Errorf("provider %s panicked: %v", t.Provider.Name(), r)
		}
		outcome.Elapsed = time.Since(start)
	}()

	retry := t.Retry
	if retry == nil {
		retry = NoRetry{}
	}

	d := t.Request.Direction
	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		text, err := t.attempt(ctx, d)
		if err == nil {
			outcome.Text = text
			return outcome
		}
		// 取消优先于服务返回的错误
		if ctx.Err() != nil {
			outcome.Err = fmt.Errorf("request %s: %w", t.Request.ID, ctx.Err())
			return outcome
		}

		delay, again := retry.Next(attempt, err)
		if !again {
			outcome.Err = err
			return outcome
		}
		if t.Logger != nil {
			t.Logger.Warnf("translation failed, retrying in %v (attempt %d): %v", delay, attempt, err)
		}
		select {
		case <-ctx.Done():
			outcome.Err = fmt.Errorf("request %s: %w", t.Request.ID, ctx.Err())
			return outcome
		case <-time.After(delay):
		}
	}
}

func (t Task) attempt(ctx context.Context, d Direction) (string, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	return t.Provider.Translate(ctx, t.Request.Text, d.Source, d.Target)
}
