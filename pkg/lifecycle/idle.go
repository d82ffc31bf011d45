package lifecycle

import "time"

const (
	DefaultIdleDelay  = time.Millisecond
	DefaultIdleBudget = 50 * time.Millisecond
)

// IdleDeadline describes the idle period a callback runs in.
type IdleDeadline struct {
	DidTimeout    bool
	TimeRemaining func() time.Duration
}

// IdleScheduler runs cb once the host has spare time. No bound is given on
// when that happens.
type IdleScheduler interface {
	RequestIdle(cb func(IdleDeadline))
}

// TimerScheduler approximates idle time with a short timer. The budget is
// counted from the request, not from when the timer fires.
type TimerScheduler struct {
	Delay  time.Duration
	Budget time.Duration
}

func (s TimerScheduler) RequestIdle(cb func(IdleDeadline)) {
	delay := s.Delay
	if delay <= 0 {
		delay = DefaultIdleDelay
	}
	budget := s.Budget
	if budget <= 0 {
		budget = DefaultIdleBudget
	}

	start := time.Now()
	time.AfterFunc(delay, func() {
		cb(IdleDeadline{
			DidTimeout: false,
			TimeRemaining: func() time.Duration {
				return max(0, budget-time.Since(start))
			},
		})
	})
}
