package eventloop

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	commonerrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

// ErrThrottled is returned when a submission cannot be reserved against the
// throttle, for example when it exceeds the limiter's burst.
var ErrThrottled = fmt.Errorf("eventloop: submission exceeds throttle: %w", commonerrors.ErrCapacityExceeded)

// ThrottledLoop wraps a Loop so that immediate submissions are paced by a
// token-bucket limiter. Instead of blocking the caller, a submission that
// outruns the limit is converted into a delayed schedule for the
// reservation's wait time, keeping Submit non-blocking. Delayed and periodic
// scheduling pass through unthrottled.
type ThrottledLoop struct {
	Loop
	limiter *rate.Limiter
}

// NewThrottled wraps loop with a limiter allowing r submissions per second
// with the given burst.
func NewThrottled(loop Loop, r rate.Limit, burst int) *ThrottledLoop {
	return &ThrottledLoop{
		Loop:    loop,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Submit schedules the task for the limiter's next available slot.
func (tl *ThrottledLoop) Submit(task Task) (*Future, error) {
	delay, err := tl.reserve()
	if err != nil {
		return nil, err
	}
	return tl.Loop.Schedule(task, delay)
}

// Call schedules a value-producing unit of work for the limiter's next
// available slot.
func (tl *ThrottledLoop) Call(fn Callable) (*Future, error) {
	delay, err := tl.reserve()
	if err != nil {
		return nil, err
	}
	return tl.Loop.ScheduleCall(fn, delay)
}

// Limit returns the limiter's current rate.
func (tl *ThrottledLoop) Limit() rate.Limit {
	return tl.limiter.Limit()
}

func (tl *ThrottledLoop) reserve() (time.Duration, error) {
	res := tl.limiter.Reserve()
	if !res.OK() {
		return 0, ErrThrottled
	}
	return res.Delay(), nil
}
