package eventloop

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field format extended with a seconds
// field, plus descriptors such as "@hourly" and "@every 5m".
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleCron runs the task on a cron schedule. The returned future behaves
// like a periodic registration: it completes only through cancellation or a
// failed execution, and runs of one registration never overlap.
//
// Examples:
//
//	"0 0 * * * *"  - every hour on the hour
//	"@every 30s"   - every 30 seconds
//	"@daily"       - every day at midnight
func (l *loop) ScheduleCron(expr string, task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("eventloop: task cannot be nil")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("eventloop: invalid cron expression %q: %w", expr, err)
	}

	now := time.Now()
	first := schedule.Next(now)
	if first.IsZero() {
		return nil, fmt.Errorf("eventloop: cron expression %q never fires", expr)
	}

	return l.schedulePeriodic(task, time.Until(first), func(start, end time.Time) time.Duration {
		return time.Until(schedule.Next(end))
	})
}

// ValidateCronExpression reports whether expr parses as a cron schedule.
func ValidateCronExpression(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}
