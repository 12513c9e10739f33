package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// lookback bounds how far before refTime the previous firing is searched.
const lookback = 8 * 24 * time.Hour

type TriggerInfo struct {
	Next       time.Time
	Last       time.Time
	Expression string

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// GetTriggerInfo reports the previous and next firing of a standard
// five-field cron expression (descriptors such as @hourly accepted)
// relative to refTime. Last stays zero when the schedule did not fire
// within the past eight days.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
		Last:       previous(schedule, refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	return info, nil
}

// previous walks forward from refTime-lookback and keeps the last firing at
// or before refTime. The search window halves until it holds at most one
// firing, so frequent schedules do not iterate over every minute.
func previous(schedule cron.Schedule, refTime time.Time) time.Time {
	from := refTime.Add(-lookback)
	for {
		first := schedule.Next(from)
		if first.After(refTime) {
			return time.Time{}
		}
		second := schedule.Next(first)
		if second.After(refTime) {
			return first
		}
		// at least two firings in (from, refTime]; narrow from the left
		mid := from.Add(refTime.Sub(from) / 2)
		if next := schedule.Next(mid); !next.After(refTime) {
			from = mid
		} else {
			from = second.Add(-time.Second)
		}
	}
}
