package stats

import (
	"fmt"
	"strings"
	"time"
)

// Period 决定统计窗口的边界规则。
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Periods 列出所有支持的周期类型。
var Periods = []Period{PeriodWeekly, PeriodMonthly}

// ParsePeriod 解析周期类型，大小写与首尾空白不敏感。
func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return p, nil
}

// Valid 判断周期类型是否受支持。
func (p Period) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

func (p Period) String() string {
	return string(p)
}

// Window 是闭区间 [Start, End]，End 为窗口最后一天的 23:59:59.999。
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains 判断 t 是否落在窗口内，边界包含在内。
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days 返回窗口覆盖的自然日数量。
func (w Window) Days() int {
	sy, sm, sd := w.Start.Date()
	ey, em, ed := w.End.Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours()/24) + 1
}

// UTC 返回换算到 UTC 的窗口，用于存储与查询。
func (w Window) UTC() Window {
	return Window{Start: w.Start.UTC(), End: w.End.UTC()}
}

const endOfDayNanos = int(999 * time.Millisecond)

// Calendar 在指定时区内计算周期窗口，WeekStart 为每周的第一天。
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// DefaultCalendar 使用 UTC 且以周日为一周起点。
func DefaultCalendar() Calendar {
	return Calendar{Location: time.UTC, WeekStart: time.Sunday}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Window 计算 anchor 所在的周期窗口。未知周期按周处理，调用方应先校验。
func (c Calendar) Window(period Period, anchor time.Time) Window {
	loc := c.location()
	t := anchor.In(loc)
	y, m, d := t.Date()

	if period == PeriodMonthly {
		return Window{
			Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
			// 下月第 0 天即本月最后一天
			End: time.Date(y, m+1, 0, 23, 59, 59, endOfDayNanos, loc),
		}
	}

	offset := (int(t.Weekday()) - int(c.WeekStart) + 7) % 7
	return Window{
		Start: time.Date(y, m, d-offset, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d-offset+6, 23, 59, 59, endOfDayNanos, loc),
	}
}

// PreviousWindow 计算紧邻的上一个同类型窗口：周为起点减 7 天，月为起点减一个月。
func (c Calendar) PreviousWindow(period Period, anchor time.Time) Window {
	current := c.Window(period, anchor)
	if period == PeriodMonthly {
		return c.Window(period, current.Start.AddDate(0, -1, 0))
	}
	return c.Window(period, current.Start.AddDate(0, 0, -7))
}
