package rules

import (
	"fmt"
	"math"
	"time"
)

// MinPeriod 规则周期的最小有效时长，低于该值的规则视为格式错误。
const MinPeriod = 120 * time.Second

// Unit 周期单位。
type Unit string

const (
	UnitSeconds Unit = "seconds"
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
	UnitWeeks   Unit = "weeks"
)

func (u Unit) seconds() (uint64, bool) {
	switch u {
	case UnitSeconds:
		return 1, true
	case UnitMinutes:
		return 60, true
	case UnitHours:
		return 60 * 60, true
	case UnitDays:
		return 24 * 60 * 60, true
	case UnitWeeks:
		return 7 * 24 * 60 * 60, true
	}
	return 0, false
}

// Period 由单位和数值表示的时间窗口，例如 52 weeks。
type Period struct {
	Unit  Unit   `json:"unit" yaml:"unit"`
	Value uint64 `json:"value" yaml:"value"`
}

func Seconds(n uint64) Period { return Period{Unit: UnitSeconds, Value: n} }
func Minutes(n uint64) Period { return Period{Unit: UnitMinutes, Value: n} }
func Hours(n uint64) Period   { return Period{Unit: UnitHours, Value: n} }
func Days(n uint64) Period    { return Period{Unit: UnitDays, Value: n} }
func Weeks(n uint64) Period   { return Period{Unit: UnitWeeks, Value: n} }

func (p Period) String() string { return fmt.Sprintf("%d %s", p.Value, p.Unit) }

// Duration 换算为时长，未知单位或溢出返回 ErrMalformedRule。
func (p Period) Duration() (time.Duration, error) {
	mult, ok := p.Unit.seconds()
	if !ok {
		return 0, fmt.Errorf("%w: unknown period unit %q", ErrMalformedRule, p.Unit)
	}
	if p.Value > uint64(math.MaxInt64/int64(time.Second))/mult {
		return 0, fmt.Errorf("%w: period %s overflows", ErrMalformedRule, p)
	}
	return time.Duration(p.Value*mult) * time.Second, nil
}

// ValidatedDuration 同 Duration，并要求不短于 MinPeriod。
func (p Period) ValidatedDuration() (time.Duration, error) {
	d, err := p.Duration()
	if err != nil {
		return 0, err
	}
	if d < MinPeriod {
		return 0, fmt.Errorf("%w: period must be at least %d seconds, got %d",
			ErrMalformedRule, int64(MinPeriod/time.Second), int64(d/time.Second))
	}
	return d, nil
}

// WindowStart 返回窗口起点（纳秒），小于 0 时取 0。
func (p Period) WindowStart(nowNanos uint64) (uint64, error) {
	d, err := p.ValidatedDuration()
	if err != nil {
		return 0, err
	}
	span := uint64(d.Nanoseconds())
	if span >= nowNanos {
		return 0, nil
	}
	return nowNanos - span, nil
}
