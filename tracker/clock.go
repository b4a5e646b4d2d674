package tracker

import "time"

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 默认使用系统时间。
var SystemClock Clock = systemClock{}

// UnixNanos 转为纪元纳秒；早于纪元的时间无法表示为 uint64。
func UnixNanos(t time.Time) (uint64, bool) {
	n := t.UnixNano()
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}
