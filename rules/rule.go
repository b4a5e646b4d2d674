package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"order-guard-go/tracker"
)

// Scope 规则类型：Global 为启动时写死的运营策略，PerGrid 为可动态替换的网格档位规则。
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopePerGrid Scope = "perGrid"
)

// Limits 周期窗口内的累计限制，均为闭区间；无效值表示不限制。
type Limits struct {
	MaxOrders      int
	MaxTotalSize   decimal.NullDecimal
	MaxAverageSize decimal.NullDecimal
}

func (l Limits) String() string {
	parts := make([]string, 0, 3)
	if l.MaxOrders > 0 {
		parts = append(parts, "orders<="+strconv.Itoa(l.MaxOrders))
	}
	if l.MaxTotalSize.Valid {
		parts = append(parts, "total<="+l.MaxTotalSize.Decimal.String())
	}
	if l.MaxAverageSize.Valid {
		parts = append(parts, "avg<="+l.MaxAverageSize.Decimal.String())
	}
	return strings.Join(parts, ",")
}

// Rule 一条下单规则。
type Rule struct {
	Scope  Scope
	Size   SizeBounds
	Period Period
	// Side 为空表示买卖双向
	Side   tracker.Side
	Limits Limits
}

func Global(size SizeBounds, period Period, limits Limits) Rule {
	return Rule{Scope: ScopeGlobal, Size: size, Period: period, Limits: limits}
}

func PerGrid(size SizeBounds, period Period, limits Limits) Rule {
	return Rule{Scope: ScopePerGrid, Size: size, Period: period, Limits: limits}
}

// WithSide 返回只作用于指定方向的副本。
func (r Rule) WithSide(side tracker.Side) Rule {
	r.Side = side
	return r
}

func (r Rule) IsGlobal() bool { return r.Scope == ScopeGlobal }

// Key 规则的规范化标识，规则集合按 Key 去重。
func (r Rule) Key() string {
	side := string(r.Side)
	if side == "" {
		side = "ANY"
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", r.Scope, r.Size, r.Period, side, r.Limits)
}

func (r Rule) String() string { return r.Key() }

func (r Rule) sideMatches(side tracker.Side) bool {
	return r.Side == "" || r.Side == side
}

// Matches Global 规则匹配该交易对的所有订单；PerGrid 规则只匹配数量落在档位内的订单。
func (r Rule) Matches(e tracker.Entry) bool {
	if !r.sideMatches(e.Item.Side) {
		return false
	}
	if r.IsGlobal() {
		return true
	}
	return r.Size.Contains(e.Item.Size)
}

// Validate 校验数量约束，并在 window（周期内的历史）上校验累计限制。
// 当前订单只计一次，无论 window 中是否已包含它。
func (r Rule) Validate(e tracker.Entry, window []tracker.Entry) error {
	if !r.Size.Contains(e.Item.Size) {
		return &ViolationError{Rule: r, Detail: fmt.Sprintf("order size %s outside %s", e.Item.Size, r.Size)}
	}

	count := 1
	total := e.Item.Size
	for _, w := range window {
		if w.Equal(e) || !r.Matches(w) {
			continue
		}
		count++
		total = total.Add(w.Item.Size)
	}

	if r.Limits.MaxOrders > 0 && count > r.Limits.MaxOrders {
		return &ViolationError{Rule: r, Detail: fmt.Sprintf("%d orders within %s exceeds %d", count, r.Period, r.Limits.MaxOrders)}
	}
	if r.Limits.MaxTotalSize.Valid && total.GreaterThan(r.Limits.MaxTotalSize.Decimal) {
		return &ViolationError{Rule: r, Detail: fmt.Sprintf("total size %s within %s exceeds %s", total, r.Period, r.Limits.MaxTotalSize.Decimal)}
	}
	if r.Limits.MaxAverageSize.Valid {
		avg := total.Div(decimal.NewFromInt(int64(count)))
		if avg.GreaterThan(r.Limits.MaxAverageSize.Decimal) {
			return &ViolationError{Rule: r, Detail: fmt.Sprintf("average size %s within %s exceeds %s", avg, r.Period, r.Limits.MaxAverageSize.Decimal)}
		}
	}
	return nil
}

// check 规则自身是否格式正确。
func (r Rule) check() error {
	switch r.Scope {
	case ScopeGlobal, ScopePerGrid:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrMalformedRule, r.Scope)
	}
	if r.Side != "" && !r.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrMalformedRule, r.Side)
	}
	if r.Limits.MaxOrders < 0 {
		return fmt.Errorf("%w: maxOrders must be >= 0", ErrMalformedRule)
	}
	if err := r.Size.Validate(); err != nil {
		return err
	}
	_, err := r.Period.ValidatedDuration()
	return err
}
