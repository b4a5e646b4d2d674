package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BoundKind 数量约束类型。
type BoundKind string

const (
	BoundMin    BoundKind = "min"
	BoundMax    BoundKind = "max"
	BoundMinMax BoundKind = "minmax"
)

// SizeBounds 订单数量约束（闭区间）。
type SizeBounds struct {
	Kind BoundKind
	Min  decimal.Decimal
	Max  decimal.Decimal
}

func MinSize(lo decimal.Decimal) SizeBounds { return SizeBounds{Kind: BoundMin, Min: lo} }
func MaxSize(hi decimal.Decimal) SizeBounds { return SizeBounds{Kind: BoundMax, Max: hi} }

func SizeBetween(lo, hi decimal.Decimal) SizeBounds {
	return SizeBounds{Kind: BoundMinMax, Min: lo, Max: hi}
}

// AnySize 不限制数量（>= 0）。
func AnySize() SizeBounds { return MinSize(decimal.Zero) }

// Contains 数量是否落在约束内。
func (b SizeBounds) Contains(size decimal.Decimal) bool {
	switch b.Kind {
	case BoundMin:
		return size.GreaterThanOrEqual(b.Min)
	case BoundMax:
		return size.LessThanOrEqual(b.Max)
	case BoundMinMax:
		return size.GreaterThanOrEqual(b.Min) && size.LessThanOrEqual(b.Max)
	}
	return false
}

func (b SizeBounds) Validate() error {
	switch b.Kind {
	case BoundMin, BoundMax:
		return nil
	case BoundMinMax:
		if b.Min.GreaterThan(b.Max) {
			return fmt.Errorf("%w: size min %s > max %s", ErrMalformedRule, b.Min, b.Max)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown size bound kind %q", ErrMalformedRule, b.Kind)
}

func (b SizeBounds) String() string {
	switch b.Kind {
	case BoundMin:
		return "size>=" + b.Min.String()
	case BoundMax:
		return "size<=" + b.Max.String()
	case BoundMinMax:
		return "size[" + b.Min.String() + "," + b.Max.String() + "]"
	}
	return "size?" + string(b.Kind)
}
