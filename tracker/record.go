// Package tracker 记录每一笔发出的订单，并按交易对维护可持久化的有界历史。
package tracker

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side 买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderRequest 下单层交给守卫的订单请求（只包含跟踪所需字段）。
// 市价单没有报价时 Price 无效，此类订单无法被按价格的规则跟踪。
type OrderRequest struct {
	Symbol string
	Side   Side
	Size   decimal.NullDecimal
	Price  decimal.NullDecimal
}

// NewLimitRequest 便捷构造带数量和价格的请求。
func NewLimitRequest(symbol string, side Side, size, price decimal.Decimal) OrderRequest {
	return OrderRequest{
		Symbol: symbol,
		Side:   side,
		Size:   decimal.NewNullDecimal(size),
		Price:  decimal.NewNullDecimal(price),
	}
}

// Record 每次提交保存的跟踪记录。
type Record struct {
	Size  decimal.Decimal `json:"s"`
	Price decimal.Decimal `json:"p"`
	Side  Side            `json:"sd"`
	ID    string          `json:"i"`
}

// Compare 全序：id、price、size、side。
func (r Record) Compare(other Record) int {
	if c := strings.Compare(r.ID, other.ID); c != 0 {
		return c
	}
	if c := r.Price.Cmp(other.Price); c != 0 {
		return c
	}
	if c := r.Size.Cmp(other.Size); c != 0 {
		return c
	}
	return strings.Compare(string(r.Side), string(other.Side))
}

// NewID 随机 token 拼接纳秒时间戳，时间戳碰撞时依然唯一。
func NewID(ts uint64) string {
	return uuid.NewString() + "-" + strconv.FormatUint(ts, 10)
}
