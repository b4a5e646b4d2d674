package order

import (
	"github.com/shopspring/decimal"

	"order-guard-go/rules"
	"order-guard-go/tracker"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAck      Status = "ACK"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

const (
	TypeLimit  = "LIMIT"
	TypeMarket = "MARKET"
)

// Order holds a simplified order view.
type Order struct {
	ID        string
	Symbol    string
	Side      tracker.Side
	Type      string
	Price     decimal.NullDecimal // 市价单不填
	Quantity  decimal.NullDecimal
	Status    Status
	ClientID  string
	LastError string

	// ValidatedRules 守卫放行时通过的规则，随订单一起下发。
	ValidatedRules []rules.Rule
}

// NewLimitOrder 便捷构造限价单。
func NewLimitOrder(symbol string, side tracker.Side, qty, price decimal.Decimal) Order {
	return Order{
		Symbol:   symbol,
		Side:     side,
		Type:     TypeLimit,
		Price:    decimal.NewNullDecimal(price),
		Quantity: decimal.NewNullDecimal(qty),
	}
}

func (o Order) isMarket() bool { return o.Type == TypeMarket || o.Type == "market" }

// request 市价单没有报价，Price 保持无效，由守卫按缺少字段拒绝。
func (o Order) request() tracker.OrderRequest {
	req := tracker.OrderRequest{
		Symbol: o.Symbol,
		Side:   o.Side,
		Size:   o.Quantity,
		Price:  o.Price,
	}
	if o.isMarket() {
		req.Price = decimal.NullDecimal{}
	}
	return req
}
