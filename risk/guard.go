// Package risk 在订单发往交易所前做记录和规则校验。
package risk

import (
	"fmt"

	"go.uber.org/zap"

	"order-guard-go/infrastructure/logger"
	"order-guard-go/rules"
	"order-guard-go/tracker"
)

// Tracker 记录订单并返回带时间戳的条目。
type Tracker interface {
	Record(req tracker.OrderRequest) (tracker.Entry, error)
}

// Validator 按交易对规则校验已记录的条目。
type Validator interface {
	Validate(symbol string, entry tracker.Entry) ([]rules.Rule, error)
}

// Metrics 守卫结果统计。
type Metrics interface {
	RecordAccepted(symbol string)
	RecordRejected(symbol, reason string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAccepted(string)         {}
func (nopMetrics) RecordRejected(string, string) {}

// Guard 下单前检查。
type Guard interface {
	PreOrder(req tracker.OrderRequest) ([]rules.Rule, error)
}

// OrderGuard 先记录再校验：被拒绝的订单同样计入历史。
type OrderGuard struct {
	tracker  Tracker
	rules    Validator
	logger   *logger.Logger
	metrics  Metrics
	notifier *Notifier
}

type GuardOption func(*OrderGuard)

func WithLogger(l *logger.Logger) GuardOption { return func(g *OrderGuard) { g.logger = l } }
func WithMetrics(m Metrics) GuardOption       { return func(g *OrderGuard) { g.metrics = m } }
func WithNotifier(n *Notifier) GuardOption    { return func(g *OrderGuard) { g.notifier = n } }

func NewOrderGuard(t Tracker, v Validator, opts ...GuardOption) *OrderGuard {
	g := &OrderGuard{
		tracker: t,
		rules:   v,
		logger:  logger.Nop(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PreOrder 记录订单并返回通过校验的规则；任何错误都意味着不应下单。
func (g *OrderGuard) PreOrder(req tracker.OrderRequest) ([]rules.Rule, error) {
	entry, err := g.tracker.Record(req)
	if err != nil {
		return nil, g.reject(req.Symbol, err)
	}
	validated, err := g.rules.Validate(req.Symbol, entry)
	if err != nil {
		return nil, g.reject(req.Symbol, err)
	}
	if len(validated) == 0 {
		return nil, g.reject(req.Symbol, fmt.Errorf("%w: %s order %s", ErrNoValidatedRules, req.Symbol, entry.Item.ID))
	}

	g.metrics.RecordAccepted(req.Symbol)
	g.logger.Debug("order_accepted",
		zap.String("symbol", req.Symbol),
		zap.String("id", entry.Item.ID),
		zap.Int("rules", len(validated)),
	)
	return validated, nil
}

func (g *OrderGuard) reject(symbol string, err error) error {
	reason := RejectReason(err)
	g.metrics.RecordRejected(symbol, reason)
	g.logger.LogRejection(symbol, reason, err)
	g.notifier.NotifyRejected(symbol, reason, err)
	return err
}
