package order

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"order-guard-go/risk"
)

// Gateway 提供基础下单/撤单抽象。
type Gateway interface {
	Place(o Order) (string, error)
	Cancel(orderID string) error
}

// Manager 维护订单状态，经守卫放行后通过 Gateway 下发。
type Manager struct {
	gw          Gateway
	guard       risk.Guard
	mu          sync.RWMutex
	orders      map[string]*Order
	constraints map[string]SymbolConstraints
}

func NewManager(gw Gateway, guard risk.Guard) *Manager {
	return &Manager{
		gw:     gw,
		guard:  guard,
		orders: make(map[string]*Order),
	}
}

var (
	ErrUnknownOrder = errors.New("unknown order")
	ErrNoGuard      = errors.New("order guard not configured")
)

// Submit 精度检查、守卫记录并校验，通过后同步调用 Gateway 下单。
// 守卫拒绝时订单不会下发，也不会登记。
func (m *Manager) Submit(o Order) (*Order, error) {
	if m.guard == nil {
		return nil, ErrNoGuard
	}
	if o.Type == "" {
		o.Type = TypeLimit
	}
	if err := m.validateConstraint(o); err != nil {
		return nil, err
	}
	validated, err := m.guard.PreOrder(o.request())
	if err != nil {
		return nil, fmt.Errorf("order guard: %w", err)
	}
	o.ValidatedRules = validated
	if o.ID == "" {
		o.ID = generateID(o.ClientID)
	}
	o.Status = StatusNew
	m.mu.Lock()
	m.orders[o.ID] = &o
	m.mu.Unlock()

	if m.gw != nil {
		if _, err := m.gw.Place(o); err != nil {
			m.updateStatus(o.ID, StatusRejected, err)
			return nil, err
		}
		m.updateStatus(o.ID, StatusAck, nil)
	}
	return &o, nil
}

// Update 收到回报后更新状态。
func (m *Manager) Update(id string, st Status) error {
	return m.updateStatus(id, st, nil)
}

// Cancel 调用 Gateway 撤单并标记状态。
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	_, ok := m.orders[id]
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownOrder
	}
	if m.gw != nil {
		if err := m.gw.Cancel(id); err != nil {
			return err
		}
	}
	return m.updateStatus(id, StatusCanceled, nil)
}

// Status 返回订单当前状态，如不存在则第二个返回值为 false。
func (m *Manager) Status(id string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return "", false
	}
	return o.Status, true
}

func (m *Manager) updateStatus(id string, st Status, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	o.Status = st
	if err != nil {
		o.LastError = err.Error()
	}
	return nil
}

func generateID(prefix string) string {
	if prefix == "" {
		prefix = "ord"
	}
	return prefix + "-" + uuid.NewString()
}

// SetConstraints 设置各交易对的精度/名义限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

func (m *Manager) validateConstraint(o Order) error {
	m.mu.RLock()
	c, ok := m.constraints[o.Symbol]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	// 市价单和缺字段的订单不做精度检查，交给守卫拒绝
	if o.isMarket() || !o.Price.Valid || !o.Quantity.Valid {
		return nil
	}
	return c.Validate(o.Price.Decimal, o.Quantity.Decimal)
}
