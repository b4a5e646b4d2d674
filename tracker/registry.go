package tracker

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-guard-go/history"
	"order-guard-go/internal/snapshot"
)

// DefaultCapacity 每个交易对保留的最大记录数。
const DefaultCapacity = 3000

var (
	ErrMissingField = errors.New("missing order field")
	ErrPersistence  = errors.New("persist order history")
	ErrClock        = errors.New("invalid clock")

	// ErrCorruptSnapshot 与 history.ErrCorruptSnapshot 相同，便于调用方只依赖本包。
	ErrCorruptSnapshot = history.ErrCorruptSnapshot
)

// Entry 一条带时间戳的跟踪记录。
type Entry = history.Entry[Record]

// Metrics 记录器指标回调。
type Metrics interface {
	RecordSubmission(symbol string)
	SetHistorySize(symbol string, n int)
	ObservePersist(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordSubmission(string)      {}
func (nopMetrics) SetHistorySize(string, int)   {}
func (nopMetrics) ObservePersist(time.Duration) {}

type slot struct {
	mu   sync.Mutex
	hist *history.Bounded[Record]
}

// Registry 进程内共享的按交易对订单历史。
// 同一交易对的 加载-插入-落盘 在该交易对的锁内完成；不同交易对互不阻塞。
type Registry struct {
	store    snapshot.Store
	capacity int
	clock    Clock
	logger   *zap.Logger
	metrics  Metrics

	mu    sync.Mutex
	slots map[string]*slot
}

type Option func(*Registry)

func WithCapacity(n int) Option       { return func(r *Registry) { r.capacity = n } }
func WithClock(c Clock) Option        { return func(r *Registry) { r.clock = c } }
func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }
func WithMetrics(m Metrics) Option    { return func(r *Registry) { r.metrics = m } }

func NewRegistry(store snapshot.Store, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		capacity: DefaultCapacity,
		clock:    SystemClock,
		logger:   zap.NewNop(),
		metrics:  nopMetrics{},
		slots:    make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capacity 每个交易对的历史容量。
func (r *Registry) Capacity() int { return r.capacity }

// Record 跟踪一笔订单并同步落盘，返回插入的条目供规则校验使用。
func (r *Registry) Record(req OrderRequest) (Entry, error) {
	var zero Entry
	if req.Symbol == "" {
		return zero, fmt.Errorf("%w: symbol is required", ErrMissingField)
	}
	if !req.Size.Valid {
		return zero, fmt.Errorf("%w: size is required to track %s order", ErrMissingField, req.Symbol)
	}
	if !req.Price.Valid {
		return zero, fmt.Errorf("%w: price is required to track %s order", ErrMissingField, req.Symbol)
	}
	if !req.Side.Valid() {
		return zero, fmt.Errorf("%w: side %q for %s order", ErrMissingField, req.Side, req.Symbol)
	}

	now := r.clock.Now()
	ts, ok := UnixNanos(now)
	if !ok {
		return zero, fmt.Errorf("%w: %s is before unix epoch", ErrClock, now)
	}
	entry := history.NewEntry(ts, Record{
		Size:  req.Size.Decimal,
		Price: req.Price.Decimal,
		Side:  req.Side,
		ID:    NewID(ts),
	})

	s := r.slot(req.Symbol, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.warmLocked(req.Symbol, s); err != nil {
		return zero, fmt.Errorf("track %s order %s: %w", req.Symbol, entry.Item.ID, err)
	}
	s.hist.Insert(entry)
	if err := r.persistLocked(req.Symbol, s); err != nil {
		return zero, fmt.Errorf("track %s order %s: %w", req.Symbol, entry.Item.ID, err)
	}

	r.metrics.RecordSubmission(req.Symbol)
	r.metrics.SetHistorySize(req.Symbol, s.hist.Len())
	r.logger.Debug("order_recorded",
		zap.String("symbol", req.Symbol),
		zap.String("id", entry.Item.ID),
		zap.Uint64("ts", ts),
		zap.String("side", string(req.Side)),
		zap.Stringer("size", entry.Item.Size),
		zap.Stringer("price", entry.Item.Price),
		zap.Int("history", s.hist.Len()),
	)
	return entry, nil
}

// Warm 启动时预加载交易对的快照，尽早暴露损坏的文件。
func (r *Registry) Warm(symbol string) error {
	s := r.slot(symbol, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.warmLocked(symbol, s)
}

// All 返回交易对的全部条目；从未跟踪过的交易对第二个返回值为 false。
func (r *Registry) All(symbol string) ([]Entry, bool) {
	s := r.slot(symbol, false)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.All(), true
}

// Since 返回 timestamp >= ts 的条目。
func (r *Registry) Since(symbol string, ts uint64) ([]Entry, bool) {
	s := r.slot(symbol, false)
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Since(ts), true
}

// Symbols 已跟踪的交易对（排序）。
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.slots))
	for sym := range r.slots {
		out = append(out, sym)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) slot(symbol string, create bool) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[symbol]
	if !ok && create {
		s = &slot{hist: history.New[Record](r.capacity)}
		r.slots[symbol] = s
	}
	return s
}

// warmLocked 内存为空且磁盘有快照时恢复；恢复失败直接返回，不能假装成空历史。
func (r *Registry) warmLocked(symbol string, s *slot) error {
	if !s.hist.IsEmpty() {
		return nil
	}
	data, ok, err := r.store.Load(symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if !ok {
		return nil
	}
	restored, err := history.Restore[Record](data, r.capacity)
	if err != nil {
		return fmt.Errorf("restore %s: %w", symbol, err)
	}
	s.hist = restored
	r.metrics.SetHistorySize(symbol, restored.Len())
	r.logger.Info("snapshot_restored",
		zap.String("symbol", symbol),
		zap.Int("entries", restored.Len()),
		zap.Int("capacity", r.capacity),
	)
	return nil
}

func (r *Registry) persistLocked(symbol string, s *slot) error {
	start := time.Now()
	data, err := s.hist.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := r.store.Save(symbol, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.metrics.ObservePersist(time.Since(start))
	return nil
}
