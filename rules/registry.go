package rules

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-guard-go/tracker"
)

// 覆盖范围要求：至少一条 >= 52 周的长周期规则，以及至少一条 1~48 小时的短周期规则。
const (
	longHorizonWeeks = 52
	shortHorizonMinH = 1
	shortHorizonMaxH = 48
	secondsPerHour   = 60 * 60
	secondsPerWeek   = 7 * 24 * secondsPerHour
)

// HistorySource 提供交易对在某时间点之后的历史订单。
type HistorySource interface {
	Since(symbol string, ts uint64) ([]tracker.Entry, bool)
}

// Registry 进程内共享的按交易对规则集合。
type Registry struct {
	history HistorySource
	clock   tracker.Clock
	logger  *zap.Logger

	mu   sync.RWMutex
	sets map[string]map[string]Rule
}

type Option func(*Registry)

func WithClock(c tracker.Clock) Option { return func(r *Registry) { r.clock = c } }
func WithLogger(l *zap.Logger) Option  { return func(r *Registry) { r.logger = l } }

func NewRegistry(history HistorySource, opts ...Option) *Registry {
	r := &Registry{
		history: history,
		clock:   tracker.SystemClock,
		logger:  zap.NewNop(),
		sets:    make(map[string]map[string]Rule),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SeedGlobal 写入交易对的 Global 规则（启动时的硬编码策略），保留已有的 PerGrid 规则。
func (r *Registry) SeedGlobal(symbol string, rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: no global rules provided for %s", ErrInvalidDynamicUpdate, symbol)
	}
	for _, rule := range rules {
		if !rule.IsGlobal() {
			return fmt.Errorf("%w: only global rules can be seeded for %s, got %s", ErrInvalidDynamicUpdate, symbol, rule)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]Rule, len(rules))
	for key, rule := range r.sets[symbol] {
		if !rule.IsGlobal() {
			next[key] = rule
		}
	}
	for _, rule := range rules {
		next[rule.Key()] = rule
	}
	r.sets[symbol] = next
	r.logger.Info("rules_seeded", zap.String("symbol", symbol), zap.Int("global", len(rules)), zap.Int("total", len(next)))
	return nil
}

// SetDynamicRules 替换交易对的 PerGrid 规则；Global 规则只能通过 SeedGlobal 写入，
// 结果恰为 {已有 Global 规则} ∪ {rules}。
func (r *Registry) SetDynamicRules(symbol string, rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: no rules provided for %s", ErrInvalidDynamicUpdate, symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.sets[symbol]
	if !ok || len(existing) == 0 {
		return fmt.Errorf("%w: no rules found for %s, global rules must be seeded first", ErrInvalidDynamicUpdate, symbol)
	}

	next := make(map[string]Rule, len(existing)+len(rules))
	for key, rule := range existing {
		if rule.IsGlobal() {
			next[key] = rule
		}
	}
	if len(next) == 0 {
		return fmt.Errorf("%w: no global rules found for %s, global rules must be seeded first", ErrInvalidDynamicUpdate, symbol)
	}
	for _, rule := range rules {
		if rule.IsGlobal() {
			return fmt.Errorf("%w: global rule %s cannot be set dynamically", ErrInvalidDynamicUpdate, rule)
		}
		next[rule.Key()] = rule
	}

	r.sets[symbol] = next
	r.logger.Info("rules_updated", zap.String("symbol", symbol), zap.Int("dynamic", len(next)-countGlobal(next)), zap.Int("total", len(next)))
	return nil
}

// DynamicResult 单个交易对的 PerGrid 更新结果，Err 为 nil 表示已生效。
type DynamicResult struct {
	Symbol string
	Rules  int
	Err    error
}

// ApplyDynamic 按交易对名排序逐个替换 PerGrid 规则，空列表跳过。
// 合并后结构校验不通过的交易对保留旧规则，一个交易对失败不影响其它交易对。
func (r *Registry) ApplyDynamic(loaded map[string][]Rule) []DynamicResult {
	syms := make([]string, 0, len(loaded))
	for sym := range loaded {
		syms = append(syms, sym)
	}
	slices.Sort(syms)

	results := make([]DynamicResult, 0, len(syms))
	for _, sym := range syms {
		dynamic := loaded[sym]
		if len(dynamic) == 0 {
			continue
		}
		res := DynamicResult{Symbol: sym, Rules: len(dynamic)}
		if current, ok := r.Rules(sym); ok {
			merged := make([]Rule, 0, len(current)+len(dynamic))
			for _, rule := range current {
				if rule.IsGlobal() {
					merged = append(merged, rule)
				}
			}
			res.Err = CheckRuleSet(sym, append(merged, dynamic...))
		}
		if res.Err == nil {
			res.Err = r.SetDynamicRules(sym, dynamic)
		}
		if res.Err != nil {
			r.logger.Warn("rules_update_rejected", zap.String("symbol", sym), zap.Error(res.Err))
		}
		results = append(results, res)
	}
	return results
}

// DynamicErrors 按顺序汇总失败结果。
func DynamicErrors(results []DynamicResult) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Rules 返回交易对的规则（按 Key 排序的拷贝）。
func (r *Registry) Rules(symbol string) ([]Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[symbol]
	if !ok {
		return nil, false
	}
	return sortedRules(set), true
}

// Symbols 已配置规则的交易对（排序）。
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sets))
	for sym := range r.sets {
		out = append(out, sym)
	}
	slices.Sort(out)
	return out
}

// Check 只做查找和结构校验，不涉及订单。
func (r *Registry) Check(symbol string) error {
	rules, ok := r.Rules(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRulesConfigured, symbol)
	}
	return CheckRuleSet(symbol, rules)
}

// Validate 校验一笔已记录的订单，返回匹配且通过的规则。
// 规则集合每次都重新做结构校验；任一匹配规则失败则整体失败。
func (r *Registry) Validate(symbol string, entry tracker.Entry) ([]Rule, error) {
	rules, ok := r.Rules(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRulesConfigured, symbol)
	}
	if err := CheckRuleSet(symbol, rules); err != nil {
		return nil, err
	}

	matched := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Matches(entry) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s order %s size %s side %s", ErrNoMatchingRule, symbol, entry.Item.ID, entry.Item.Size, entry.Item.Side)
	}

	now, ok := tracker.UnixNanos(r.clock.Now())
	if !ok {
		return nil, fmt.Errorf("%w: clock before unix epoch", ErrRuleSetInvalid)
	}
	for _, rule := range matched {
		start, err := rule.Period.WindowStart(now)
		if err != nil {
			return nil, fmt.Errorf("%w: %s rule %s: %v", ErrRuleSetInvalid, symbol, rule, err)
		}
		window, _ := r.history.Since(symbol, start)
		if err := rule.Validate(entry, window); err != nil {
			return nil, fmt.Errorf("%s order %s: %w", symbol, entry.Item.ID, err)
		}
	}
	return matched, nil
}

// CheckRuleSet 结构校验：至少一条 Global 规则、每条规则格式正确，
// 且周期同时覆盖长周期（>= 52 周）和短周期（1~48 小时）。
func CheckRuleSet(symbol string, rules []Rule) error {
	if countGlobalSlice(rules) == 0 {
		return fmt.Errorf("%w: no global rules found for %s", ErrRuleSetInvalid, symbol)
	}

	var long, short bool
	for _, rule := range rules {
		if err := rule.check(); err != nil {
			return fmt.Errorf("%w: %s rule %s: %v", ErrRuleSetInvalid, symbol, rule, err)
		}
		d, _ := rule.Period.ValidatedDuration()
		secs := uint64(d / time.Second)
		if secs/secondsPerWeek >= longHorizonWeeks {
			long = true
		}
		if hours := secs / secondsPerHour; hours >= shortHorizonMinH && hours <= shortHorizonMaxH {
			short = true
		}
	}

	var missing []string
	if !long {
		missing = append(missing, fmt.Sprintf("at least %d weeks", longHorizonWeeks))
	}
	if !short {
		missing = append(missing, fmt.Sprintf("between %d and %d hours", shortHorizonMinH, shortHorizonMaxH))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no rule covers %s for %s", ErrRuleSetInvalid, strings.Join(missing, " and "), symbol)
	}
	return nil
}

func sortedRules(set map[string]Rule) []Rule {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	out := make([]Rule, 0, len(keys))
	for _, key := range keys {
		out = append(out, set[key])
	}
	return out
}

func countGlobal(set map[string]Rule) int {
	n := 0
	for _, rule := range set {
		if rule.IsGlobal() {
			n++
		}
	}
	return n
}

func countGlobalSlice(rules []Rule) int {
	n := 0
	for _, rule := range rules {
		if rule.IsGlobal() {
			n++
		}
	}
	return n
}
