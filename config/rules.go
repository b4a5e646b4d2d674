package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"order-guard-go/order"
	"order-guard-go/rules"
	"order-guard-go/tracker"
)

// RuleSpec 配置文件中的一条规则；数量用字符串保存以保持精度，空串表示不限制。
// MaxOrders、MaxTotalSize、MaxAverageSize 都是上限（含），等于上限仍然放行。
type RuleSpec struct {
	Size           SizeSpec     `yaml:"size"`
	Period         rules.Period `yaml:"period"`
	Side           string       `yaml:"side"`
	MaxOrders      int          `yaml:"maxOrders"`
	MaxTotalSize   string       `yaml:"maxTotalSize"`
	MaxAverageSize string       `yaml:"maxAverageSize"`
}

// SizeSpec 只填 min 为下限，只填 max 为上限，都填为闭区间，都不填为任意数量。
type SizeSpec struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

// RulesFile 动态规则文件，热更新时整体重新读取。
type RulesFile struct {
	Symbols map[string]SymbolRules `yaml:"symbols"`
}

type SymbolRules struct {
	PerGrid []RuleSpec `yaml:"perGrid"`
}

// ToRule 转换为指定作用域的规则。
func (s RuleSpec) ToRule(scope rules.Scope) (rules.Rule, error) {
	size, err := s.Size.bounds()
	if err != nil {
		return rules.Rule{}, err
	}
	total, err := optionalDecimal("maxTotalSize", s.MaxTotalSize)
	if err != nil {
		return rules.Rule{}, err
	}
	avg, err := optionalDecimal("maxAverageSize", s.MaxAverageSize)
	if err != nil {
		return rules.Rule{}, err
	}
	r := rules.Rule{
		Scope:  scope,
		Size:   size,
		Period: s.Period,
		Side:   tracker.Side(s.Side),
		Limits: rules.Limits{
			MaxOrders:      s.MaxOrders,
			MaxTotalSize:   total,
			MaxAverageSize: avg,
		},
	}
	if s.Side != "" && !r.Side.Valid() {
		return rules.Rule{}, fmt.Errorf("%w: side %q", rules.ErrMalformedRule, s.Side)
	}
	return r, nil
}

func (s SizeSpec) bounds() (rules.SizeBounds, error) {
	lo, err := optionalDecimal("size.min", s.Min)
	if err != nil {
		return rules.SizeBounds{}, err
	}
	hi, err := optionalDecimal("size.max", s.Max)
	if err != nil {
		return rules.SizeBounds{}, err
	}
	switch {
	case lo.Valid && hi.Valid:
		return rules.SizeBetween(lo.Decimal, hi.Decimal), nil
	case lo.Valid:
		return rules.MinSize(lo.Decimal), nil
	case hi.Valid:
		return rules.MaxSize(hi.Decimal), nil
	}
	return rules.AnySize(), nil
}

func optionalDecimal(field, raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s %q: %v", rules.ErrMalformedRule, field, raw, err)
	}
	return decimal.NewNullDecimal(v), nil
}

func toRules(specs []RuleSpec, scope rules.Scope) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := spec.ToRule(scope)
		if err != nil {
			return nil, fmt.Errorf("%s rule #%d: %w", scope, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// GlobalRules 静态 Global 规则。
func (s SymbolConfig) GlobalRules() ([]rules.Rule, error) {
	return toRules(s.Global, rules.ScopeGlobal)
}

// Constraints 交易对的精度/名义限制，未配置的字段为零值。
func (s SymbolConfig) Constraints() (order.SymbolConstraints, error) {
	var c order.SymbolConstraints
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"tickSize", s.TickSize, &c.TickSize},
		{"stepSize", s.StepSize, &c.StepSize},
		{"minQty", s.MinQty, &c.MinQty},
		{"maxQty", s.MaxQty, &c.MaxQty},
		{"minNotional", s.MinNotional, &c.MinNotional},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return c, fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		if v.IsNegative() {
			return c, fmt.Errorf("%s must be >= 0", f.name)
		}
		*f.dst = v
	}
	return c, nil
}

// LoadRules 读取动态规则文件，返回每个交易对的 PerGrid 规则。
func LoadRules(path string) (map[string][]rules.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var file RulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	out := make(map[string][]rules.Rule, len(file.Symbols))
	for sym, sr := range file.Symbols {
		rs, err := toRules(sr.PerGrid, rules.ScopePerGrid)
		if err != nil {
			return nil, fmt.Errorf("rules for %s: %w", sym, err)
		}
		out[sym] = rs
	}
	return out, nil
}
