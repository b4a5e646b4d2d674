package risk

import (
	"errors"

	"order-guard-go/rules"
	"order-guard-go/tracker"
)

// ErrNoValidatedRules 校验通过却没有任何规则返回，视为拒单。
var ErrNoValidatedRules = errors.New("no validated rules returned")

// 拒单原因标签，用于日志、指标和告警。
const (
	ReasonMissingField    = "missing_field"
	ReasonCorruptSnapshot = "corrupt_snapshot"
	ReasonPersistence     = "persistence_failure"
	ReasonInvalidClock    = "invalid_clock"
	ReasonNoRules         = "no_rules"
	ReasonRuleSetInvalid  = "rule_set_invalid"
	ReasonNoMatchingRule  = "no_matching_rule"
	ReasonRuleViolated    = "rule_violated"
	ReasonNoValidated     = "no_validated_rules"
	ReasonInternal        = "internal"
)

var reasons = []struct {
	err    error
	reason string
}{
	{tracker.ErrMissingField, ReasonMissingField},
	{tracker.ErrCorruptSnapshot, ReasonCorruptSnapshot},
	{tracker.ErrPersistence, ReasonPersistence},
	{tracker.ErrClock, ReasonInvalidClock},
	{rules.ErrNoRulesConfigured, ReasonNoRules},
	{rules.ErrRuleSetInvalid, ReasonRuleSetInvalid},
	{rules.ErrNoMatchingRule, ReasonNoMatchingRule},
	{rules.ErrRuleViolated, ReasonRuleViolated},
	{ErrNoValidatedRules, ReasonNoValidated},
}

// RejectReason 把错误映射为稳定的原因标签；nil 返回空串。
func RejectReason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// Critical 表示需要人工介入的拒单原因（数据损坏、落盘失败、配置错误）。
func Critical(reason string) bool {
	switch reason {
	case ReasonCorruptSnapshot, ReasonPersistence, ReasonNoRules, ReasonRuleSetInvalid, ReasonInvalidClock:
		return true
	}
	return false
}
