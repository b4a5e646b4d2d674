// Package rules 按交易对维护下单规则并在订单发出前校验。
package rules

import (
	"errors"
	"fmt"
)

var (
	ErrNoRulesConfigured    = errors.New("no rules configured")
	ErrRuleSetInvalid       = errors.New("rule set invalid")
	ErrNoMatchingRule       = errors.New("no matching rule")
	ErrRuleViolated         = errors.New("rule violated")
	ErrInvalidDynamicUpdate = errors.New("invalid dynamic rule update")
	ErrMalformedRule        = errors.New("malformed rule")
)

// ViolationError 订单违反某条规则，携带规则本身和原因。
type ViolationError struct {
	Rule   Rule
	Detail string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrRuleViolated, e.Rule, e.Detail)
}

func (e *ViolationError) Unwrap() error { return ErrRuleViolated }
