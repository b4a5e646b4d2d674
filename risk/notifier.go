package risk

import "go.uber.org/zap"

// AlertClient 抽象告警发送，key 用于限流。
type AlertClient interface {
	Send(key, msg string)
}

type Notifier struct {
	alert  AlertClient
	logger *zap.Logger
}

func NewNotifier(alert AlertClient, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{alert: alert, logger: logger}
}

// NotifyRejected 只对需要人工处理的原因发告警，其余拒单只记日志。
func (n *Notifier) NotifyRejected(symbol, reason string, err error) {
	if n == nil || !Critical(reason) {
		return
	}
	msg := "OrderGuardRejected symbol=" + symbol + " reason=" + reason
	if err != nil {
		msg += " err=" + err.Error()
	}
	n.logger.Warn("guard_alert", zap.String("symbol", symbol), zap.String("reason", reason))
	if n.alert != nil {
		n.alert.Send(symbol+":"+reason, msg)
	}
}

// NotifyReloadFailed 动态规则重载失败。
func (n *Notifier) NotifyReloadFailed(err error) {
	if n == nil {
		return
	}
	msg := "RuleReloadFailed"
	if err != nil {
		msg += " err=" + err.Error()
	}
	n.logger.Warn("guard_alert", zap.String("reason", "rule_reload"), zap.Error(err))
	if n.alert != nil {
		n.alert.Send("rules:reload", msg)
	}
}
