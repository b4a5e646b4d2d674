// Package snapshot 负责按交易对持久化订单历史快照。
package snapshot

// Store 保存每个交易对的快照字节。
// Load 在快照不存在时返回 (nil, false, nil)，不存在不是错误。
type Store interface {
	Load(symbol string) ([]byte, bool, error)
	Save(symbol string, data []byte) error
	Close() error
}
