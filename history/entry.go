// Package history 提供按时间排序、容量有界的提交记录集合。
package history

import "cmp"

// Item 约束被包装的记录必须自带全序，用于时间戳相同时的决胜比较。
type Item[T any] interface {
	Compare(other T) int
}

// Entry 将任意记录与提交时间（纳秒）配对，构造后不可变。
type Entry[T Item[T]] struct {
	Timestamp uint64 `json:"ts"`
	Item      T      `json:"i"`
}

// NewEntry 构造一个条目。
func NewEntry[T Item[T]](ts uint64, item T) Entry[T] {
	return Entry[T]{Timestamp: ts, Item: item}
}

// Compare 先比较时间戳，再比较记录本身。
// 只比较时间戳会把同一纳秒内的不同订单误判为重复。
func (e Entry[T]) Compare(other Entry[T]) int {
	if c := cmp.Compare(e.Timestamp, other.Timestamp); c != 0 {
		return c
	}
	return e.Item.Compare(other.Item)
}

// Equal 全量相等（时间戳与记录均相同）。
func (e Entry[T]) Equal(other Entry[T]) bool {
	return e.Compare(other) == 0
}

func compareEntries[T Item[T]](a, b Entry[T]) int {
	return a.Compare(b)
}
