package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrCorruptSnapshot 快照无法反序列化。损坏的快照绝不能当作空历史处理。
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Bounded 维护升序排列的条目集合，超过容量时淘汰最旧（最小）的条目。
// 非并发安全，调用方负责加锁。
type Bounded[T Item[T]] struct {
	entries  []Entry[T]
	capacity int
}

// New 创建空的有界历史。
func New[T Item[T]](capacity int) *Bounded[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Bounded[T]{
		entries:  make([]Entry[T], 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

// Insert 插入条目并返回集合是否发生变化。
//
// 已存在完全相同的条目时不做任何事。否则先插入，若超出容量再淘汰最小条目；
// 因此比所有已保留条目都旧的条目插入满集合时会立即淘汰自己，结果等同于未插入。
func (b *Bounded[T]) Insert(e Entry[T]) bool {
	pos, found := slices.BinarySearchFunc(b.entries, e, compareEntries[T])
	if found {
		return false
	}
	b.entries = slices.Insert(b.entries, pos, e)
	if len(b.entries) > b.capacity {
		b.entries = slices.Delete(b.entries, 0, 1)
		return pos != 0
	}
	return true
}

// Contains 是否存在完全相同的条目。
func (b *Bounded[T]) Contains(e Entry[T]) bool {
	_, found := slices.BinarySearchFunc(b.entries, e, compareEntries[T])
	return found
}

// Since 返回 timestamp >= ts 的条目（升序拷贝）。
func (b *Bounded[T]) Since(ts uint64) []Entry[T] {
	i, _ := slices.BinarySearchFunc(b.entries, ts, func(e Entry[T], t uint64) int {
		if e.Timestamp < t {
			return -1
		}
		return 1
	})
	return slices.Clone(b.entries[i:])
}

// Until 返回 timestamp <= ts 的条目（升序拷贝）。
func (b *Bounded[T]) Until(ts uint64) []Entry[T] {
	i, _ := slices.BinarySearchFunc(b.entries, ts, func(e Entry[T], t uint64) int {
		if e.Timestamp <= t {
			return -1
		}
		return 1
	})
	return slices.Clone(b.entries[:i])
}

// All 返回全部条目（升序拷贝）。
func (b *Bounded[T]) All() []Entry[T] {
	return slices.Clone(b.entries)
}

// Latest 返回最新条目；集合为空时第二个返回值为 false。
func (b *Bounded[T]) Latest() (Entry[T], bool) {
	if len(b.entries) == 0 {
		var zero Entry[T]
		return zero, false
	}
	return b.entries[len(b.entries)-1], true
}

func (b *Bounded[T]) Len() int      { return len(b.entries) }
func (b *Bounded[T]) Capacity() int { return b.capacity }
func (b *Bounded[T]) IsEmpty() bool { return len(b.entries) == 0 }

// Clear 清空条目，保留容量。
func (b *Bounded[T]) Clear() {
	b.entries = b.entries[:0]
}

// Snapshot 序列化为升序 JSON 数组，相同内容总得到相同字节。
func (b *Bounded[T]) Snapshot() ([]byte, error) {
	entries := b.entries
	if entries == nil {
		entries = []Entry[T]{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// Restore 从快照恢复。容量由调用方单独给出，允许重启时调整容量；
// 快照条目多于容量时保留最新的 capacity 条。
func Restore[T Item[T]](data []byte, capacity int) (*Bounded[T], error) {
	var raw *[]Entry[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: snapshot is not an array", ErrCorruptSnapshot)
	}
	b := New[T](capacity)
	entries := *raw
	slices.SortFunc(entries, compareEntries[T])
	entries = slices.CompactFunc(entries, func(a, c Entry[T]) bool { return a.Equal(c) })
	if len(entries) > b.capacity {
		entries = entries[len(entries)-b.capacity:]
	}
	b.entries = append(b.entries, entries...)
	return b, nil
}
