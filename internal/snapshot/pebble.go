package snapshot

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore 把快照存进 pebble，key: order_tracker:<symbol>
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func snapshotKey(symbol string) []byte { return []byte("order_tracker:" + symbol) }

func (s *PebbleStore) Load(symbol string) ([]byte, bool, error) {
	val, closer, err := s.db.Get(snapshotKey(symbol))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get snapshot %s: %w", symbol, err)
	}
	defer closer.Close()
	// val 只在 closer 关闭前有效
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *PebbleStore) Save(symbol string, data []byte) error {
	if err := s.db.Set(snapshotKey(symbol), data, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot %s: %w", symbol, err)
	}
	return nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*PebbleStore)(nil)
)
