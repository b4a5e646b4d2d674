package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

const filePrefix = "order_tracker_"

// FileStore 每个交易对一个 JSON 文件：<dir>/order_tracker_<symbol>.json
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path 由交易对确定性地得到文件路径，symbol 经过转义避免路径分隔符。
func (s *FileStore) Path(symbol string) string {
	return filepath.Join(s.dir, filePrefix+url.PathEscape(symbol)+".json")
}

func (s *FileStore) Load(symbol string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.Path(symbol))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot %s: %w", symbol, err)
	}
	return data, true, nil
}

// Save 先写同目录临时文件并 fsync，再 rename 覆盖，读方永远看不到半写入的文件。
func (s *FileStore) Save(symbol string, data []byte) error {
	path := s.Path(symbol)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	syncDir(s.dir)
	return nil
}

func (s *FileStore) Close() error { return nil }

// syncDir 尽力刷新目录项，失败不影响本次写入结果。
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
