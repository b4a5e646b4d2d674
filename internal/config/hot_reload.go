package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled  bool          // 是否启用热更新
	Debounce time.Duration // 文件静默多久后才重载，合并连续写入
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:  true,
		Debounce: 500 * time.Millisecond,
	}
}

// HotReloader 监听规则文件，最后一次写入后静默 Debounce 时长再调用 handler，
// 所以一串写入里的最后一次一定会被加载。
// handler 失败时旧规则保持生效，不更新 lastReload。
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	handler    func() error
	logger     *zap.Logger
	lastReload time.Time
	mu         sync.Mutex
	started    atomic.Bool
	stopOnce   sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, handler func() error, logger *zap.Logger) (*HotReloader, error) {
	if handler == nil {
		return nil, errors.New("reload handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &HotReloader{
		config:     cfg,
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		handler:    handler,
		logger:     logger,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// Start 启动热更新监听。监听所在目录，文件被原子替换时同样能收到事件。
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}
	if err := h.watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", h.configPath, err)
	}
	h.started.Store(true)
	go h.watch(ctx)
	return nil
}

// Stop 停止热更新，可重复调用。
func (h *HotReloader) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if h.started.Load() {
			select {
			case <-h.doneChan:
			case <-time.After(time.Second):
			}
		}
		err = h.watcher.Close()
	})
	return err
}

func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// 每次事件都重新计时
			if timer == nil {
				timer = time.NewTimer(h.config.Debounce)
			} else {
				timer.Reset(h.config.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := h.Reload(); err != nil {
				h.logger.Warn("rules_reload_failed", zap.String("path", h.configPath), zap.Error(err))
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("watcher_error", zap.Error(err))
		}
	}
}

// Reload 立即执行一次重载。
func (h *HotReloader) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.handler(); err != nil {
		return err
	}
	h.lastReload = time.Now()
	h.logger.Info("rules_reloaded", zap.String("path", h.configPath))
	return nil
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastReload
}
