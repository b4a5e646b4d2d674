package container

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"order-guard-go/config"
	"order-guard-go/infrastructure/alert"
	"order-guard-go/infrastructure/logger"
	"order-guard-go/infrastructure/monitor"
	hotreload "order-guard-go/internal/config"
	"order-guard-go/internal/snapshot"
	"order-guard-go/order"
	"order-guard-go/risk"
	"order-guard-go/rules"
	"order-guard-go/tracker"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg *config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 存储与注册表
	store   snapshot.Store
	tracker *tracker.Registry
	rules   *rules.Registry

	// 核心服务
	notifier     *risk.Notifier
	guard        *risk.OrderGuard
	gateway      order.Gateway
	orderManager *order.Manager
	reloader     *hotreload.HotReloader

	// 生命周期管理
	lifecycle *Lifecycle
}

// Option 容器可选项
type Option func(*Container)

// WithGateway 设置下单网关；未设置时 Submit 只做守卫校验和登记。
func WithGateway(gw order.Gateway) Option { return func(c *Container) { c.gateway = gw } }

// New 创建新的Container实例
func New(configPath string, opts ...Option) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg, opts...), nil
}

// NewFromConfig 使用已加载的配置创建容器
func NewFromConfig(cfg config.AppConfig, opts ...Option) *Container {
	c := &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycle(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildStorage(); err != nil {
		return errors.Join(fmt.Errorf("build storage failed: %w", err), c.release())
	}
	if err := c.buildCoreServices(); err != nil {
		return errors.Join(fmt.Errorf("build core services failed: %w", err), c.release())
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built", zap.Int("symbols", len(c.cfg.Symbols)), zap.String("backend", c.cfg.Storage.Backend))
	return nil
}

// release 构建失败时释放已打开的资源：监听器、快照存储、日志文件。
func (c *Container) release() error {
	var errs []error
	if c.reloader != nil {
		if err := c.reloader.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop reloader: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close snapshot store: %w", err))
		}
	}
	if err := c.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close logger: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())
	c.alerts = alert.NewManager(
		[]alert.Channel{alert.NewZapChannel("log", c.logger.Named("alert"))},
		c.cfg.Alert.ThrottleInterval(),
	)
	return nil
}

func (c *Container) buildStorage() error {
	store, err := OpenStore(c.cfg.Storage)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

// OpenStore 按配置打开快照存储
func OpenStore(cfg config.StorageConfig) (snapshot.Store, error) {
	switch cfg.Backend {
	case config.BackendPebble:
		s, err := snapshot.NewPebbleStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendFile, "":
		s, err := snapshot.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func (c *Container) buildCoreServices() error {
	c.tracker = tracker.NewRegistry(c.store,
		tracker.WithCapacity(c.cfg.Storage.Capacity),
		tracker.WithLogger(c.logger.Named("tracker")),
		tracker.WithMetrics(c.monitor),
	)
	c.rules = rules.NewRegistry(c.tracker, rules.WithLogger(c.logger.Named("rules")))

	constraints := make(map[string]order.SymbolConstraints, len(c.cfg.Symbols))
	for _, sym := range c.symbols() {
		sc := c.cfg.Symbols[sym]
		global, err := sc.GlobalRules()
		if err != nil {
			return fmt.Errorf("symbol %s: %w", sym, err)
		}
		if err := c.rules.SeedGlobal(sym, global); err != nil {
			return err
		}
		if constraints[sym], err = sc.Constraints(); err != nil {
			return fmt.Errorf("symbol %s: %w", sym, err)
		}
		// 启动时预热，损坏的快照直接暴露
		if err := c.tracker.Warm(sym); err != nil {
			return err
		}
	}

	if c.cfg.RulesFile != "" {
		if err := c.ApplyRules(); err != nil {
			return fmt.Errorf("initial rules: %w", err)
		}
		reloader, err := hotreload.NewHotReloader(c.cfg.RulesFile, hotreload.DefaultHotReloadConfig(), c.ApplyRules, c.logger.Named("hot_reload"))
		if err != nil {
			return err
		}
		c.reloader = reloader
	}

	c.notifier = risk.NewNotifier(c.alerts, c.logger.Named("notifier"))
	c.guard = risk.NewOrderGuard(c.tracker, c.rules,
		risk.WithLogger(c.logger),
		risk.WithMetrics(c.monitor),
		risk.WithNotifier(c.notifier),
	)
	c.orderManager = order.NewManager(c.gateway, c.guard)
	c.orderManager.SetConstraints(constraints)
	return nil
}

// ApplyRules 读取规则文件并逐个交易对替换 PerGrid 规则。
// 合并后结构校验不通过的交易对保留旧规则；返回所有失败的汇总。
func (c *Container) ApplyRules() error {
	err := c.applyRules()
	c.monitor.RecordRuleReload(err == nil)
	if err != nil {
		c.logger.Warn("rules_reload_failed", zap.String("path", c.cfg.RulesFile), zap.Error(err))
		if c.notifier != nil {
			c.notifier.NotifyReloadFailed(err)
		}
	}
	return err
}

func (c *Container) applyRules() error {
	loaded, err := config.LoadRules(c.cfg.RulesFile)
	if err != nil {
		return err
	}
	return rules.DynamicErrors(c.rules.ApplyDynamic(loaded))
}

func (c *Container) symbols() []string {
	syms := make([]string, 0, len(c.cfg.Symbols))
	for sym := range c.cfg.Symbols {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register("snapshot_store", &storeComponent{store: c.store, logger: c.logger.Named("snapshot")})
	if c.reloader != nil {
		c.lifecycle.Register("rules_reloader", &reloaderComponent{reloader: c.reloader})
	}
	if c.cfg.Metrics.Addr != "" {
		c.lifecycle.Register("metrics_server", newHTTPServer(c.cfg.Metrics.Addr, c.monitor.Handler(), c.logger.Named("metrics_server")))
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止组件，快照存储最后关闭。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	return errors.Join(err, c.logger.Close())
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Config() config.AppConfig     { return *c.cfg }
func (c *Container) Logger() *logger.Logger       { return c.logger }
func (c *Container) Monitor() *monitor.Monitor    { return c.monitor }
func (c *Container) Store() snapshot.Store        { return c.store }
func (c *Container) Tracker() *tracker.Registry   { return c.tracker }
func (c *Container) Rules() *rules.Registry       { return c.rules }
func (c *Container) Guard() *risk.OrderGuard      { return c.guard }
func (c *Container) OrderManager() *order.Manager { return c.orderManager }
