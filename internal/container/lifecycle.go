package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	hotreload "order-guard-go/internal/config"
	"order-guard-go/internal/snapshot"
)

// Component 由容器托管启停的组件。Stop 必须可重复调用，未启动时也要能调用。
type Component interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

type registered struct {
	name      string
	component Component
}

// Lifecycle 按注册顺序启动组件，逆序停止。
type Lifecycle struct {
	mu         sync.Mutex
	components []registered
}

func NewLifecycle() *Lifecycle { return &Lifecycle{} }

func (l *Lifecycle) Register(name string, c Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components = append(l.components, registered{name: name, component: c})
}

// Names 注册顺序
func (l *Lifecycle) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.components))
	for i, r := range l.components {
		names[i] = r.name
	}
	return names
}

// StartAll 某个组件启动失败时逆序停止已启动的组件，返回的错误同时包含回滚失败。
func (l *Lifecycle) StartAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.components {
		if err := r.component.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("start %s: %w", r.name, err)}
			errs = append(errs, stopReverse(l.components[:i])...)
			return errors.Join(errs...)
		}
	}
	return nil
}

// StopAll 逆序停止全部组件，不因单个失败中断。
func (l *Lifecycle) StopAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(stopReverse(l.components)...)
}

// CheckHealth 汇总所有不健康的组件。
func (l *Lifecycle) CheckHealth() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, r := range l.components {
		if err := r.component.Health(); err != nil {
			errs = append(errs, fmt.Errorf("%s unhealthy: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}

func stopReverse(components []registered) []error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].component.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", components[i].name, err))
		}
	}
	return errs
}

// httpServer 在 Start 里同步监听，端口占用直接返回错误。
type httpServer struct {
	addr    string
	handler http.Handler
	logger  *zap.Logger

	mu     sync.Mutex
	srv    *http.Server
	ln     net.Listener
	served chan struct{}
}

func newHTTPServer(addr string, handler http.Handler, logger *zap.Logger) *httpServer {
	return &httpServer{addr: addr, handler: handler, logger: logger}
}

func (h *httpServer) Start(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	h.ln = ln
	h.srv = &http.Server{Handler: h.handler, ReadHeaderTimeout: 5 * time.Second}
	h.served = make(chan struct{})

	srv, served := h.srv, h.served
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http_serve_failed", zap.String("addr", ln.Addr().String()), zap.Error(err))
		}
	}()
	h.logger.Info("http_listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr 实际监听地址，未启动时为空。
func (h *httpServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return ""
	}
	return h.ln.Addr().String()
}

func (h *httpServer) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.srv.Shutdown(ctx)
	<-h.served
	h.srv, h.ln = nil, nil
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	h.logger.Info("http_stopped")
	return nil
}

func (h *httpServer) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.srv == nil {
		return errors.New("not serving")
	}
	return nil
}

// storeComponent 快照存储，注册在最前，停止时最后关闭
type storeComponent struct {
	store  snapshot.Store
	logger *zap.Logger
	closed bool
	mu     sync.Mutex
}

func (s *storeComponent) Start(context.Context) error { return nil }

func (s *storeComponent) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close snapshot store: %w", err)
	}
	s.logger.Info("snapshot_store_closed")
	return nil
}

func (s *storeComponent) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("closed")
	}
	return nil
}

// reloaderComponent 规则文件热更新
type reloaderComponent struct {
	reloader *hotreload.HotReloader
}

func (r *reloaderComponent) Start(ctx context.Context) error { return r.reloader.Start(ctx) }
func (r *reloaderComponent) Stop() error                     { return r.reloader.Stop() }
func (r *reloaderComponent) Health() error                   { return nil }
