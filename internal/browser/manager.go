// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
	"github.com/xkilldash9x/domsnap/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// ErrManagerClosed is returned by OpenTab after Shutdown.
var ErrManagerClosed = errors.New("browser manager is shut down")

// Manager owns one browser process (or a connection to a remote one) and
// hands out tabs. Concurrent tabs are bounded by BrowserConfig.Concurrency.
type Manager struct {
	logger      *zap.Logger
	cfg         config.BrowserConfig
	callTimeout time.Duration

	rootCtx       context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          *semaphore.Weighted
	wg            sync.WaitGroup

	mu     sync.Mutex
	closed bool

	initOnce sync.Once
	initErr  error
}

// NewManager creates a manager. The browser is started lazily by the first OpenTab.
// callTimeout bounds each protocol call made through a tab's client.
func NewManager(ctx context.Context, cfg config.BrowserConfig, callTimeout time.Duration, logger *zap.Logger) *Manager {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{
		logger:      logger.Named("browser_manager"),
		cfg:         cfg,
		callTimeout: callTimeout,
		rootCtx:     ctx,
		tabs:        semaphore.NewWeighted(int64(concurrency)),
	}
}

func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		var allocCtx context.Context
		if m.cfg.RemoteURL != "" {
			m.logger.Info("Attaching to remote browser.", zap.String("url", m.cfg.RemoteURL))
			allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(m.rootCtx, m.cfg.RemoteURL)
		} else {
			m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless))
			allocCtx, m.allocCancel = chromedp.NewExecAllocator(m.rootCtx, DefaultAllocatorOptions(m.cfg)...)
		}

		m.browserCtx, m.browserCancel = chromedp.NewContext(allocCtx,
			chromedp.WithLogf(m.logger.Sugar().Debugf),
			chromedp.WithErrorf(m.logger.Sugar().Debugf),
		)
		// An empty Run starts the browser and its first target.
		if err := chromedp.Run(m.browserCtx); err != nil {
			m.browserCancel()
			m.allocCancel()
			m.initErr = fmt.Errorf("failed to start browser: %w", err)
			return
		}
		m.logger.Info("Browser ready.")
	})
	return m.initErr
}

// Tab is a page target with a CDP client bound to it.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	client  *cdpclient.ChromeClient
	release func()
	logger  *zap.Logger
	once    sync.Once
}

// Client returns the CDP client of the tab's page target.
func (t *Tab) Client() *cdpclient.ChromeClient { return t.client }

// Close detaches child sessions, closes the target and frees the tab slot.
func (t *Tab) Close() {
	t.once.Do(func() {
		t.client.Close()
		if err := chromedp.Cancel(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Debug("Tab close reported an error.", zap.Error(err))
		}
		t.cancel()
		t.release()
	})
}

// OpenTab opens a new tab and navigates it to url, waiting for the load event
// plus BrowserConfig.PostLoadWait.
func (m *Manager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.initialize(); err != nil {
		m.wg.Done()
		return nil, err
	}

	if err := m.tabs.Acquire(ctx, 1); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("waiting for a free tab: %w", err)
	}
	release := func() {
		m.tabs.Release(1)
		m.wg.Done()
	}

	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	// Create the target before any deadline is attached to the context.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		release()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	tab := &Tab{
		ctx:     tabCtx,
		cancel:  cancel,
		client:  cdpclient.NewChromeClient(tabCtx, m.logger, m.callTimeout),
		release: release,
		logger:  m.logger,
	}

	if err := m.navigate(ctx, tabCtx, url); err != nil {
		tab.Close()
		return nil, err
	}
	return tab, nil
}

func (m *Manager) navigate(ctx, tabCtx context.Context, url string) error {
	timeout := m.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runCtx, runCancel := cdpclient.CombineContext(tabCtx, navCtx)
	defer runCancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if m.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(m.cfg.PostLoadWait))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	m.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// Shutdown waits for open tabs (bounded by ctx) and stops the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.browserCtx == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for tabs to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	}

	stopped := make(chan error, 1)
	go func() { stopped <- chromedp.Cancel(m.browserCtx) }()

	var err error
	select {
	case err = <-stopped:
	case <-time.After(shutdownGracePeriod):
		err = fmt.Errorf("browser did not exit within %v", shutdownGracePeriod)
	}
	m.browserCancel()
	m.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
