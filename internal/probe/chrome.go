package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type ChromeConfig struct {
	ExecPath  string
	Headless  bool
	NoSandbox bool
	UserAgent string
	// Cookies are set in the browser's default context on every start, so
	// page probes carry the same credentials as network probes.
	Cookies []Cookie
}

// ChromeBrowser drives a local Chrome through the DevTools protocol. The
// browser process starts on the first Open so a daemon without page checks
// never needs Chrome installed.
type ChromeBrowser struct {
	cfg ChromeConfig
	log *zap.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

func NewChromeBrowser(cfg ChromeConfig, log *zap.Logger) *ChromeBrowser {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromeBrowser{cfg: cfg, log: log}
}

func (b *ChromeBrowser) ensureStarted() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}
	if b.browserCancel != nil {
		// the previous browser exited; release its allocator before
		// starting another
		b.browserCancel()
		b.allocCancel()
		b.browserCtx, b.browserCancel, b.allocCancel = nil, nil, nil
		b.log.Warn("browser_restarting")
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if !b.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if b.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	sugar := b.log.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)
	if err := chromedp.Run(browserCtx, seedCookies(b.cfg.Cookies)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	b.browserCtx, b.browserCancel, b.allocCancel = browserCtx, browserCancel, allocCancel
	b.log.Info("browser_started", zap.Bool("headless", b.cfg.Headless))
	return browserCtx, nil
}

func seedCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return nil
		}
		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			params = append(params, &network.CookieParam{Name: c.Name, Value: c.Value, URL: c.URL, Path: "/"})
		}
		if err := network.SetCookies(params).Do(ctx); err != nil {
			return fmt.Errorf("set cookies: %w", err)
		}
		return nil
	})
}

func (b *ChromeBrowser) Open(ctx context.Context) (Tab, error) {
	browserCtx, err := b.ensureStarted()
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)

	// The first Run on a chromedp context creates the target. It runs on
	// tabCtx itself so later per-call deadlines never own the tab.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(tabCtx) }()
	select {
	case err := <-errc:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create tab: %w", err)
		}
	case <-ctx.Done():
		// Cancelling while the target is being created would orphan it;
		// close the tab once creation settles instead.
		go func() {
			<-errc
			cancel()
		}()
		return nil, ctx.Err()
	}
	return &chromeTab{ctx: tabCtx, cancel: cancel}, nil
}

// Close stops the browser process.
func (b *ChromeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCancel != nil {
		b.browserCancel()
		b.allocCancel()
		b.browserCtx = nil
	}
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, aborting them when ctx ends.
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *chromeTab) Evaluate(ctx context.Context, script string) ([]byte, error) {
	var raw []byte
	if err := t.run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		return nil, err
	}
	return raw, nil
}

func (t *chromeTab) Activate(ctx context.Context) error {
	return t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	}))
}

func (t *chromeTab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(70).
			Do(ctx)
		return err
	}))
	return buf, err
}

func (t *chromeTab) Close() error {
	err := chromedp.Cancel(t.ctx)
	t.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
