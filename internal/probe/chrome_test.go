package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
)

func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary on PATH; skipping browser test")
	return ""
}

func newTestChrome(t *testing.T, cookies []Cookie) *ChromeBrowser {
	t.Helper()
	b := NewChromeBrowser(ChromeConfig{
		ExecPath:  chromePath(t),
		Headless:  true,
		NoSandbox: true,
		Cookies:   cookies,
	}, zap.NewNop())
	t.Cleanup(b.Close)
	_, err := b.ensureStarted()
	require.NoError(t, err)
	return b
}

func openPages(t *testing.T, b *ChromeBrowser) int {
	t.Helper()
	b.mu.Lock()
	ctx := b.browserCtx
	b.mu.Unlock()
	infos, err := chromedp.Targets(ctx)
	require.NoError(t, err)
	n := 0
	for _, info := range infos {
		if info.Type == "page" {
			n++
		}
	}
	return n
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/shop", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Shop</title></head><body><h1>Shop</h1><img src="/missing.png"></body></html>`)
	})
	mux.HandleFunc("/missing.png", http.NotFound)
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		title := "anonymous"
		if c, err := r.Cookie("sid"); err == nil {
			title = c.Value
		}
		fmt.Fprintf(w, `<html><head><title>%s</title></head><body><p>hi</p></body></html>`, title)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func TestChromeBrowser_BrokenImage(t *testing.T) {
	b := newTestChrome(t, nil)
	srv := testSite(t)
	baseline := openPages(t, b)

	p := NewPageProbe(b, PageConfig{LoadTimeout: 20 * time.Second, SettleDelay: 500 * time.Millisecond}, zap.NewNop())
	out := p.Probe(context.Background(), domain.PageCheck{ID: "shop", Name: "Shop", URL: srv.URL + "/shop"})

	assert.Equal(t, domain.StatusError, out.Status)
	require.NotNil(t, out.Page)
	assert.Equal(t, []string{"image load failed: " + srv.URL + "/missing.png"}, out.Page.Diagnostics.Issues)
	assert.Equal(t, "Shop", out.Page.Diagnostics.Title)
	assert.Eventually(t, func() bool { return openPages(t, b) == baseline }, 5*time.Second, 50*time.Millisecond)
}

func TestChromeBrowser_TimeoutClosesTab(t *testing.T) {
	b := newTestChrome(t, nil)
	srv := testSite(t)
	baseline := openPages(t, b)

	p := NewPageProbe(b, PageConfig{LoadTimeout: time.Second, SettleDelay: NoDelay}, zap.NewNop())
	out := p.Probe(context.Background(), domain.PageCheck{ID: "slow", Name: "Slow", URL: srv.URL + "/slow"})

	assert.Equal(t, "page load timeout", out.ErrorMessage())
	assert.Eventually(t, func() bool { return openPages(t, b) == baseline }, 5*time.Second, 50*time.Millisecond)
}

func TestChromeBrowser_CancelledOpenLeavesNoTab(t *testing.T) {
	b := newTestChrome(t, nil)
	baseline := openPages(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tab, err := b.Open(ctx)
	if err == nil {
		require.NoError(t, tab.Close())
	}
	assert.Eventually(t, func() bool { return openPages(t, b) == baseline }, 5*time.Second, 50*time.Millisecond)
}

func TestChromeBrowser_SeedsCookies(t *testing.T) {
	srv := testSite(t)
	b := newTestChrome(t, []Cookie{{URL: srv.URL, Name: "sid", Value: "session-42"}})

	p := NewPageProbe(b, PageConfig{LoadTimeout: 20 * time.Second, SettleDelay: NoDelay}, zap.NewNop())
	out := p.Probe(context.Background(), domain.PageCheck{ID: "me", Name: "Me", URL: srv.URL + "/whoami"})

	require.NotNil(t, out.Page)
	assert.Equal(t, "session-42", out.Page.Diagnostics.Title)
}
