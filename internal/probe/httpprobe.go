package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/hamed0406/webinspector/internal/alertrule"
	"github.com/hamed0406/webinspector/internal/domain"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	defaultMaxBody        = 4 << 20
)

// Cookie is a credential placed in the shared jar before the first request.
type Cookie struct {
	URL   string `mapstructure:"url"`
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

type HTTPConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Cookies      []Cookie
}

// HTTPProbe issues the configured request and evaluates the alert rule. All
// probes share one cookie jar so session cookies set by one endpoint are sent
// to the next.
type HTTPProbe struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	MaxBody   int64
	Resolver  Resolver
	Logger    *zap.Logger

	now   func() time.Time
	rules sync.Map // rule source -> compiledRule
}

type compiledRule struct {
	rule *alertrule.Rule
	err  error
}

func NewHTTPProbe(cfg HTTPConfig, log *zap.Logger) (*HTTPProbe, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultNetworkTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if log == nil {
		log = zap.NewNop()
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	for _, c := range cfg.Cookies {
		u, err := url.Parse(c.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("cookie %q: invalid url %q", c.Name, c.URL)
		}
		jar.SetCookies(u, []*http.Cookie{{Name: c.Name, Value: c.Value, Path: "/"}})
	}
	return &HTTPProbe{
		// no client-level timeout: the per-probe context bounds the whole exchange
		Client:    &http.Client{Jar: jar, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		MaxBody:   cfg.MaxBodyBytes,
		Logger:    log,
		now:       time.Now,
	}, nil
}

func (p *HTTPProbe) Probe(ctx context.Context, c domain.NetworkCheck) domain.RunResult {
	res := domain.NewResult(c)
	payload := &domain.NetworkPayload{}
	res.Network = payload

	start := p.now()
	pctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	status, body, err := p.exchange(pctx, c)
	end := p.now()
	if err != nil {
		res.Fail(describeErr(pctx, err))
		res.Finish(start, end)
		if pctx.Err() == nil {
			info := ClassifyHost(ctx, p.Resolver, hostOf(c.URL))
			payload.DNS = &info
		}
		p.Logger.Debug("probe_network_failed",
			zap.String("check_id", string(c.ID)),
			zap.String("url", c.URL),
			zap.Error(err),
		)
		return res
	}

	payload.StatusCode = status
	payload.Body, payload.Raw = decodeBody(body)
	res.Finish(start, end)

	if status < 200 || status > 299 {
		res.Fail(fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
		return res
	}
	if c.AlertRule != "" && p.ruleFires(c, payload.Body) {
		res.Fail(MsgAlertTriggered)
	}
	return res
}

func (p *HTTPProbe) exchange(ctx context.Context, c domain.NetworkCheck) (int, []byte, error) {
	method := c.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.MaxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ruleFires compiles (once per distinct source) and evaluates the rule.
// Compile and evaluation errors are logged and treated as "not fired".
func (p *HTTPProbe) ruleFires(c domain.NetworkCheck, body any) bool {
	v, ok := p.rules.Load(c.AlertRule)
	if !ok {
		r, err := alertrule.Compile(c.AlertRule)
		v, _ = p.rules.LoadOrStore(c.AlertRule, compiledRule{rule: r, err: err})
	}
	cr := v.(compiledRule)
	if cr.err != nil {
		p.Logger.Debug("alert_rule_invalid", zap.String("check_id", string(c.ID)), zap.Error(cr.err))
		return false
	}
	fired, err := cr.rule.Eval(body)
	if err != nil {
		p.Logger.Debug("alert_rule_eval_failed", zap.String("check_id", string(c.ID)), zap.Error(err))
		return false
	}
	return fired
}

// decodeBody returns the JSON value, or the text and raw=true when the body
// is not JSON.
func decodeBody(b []byte) (any, bool) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			return v, false
		}
	}
	return string(b), true
}

func describeErr(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return MsgTimeout
	}
	return err.Error()
}
