// Command preflight checks a configuration and check catalogue before deployment.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hamed0406/webinspector/internal/config"
	"github.com/hamed0406/webinspector/internal/obs"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("WEBINSPECTOR_CONFIG"), "path to YAML config")
	flag.Parse()

	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config: " + err.Error())
		os.Exit(1)
	}
	ok("ADDR=" + cfg.Addr)

	for name, b := range map[string]config.Backend{"local": cfg.Storage.Local, "synced": cfg.Storage.Synced} {
		switch b.Driver {
		case "memory":
			warn(name + " storage is in-memory; state is lost on restart.")
		case "sqlite", "postgres":
			if b.DSN == "" {
				fail(name + " storage DSN is empty.")
			} else {
				ok(name + " storage=" + b.Driver)
			}
		case "redis":
			if name == "local" {
				fail("redis is only supported for the synced scope.")
			} else if b.DSN == "" {
				fail("synced storage DSN is empty.")
			} else {
				ok("synced storage=redis")
			}
		default:
			fail(fmt.Sprintf("%s storage driver %q is unknown.", name, b.Driver))
		}
	}

	in := cfg.Inspection
	if in.MaxResults < 1 {
		fail("inspection.max_results must be positive.")
	}
	if in.DefaultIntervalMinutes < 1 {
		fail("inspection.default_interval_minutes must be at least 1.")
	}
	if in.NetworkTimeout <= 0 || in.PageTimeout <= 0 {
		fail("inspection timeouts must be positive.")
	}
	if in.SettleDelay >= in.PageTimeout {
		warn("inspection.settle_delay is not shorter than page_timeout; every page check will time out.")
	}

	for i, c := range in.Cookies {
		if u, err := url.Parse(c.URL); err != nil || u.Host == "" || c.Name == "" {
			fail(fmt.Sprintf("inspection.cookies[%d] needs an absolute url and a name.", i))
		}
	}
	if len(in.Cookies) > 0 {
		ok(fmt.Sprintf("%d seeded cookies", len(in.Cookies)))
	}

	if in.ChecksFile == "" {
		warn("inspection.checks_file empty; checks must be added through the console.")
	} else if l, err := config.LoadChecksFile(in.ChecksFile); err != nil {
		fail("checks file: " + err.Error())
	} else {
		ok(fmt.Sprintf("checks file: %d network, %d page", len(l.Network), len(l.Page)))
	}

	if cfg.Notify.SlackWebhook == "" {
		warn("notify.slack_webhook empty; alerts only go to the log.")
	} else if !strings.HasPrefix(cfg.Notify.SlackWebhook, "https://") {
		fail("notify.slack_webhook must be an https URL.")
	} else {
		ok("slack notifications enabled")
	}

	if len(cfg.HTTP.AllowedOrigins) == 0 {
		warn("http.allowed_origins empty; every origin is allowed.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.HTTP.AllowedOrigins, ","))
	}

	if cfg.OTEL.Enable {
		if _, err := obs.Sampler(cfg.OTEL); err != nil {
			fail(err.Error())
		} else {
			ok("tracing to " + cfg.OTEL.Endpoint)
		}
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
