// Package probe runs single checks. Executors never return errors: every
// failure, including timeouts, is captured in the returned RunResult.
package probe

import (
	"context"

	"github.com/hamed0406/webinspector/internal/domain"
)

// NetworkProber is implemented by the HTTP executor.
type NetworkProber interface {
	Probe(ctx context.Context, c domain.NetworkCheck) domain.RunResult
}

// PageProber is implemented by the rendering executor.
type PageProber interface {
	Probe(ctx context.Context, c domain.PageCheck) domain.RunResult
}

// Messages shared with consoles and notifications.
const (
	MsgTimeout        = "timeout"
	MsgAlertTriggered = "alert rule triggered"
	MsgPageTimeout    = "page load timeout"
)
