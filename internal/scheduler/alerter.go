package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
	"github.com/hamed0406/webinspector/internal/notify"
	"github.com/hamed0406/webinspector/internal/obs"
)

// Alerter sends one notification per failed result. Delivery problems are
// logged and never fail the batch.
type Alerter struct {
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *obs.Metrics
}

func NewAlerter(n notify.Notifier, log *zap.Logger, m *obs.Metrics) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{notifier: n, log: log, metrics: m}
}

func (a *Alerter) Evaluate(ctx context.Context, results []domain.RunResult) {
	if a.notifier == nil {
		return
	}
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		title, text := FormatAlert(r)
		if err := a.notifier.Send(ctx, title, text); err != nil {
			a.log.Warn("alert_send_failed",
				zap.String("check_id", string(r.ID)),
				zap.String("url", r.URL),
				zap.Error(err),
			)
			a.metrics.Notification(false)
			continue
		}
		a.metrics.Notification(true)
	}
}

// FormatAlert renders the title and body for a failed result.
func FormatAlert(r domain.RunResult) (title, text string) {
	title = "🔴 Network check alert"
	if r.Kind == domain.KindPage {
		title = "🔴 Page check alert"
	}
	text = fmt.Sprintf("%s: %s\nURL: %s", r.Name, r.ErrorMessage(), r.URL)
	return title, text
}
