package domain

import (
	"strings"
	"time"
)

// IssueSeparator joins diagnostic issues into a result error message.
const IssueSeparator = "; "

// Timing holds navigation timings in milliseconds.
type Timing struct {
	LoadMS     int64 `json:"loadTime"`
	DOMReadyMS int64 `json:"domReady"`
	NetworkMS  int64 `json:"networkTime"`
}

// PageDiagnostics is what a page probe learned about the rendered page.
// A failed collection still produces diagnostics with at least one issue.
type PageDiagnostics struct {
	Issues    []string  `json:"issues"`
	Timing    Timing    `json:"timing"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// FailedDiagnostics describes a collection that produced nothing usable.
func FailedDiagnostics(url string, at time.Time, reasons ...string) PageDiagnostics {
	d := PageDiagnostics{URL: url, Timestamp: at.UTC()}
	for _, r := range reasons {
		if r = strings.TrimSpace(r); r != "" {
			d.Issues = append(d.Issues, r)
		}
	}
	if len(d.Issues) == 0 {
		d.Issues = []string{"diagnostics unavailable"}
	}
	return d
}

// Normalize clamps negative timings and replaces a nil issue list.
func (d PageDiagnostics) Normalize() PageDiagnostics {
	if d.Issues == nil {
		d.Issues = []string{}
	}
	d.Timing.LoadMS = max(d.Timing.LoadMS, 0)
	d.Timing.DOMReadyMS = max(d.Timing.DOMReadyMS, 0)
	d.Timing.NetworkMS = max(d.Timing.NetworkMS, 0)
	return d
}

func (d PageDiagnostics) Healthy() bool { return len(d.Issues) == 0 }

func (d PageDiagnostics) Summary() string { return strings.Join(d.Issues, IssueSeparator) }
