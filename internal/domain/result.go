package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// GenericFailure is used when a failed result carries no message.
const GenericFailure = "check failed"

// RunResult is one probe outcome. Status and Error are only changed together
// through Succeed and Fail so that status is error exactly when Error is set.
type RunResult struct {
	ID         CheckID         `json:"id"`
	Name       string          `json:"name"`
	URL        string          `json:"url"`
	Kind       Kind            `json:"kind"`
	Status     Status          `json:"status"`
	DurationMS int64           `json:"durationMs"`
	Timestamp  time.Time       `json:"timestamp"`
	Error      *string         `json:"error"`
	Network    *NetworkPayload `json:"network,omitempty"`
	Page       *PagePayload    `json:"page,omitempty"`
}

// NetworkPayload is the decoded (or raw text) response body.
type NetworkPayload struct {
	StatusCode int      `json:"statusCode,omitempty"`
	Body       any      `json:"body,omitempty"`
	Raw        bool     `json:"raw,omitempty"`
	DNS        *DNSInfo `json:"dns,omitempty"`
}

// DNSInfo classifies the target host when the transport failed.
type DNSInfo struct {
	Domain      string   `json:"domain"`
	Class       string   `json:"class"`
	CNAME       string   `json:"cname,omitempty"`
	Nameservers []string `json:"nameservers,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type PagePayload struct {
	Diagnostics PageDiagnostics `json:"diagnostics"`
	Snapshot    []byte          `json:"snapshot,omitempty"`
}

// NewResult starts a result for spec; it is successful until Fail is called.
func NewResult(spec CheckSpec) RunResult {
	return RunResult{
		ID:     spec.CheckID(),
		Name:   spec.CheckName(),
		URL:    spec.CheckURL(),
		Kind:   spec.Kind(),
		Status: StatusSuccess,
	}
}

// Succeed clears any failure.
func (r *RunResult) Succeed() {
	r.Status = StatusSuccess
	r.Error = nil
}

// Fail marks the result as an error. An empty message becomes GenericFailure.
func (r *RunResult) Fail(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = GenericFailure
	}
	r.Status = StatusError
	r.Error = &msg
}

func (r RunResult) Failed() bool { return r.Status == StatusError }

// ErrorMessage returns the error text or GenericFailure for failed results
// that somehow lost it.
func (r RunResult) ErrorMessage() string {
	if r.Error != nil && *r.Error != "" {
		return *r.Error
	}
	if r.Failed() {
		return GenericFailure
	}
	return ""
}

// Finish stamps duration and completion time.
func (r *RunResult) Finish(start, end time.Time) {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	r.DurationMS = d.Milliseconds()
	r.Timestamp = end.UTC()
}

// ErrorResult builds a synthetic failed result for spec.
func ErrorResult(spec CheckSpec, msg string, at time.Time) RunResult {
	r := NewResult(spec)
	r.Fail(msg)
	r.Timestamp = at.UTC()
	if spec.Kind() == KindPage {
		r.Page = &PagePayload{Diagnostics: FailedDiagnostics(spec.CheckURL(), at, r.ErrorMessage())}
	}
	return r
}
