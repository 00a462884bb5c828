package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type CheckID string

// Kind tags the two check variants.
type Kind string

const (
	KindNetwork Kind = "network"
	KindPage    Kind = "page"
)

var ErrInvalidCheck = errors.New("invalid check")

// CheckSpec is implemented only by NetworkCheck and PageCheck.
type CheckSpec interface {
	CheckID() CheckID
	CheckName() string
	CheckURL() string
	Kind() Kind
	isCheckSpec()
}

// NetworkCheck probes an HTTP endpoint and optionally evaluates an alert rule
// against the decoded body.
type NetworkCheck struct {
	ID        CheckID `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	URL       string  `json:"url" yaml:"url"`
	Method    string  `json:"method" yaml:"method"`
	AlertRule string  `json:"alertRule,omitempty" yaml:"alert_rule"`
}

func (c NetworkCheck) CheckID() CheckID  { return c.ID }
func (c NetworkCheck) CheckName() string { return c.Name }
func (c NetworkCheck) CheckURL() string  { return c.URL }
func (NetworkCheck) Kind() Kind          { return KindNetwork }
func (NetworkCheck) isCheckSpec()        {}

// PageCheck renders a page and collects diagnostics from inside it.
type PageCheck struct {
	ID         CheckID `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	URL        string  `json:"url" yaml:"url"`
	Screenshot bool    `json:"screenshot" yaml:"screenshot"`
}

func (c PageCheck) CheckID() CheckID  { return c.ID }
func (c PageCheck) CheckName() string { return c.Name }
func (c PageCheck) CheckURL() string  { return c.URL }
func (PageCheck) Kind() Kind          { return KindPage }
func (PageCheck) isCheckSpec()        {}

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true, "HEAD": true,
}

// Normalize trims fields and defaults the method to GET.
func (c NetworkCheck) Normalize() NetworkCheck {
	c.Name = strings.TrimSpace(c.Name)
	c.URL = strings.TrimSpace(c.URL)
	c.AlertRule = strings.TrimSpace(c.AlertRule)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = "GET"
	}
	return c
}

func (c NetworkCheck) Validate() error {
	if err := validateCommon(c.Name, c.URL); err != nil {
		return err
	}
	if !allowedMethods[c.Method] {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidCheck, c.Method)
	}
	return nil
}

func (c PageCheck) Normalize() PageCheck {
	c.Name = strings.TrimSpace(c.Name)
	c.URL = strings.TrimSpace(c.URL)
	return c
}

func (c PageCheck) Validate() error {
	return validateCommon(c.Name, c.URL)
}

func validateCommon(name, raw string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCheck)
	}
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidCheck)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidCheck)
	}
	return nil
}

// CheckList is the configured catalogue. Order matters: page checks run in
// list order.
type CheckList struct {
	Network []NetworkCheck `json:"network" yaml:"network"`
	Page    []PageCheck    `json:"page" yaml:"page"`
}

func (l CheckList) Empty() bool { return len(l.Network) == 0 && len(l.Page) == 0 }

// Specs flattens the list, network checks first.
func (l CheckList) Specs() []CheckSpec {
	out := make([]CheckSpec, 0, len(l.Network)+len(l.Page))
	for _, c := range l.Network {
		out = append(out, c)
	}
	for _, c := range l.Page {
		out = append(out, c)
	}
	return out
}
