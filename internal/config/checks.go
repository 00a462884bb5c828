package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/webinspector/internal/alertrule"
	"github.com/hamed0406/webinspector/internal/domain"
)

// LoadChecksFile parses a YAML catalogue of the form
//
//	network:
//	  - name: API
//	    url: https://api.example.com/health
//	    alert_rule: response.status !== "ok"
//	page:
//	  - name: Home
//	    url: https://example.com
//
// Every entry is normalized and validated; all problems are reported at once.
func LoadChecksFile(path string) (domain.CheckList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.CheckList{}, err
	}
	var l domain.CheckList
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return domain.CheckList{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return l, ValidateChecks(&l)
}

// ValidateChecks normalizes l in place.
func ValidateChecks(l *domain.CheckList) error {
	var errs error
	for i, c := range l.Network {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("network[%d]: %w", i, err))
		}
		if c.AlertRule != "" {
			if _, err := alertrule.Compile(c.AlertRule); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("network[%d] alert_rule: %w", i, err))
			}
		}
		l.Network[i] = c
	}
	for i, c := range l.Page {
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("page[%d]: %w", i, err))
		}
		l.Page[i] = c
	}
	if errs == nil {
		if err := uniqueIDs(*l); err != nil {
			return err
		}
	}
	return errs
}

var ErrDuplicateID = errors.New("duplicate check id")

func uniqueIDs(l domain.CheckList) error {
	seen := map[domain.CheckID]bool{}
	for _, s := range l.Specs() {
		id := s.CheckID()
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}
