// Package notify delivers alert messages to operators.
package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi sends to every member and reports all failures together.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Compact drops nil members, including typed nils such as a disabled *Slack.
func Compact(ns ...Notifier) Multi {
	out := make(Multi, 0, len(ns))
	for _, n := range ns {
		switch v := n.(type) {
		case nil:
		case *Slack:
			if v != nil {
				out = append(out, v)
			}
		case *Retry:
			if v != nil && v.Inner != nil {
				out = append(out, v)
			}
		default:
			out = append(out, n)
		}
	}
	return out
}
