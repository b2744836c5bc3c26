package events

import (
	"context"
	"errors"
)

// Publisher delivers lifecycle events to an external transport.
type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Envelope) error

func (f PublisherFunc) Publish(ctx context.Context, e Envelope) error { return f(ctx, e) }

// Fanout publishes to every publisher and joins their errors.
func Fanout(pubs ...Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, e Envelope) error {
		var errs []error
		for _, p := range pubs {
			if p == nil {
				continue
			}
			if err := p.Publish(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Envelope) error { return nil })
