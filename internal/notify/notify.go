// Package notify fans dataset status changes out to interested parties.
package notify

import (
	"context"
	"errors"

	"txdash/internal/core"
)

// Notifier receives dataset status changes.
type Notifier interface {
	Notify(ctx context.Context, status core.DatasetStatus) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, status core.DatasetStatus) error

func (f NotifierFunc) Notify(ctx context.Context, status core.DatasetStatus) error {
	return f(ctx, status)
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, status core.DatasetStatus) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, status); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
