package application

import (
	"context"
	"errors"
)

// Notifier forwards user-visible notices to an external channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// MultiNotifier sends every notice to all of its notifiers, even when some
// of them fail.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
