// Package dashboard composes one binding per chart into chart-ready
// projections for a user.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"fitboard/internal/aggregate"
	"fitboard/internal/apperr"
	"fitboard/internal/binding"
	"fitboard/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	ChartUser        = "user"
	ChartActivity    = "activity"
	ChartSessions    = "sessions"
	ChartPerformance = "performance"
)

type Gateway interface {
	GetUser(ctx context.Context, id int) (models.UserSummary, error)
	GetActivity(ctx context.Context, id int) (models.ActivityRecord, error)
	GetAverageSessions(ctx context.Context, id int) (models.SessionRecord, error)
	GetPerformance(ctx context.Context, id int) (models.PerformanceRecord, error)
}

func byID[T any](get func(context.Context, int) (T, error)) binding.Fetcher[T] {
	return func(ctx context.Context, deps []any) (T, error) {
		id, ok := deps[0].(int)
		if !ok {
			var zero T
			return zero, fmt.Errorf("user id dependency has type %T", deps[0])
		}
		return get(ctx, id)
	}
}

// Board holds the chart bindings of one dashboard. Each chart loads on its
// own; a failing chart never holds back the others.
type Board struct {
	user        *binding.Binding[models.UserSummary]
	activity    *binding.Binding[models.ActivityRecord]
	sessions    *binding.Binding[models.SessionRecord]
	performance *binding.Binding[models.PerformanceRecord]
}

func NewBoard(gw Gateway) *Board {
	return &Board{
		user:        binding.New(ChartUser, byID(gw.GetUser)),
		activity:    binding.New(ChartActivity, byID(gw.GetActivity)),
		sessions:    binding.New(ChartSessions, byID(gw.GetAverageSessions)),
		performance: binding.New(ChartPerformance, byID(gw.GetPerformance)),
	}
}

type waiter interface {
	aggregate.Source
	Invalidate()
	Update(deps ...any) bool
	Wait(ctx context.Context) error
}

// waitable adapts a typed binding to the untyped set the board iterates over.
type waitable[T any] struct {
	*binding.Binding[T]
}

func (w waitable[T]) Wait(ctx context.Context) error {
	_, err := w.Binding.Wait(ctx)
	return err
}

func (b *Board) charts() map[string]waiter {
	return map[string]waiter{
		ChartUser:        waitable[models.UserSummary]{b.user},
		ChartActivity:    waitable[models.ActivityRecord]{b.activity},
		ChartSessions:    waitable[models.SessionRecord]{b.sessions},
		ChartPerformance: waitable[models.PerformanceRecord]{b.performance},
	}
}

// Update points every chart at user id. Charts whose last attempt failed on
// the network are retried even when id did not change.
func (b *Board) Update(id int) {
	for _, c := range b.charts() {
		if st := c.Status(); st.Phase == binding.PhaseFailed && errors.Is(st.Err, apperr.ErrNetwork) {
			c.Invalidate()
		}
		c.Update(id)
	}
}

// View folds the current chart states without waiting.
func (b *Board) View() aggregate.View {
	sources := make(map[string]aggregate.Source, 4)
	for name, c := range b.charts() {
		sources[name] = c
	}
	return aggregate.Fold(sources)
}

// Load updates the board for user id and waits until every chart settled or
// ctx is done. The returned error is about waiting only; chart failures are
// part of the dashboard.
func (b *Board) Load(ctx context.Context, id int) (*Dashboard, error) {
	b.Update(id)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range b.charts() {
		eg.Go(func() error {
			return c.Wait(egCtx)
		})
	}
	if err := eg.Wait(); err != nil {
		return Render(id, b.View()), err
	}
	return Render(id, b.View()), nil
}

func (b *Board) Invalidate() {
	for _, c := range b.charts() {
		c.Invalidate()
	}
}

func (b *Board) Close() {
	b.user.Close()
	b.activity.Close()
	b.sessions.Close()
	b.performance.Close()
}
