package parallel

import (
	"context"
	"errors"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map runs mapFunc over every input element with at most limit calls in
// flight and yields the results in completion order. Map is context aware:
// a canceled context or an early break from the loop ends the processing.
//
//	for d, err := range parallel.NewMap(ctx, 3, probe).Iter(slices.Values(probes)) {}
type Map[E, D any] struct {
	parentCtx    context.Context
	cancelParent context.CancelFunc
	g            *errgroup.Group
	gctx         context.Context
	mapped       chan result[D]
	mapFunc      func(context.Context, E) (D, error)
}

func NewMap[E, D any](parentCtx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	limit = max(limit, 1)
	parentCtx, cancelParent := context.WithCancel(parentCtx)
	g, gctx := errgroup.WithContext(parentCtx)
	// +1 for the feeding goroutine
	g.SetLimit(limit + 1)

	return &Map[E, D]{
		parentCtx:    parentCtx,
		cancelParent: cancelParent,
		g:            g,
		gctx:         gctx,
		mapped:       make(chan result[D], limit),
		mapFunc:      mapFunc,
	}
}

func (m *Map[E, D]) goWorkers(seq iter.Seq[E]) {
	m.g.Go(func() error {
		for entry := range seq {
			if m.gctx.Err() != nil {
				return m.gctx.Err()
			}
			m.g.Go(func() error {
				d, err := m.mapFunc(m.gctx, entry)
				select {
				case <-m.gctx.Done():
					return m.gctx.Err()
				case m.mapped <- result[D]{d: d, e: err}:
				}
				return nil
			})
		}
		return nil
	})
}

func (m *Map[E, D]) Iter(seq iter.Seq[E]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		done := make(chan struct{})
		defer func() {
			m.cancelParent()
			<-done
		}()
		m.goWorkers(seq)

		go func() {
			_ = m.g.Wait()
			close(m.mapped)
			close(done)
		}()

		for r := range m.mapped {
			if m.parentCtx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}

// Collect drains the iterator. Successful results are returned in arrival
// order, the failures are joined into a single error.
func Collect[D any](seq iter.Seq2[D, error]) ([]D, error) {
	var (
		ds   []D
		errs []error
	)
	for d, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ds = append(ds, d)
	}
	return ds, errors.Join(errs...)
}
