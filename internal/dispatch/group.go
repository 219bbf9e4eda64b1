package dispatch

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
)

// Group fans artifacts out to one worker per active destination.
type Group struct {
	workers []*Worker
}

// NewGroup creates (but does not start) a worker for every destination.
func NewGroup(dests []*destination.Destination, transfer Transfer, recorder metrics.Recorder) *Group {
	g := &Group{}
	for _, d := range dests {
		g.workers = append(g.workers, NewWorker(d, transfer, recorder))
	}
	return g
}

func (g *Group) Start(ctx context.Context) {
	for _, w := range g.workers {
		w.Start(ctx)
	}
}

// OnDelivery registers fn on every worker.
func (g *Group) OnDelivery(fn func(Delivery)) {
	for _, w := range g.workers {
		w.OnDelivery(fn)
	}
}

// Enqueue offers it to every destination exactly once.
func (g *Group) Enqueue(it Item) {
	for _, w := range g.workers {
		w.Enqueue(it)
	}
}

// DrainAndWait waits for every worker's barrier.
func (g *Group) DrainAndWait() {
	var wg sync.WaitGroup
	for _, w := range g.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.DrainAndWait()
		}(w)
	}
	wg.Wait()
}

// Stop shuts every worker down after its queue is drained.
func (g *Group) Stop() {
	for _, w := range g.workers {
		w.Stop()
	}
}

// Workers returns the workers in destination order.
func (g *Group) Workers() []*Worker {
	return append([]*Worker(nil), g.workers...)
}

// Deliveries concatenates every worker's deliveries in destination order.
func (g *Group) Deliveries() []Delivery {
	var out []Delivery
	for _, w := range g.workers {
		out = append(out, w.Deliveries()...)
	}
	return out
}
