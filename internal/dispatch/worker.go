package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
	"git.home.luguber.info/inful/nightlybuilder/internal/metrics"
)

// Delivery is the outcome of one transfer attempt. Failures are recorded,
// never retried and never returned to the producer.
type Delivery struct {
	Item        Item
	Destination string
	Address     string
	Err         error
	Duration    time.Duration
}

// OK reports whether the transfer succeeded.
func (d Delivery) OK() bool { return d.Err == nil }

func (d Delivery) MarshalJSON() ([]byte, error) {
	var errText string
	if d.Err != nil {
		errText = d.Err.Error()
	}
	return json.Marshal(struct {
		Artifact    string `json:"artifact"`
		Target      string `json:"target,omitempty"`
		Destination string `json:"destination"`
		Address     string `json:"address"`
		OK          bool   `json:"ok"`
		Error       string `json:"error,omitempty"`
		DurationMS  int64  `json:"duration_ms"`
	}{d.Item.Name, d.Item.Target, d.Destination, d.Address, d.OK(), errText, d.Duration.Milliseconds()})
}

// Worker drains one destination's queue on its own goroutine.
type Worker struct {
	dest     *destination.Destination
	queue    *Queue
	transfer Transfer
	recorder metrics.Recorder

	mu         sync.Mutex
	deliveries []Delivery
	observers  []func(Delivery)

	startOnce sync.Once
	stopped   chan struct{}
}

func NewWorker(dest *destination.Destination, transfer Transfer, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Worker{
		dest:     dest,
		queue:    NewQueue(),
		transfer: transfer,
		recorder: recorder,
		stopped:  make(chan struct{}),
	}
}

// OnDelivery registers fn to be called after every transfer attempt, on the
// worker goroutine.
func (w *Worker) OnDelivery(fn func(Delivery)) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Start launches the worker goroutine. Calling it again has no effect.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.loop(ctx)
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stopped)
	for {
		it, ok := w.queue.next()
		if !ok {
			return
		}
		w.recorder.SetQueueDepth(w.dest.Name(), w.queue.Len())
		w.deliver(ctx, it)
		w.queue.done()
	}
}

func (w *Worker) deliver(ctx context.Context, it Item) {
	start := time.Now()
	err := w.transfer.Send(ctx, it.Path, w.dest, it.Subdir)
	d := Delivery{
		Item:        it,
		Destination: w.dest.Name(),
		Address:     w.dest.Address(it.Subdir),
		Err:         err,
		Duration:    time.Since(start),
	}

	w.recorder.ObserveTransferDuration(d.Destination, d.Duration)
	if err != nil {
		code, _ := command.ExitCode(err)
		w.recorder.IncTransferResult(d.Destination, metrics.TransferFailed)
		slog.Error("Transfer failed",
			logfields.Destination(d.Destination),
			logfields.Artifact(it.Name),
			logfields.Address(d.Address),
			logfields.ExitCode(code),
			logfields.Error(err))
	} else {
		w.recorder.IncTransferResult(d.Destination, metrics.TransferSuccess)
		slog.Info(w.verb()+" "+it.Name,
			logfields.Destination(d.Destination),
			logfields.Address(d.Address),
			logfields.DurationMS(float64(d.Duration.Milliseconds())))
	}

	w.mu.Lock()
	w.deliveries = append(w.deliveries, d)
	observers := make([]func(Delivery), len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()
	for _, fn := range observers {
		fn(d)
	}
}

func (w *Worker) verb() string {
	if w.dest.Kind == destination.KindLocal {
		return "Copied"
	}
	return "Uploaded"
}

// Enqueue offers it to this destination without blocking.
func (w *Worker) Enqueue(it Item) {
	if !w.queue.Enqueue(it) {
		slog.Warn("Dropping artifact enqueued after shutdown",
			logfields.Destination(w.dest.Name()), logfields.Artifact(it.Name))
		return
	}
	w.recorder.SetQueueDepth(w.dest.Name(), w.queue.Len())
}

// DrainAndWait blocks until everything enqueued so far has been attempted.
func (w *Worker) DrainAndWait() { w.queue.DrainAndWait() }

// Stop closes the queue and waits for the goroutine to finish what is queued.
func (w *Worker) Stop() {
	w.queue.Close()
	w.Start(context.Background())
	<-w.stopped
}

// Destination returns the destination this worker ships to.
func (w *Worker) Destination() *destination.Destination { return w.dest }

// Deliveries returns a copy of every transfer attempt so far.
func (w *Worker) Deliveries() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Delivery(nil), w.deliveries...)
}
