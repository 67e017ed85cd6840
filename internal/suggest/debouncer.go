package suggest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a call replaced by a newer call for the same key.
var ErrSuperseded = errors.New("suggestion superseded by a newer request")

type Request struct {
	WorkOrderID string `json:"workOrderId"`
	Field       string `json:"field"`
	Text        string `json:"text"`
}

type Suggestion struct {
	Text string `json:"suggestion"`
}

type Generator interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

type call struct {
	generation uint64
	cancel     context.CancelFunc
}

// Debouncer delays generator calls and keeps only the latest call per key.
// A new call cancels both the pending delay and the in-flight request of
// the call it replaces.
type Debouncer struct {
	gen   Generator
	delay time.Duration

	mu         sync.Mutex
	generation uint64
	pending    map[string]*call
}

func NewDebouncer(gen Generator, delay time.Duration) *Debouncer {
	return &Debouncer{
		gen:     gen,
		delay:   delay,
		pending: make(map[string]*call),
	}
}

func Key(sessionID, workOrderID, field string) string {
	return sessionID + "|" + workOrderID + "|" + field
}

func (d *Debouncer) Do(ctx context.Context, key string, req Request) (Suggestion, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.cancel()
	}
	d.generation++
	own := &call{generation: d.generation, cancel: cancel}
	d.pending[key] = own
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.pending[key] == own {
			delete(d.pending, key)
		}
		d.mu.Unlock()
	}()

	timer := time.NewTimer(d.delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return Suggestion{}, d.cause(key, own, ctx.Err())
	case <-timer.C:
	}

	res, err := d.gen.Suggest(ctx, req)
	if !d.isLatest(key, own) {
		return Suggestion{}, ErrSuperseded
	}
	if err != nil {
		return Suggestion{}, err
	}
	return res, nil
}

// Pending reports the number of keys with a call waiting or in flight.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) isLatest(key string, own *call) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[key] == own
}

func (d *Debouncer) cause(key string, own *call, err error) error {
	if !d.isLatest(key, own) {
		return ErrSuperseded
	}
	return err
}
