package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Dispatcher tries engines in order and returns the first success. It moves
// to the next engine only on failures a heavier engine could fix: transport
// errors and 5xx responses. Cancellation and 4xx responses end the chain.
type Dispatcher struct {
	engines []Engine
	memory  *HostMemory
}

// NewDispatcher creates a Dispatcher over the given engines, cheapest first.
func NewDispatcher(engines ...Engine) *Dispatcher {
	return &Dispatcher{engines: engines}
}

// WithMemory makes the dispatcher start from the engine that last served a
// host after an escalation.
func (d *Dispatcher) WithMemory(m *HostMemory) *Dispatcher {
	d.memory = m
	return d
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Names lists the configured engines in order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.engines))
	for i, e := range d.engines {
		names[i] = e.Name()
	}
	return names
}

// Fetch runs the engine chain for req.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}

	host := hostOf(req.URL)
	start := d.remembered(host)
	if start > 0 {
		result, err := d.engines[start].Fetch(ctx, req)
		if err == nil || ctx.Err() != nil || !escalates(err) {
			return result, err
		}
		slog.Info("remembered engine failed, running full chain",
			"host", host, "engine", d.engines[start].Name(), "error", err)
		d.memory.Forget(host)
	}

	return d.chain(ctx, req, host)
}

func (d *Dispatcher) chain(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	var lastErr error
	for i, eng := range d.engines {
		result, err := eng.Fetch(ctx, req)
		if err == nil {
			if i > 0 && d.memory != nil && host != "" {
				d.memory.Set(host, eng.Name())
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !escalates(err) {
			return nil, err
		}
		if i < len(d.engines)-1 {
			slog.Debug("engine failed, escalating",
				"engine", eng.Name(), "next", d.engines[i+1].Name(), "url", req.URL, "error", err)
		}
	}
	return nil, lastErr
}

// remembered returns the index of the engine remembered for host, 0 when none.
func (d *Dispatcher) remembered(host string) int {
	if d.memory == nil || host == "" {
		return 0
	}
	name := d.memory.Get(host)
	if name == "" {
		return 0
	}
	for i, e := range d.engines {
		if e.Name() == name {
			return i
		}
	}
	return 0
}

// escalates reports whether err is worth retrying on another engine.
func escalates(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
