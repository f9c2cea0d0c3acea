package device

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrPromiseClosed is returned by Await once the promise has been closed.
var ErrPromiseClosed = errors.New("device transport closed")

// TransportPromise resolves a Transport on first use and hands the same
// transport to every caller afterwards. Only a successful resolution is kept,
// a failed one is retried by the next Await. At most one resolution runs at a
// time, concurrent callers share it.
type TransportPromise struct {
	resolve func(ctx context.Context) (Transport, error)

	mu        sync.Mutex
	transport Transport
	pending   *resolution
	closed    bool
}

type resolution struct {
	done      chan struct{}
	transport Transport
	err       error
}

// NewTransportPromise creates a promise which calls resolve on the first Await.
func NewTransportPromise(resolve func(ctx context.Context) (Transport, error)) *TransportPromise {
	return &TransportPromise{resolve: resolve}
}

// ResolvedTransport returns a promise that is already fulfilled with transport.
func ResolvedTransport(transport Transport) *TransportPromise {
	return &TransportPromise{transport: transport}
}

// Await blocks until the transport is resolved or ctx is done.
func (p *TransportPromise) Await(ctx context.Context) (Transport, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPromiseClosed
	}

	if p.transport != nil {
		transport := p.transport
		p.mu.Unlock()
		return transport, nil
	}

	r := p.pending
	if r == nil {
		r = &resolution{done: make(chan struct{})}
		p.pending = r

		// the resolution outlives the caller starting it, later callers share its result
		go p.run(context.WithoutCancel(ctx), r)
	}
	p.mu.Unlock()

	select {
	case <-r.done:
		return r.transport, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for device transport")
	}
}

func (p *TransportPromise) run(ctx context.Context, r *resolution) {
	defer close(r.done)

	transport, err := p.resolve(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = nil

	switch {
	case err != nil:
		r.err = errors.Wrap(err, "failed to open device transport")
	case p.closed:
		_ = transport.Close()
		r.err = ErrPromiseClosed
	default:
		p.transport = transport
		r.transport = transport
	}
}

// Close closes the transport if it was resolved. Later calls to Await fail
// with ErrPromiseClosed.
func (p *TransportPromise) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.transport == nil {
		return nil
	}

	transport := p.transport
	p.transport = nil

	return transport.Close()
}
