package cart

import (
	"context"
	"sync"
)

// persister writes cart snapshots from a single goroutine. Only the newest
// pending snapshot is written, so writes never land out of order.
type persister struct {
	write func(data []byte)

	mu     sync.Mutex
	latest []byte
	dirty  bool
	closed bool

	wake      chan struct{}
	flush     chan chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newPersister(write func(data []byte)) *persister {
	p := &persister{
		write: write,
		wake:  make(chan struct{}, 1),
		flush: make(chan chan struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case ack := <-p.flush:
			p.drain()
			close(ack)
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	data := p.latest
	p.dirty = false
	p.mu.Unlock()
	p.write(data)
}

// submit replaces the pending snapshot and wakes the writer. It reports false
// once the persister is closed. A snapshot accepted before Close is written
// by the final drain.
func (p *persister) submit(data []byte) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.latest = data
	p.dirty = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush blocks until every snapshot submitted before the call is written.
func (p *persister) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.flush <- ack:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending snapshot and stops the writer.
func (p *persister) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
