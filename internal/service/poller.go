package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller re-fetches a view's data on a fixed interval. It is tied to the
// consumer's lifetime through the context passed to Run, and it guards
// against out-of-order responses: every poll gets a monotonic sequence
// number and a response only applies if nothing newer has applied yet, so
// a slow fetch can never clobber a fresher one.
type Poller struct {
	Name     string
	Interval time.Duration
	Fetch    func(ctx context.Context) (any, error)
	Apply    func(result any)

	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Run polls immediately and then on every tick until ctx is cancelled.
// Fetches run in their own goroutine so a slow response never delays the
// next scheduled poll.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Poller %s: stopped: %v", p.Name, ctx.Err())
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	go func() {
		result, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Poller %s: fetch %d failed: %v", p.Name, seq, err)
			}
			return
		}
		p.deliver(seq, result)
	}()
}

// deliver applies a fetch result unless a newer one already applied. Apply
// runs under mu so that the applied counter and the Apply calls advance
// together; releasing the lock before applying would let a stale result
// land after a fresher one.
func (p *Poller) deliver(seq uint64, result any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.applied {
		log.Printf("Poller %s: dropping stale response %d", p.Name, seq)
		return
	}
	p.applied = seq
	p.Apply(result)
}
