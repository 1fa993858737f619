package sessionpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Pool owns a bounded set of sessions keyed by id. Every mutation of the
// id map happens under mu; provider calls happen outside it. A slot is
// reserved with a pending entry before Create runs, so concurrent Acquire
// calls can never exceed MaxSessions between them. A session pinned by a
// running operation is never evicted or swept, and its resource outlives a
// Close until the operation finishes.
type Pool struct {
	mu       sync.Mutex
	entries  map[string]*entry
	closed   bool
	inflight sync.WaitGroup

	// released is closed and cleared whenever a slot frees up or a pin
	// drops to zero, waking Acquire calls that found every slot in use.
	released chan struct{}

	provider ResourceProvider
	guard    *DomainGuard
	opts     Options
}

// entry is a map slot. session is nil while the resource is being created;
// ready is closed once creation has finished either way. pins counts the
// operations running on the session. retired holds the removal reason when
// the entry left the map while pinned; the last unpin destroys the session.
type entry struct {
	session *Session
	ready   chan struct{}
	pins    int
	retired string
}

// New creates a pool that obtains resources from provider.
func New(provider ResourceProvider, opts Options) (*Pool, error) {
	if provider == nil {
		return nil, fmt.Errorf("resource provider is required")
	}
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	guard, err := NewDomainGuard(opts.AllowedDomains)
	if err != nil {
		return nil, err
	}

	return &Pool{
		entries:  make(map[string]*entry),
		provider: provider,
		guard:    guard,
		opts:     opts,
	}, nil
}

// Guard returns the navigation allow-list of the pool.
func (p *Pool) Guard() *DomainGuard {
	return p.guard
}

// Options returns the normalized pool options.
func (p *Pool) Options() Options {
	return p.opts
}

// Acquire returns the live session named id, or creates one. An empty id
// always creates a session under a generated id. When the pool is full the
// least recently used idle session is evicted first. The session is touched
// and an idle sweep runs before Acquire returns.
func (p *Pool) Acquire(ctx context.Context, id string) (*Session, error) {
	e, err := p.acquire(ctx, id, false)
	if err != nil {
		return nil, err
	}
	p.Sweep()
	return e.session, nil
}

// acquire resolves or creates the entry for id and touches it. With pin set
// the entry is pinned before mu is released; the caller must unpin it.
func (p *Pool) acquire(ctx context.Context, id string, pin bool) (*entry, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, newSessionError("acquire", id, ErrPoolClosed, nil)
		}

		if id != "" {
			if e, ok := p.entries[id]; ok {
				if e.session != nil {
					e.session.touch(p.opts.Now())
					if pin {
						p.pinLocked(e)
					}
					p.mu.Unlock()
					return e, nil
				}
				ready := e.ready
				p.mu.Unlock()
				if err := waitReady(ctx, ready, nil); err != nil {
					return nil, err
				}
				continue
			}
		}

		var victim *Session
		if len(p.entries) >= p.opts.MaxSessions {
			victim = p.oldestLocked()
			if victim == nil {
				// Every slot is being created or pinned by an operation.
				ready, released := p.pendingLocked(), p.releasedLocked()
				p.mu.Unlock()
				if err := waitReady(ctx, ready, released); err != nil {
					return nil, err
				}
				continue
			}
			delete(p.entries, victim.id)
		}

		newID := id
		if newID == "" {
			newID = p.generateIDLocked()
		}
		e := &entry{ready: make(chan struct{})}
		p.entries[newID] = e
		p.inflight.Add(1)
		p.mu.Unlock()

		if victim != nil {
			p.opts.Logger.Infof("Evicting least recently used session %s (idle %s)",
				victim.id, p.opts.Now().Sub(victim.LastUsedAt()))
			_ = p.destroy(victim, reasonEvicted)
		}
		if err := p.create(ctx, newID, e, pin); err != nil {
			return nil, err
		}
		return e, nil
	}
}

// create runs the provider outside the lock and then finalizes the slot.
func (p *Pool) create(ctx context.Context, id string, e *entry, pin bool) error {
	defer p.inflight.Done()
	defer close(e.ready)

	res, err := p.provider.Create(ctx)
	if err == nil && res == nil {
		err = errors.New("provider returned no resource")
	}

	p.mu.Lock()
	current, ok := p.entries[id]
	reserved := ok && current == e

	if err != nil {
		if reserved {
			delete(p.entries, id)
			p.broadcastLocked()
		}
		p.mu.Unlock()
		p.opts.Metrics.creationFailed()
		p.opts.Logger.Errorf("Failed to create browser session %s: %v", id, err)
		return newSessionError("acquire", id, ErrResourceCreationFailed, err)
	}

	if !reserved || p.closed {
		// Closed or shut down while the resource was being created.
		if reserved {
			delete(p.entries, id)
			p.broadcastLocked()
		}
		closed := p.closed
		p.mu.Unlock()
		if derr := p.provider.Destroy(res); derr != nil {
			p.opts.Metrics.destroyFailed()
			p.opts.Logger.Warnf("Failed to destroy abandoned resource for session %s: %v", id, derr)
		}
		if closed {
			return newSessionError("acquire", id, ErrPoolClosed, nil)
		}
		return newSessionError("acquire", id, ErrSessionNotFound,
			errors.New("session closed during creation"))
	}

	e.session = newSession(id, res, p.opts.Now())
	if pin {
		p.pinLocked(e)
	}
	p.mu.Unlock()

	p.opts.Metrics.created()
	p.opts.Logger.Infof("Created browser session: %s", id)
	return nil
}

// Get returns the live session named id without creating one.
func (p *Pool) Get(id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[id]; ok && e.session != nil {
		return e.session, nil
	}
	return nil, newSessionError("get", id, ErrSessionNotFound, nil)
}

// getPinned touches and pins the live session named id.
func (p *Pool) getPinned(op, id string) (*entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, newSessionError(op, id, ErrPoolClosed, nil)
	}
	e, ok := p.entries[id]
	if !ok || e.session == nil {
		return nil, newSessionError(op, id, ErrSessionNotFound, nil)
	}
	e.session.touch(p.opts.Now())
	p.pinLocked(e)
	return e, nil
}

// pinLocked keeps e out of eviction and sweeps until unpin. Must hold mu.
func (p *Pool) pinLocked(e *entry) {
	e.pins++
	p.inflight.Add(1)
}

// unpin releases a pin taken by acquire or getPinned. The last unpin of an
// entry closed meanwhile destroys its session.
func (p *Pool) unpin(e *entry) {
	defer p.inflight.Done()

	p.mu.Lock()
	e.pins--
	var retired string
	if e.pins == 0 {
		retired = e.retired
		p.broadcastLocked()
	}
	p.mu.Unlock()

	if retired != "" {
		_ = p.destroy(e.session, retired)
	}
}

// Touch marks the session as used now. Unknown ids are ignored.
func (p *Pool) Touch(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[id]; ok && e.session != nil {
		e.session.touch(p.opts.Now())
	}
}

// Sweep destroys every session idle for longer than the session timeout and
// returns their ids. Destroy failures are logged and do not stop the sweep.
func (p *Pool) Sweep() []string {
	now := p.opts.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	var expired []*Session
	for id, e := range p.entries {
		if e.session == nil || e.pins > 0 {
			continue
		}
		if now.Sub(e.session.LastUsedAt()) > p.opts.SessionTimeout {
			expired = append(expired, e.session)
			delete(p.entries, id)
		}
	}
	if len(expired) > 0 {
		p.broadcastLocked()
	}
	p.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}

	sortSessions(expired)
	p.opts.Logger.Infof("Cleaning up %d idle browser session(s)", len(expired))

	ids := make([]string, 0, len(expired))
	for _, s := range expired {
		_ = p.destroy(s, reasonExpired)
		ids = append(ids, s.id)
	}
	return ids
}

// RunSweeper calls Sweep every interval until ctx is done. It blocks; run it
// in its own goroutine.
func (p *Pool) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := p.Sweep(); len(ids) > 0 {
				p.opts.Logger.Debugf("Periodic sweep removed sessions: %v", ids)
			}
		}
	}
}

// Close destroys the session named id. Closing an absent id is a no-op.
// The entry is removed even when the provider fails to destroy the resource.
// A session with a running operation leaves the pool at once and is
// destroyed when the operation finishes.
func (p *Pool) Close(id string) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	deferred := false
	if ok {
		delete(p.entries, id)
		p.broadcastLocked()
		if e.session != nil && e.pins > 0 {
			e.retired = reasonClosed
			deferred = true
		}
	}
	p.mu.Unlock()

	if !ok || e.session == nil || deferred {
		return nil
	}
	if err := p.destroy(e.session, reasonClosed); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// CloseAll destroys every live session regardless of age. Individual
// failures are collected and do not stop the teardown.
func (p *Pool) CloseAll() error {
	return p.closeAll(reasonClosed)
}

func (p *Pool) closeAll(reason string) error {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.entries))
	for _, e := range p.entries {
		switch {
		case e.session == nil:
		case e.pins > 0:
			e.retired = reason
		default:
			sessions = append(sessions, e.session)
		}
	}
	p.entries = make(map[string]*entry)
	p.broadcastLocked()
	p.mu.Unlock()

	if len(sessions) == 0 {
		return nil
	}

	sortSessions(sessions)
	p.opts.Logger.Infof("Closing all %d browser session(s)", len(sessions))

	var errs []error
	for _, s := range sessions {
		if err := p.destroy(s, reason); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes every session, waits for in-flight creations and running
// operations, and releases the provider. Acquire fails with ErrPoolClosed afterwards.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	closeErr := p.closeAll(reasonShutdown)
	p.inflight.Wait()

	var releaseErr error
	if err := p.provider.Release(); err != nil {
		releaseErr = fmt.Errorf("release provider: %w", err)
		p.opts.Logger.Errorf("Failed to release browser provider: %v", err)
	}
	p.opts.Logger.Infof("Session pool shut down")
	return errors.Join(closeErr, releaseErr)
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Len returns the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.entries {
		if e.session != nil {
			n++
		}
	}
	return n
}

// List returns a snapshot of the live sessions ordered by id.
func (p *Pool) List() []SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]SessionInfo, 0, len(p.entries))
	for _, e := range p.entries {
		if e.session != nil {
			infos = append(infos, e.session.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// destroy tears down the resource of a session that has already been
// removed from the map. Only the caller that removed it may call this.
func (p *Pool) destroy(s *Session, reason string) error {
	err := p.provider.Destroy(s.resource)
	p.opts.Metrics.removed(reason)
	if err != nil {
		p.opts.Metrics.destroyFailed()
		p.opts.Logger.Warnf("Failed to destroy browser session %s (%s): %v", s.id, reason, err)
		return err
	}
	p.opts.Logger.Infof("Closed browser session: %s (%s)", s.id, reason)
	return nil
}

// oldestLocked returns the unpinned live session with the smallest
// lastUsedAt, ties broken by id. Must hold mu.
func (p *Pool) oldestLocked() *Session {
	var oldest *Session
	var oldestAt time.Time
	for _, e := range p.entries {
		if e.session == nil || e.pins > 0 {
			continue
		}
		at := e.session.LastUsedAt()
		if oldest == nil || at.Before(oldestAt) || (at.Equal(oldestAt) && e.session.id < oldest.id) {
			oldest = e.session
			oldestAt = at
		}
	}
	return oldest
}

// pendingLocked returns the ready channel of any slot still being created.
// Must hold mu.
func (p *Pool) pendingLocked() chan struct{} {
	for _, e := range p.entries {
		if e.session == nil {
			return e.ready
		}
	}
	return nil
}

// releasedLocked returns the channel closed by the next broadcastLocked.
// Must hold mu.
func (p *Pool) releasedLocked() chan struct{} {
	if p.released == nil {
		p.released = make(chan struct{})
	}
	return p.released
}

// broadcastLocked wakes every Acquire waiting for a slot. Must hold mu.
func (p *Pool) broadcastLocked() {
	if p.released != nil {
		close(p.released)
		p.released = nil
	}
}

// generateIDLocked returns a fresh id not present in the map. Must hold mu.
func (p *Pool) generateIDLocked() string {
	for {
		id := p.opts.NewID()
		if _, exists := p.entries[id]; !exists && id != "" {
			return id
		}
	}
}

// waitReady blocks until either channel fires or ctx is done. A nil
// channel never fires.
func waitReady(ctx context.Context, ready, released <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-released:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session slot: %w", ctx.Err())
	}
}

func sortSessions(sessions []*Session) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })
}
