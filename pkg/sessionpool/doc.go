// Package sessionpool manages a bounded pool of long-lived browser sessions.
//
// An agent issues discrete action requests over time and keeps continuity
// between them through an opaque session id. The pool owns the binding from
// id to a live resource and arbitrates access to it; the resource itself and
// its page primitives come from a ResourceProvider.
//
// # Session Lifecycle
//
//  1. Acquire: returns the session for an id, or creates one (evicting the
//     least recently used idle session when MaxSessions is reached), and
//     touches it
//  2. Use: Do pins the session, runs one page operation and touches it again
//  3. Close: Close, CloseAll or Shutdown destroy the resource
//  4. Timeout: Sweep destroys sessions idle longer than SessionTimeout. It
//     runs after every Acquire resolves its session and can be driven by
//     RunSweeper.
//
// # Concurrency
//
// All map mutations are serialized by a single mutex. Provider calls run
// outside it: Acquire reserves a slot with a pending entry, creates the
// resource unlocked, then finalizes the slot. A session closed or shut down
// during that window has its new resource destroyed and the caller gets an
// error instead of an unmanaged session.
//
// A session pinned by Do is skipped by eviction and Sweep. When every slot
// is pinned, Acquire waits for a pin to drop. Closing a pinned session removes
// it from the pool at once and destroys the resource when the operation
// returns. The pool does not serialize two operations on the same id;
// callers do that per session.
//
// # Domain Guard
//
// Navigation targets are checked against AllowedDomains before reaching the
// provider. Plain entries match by containment in the URL host, so
// "example.com" admits subdomains and any host containing that string.
//
// # Example Usage
//
//	pool, err := sessionpool.New(provider, sessionpool.Options{MaxSessions: 5})
//	s, err := pool.Do(ctx, "", sessionpool.Operation{
//	    Name: "navigate",
//	    Run: func(ctx context.Context, s *sessionpool.Session) error {
//	        return s.Driver().Navigate(ctx, "https://example.com", "load")
//	    },
//	})
//	defer pool.Shutdown()
package sessionpool
