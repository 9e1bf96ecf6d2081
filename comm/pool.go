package comm

import (
	"io"
	"sync"
	"time"
)

// Pool is a communication pool which holds one or more connections to a device
// that will be closed if they are not in use, and re-opened as needed.
// It is concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	maxSize int                     // maximum number of connections, == cap(conns)
	onLease int                     // number of connections given out, <= cap(conns)
	timeout time.Duration           // time after the pool goes fully idle to free all connections
	conns   chan io.ReadWriteCloser // the circular buffer of idle connections
	slots   chan struct{}           // wakes parked Gets when a leased connection is destroyed
	timer   *time.Timer             // runs reclaim after the idle timeout elapses
	maker   CreationFunc

	mu sync.Mutex
}

// NewPool creates a new Pool holding up to maxSize connections which are
// reclaimed after the pool has been fully idle for timeout
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		slots:   make(chan struct{}, maxSize),
		maker:   maker,
	}
	p.timer = time.AfterFunc(timeout, p.reclaim)
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get retrieves a connection from the pool, dialing a new one if none are
// idle and the pool is not yet at capacity, or blocking until one is
// returned otherwise.  The caller has exclusive use of the connection until
// it is handed back with Put, or discarded with Destroy if it has gone bad
// (e.g., all calls error).
//
// If the error from Get is not nil, the connection must not be returned
// to the pool.
func (p *Pool) Get() (io.ReadWriter, error) {
	for {
		p.mu.Lock()
		p.timer.Stop()
		// idle connection available, hand it out
		select {
		case ret := <-p.conns:
			p.onLease++
			p.mu.Unlock()
			return ret, nil
		default:
		}
		// below capacity, dial a fresh one.  The lease is counted before
		// dialing so a concurrent Get cannot overshoot capacity, and is
		// surrendered again if the dial hands back garbage.
		if p.onLease < p.maxSize {
			p.onLease++
			p.mu.Unlock()
			c, err := p.maker()
			if err != nil {
				p.dropLease()
			}
			return c, err
		}
		p.mu.Unlock()
		// all connections exist and are given out.  Park without the lock
		// held so Put and Destroy can still make progress, then either take
		// the returned connection or loop to dial into the freed capacity.
		select {
		case ret := <-p.conns:
			p.mu.Lock()
			p.timer.Stop()
			p.onLease++
			p.mu.Unlock()
			return ret, nil
		case <-p.slots:
		}
	}
}

// Put restores a connection to the pool.  It may be reused, or will be
// freed after all connections are returned and the timeout has elapsed.
// Junk connections should be Destroy()'d, not Put back.
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := (rw).(io.ReadWriteCloser)
	p.conns <- rwc
	p.mu.Lock()
	p.onLease--
	if p.onLease == 0 && len(p.conns) > 0 {
		p.timer.Reset(p.timeout)
	}
	p.mu.Unlock()
}

// Destroy immediately closes and forgets a connection.  Use instead of Put
// when the connection has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := (rw).(io.ReadWriteCloser)
	rwc.Close()
	p.dropLease()
}

// dropLease surrenders one leased slot and wakes a parked Get, if any,
// so it can dial a replacement.
func (p *Pool) dropLease() {
	p.mu.Lock()
	p.onLease--
	p.mu.Unlock()
	select {
	case p.slots <- struct{}{}:
	default:
	}
}

// ReturnWithError Puts the connection back if err is nil, or Destroys it
// otherwise.  Saves a branch at every call site.
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if err == nil {
		p.Put(rw)
	} else {
		p.Destroy(rw)
	}
}

// Size returns the number of connections in the pool or given out from it
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns) + p.onLease
}

// Active returns the number of connections currently given out
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// reclaim closes every idle connection.  It runs from the idle timer,
// which Get cancels and Put re-arms.
func (p *Pool) reclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.conns) > 0 {
		closer := <-p.conns
		closer.Close()
	}
}
