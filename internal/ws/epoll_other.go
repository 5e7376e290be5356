//go:build !linux

package ws

import (
	"bufio"
	"io"
	"net"
	"sync"
)

// Epoll is the portable poller for platforms without epoll. Each connection
// gets a goroutine that peeks for data through a buffered reader and waits
// for the worker to finish before peeking again, so no bytes are lost and a
// connection is never read by two goroutines at once.
type Epoll struct {
	mu      sync.RWMutex
	conns   map[net.Conn]*watch
	readyCh chan net.Conn
	done    chan struct{}
	once    sync.Once
}

type watch struct {
	r      *bufio.Reader
	resume chan struct{}
}

// NewEpoll creates a fallback poller.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns:   make(map[net.Conn]*watch),
		readyCh: make(chan net.Conn, 128),
		done:    make(chan struct{}),
	}, nil
}

// Add starts watching conn.
func (e *Epoll) Add(conn net.Conn) error {
	w := &watch{
		r:      bufio.NewReader(conn),
		resume: make(chan struct{}, 1),
	}

	e.mu.Lock()
	e.conns[conn] = w
	e.mu.Unlock()

	go e.monitor(conn, w)
	return nil
}

func (e *Epoll) monitor(conn net.Conn, w *watch) {
	for {
		// A failed peek is signalled too, so the worker observes the error
		// and removes the connection.
		_, err := w.r.Peek(1)

		select {
		case e.readyCh <- conn:
		case <-e.done:
			return
		}
		if err != nil {
			return
		}

		select {
		case <-w.resume:
		case <-e.done:
			return
		}
	}
}

// Remove stops tracking conn. Its monitor exits once the socket is closed.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	w, ok := e.conns[conn]
	delete(e.conns, conn)
	e.mu.Unlock()

	if ok {
		select {
		case w.resume <- struct{}{}:
		default:
		}
	}
	return nil
}

// Wait blocks until at least one connection is ready and returns every ready
// connection queued at that point.
func (e *Epoll) Wait() ([]net.Conn, error) {
	var first net.Conn
	select {
	case first = <-e.readyCh:
	case <-e.done:
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.readyCh:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Reader returns the buffered reader the monitor peeks through, or conn
// itself once it is no longer tracked.
func (e *Epoll) Reader(conn net.Conn) io.Reader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if w, ok := e.conns[conn]; ok {
		return w.r
	}
	return conn
}

// Done lets the monitor of conn peek again.
func (e *Epoll) Done(conn net.Conn) {
	e.mu.RLock()
	w, ok := e.conns[conn]
	e.mu.RUnlock()

	if ok {
		select {
		case w.resume <- struct{}{}:
		default:
		}
	}
}

// Close stops every monitor.
func (e *Epoll) Close() error {
	e.once.Do(func() { close(e.done) })
	e.mu.Lock()
	e.conns = make(map[net.Conn]*watch)
	e.mu.Unlock()
	return nil
}

// socketFD is unused by the fallback poller.
func socketFD(net.Conn) int {
	return -1
}

func isEINTR(error) bool {
	return false
}
