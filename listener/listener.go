// Package listener implements the Bolt TCP listener (C8): the accept loop,
// per-connection goroutine spawn, a tracked connection set, and graceful
// shutdown. Modeled directly on eventsocket.Server's
// addClient/removeClient/WaitGroup shape, retargeted from a unix-domain
// event socket to the primary Bolt TCP listener.
package listener

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/graphbolt/boltd/conn"
	"github.com/graphbolt/boltd/connid"
	"github.com/graphbolt/boltd/events"
	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/graphengine"
)

// Options configures a Listener beyond its mandatory graph and engine.
type Options struct {
	// EventsSrv, if non-nil, is notified of every connection open/close.
	EventsSrv *events.Server
	// IdleTimeout is forwarded to every spawned Connection.
	IdleTimeout time.Duration
}

// Listener accepts Bolt connections and drives one conn.Connection per
// accepted socket. The graph handle and commit lock are shared by every
// connection it spawns (spec.md §5).
type Listener struct {
	liveGraph *graph.Graph
	engine    graphengine.Engine
	opts      Options

	commitMu sync.Mutex
	idGen    *connid.Generator

	netListener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New returns a Listener ready to Listen and Serve.
func New(liveGraph *graph.Graph, engine graphengine.Engine, opts Options) *Listener {
	return &Listener{
		liveGraph: liveGraph,
		engine:    engine,
		opts:      opts,
		idGen:     connid.New(),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Listen binds addr ("host:port"). Call Serve afterward to start accepting.
func (l *Listener) Listen(addr string) error {
	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.netListener = nl
	return nil
}

// Addr returns the bound address. Valid only after a successful Listen.
func (l *Listener) Addr() net.Addr {
	return l.netListener.Addr()
}

// ConnectionCount reports how many connections are currently tracked.
func (l *Listener) ConnectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Serve accepts connections until ctx is canceled, spawning one goroutine
// per connection. It blocks until every in-flight connection has drained,
// then returns.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.netListener.Close()
	}()

	for {
		c, err := l.netListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Println("listener: accept failed:", err)
			break
		}
		l.addConn(c)
		l.wg.Add(1)
		go l.serveConn(ctx, c)
	}

	l.wg.Wait()
	return nil
}

func (l *Listener) serveConn(ctx context.Context, c net.Conn) {
	defer l.wg.Done()
	defer l.removeConn(c)

	handler := conn.New(c, l.liveGraph, l.engine, conn.Options{
		CommitMu:    &l.commitMu,
		IDGen:       l.idGen,
		EventsSrv:   l.opts.EventsSrv,
		IdleTimeout: l.opts.IdleTimeout,
	})
	handler.Serve(ctx)
}

func (l *Listener) addConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns[c] = struct{}{}
}

func (l *Listener) removeConn(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, c)
}
