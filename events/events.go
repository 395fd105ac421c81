// Package events implements an optional unix-domain-socket side channel
// that broadcasts Bolt connection open/close events in JSONL form to any
// attached client. Purely observational: nothing in the protocol critical
// path depends on whether a client is attached.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// ConnEvent is the kind of connection lifecycle event that occurred.
type ConnEvent int

const (
	// Opened is sent when a Bolt connection is accepted.
	Opened = ConnEvent(iota)
	// Closed is sent when a Bolt connection is torn down.
	Closed
)

func (e ConnEvent) String() string {
	switch e {
	case Opened:
		return "Opened"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Record is the data sent down the socket in JSONL form to attached
// clients. ConnectionID and Timestamp are always set.
type Record struct {
	Event        ConnEvent
	Timestamp    time.Time
	ConnectionID string
	RemoteAddr   string `json:",omitempty"`
}

// recentBacklogSize bounds how many past records a newly attached client is
// replayed. Unlike tcp-info's eventsocket (attached for a process's whole
// lifetime by a co-located collector), boltd's event feed is an operator
// tool someone attaches to transiently to see what a long-running server is
// doing right now — without a backlog they'd see nothing until the next
// connection happens to open or close.
const recentBacklogSize = 20

// Server serves connection events over a Unix domain socket. Construct with
// New; the zero value is not usable.
type Server struct {
	eventC       chan *Record
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mutex        sync.Mutex
	servingWG    sync.WaitGroup
	recent       []*Record
}

// New returns a Server that will serve clients on the given Unix domain
// socket path once Listen and Serve are called.
func New(filename string) *Server {
	return &Server{
		filename: filename,
		eventC:   make(chan *Record, 100),
		clients:  make(map[net.Conn]struct{}),
	}
}

// addClient registers c and replays the recent backlog to it, so it doesn't
// have to wait for the next live event to see what's going on.
func (s *Server) addClient(c net.Conn) {
	s.mutex.Lock()
	backlog := append([]*Record(nil), s.recent...)
	s.clients[c] = struct{}{}
	s.mutex.Unlock()

	for _, rec := range backlog {
		b, err := json.Marshal(*rec)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintln(c, string(b)); err != nil {
			return
		}
	}
}

// recordRecent appends rec to the replay backlog, trimming it to
// recentBacklogSize.
func (s *Server) recordRecent(rec *Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recent = append(s.recent, rec)
	if len(s.recent) > recentBacklogSize {
		s.recent = s.recent[len(s.recent)-recentBacklogSize:]
	}
}

func (s *Server) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
}

func (s *Server) sendToAllListeners(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for c := range s.clients {
		if _, err := fmt.Fprintln(c, data); err != nil {
			log.Println("events: write to client", c, "failed:", err, "- removing it")
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *Server) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		rec := <-s.eventC
		if rec == nil {
			continue
		}
		s.recordRecent(rec)
		b, err := json.Marshal(*rec)
		if err != nil {
			log.Printf("events: bad record %v: %v\n", rec, err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen binds the Unix domain socket. Call Serve afterward to start
// accepting clients.
func (s *Server) Listen() error {
	s.servingWG.Add(1)
	var err error
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve accepts event-feed clients until ctx is canceled. Expected to run
// in its own goroutine after Listen.
func (s *Server) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1)
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		close(s.eventC)
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			break
		}
		s.addClient(conn)
	}
	return err
}

// ConnectionOpened records that a Bolt connection was accepted.
func (s *Server) ConnectionOpened(connectionID, remoteAddr string) {
	s.eventC <- &Record{Event: Opened, Timestamp: time.Now(), ConnectionID: connectionID, RemoteAddr: remoteAddr}
}

// ConnectionClosed records that a Bolt connection was torn down.
func (s *Server) ConnectionClosed(connectionID string) {
	s.eventC <- &Record{Event: Closed, Timestamp: time.Now(), ConnectionID: connectionID}
}
