// Package conn implements the Bolt connection handler (C7): handshake
// negotiation, the per-message read/dispatch loop, and response emission,
// driven by the state machine in boltstate and the per-connection state in
// session.
package conn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graphbolt/boltd/boltstate"
	"github.com/graphbolt/boltd/chunk"
	"github.com/graphbolt/boltd/connid"
	"github.com/graphbolt/boltd/convert"
	"github.com/graphbolt/boltd/events"
	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/graphengine"
	"github.com/graphbolt/boltd/message"
	"github.com/graphbolt/boltd/metrics"
	"github.com/graphbolt/boltd/packstream"
	"github.com/graphbolt/boltd/session"
)

// magicPreamble is the four bytes a Bolt client sends first, per spec.md §6.2.
var magicPreamble = []byte{0x60, 0x60, 0xB0, 0x17}

// supportedVersion is one (major, minor) pair this server can speak.
type supportedVersion struct {
	Major, Minor int
}

// supportedVersions is the server's version preference list, descending
// (spec.md §4.7): the first entry a proposal can satisfy wins.
var supportedVersions = []supportedVersion{
	{5, 4}, {5, 0}, {4, 4}, {4, 3},
}

// ServerName is reported in HELLO's SUCCESS metadata.
const ServerName = "boltd/1.0"

// DefaultIdleTimeout is the idle-read timeout applied when none is given to
// New (spec.md §4.7, §5).
const DefaultIdleTimeout = 300 * time.Second

var errGoodbye = errors.New("conn: client said goodbye")

// Connection drives one TCP connection through its Bolt lifecycle. A
// Connection is owned exclusively by the goroutine that calls Serve.
type Connection struct {
	netConn     net.Conn
	liveGraph   *graph.Graph
	engine      graphengine.Engine
	commitMu    *sync.Mutex
	idGen       *connid.Generator
	eventsSrv   *events.Server
	idleTimeout time.Duration

	sm        *boltstate.Machine
	sess      *session.Session
	converter *convert.Converter
	reader    *chunk.Reader
	writer    *chunk.Writer

	connID                           string
	userAgent                        string
	negotiatedMajor, negotiatedMinor int
}

// Options configures a Connection beyond its mandatory collaborators.
type Options struct {
	// CommitMu serializes COMMIT's apply step across every connection
	// sharing LiveGraph (spec.md §5). Required.
	CommitMu *sync.Mutex
	// IDGen produces this connection's connection_id. Required.
	IDGen *connid.Generator
	// EventsSrv, if non-nil, is notified of this connection's open/close.
	EventsSrv *events.Server
	// IdleTimeout overrides DefaultIdleTimeout when non-zero.
	IdleTimeout time.Duration
	// MaxChunkSize overrides chunk.MaxChunkSize for the outbound writer
	// when non-zero.
	MaxChunkSize int
}

// New returns a Connection ready to Serve netConn against liveGraph using
// engine to execute queries.
func New(netConn net.Conn, liveGraph *graph.Graph, engine graphengine.Engine, opts Options) *Connection {
	idle := opts.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	return &Connection{
		netConn:     netConn,
		liveGraph:   liveGraph,
		engine:      engine,
		commitMu:    opts.CommitMu,
		idGen:       opts.IDGen,
		eventsSrv:   opts.EventsSrv,
		idleTimeout: idle,
		sm:          boltstate.New(),
		sess:        session.New(liveGraph),
		converter:   convert.New(),
		reader:      chunk.NewReader(),
		writer:      chunk.NewWriter(opts.MaxChunkSize),
	}
}

// ConnectionID returns the identifier assigned when Serve starts, or ""
// before Serve has been called.
func (c *Connection) ConnectionID() string {
	return c.connID
}

// Serve runs the connection to completion: handshake, then the read/dispatch
// loop, until the peer disconnects, a fatal error occurs, or ctx is
// canceled. It always closes netConn before returning.
func (c *Connection) Serve(ctx context.Context) {
	connID, err := c.idGen.Next()
	if err != nil {
		connID = "unknown"
	}
	c.connID = connID

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.netConn.Close()
		case <-done:
		}
	}()

	defer c.netConn.Close()
	defer c.sm.MarkDefunct()

	if err := c.handshake(); err != nil {
		return
	}

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()
	if c.eventsSrv != nil {
		c.eventsSrv.ConnectionOpened(c.connID, c.netConn.RemoteAddr().String())
		defer c.eventsSrv.ConnectionClosed(c.connID)
	}

	c.readLoop(ctx)
}

// handshake performs the magic-preamble check and version negotiation
// (spec.md §4.7, §6.2). On success it transitions to Authentication.
func (c *Connection) handshake() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(c.netConn, magic); err != nil {
		return err
	}
	if !bytes.Equal(magic, magicPreamble) {
		return fmt.Errorf("conn: bad magic preamble")
	}

	proposals := make([]byte, 16)
	if _, err := io.ReadFull(c.netConn, proposals); err != nil {
		return err
	}

	major, minor, ok := negotiateVersion(proposals)
	if !ok {
		c.netConn.Write([]byte{0x00, 0x00, 0x00, 0x00})
		return fmt.Errorf("conn: no supported protocol version")
	}

	if _, err := c.netConn.Write([]byte{0x00, 0x00, byte(minor), byte(major)}); err != nil {
		return err
	}
	c.negotiatedMajor, c.negotiatedMinor = major, minor
	return c.sm.TransitionTo(boltstate.Authentication)
}

// negotiateVersion walks each of the four proposals in order and returns the
// first (major, minor) pair from supportedVersions it can satisfy.
func negotiateVersion(proposals []byte) (major, minor int, ok bool) {
	for i := 0; i < 4; i++ {
		word := proposals[i*4 : i*4+4]
		rng, propMinor, propMajor := int(word[1]), int(word[2]), int(word[3])
		for _, sv := range supportedVersions {
			if sv.Major != propMajor {
				continue
			}
			if rng == 0 && sv.Minor == propMinor {
				return sv.Major, sv.Minor, true
			}
			if rng > 0 && propMinor-rng <= sv.Minor && sv.Minor <= propMinor {
				return sv.Major, sv.Minor, true
			}
		}
	}
	return 0, 0, false
}

// readLoop feeds bytes from the socket to the chunk reader and dispatches
// each complete message, until the connection ends.
func (c *Connection) readLoop(ctx context.Context) {
	buf := make([]byte, 64*1024)
	for {
		if ctx.Err() != nil {
			return
		}
		c.netConn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		n, err := c.netConn.Read(buf)
		if err != nil {
			return
		}

		for _, raw := range c.reader.Feed(buf[:n]) {
			if c.dispatch(raw) == errGoodbye {
				return
			}
			if c.sm.IsDefunct() {
				return
			}
		}
	}
}

// dispatch decodes one framed message and routes it to its handler.
func (c *Connection) dispatch(raw []byte) error {
	val, err := packstream.Decode(raw)
	if err != nil {
		c.fail("Neo.ClientError.Request.Invalid", err.Error())
		return nil
	}
	msg, ok := val.(*packstream.Struct)
	if !ok {
		c.fail("Neo.ClientError.Request.Invalid", "top-level message must be a struct")
		return nil
	}

	metrics.MessagesTotal.With(prometheus.Labels{"tag": message.Name(msg.Tag)}).Inc()

	switch msg.Tag {
	case message.TagGoodbye:
		c.sm.MarkDefunct()
		return errGoodbye
	case message.TagReset:
		c.handleReset()
		return nil
	}

	if c.sm.State() == boltstate.Failed {
		c.send(message.Ignored())
		return nil
	}

	switch msg.Tag {
	case message.TagHello, message.TagLogon:
		c.handleHello(msg)
	case message.TagRun:
		c.handleRun(msg)
	case message.TagPull:
		c.handlePullOrDiscard(msg, true)
	case message.TagDiscard:
		c.handlePullOrDiscard(msg, false)
	case message.TagBegin:
		c.handleBegin(msg)
	case message.TagCommit:
		c.handleCommit()
	case message.TagRollback:
		c.handleRollback()
	case message.TagRoute:
		c.handleRoute(msg)
	case message.TagLogoff:
		c.sendSuccess(nil)
	case message.TagTelemetry:
		c.sendSuccess(nil)
	default:
		c.fail("Neo.ClientError.Request.Invalid", fmt.Sprintf("unrecognized message tag 0x%02X", msg.Tag))
	}
	return nil
}

func (c *Connection) handleHello(msg *packstream.Struct) {
	if c.sm.State() != boltstate.Authentication {
		c.send(message.Ignored())
		return
	}
	extra := mapField(msg, 0)
	if ua, ok := extra["user_agent"].(string); ok {
		c.userAgent = ua
	}

	meta := map[string]packstream.Value{
		"server":        ServerName,
		"connection_id": c.connID,
	}
	if c.negotiatedMajor >= 5 {
		meta["hints"] = map[string]packstream.Value{}
	}
	c.sendSuccess(meta)
	c.sm.TransitionTo(boltstate.Ready)
}

func (c *Connection) handleReset() {
	c.sess.Reset()
	c.sm.Reset()
	c.sendSuccess(nil)
}

func (c *Connection) handleRun(msg *packstream.Struct) {
	if c.sm.State() != boltstate.Ready && c.sm.State() != boltstate.TxReady {
		c.fail("Neo.ClientError.Request.Invalid", "RUN not allowed in current state")
		return
	}

	query, _ := stringField(msg, 0)
	params := mapField(msg, 1)

	working := c.sess.GetWorkingGraph()
	start := time.Now()
	engineResult, err := c.engine.Run(context.Background(), query, params, working)
	metrics.QueryLatencyHistogram.Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail("Neo.ClientError.Statement.SyntaxError", err.Error())
		return
	}

	sessResult, err := c.converter.ToResult(engineResult)
	if err != nil {
		c.fail("Neo.ClientError.Statement.SyntaxError", err.Error())
		return
	}

	qid := c.sess.SetResult(sessResult)
	meta := map[string]packstream.Value{
		"fields":  stringsToValues(sessResult.Fields),
		"t_first": int64(0),
	}
	if c.negotiatedMajor >= 4 {
		meta["qid"] = qid
	}

	next := boltstate.Streaming
	if c.sess.InTransaction() {
		next = boltstate.TxStreaming
	}
	c.sm.TransitionTo(next)
	c.sendSuccess(meta)
}

func (c *Connection) handlePullOrDiscard(msg *packstream.Struct, emitRecords bool) {
	if !c.sm.IsStreaming() {
		c.fail("Neo.ClientError.Request.Invalid", fmt.Sprintf("%s not allowed in current state", message.Name(msg.Tag)))
		return
	}

	extra := mapField(msg, 0)
	n := int64(-1)
	if raw, ok := extra["n"]; ok {
		if v, ok := toInt64(raw); ok {
			n = v
		}
	}

	result := c.sess.CurrentResult()
	meta := map[string]packstream.Value{"has_more": false}
	if result != nil {
		if emitRecords {
			for _, row := range result.Pull(n) {
				c.send(message.Record(row))
			}
		} else {
			result.Discard(n)
		}
		meta["has_more"] = result.HasMore()
	}

	hasMore, _ := meta["has_more"].(bool)
	if !hasMore {
		if emitRecords {
			meta["type"] = "r"
			meta["stats"] = map[string]packstream.Value{}
		}
		c.sess.ClearResult()
	}

	if hasMore {
		c.sm.TransitionTo(c.sm.State())
	} else {
		next := boltstate.Ready
		if c.sess.InTransaction() {
			next = boltstate.TxReady
		}
		c.sm.TransitionTo(next)
	}
	c.sendSuccess(meta)
}

func (c *Connection) handleBegin(msg *packstream.Struct) {
	if c.sm.State() != boltstate.Ready {
		c.fail("Neo.ClientError.Request.Invalid", "BEGIN not allowed in current state")
		return
	}
	if err := c.sess.BeginTransaction(); err != nil {
		c.fail("Neo.ClientError.Transaction.TransactionStartFailed", err.Error())
		return
	}
	c.sm.TransitionTo(boltstate.TxReady)
	c.sendSuccess(nil)
}

func (c *Connection) handleCommit() {
	if c.sm.State() != boltstate.TxReady {
		c.fail("Neo.ClientError.Request.Invalid", "COMMIT not allowed in current state")
		return
	}
	c.commitMu.Lock()
	err := c.sess.CommitTransaction()
	c.commitMu.Unlock()
	if err != nil {
		c.fail("Neo.ClientError.Transaction.TransactionCommitFailed", err.Error())
		return
	}
	c.sendSuccess(nil)
	c.sm.TransitionTo(boltstate.Ready)
}

func (c *Connection) handleRollback() {
	if c.sm.State() != boltstate.TxReady {
		c.fail("Neo.ClientError.Request.Invalid", "ROLLBACK not allowed in current state")
		return
	}
	if err := c.sess.RollbackTransaction(); err != nil {
		c.fail("Neo.ClientError.Transaction.TransactionRollbackFailed", err.Error())
		return
	}
	c.sm.TransitionTo(boltstate.Ready)
	c.sendSuccess(nil)
}

// handleRoute always advertises localhost:7687 as the single server for
// every role, regardless of the address this listener is actually bound to
// (spec.md §9, carried forward verbatim).
func (c *Connection) handleRoute(msg *packstream.Struct) {
	db := "neo4j"
	if s, ok := stringField(msg, 2); ok && s != "" {
		db = s
	}
	addr := []packstream.Value{"localhost:7687"}
	rt := map[string]packstream.Value{
		"ttl": int64(300),
		"db":  db,
		"servers": []packstream.Value{
			map[string]packstream.Value{"addresses": addr, "role": "WRITE"},
			map[string]packstream.Value{"addresses": addr, "role": "READ"},
			map[string]packstream.Value{"addresses": addr, "role": "ROUTE"},
		},
	}
	c.sendSuccess(map[string]packstream.Value{"rt": rt})
}

// fail transitions to Failed and emits a FAILURE with code/msg. The state is
// left unchanged where the transition table has no edge to Failed (as from
// Authentication).
func (c *Connection) fail(code, msg string) {
	c.sm.TransitionTo(boltstate.Failed)
	c.send(message.Failure(code, msg))
	metrics.FailuresTotal.With(prometheus.Labels{"code": code}).Inc()
}

func (c *Connection) sendSuccess(meta map[string]packstream.Value) {
	c.send(message.Success(meta))
}

func (c *Connection) send(s *packstream.Struct) error {
	b, err := packstream.Encode(s)
	if err != nil {
		return err
	}
	framed := c.writer.Write(b)
	metrics.ChunkBytesHistogram.Observe(float64(len(framed)))
	_, err = c.netConn.Write(framed)
	return err
}

func mapField(msg *packstream.Struct, idx int) map[string]packstream.Value {
	if idx < len(msg.Fields) {
		if m, ok := msg.Fields[idx].(map[string]packstream.Value); ok {
			return m
		}
	}
	return map[string]packstream.Value{}
}

func stringField(msg *packstream.Struct, idx int) (string, bool) {
	if idx < len(msg.Fields) {
		s, ok := msg.Fields[idx].(string)
		return s, ok
	}
	return "", false
}

func toInt64(v packstream.Value) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	default:
		return 0, false
	}
}

func stringsToValues(ss []string) []packstream.Value {
	out := make([]packstream.Value, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
