package conn

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/graphbolt/boltd/boltstate"
	"github.com/graphbolt/boltd/chunk"
	"github.com/graphbolt/boltd/connid"
	"github.com/graphbolt/boltd/graph"
	"github.com/graphbolt/boltd/graphengine"
	"github.com/graphbolt/boltd/message"
	"github.com/graphbolt/boltd/packstream"
)

func TestNegotiateVersionPrefers44(t *testing.T) {
	proposals := make([]byte, 16)
	proposals[2] = 4 // minor
	proposals[3] = 4 // major
	major, minor, ok := negotiateVersion(proposals)
	if !ok || major != 4 || minor != 4 {
		t.Fatalf("got major=%d minor=%d ok=%v", major, minor, ok)
	}
}

func TestNegotiateVersionNoMatch(t *testing.T) {
	proposals := make([]byte, 16)
	proposals[3] = 9 // unsupported major
	_, _, ok := negotiateVersion(proposals)
	if ok {
		t.Fatal("expected no match")
	}
}

// testClient is a minimal Bolt client used to drive end-to-end scenarios
// against a Connection over an in-memory pipe.
type testClient struct {
	conn    net.Conn
	reader  *chunk.Reader
	pending [][]byte
}

func newTestClient(c net.Conn) *testClient {
	return &testClient{conn: c, reader: chunk.NewReader()}
}

func (tc *testClient) handshake(t *testing.T) {
	t.Helper()
	if _, err := tc.conn.Write(magicPreamble); err != nil {
		t.Fatal(err)
	}
	proposal := make([]byte, 16)
	proposal[2] = 4
	proposal[3] = 4
	if _, err := tc.conn.Write(proposal); err != nil {
		t.Fatal(err)
	}
	reply := make([]byte, 4)
	if _, err := readFull(tc.conn, reply); err != nil {
		t.Fatal(err)
	}
	if reply[2] != 4 || reply[3] != 4 {
		t.Fatalf("expected v4.4, got %v", reply)
	}
}

func (tc *testClient) sendMessage(t *testing.T, s *packstream.Struct) {
	t.Helper()
	b, err := packstream.Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	w := chunk.NewWriter(0)
	if _, err := tc.conn.Write(w.Write(b)); err != nil {
		t.Fatal(err)
	}
}

func (tc *testClient) recvMessage(t *testing.T) *packstream.Struct {
	t.Helper()
	for len(tc.pending) == 0 {
		b := make([]byte, 4096)
		n, err := tc.conn.Read(b)
		if err != nil {
			t.Fatal(err)
		}
		tc.pending = append(tc.pending, tc.reader.Feed(b[:n])...)
	}
	raw := tc.pending[0]
	tc.pending = tc.pending[1:]
	v, err := packstream.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := v.(*packstream.Struct)
	if !ok {
		t.Fatalf("expected struct, got %#v", v)
	}
	return s
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func TestEndToEndHelloRunPull(t *testing.T) {
	g := graph.New()
	g.AddNode("alice", []string{"Person"}, map[string]packstream.Value{"name": "Alice"})
	g.AddNode("bob", []string{"Person"}, map[string]packstream.Value{"name": "Bob"})
	g.AddNode("carol", []string{"Person"}, map[string]packstream.Value{"name": "Carol"})

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	c := New(serverConn, g, graphengine.New(), Options{
		CommitMu: &sync.Mutex{},
		IDGen:    connid.New(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx)

	tc := newTestClient(clientConn)
	tc.handshake(t)

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagHello, Fields: []packstream.Value{
		map[string]packstream.Value{"user_agent": "test/1.0"},
	}})
	hello := tc.recvMessage(t)
	if hello.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS, got tag 0x%02X", hello.Tag)
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"MATCH (n:Person) RETURN n.name",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	runResp := tc.recvMessage(t)
	if runResp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for RUN, got tag 0x%02X", runResp.Tag)
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagPull, Fields: []packstream.Value{
		map[string]packstream.Value{"n": int64(-1)},
	}})

	var names []string
	for i := 0; i < 3; i++ {
		rec := tc.recvMessage(t)
		if rec.Tag != message.TagRecord {
			t.Fatalf("expected RECORD, got tag 0x%02X", rec.Tag)
		}
		row := rec.Fields[0].([]packstream.Value)
		names = append(names, row[0].(string))
	}
	final := tc.recvMessage(t)
	if final.Tag != message.TagSuccess {
		t.Fatalf("expected final SUCCESS, got tag 0x%02X", final.Tag)
	}
	meta := final.Fields[0].(map[string]packstream.Value)
	if meta["has_more"] != false {
		t.Errorf("expected has_more=false, got %v", meta["has_more"])
	}

	want := map[string]bool{"Alice": true, "Bob": true, "Carol": true}
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected name %q", n)
		}
	}
}

// newTestConnection wires a Connection over an in-memory pipe and returns the
// client end already past HELLO, ready for per-scenario messages.
func newTestConnection(t *testing.T, g *graph.Graph) (*testClient, *Connection) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	c := New(serverConn, g, graphengine.New(), Options{
		CommitMu: &sync.Mutex{},
		IDGen:    connid.New(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Serve(ctx)

	tc := newTestClient(clientConn)
	tc.handshake(t)
	tc.sendMessage(t, &packstream.Struct{Tag: message.TagHello, Fields: []packstream.Value{
		map[string]packstream.Value{"user_agent": "test/1.0"},
	}})
	if hello := tc.recvMessage(t); hello.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for HELLO, got tag 0x%02X", hello.Tag)
	}
	return tc, c
}

// TestEndToEndPartialPullThenDiscard covers spec.md scenario 4: a client
// that only pulls part of a result, then discards the rest.
func TestEndToEndPartialPullThenDiscard(t *testing.T) {
	g := graph.New()
	for _, name := range []string{"Alice", "Bob", "Carol", "Dave", "Eve"} {
		g.AddNode(name, []string{"Person"}, map[string]packstream.Value{"name": name})
	}

	tc, c := newTestConnection(t, g)

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"MATCH (n:Person) RETURN n.name",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for RUN, got tag 0x%02X", resp.Tag)
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagPull, Fields: []packstream.Value{
		map[string]packstream.Value{"n": int64(2)},
	}})
	for i := 0; i < 2; i++ {
		if rec := tc.recvMessage(t); rec.Tag != message.TagRecord {
			t.Fatalf("expected RECORD, got tag 0x%02X", rec.Tag)
		}
	}
	partial := tc.recvMessage(t)
	if partial.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS after partial PULL, got tag 0x%02X", partial.Tag)
	}
	meta := partial.Fields[0].(map[string]packstream.Value)
	if meta["has_more"] != true {
		t.Fatalf("expected has_more=true after pulling 2 of 5, got %v", meta["has_more"])
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagDiscard, Fields: []packstream.Value{
		map[string]packstream.Value{"n": int64(-1)},
	}})
	final := tc.recvMessage(t)
	if final.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for DISCARD, got tag 0x%02X", final.Tag)
	}
	meta = final.Fields[0].(map[string]packstream.Value)
	if meta["has_more"] != false {
		t.Errorf("expected has_more=false after discarding the rest, got %v", meta["has_more"])
	}
	if c.sm.State() != boltstate.Ready {
		t.Errorf("expected READY after the result is exhausted, got %s", c.sm.State())
	}
}

// TestEndToEndFailureThenReset covers spec.md scenario 5: a RUN that fails
// moves the connection to FAILED, where further RUNs are IGNORED until a
// RESET brings it back to READY.
func TestEndToEndFailureThenReset(t *testing.T) {
	g := graph.New()
	g.AddNode("alice", []string{"Person"}, map[string]packstream.Value{"name": "Alice"})

	tc, c := newTestConnection(t, g)

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"this is not a recognized query",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagFailure {
		t.Fatalf("expected FAILURE for an unsupported query, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.Failed {
		t.Fatalf("expected FAILED after a bad RUN, got %s", c.sm.State())
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"MATCH (n:Person) RETURN n.name",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagIgnored {
		t.Fatalf("expected IGNORED while FAILED, got tag 0x%02X", resp.Tag)
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagReset, Fields: nil})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for RESET, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.Ready {
		t.Fatalf("expected READY after RESET, got %s", c.sm.State())
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"MATCH (n:Person) RETURN n.name",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for RUN once recovered, got tag 0x%02X", resp.Tag)
	}
}

// TestEndToEndTransactionRollback covers spec.md scenario 6: a write inside
// an explicit transaction is invisible outside it once rolled back.
func TestEndToEndTransactionRollback(t *testing.T) {
	g := graph.New()

	tc, c := newTestConnection(t, g)

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagBegin, Fields: []packstream.Value{
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for BEGIN, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.TxReady {
		t.Fatalf("expected TX_READY after BEGIN, got %s", c.sm.State())
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRun, Fields: []packstream.Value{
		"CREATE (n:Person {key: 'eve', name: 'Eve'})",
		map[string]packstream.Value{},
		map[string]packstream.Value{},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for CREATE, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.TxStreaming {
		t.Fatalf("expected TX_STREAMING after a RUN in a transaction, got %s", c.sm.State())
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagPull, Fields: []packstream.Value{
		map[string]packstream.Value{"n": int64(-1)},
	}})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for PULL, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.TxReady {
		t.Fatalf("expected TX_READY once the CREATE result is drained, got %s", c.sm.State())
	}

	if g.NodeCount() != 0 {
		t.Fatalf("expected the live graph to be unaffected before ROLLBACK, got %d nodes", g.NodeCount())
	}

	tc.sendMessage(t, &packstream.Struct{Tag: message.TagRollback, Fields: nil})
	if resp := tc.recvMessage(t); resp.Tag != message.TagSuccess {
		t.Fatalf("expected SUCCESS for ROLLBACK, got tag 0x%02X", resp.Tag)
	}
	if c.sm.State() != boltstate.Ready {
		t.Fatalf("expected READY after ROLLBACK, got %s", c.sm.State())
	}

	if g.NodeCount() != 0 {
		t.Errorf("expected the live graph to still have no nodes after ROLLBACK, got %d", g.NodeCount())
	}
	if _, ok := g.Node("eve"); ok {
		t.Error("expected \"eve\" to not exist on the live graph after ROLLBACK")
	}
}
