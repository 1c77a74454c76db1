package dartdap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/proto"
)

// fakeServer speaks just enough LDAP on one end of a net.Pipe to exercise
// the connection manager: it echoes a success BindResponse for any
// BindRequest and a success response matching the request's own
// application tag (+1) for everything else it doesn't have a specific
// canned reply for.
type fakeServer struct {
	conn    net.Conn
	framer  *ber.Framer
	entries []*proto.Entry // queued entries to emit for the next SearchRequest
	// searchResult overrides the result code of the SearchResultDone that
	// follows entries; the zero value is ResultSuccess.
	searchResult proto.Result
	// clientMayClose makes a write that fails because the client closed its
	// end of the pipe end the reply quietly instead of failing the test.
	clientMayClose bool
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, framer: ber.NewFramer()}
}

func (s *fakeServer) serveOne(t *testing.T) (id int64, tag proto.Application) {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return 0, 0
		}
		packets, ferr := s.framer.Feed(buf[:n])
		if ferr != nil {
			t.Fatalf("fakeServer: framing error: %v", ferr)
		}
		for _, p := range packets {
			id, op, _, err := proto.DecodeEnvelope(p)
			if err != nil {
				t.Fatalf("fakeServer: decode envelope: %v", err)
			}
			tag := proto.Application(op.Tag)
			s.respond(t, id, tag, op)
			return id, tag
		}
	}
}

func (s *fakeServer) respond(t *testing.T, id int64, tag proto.Application, op *ber.Packet) {
	switch tag {
	case proto.ApplicationBindRequest:
		s.write(t, (&successEnvelope{tag: proto.ApplicationBindResponse}).encode(id))
	case proto.ApplicationSearchRequest:
		for _, e := range s.entries {
			entryOp := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, proto.ApplicationSearchResultEntry.Tag(), nil)
			entryOp.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, e.DN))
			attrs := ber.NewSequence()
			for _, a := range e.Attributes {
				attr := ber.NewSequence()
				attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a.Name))
				set := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil)
				for _, v := range a.Values {
					set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v))
				}
				attr.AppendChild(set)
				attrs.AppendChild(attr)
			}
			entryOp.AppendChild(attrs)
			s.write(t, proto.EncodeEnvelope(id, entryOp))
		}
		s.write(t, (&successEnvelope{tag: proto.ApplicationSearchResultDone, code: s.searchResult}).encode(id))
	case proto.ApplicationAbandonRequest:
		// No response expected.
	default:
		s.write(t, (&successEnvelope{tag: tag + 1}).encode(id))
	}
}

func (s *fakeServer) write(t *testing.T, env *ber.Packet) {
	if _, err := s.conn.Write(env.Bytes()); err != nil {
		if s.clientMayClose && errors.Is(err, io.ErrClosedPipe) {
			return
		}
		t.Fatalf("fakeServer: write: %v", err)
	}
}

type successEnvelope struct {
	tag  proto.Application
	code proto.Result // zero value is ResultSuccess
}

func (se *successEnvelope) encode(id int64) *ber.Packet {
	op := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, se.tag.Tag(), nil)
	op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(se.code)))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ""))
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ""))
	return proto.EncodeEnvelope(id, op)
}

func dialPipe(t *testing.T) (*Conn, *fakeServer) {
	clientConn, serverConn := net.Pipe()
	dc := newDialConfig()
	c := newConn(clientConn, false, dc)
	t.Cleanup(func() { c.Close() })
	return c, newFakeServer(serverConn)
}

func TestBindRoundTrip(t *testing.T) {
	t.Parallel()
	c, srv := dialPipe(t)
	go srv.serveOne(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Bind(ctx, "cn=admin,dc=example,dc=org", "secret"); err != nil {
		t.Fatalf("bind: %v", err)
	}
}

func TestSearchRoundTrip(t *testing.T) {
	t.Parallel()
	c, srv := dialPipe(t)
	srv.entries = []*proto.Entry{
		{DN: "cn=bob,dc=example,dc=org", Attributes: []*proto.EntryAttribute{{Name: "cn", Values: []string{"bob"}}}},
		{DN: "cn=alice,dc=example,dc=org", Attributes: []*proto.EntryAttribute{{Name: "cn", Values: []string{"alice"}}}},
	}
	go srv.serveOne(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cursor, err := c.Search(ctx, &proto.SearchRequest{
		BaseDN: "dc=example,dc=org",
		Scope:  proto.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var got []string
	for cursor.Next() {
		if e := cursor.Entry(); e != nil {
			got = append(got, e.DN)
		}
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(got), got)
	}
}

func TestMessageIDsAreSequential(t *testing.T) {
	t.Parallel()
	c, srv := dialPipe(t)
	ids := make(chan int64, 3)
	go func() {
		for i := 0; i < 3; i++ {
			id, _ := srv.serveOne(t)
			ids <- id
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := c.Delete(ctx, "cn=x,dc=example,dc=org"); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	close(ids)
	var got []int64
	for id := range ids {
		got = append(got, id)
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Errorf("expected message id %d at position %d, got %d", i+1, i, id)
		}
	}
}

func TestOperationFailedCarriesResult(t *testing.T) {
	t.Parallel()
	clientConn, serverConn := net.Pipe()
	dc := newDialConfig()
	c := newConn(clientConn, false, dc)
	defer c.Close()
	go func() {
		framer := ber.NewFramer()
		buf := make([]byte, 4096)
		n, err := serverConn.Read(buf)
		if err != nil {
			return
		}
		packets, _ := framer.Feed(buf[:n])
		if len(packets) == 0 {
			return
		}
		id, _, _, _ := proto.DecodeEnvelope(packets[0])
		op := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, proto.ApplicationDeleteResponse.Tag(), nil)
		op.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(proto.ResultNoSuchObject)))
		op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "dc=example,dc=org"))
		op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "no such entry"))
		serverConn.Write(proto.EncodeEnvelope(id, op).Bytes())
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Delete(ctx, "cn=ghost,dc=example,dc=org")
	if !IsOperationFailed(err, proto.ResultNoSuchObject) {
		t.Fatalf("expected OperationFailed(NoSuchObject), got %v", err)
	}
}

func TestCloseFailsPendingOps(t *testing.T) {
	t.Parallel()
	clientConn, _ := net.Pipe()
	dc := newDialConfig()
	c := newConn(clientConn, false, dc)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Bind(context.Background(), "cn=admin,dc=example,dc=org", "secret")
	}()
	time.Sleep(50 * time.Millisecond)
	c.Close()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error after Close, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Bind did not return after Close")
	}
}

func TestSearchCursorSurfacesFailedResult(t *testing.T) {
	t.Parallel()
	c, srv := dialPipe(t)
	srv.searchResult = proto.ResultNoSuchObject
	go srv.serveOne(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cursor, err := c.Search(ctx, &proto.SearchRequest{
		BaseDN: "dc=bogus,dc=example,dc=org",
		Scope:  proto.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for cursor.Next() {
	}
	if !IsOperationFailed(cursor.Err(), proto.ResultNoSuchObject) {
		t.Fatalf("expected OperationFailed(NoSuchObject), got %v", cursor.Err())
	}
	if cursor.Result() == nil {
		t.Fatal("expected Result to return the terminal SearchResultDone")
	}
}

func TestSearchCursorTreatsSizeLimitExceededAsSuccess(t *testing.T) {
	t.Parallel()
	c, srv := dialPipe(t)
	srv.entries = []*proto.Entry{{DN: "cn=bob,dc=example,dc=org"}}
	srv.searchResult = proto.ResultSizeLimitExceeded
	go srv.serveOne(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cursor, err := c.Search(ctx, &proto.SearchRequest{
		BaseDN: "dc=example,dc=org",
		Scope:  proto.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var got int
	for cursor.Next() {
		got++
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("expected sizeLimitExceeded to not surface as an error, got %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
}

func TestCloseUnblocksStalledSearchCursor(t *testing.T) {
	t.Parallel()
	clientConn, serverConn := net.Pipe()
	dc := newDialConfig()
	c := newConn(clientConn, false, dc)
	srv := newFakeServer(serverConn)
	entries := make([]*proto.Entry, 64)
	for i := range entries {
		entries[i] = &proto.Entry{DN: fmt.Sprintf("cn=entry%d,dc=example,dc=org", i)}
	}
	srv.entries = entries
	srv.clientMayClose = true
	go srv.serveOne(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cursor, err := c.Search(ctx, &proto.SearchRequest{
		BaseDN: "dc=example,dc=org",
		Scope:  proto.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Never drain the cursor: with 64 queued entries against a 16-slot
	// buffer, the run goroutine ends up blocked delivering one.
	time.Sleep(100 * time.Millisecond)

	closeDone := make(chan struct{})
	go func() {
		c.Close()
		close(closeDone)
	}()
	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a search cursor was stalled")
	}
	_ = cursor
}
