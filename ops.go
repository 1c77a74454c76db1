package dartdap

import (
	"context"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
	"github.com/buzz3791/dartdap/proto"
)

// do submits a single-response operation and blocks for its terminating
// response, returning the raw protocolOp and its controls undecoded; each
// caller decodes the result and applies resultErr. If ctx is done first, an
// AbandonRequest is issued for the operation and ctx.Err() is returned.
func (c *Conn) do(ctx context.Context, tag proto.Application, build func(id int64) (*ber.Packet, error)) (*ber.Packet, []control.Control, error) {
	op, err := c.submit(ctx, tag, false, build)
	if err != nil {
		return nil, nil, err
	}
	select {
	case res := <-op.result:
		if res.err != nil {
			return nil, nil, res.err
		}
		return res.op, res.controls, nil
	case <-ctx.Done():
		c.abandon(op.id)
		return nil, nil, ctx.Err()
	}
}

func resultErr(res proto.LDAPResult, allow ...proto.Result) error {
	if res.Result == proto.ResultSuccess {
		return nil
	}
	for _, a := range allow {
		if res.Result == a {
			return nil
		}
	}
	return &OperationFailed{res}
}

// Bind performs a simple (DN + password) bind.
func (c *Conn) Bind(ctx context.Context, username, password string, controls ...control.Control) error {
	req := &proto.SimpleBindRequest{Username: username, Password: password, Controls: controls}
	op, _, err := c.do(ctx, proto.ApplicationBindRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	res, err := proto.DecodeBindResponse(op)
	if err != nil {
		return err
	}
	return resultErr(res.LDAPResult)
}

// Unbind gracefully terminates the LDAP session. It carries no response;
// the connection should be closed (via Drain or Close) immediately after.
func (c *Conn) Unbind(ctx context.Context) error {
	req := &proto.UnbindRequest{}
	op, err := c.submit(ctx, proto.ApplicationUnbindRequest, false, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	// UnbindRequest has no response PDU; complete the local handle so its
	// id leaves the pending set as soon as the bytes are flushed, without
	// putting an AbandonRequest on the wire for it.
	c.forget(op.id)
	return nil
}

// Add creates a new entry.
func (c *Conn) Add(ctx context.Context, dn string, attrs []proto.Attribute, controls ...control.Control) error {
	req := &proto.AddRequest{DN: dn, Attributes: attrs, Controls: controls}
	op, _, err := c.do(ctx, proto.ApplicationAddRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	res, err := proto.DecodeAddResponse(op)
	if err != nil {
		return err
	}
	return resultErr(res.LDAPResult)
}

// Delete removes an entry by DN.
func (c *Conn) Delete(ctx context.Context, dn string, controls ...control.Control) error {
	req := &proto.DeleteRequest{DN: dn, Controls: controls}
	op, _, err := c.do(ctx, proto.ApplicationDeleteRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	res, err := proto.DecodeDeleteResponse(op)
	if err != nil {
		return err
	}
	return resultErr(res.LDAPResult)
}

// Modify applies req's changes to an entry.
func (c *Conn) Modify(ctx context.Context, req *proto.ModifyRequest) error {
	op, _, err := c.do(ctx, proto.ApplicationModifyRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	res, err := proto.DecodeModifyResponse(op)
	if err != nil {
		return err
	}
	return resultErr(res.LDAPResult)
}

// ModifyDN renames or moves an entry.
func (c *Conn) ModifyDN(ctx context.Context, req *proto.ModifyDNRequest) error {
	op, _, err := c.do(ctx, proto.ApplicationModifyDNRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return err
	}
	res, err := proto.DecodeModifyDNResponse(op)
	if err != nil {
		return err
	}
	return resultErr(res.LDAPResult)
}

// Compare reports whether the named attribute of dn has the given value.
// compareTrue and compareFalse are both treated as successful outcomes;
// every other non-success result code is returned as an error.
func (c *Conn) Compare(ctx context.Context, dn, attribute, value string) (bool, error) {
	req := &proto.CompareRequest{DN: dn, Attribute: attribute, Value: value}
	op, _, err := c.do(ctx, proto.ApplicationCompareRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return false, err
	}
	res, err := proto.DecodeCompareResponse(op)
	if err != nil {
		return false, err
	}
	if err := resultErr(res.LDAPResult, proto.ResultCompareTrue, proto.ResultCompareFalse); err != nil {
		return false, err
	}
	return res.Bool()
}

// Extended issues an extended operation and returns its raw response name
// and value.
func (c *Conn) Extended(ctx context.Context, req *proto.ExtendedRequest) (*proto.ExtendedResponse, error) {
	op, _, err := c.do(ctx, proto.ApplicationExtendedRequest, func(id int64) (*ber.Packet, error) { return req.Encode(id), nil })
	if err != nil {
		return nil, err
	}
	res, err := proto.DecodeExtendedResponse(op)
	if err != nil {
		return nil, err
	}
	if err := resultErr(res.LDAPResult); err != nil {
		return res, err
	}
	return res, nil
}

// WhoAmI issues RFC 4532's "Who am I?" extended operation and returns the
// authzId reported by the server.
func (c *Conn) WhoAmI(ctx context.Context) (string, error) {
	res, err := c.Extended(ctx, proto.NewWhoAmIRequest())
	if err != nil {
		return "", err
	}
	return string(res.Value), nil
}

// PasswordModify issues RFC 3062's Password Modify extended operation. If
// newPassword is empty, the server is asked to generate one, and any value
// it returns is passed back through genPassword.
func (c *Conn) PasswordModify(ctx context.Context, userIdentity, oldPassword, newPassword string) (genPassword string, err error) {
	res, err := c.Extended(ctx, proto.NewPasswordModifyRequest(userIdentity, oldPassword, newPassword))
	if err != nil {
		return "", err
	}
	return proto.DecodePasswordModifyResponseValue(res.Value)
}

// Abandon asks the manager to abandon a previously submitted operation and
// resolve its pending handle with ErrAbandoned. It never expects a
// response of its own, per RFC 4511 section 4.11.
func (c *Conn) Abandon(id int64) {
	c.abandon(id)
}

// SearchCursor streams the entries, references, and final result of a
// search operation in server order. It is not restartable.
type SearchCursor struct {
	conn    *Conn
	op      *pendingOp
	current streamItem
	err     error
	result  *proto.SearchResultDone
	done    bool
}

// Next advances the cursor to the next item, returning false once the
// search is exhausted (either via SearchResultDone or a terminal error,
// distinguishable via Err). A SearchResultDone carrying a non-success
// result code (other than sizeLimitExceeded, which still returns whatever
// entries were delivered) ends the cursor with Err set.
func (sc *SearchCursor) Next() bool {
	if sc.done {
		return false
	}
	item, ok := <-sc.op.entries
	if !ok {
		sc.done = true
		return false
	}
	sc.current = item
	if item.err != nil {
		sc.err = item.err
		sc.done = true
		return false
	}
	if item.done != nil {
		sc.result = item.done
		sc.done = true
		if err := resultErr(item.done.LDAPResult, proto.ResultSizeLimitExceeded); err != nil {
			sc.err = err
		}
		return false
	}
	return true
}

// Result returns the search's terminal SearchResultDone, or nil if the
// cursor hasn't yet reached it (or ended on a transport-level error
// instead).
func (sc *SearchCursor) Result() *proto.SearchResultDone { return sc.result }

// Entry returns the current entry, or nil if the current item is a
// continuation reference.
func (sc *SearchCursor) Entry() *proto.Entry { return sc.current.entry }

// Reference returns the current continuation reference, or nil if the
// current item is an entry.
func (sc *SearchCursor) Reference() *proto.SearchResultReference { return sc.current.ref }

// Err returns the error that ended the search, if any.
func (sc *SearchCursor) Err() error { return sc.err }

// Abandon asks the manager to abandon this search before it completes. It
// is safe to call even if nothing is draining Next() any longer: the run
// goroutine's pending send into this cursor's entry channel, if any, is
// released immediately rather than left blocked.
func (sc *SearchCursor) Abandon() {
	sc.op.stop()
	sc.conn.abandon(sc.op.id)
}

// Search issues a SearchRequest and returns a cursor over its results.
func (c *Conn) Search(ctx context.Context, req *proto.SearchRequest) (*SearchCursor, error) {
	op, err := c.submit(ctx, proto.ApplicationSearchRequest, true, func(id int64) (*ber.Packet, error) { return req.Encode(id) })
	if err != nil {
		return nil, err
	}
	return &SearchCursor{conn: c, op: op}, nil
}
