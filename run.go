package dartdap

import (
	"fmt"
	"time"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/proto"
)

// run is the connection manager's single logical task: it owns the
// outbound queue, the pending map, and the bind-pending flag, and is the
// only goroutine that ever writes to the socket or mutates that state.
func (c *Conn) run() {
	state := StateOpen
	var outbound []outboundItem
	pending := make(map[int64]*pendingOp)
	var bindPending bool
	var nextID int64 = 1
	var watchdog *time.Ticker
	var closeDone chan struct{}
	var fatalErr error

	defer func() {
		if watchdog != nil {
			watchdog.Stop()
		}
		c.conn.Close()
		close(c.closed)
		if closeDone != nil {
			close(closeDone)
		}
	}()

	failAll := func(err error) {
		for _, item := range outbound {
			if item.op != nil {
				item.op.stop()
			}
			c.completeOp(item.op, err)
			c.stats.countFailed()
		}
		outbound = nil
		for id, op := range pending {
			op.stop()
			c.completeOp(op, err)
			c.stats.countFailed()
			delete(pending, id)
		}
	}

	tryFlush := func() {
		for len(outbound) > 0 && !bindPending {
			item := outbound[0]
			outbound = outbound[1:]
			n, err := c.conn.Write(item.bytes)
			if err != nil {
				state = StateClosed
				fatalErr = fmt.Errorf("%w: write: %v", ErrSocketError, err)
				select {
				case <-c.closing:
					fatalErr = ErrConnectionClosed
				default:
				}
				c.completeOp(item.op, fatalErr)
				c.stats.countFailed()
				failAll(fatalErr)
				return
			}
			c.stats.countFlushed(n)
			if item.op != nil {
				pending[item.id] = item.op
			}
			if item.tag == proto.ApplicationBindRequest {
				bindPending = true
			}
			c.logger.WithField("id", item.id).WithField("op", item.tag).Debug("flushed request")
		}
	}

	enqueue := func(id int64, tag proto.Application, env *ber.Packet, op *pendingOp) {
		outbound = append(outbound, outboundItem{id: id, tag: tag, bytes: env.Bytes(), op: op})
	}

	maybeFinishDrain := func() {
		if state == StateDraining && len(outbound) == 0 && len(pending) == 0 {
			state = StateClosed
		}
	}

	for state != StateClosed {
		select {
		case cmd := <-c.cmdCh:
			switch m := cmd.(type) {
			case cmdSubmit:
				if state == StateDraining {
					m.ack <- submitAck{err: ErrConnectionClosed}
					continue
				}
				id := nextID
				nextID++
				env, err := m.build(id)
				if err != nil {
					m.ack <- submitAck{err: err}
					continue
				}
				m.op.id = id
				enqueue(id, m.tag, env, m.op)
				m.ack <- submitAck{id: id}
				c.stats.countSubmit()
				tryFlush()

			case cmdFrame:
				c.handleFrame(m, pending, &bindPending)
				tryFlush()
				if m.id != 0 {
					maybeFinishDrain()
				}

			case cmdTimeout:
				if op, ok := pending[m.id]; ok {
					delete(pending, m.id)
					op.stop()
					c.completeOp(op, ErrTimeout)
					c.stats.countTimeout()
					abandonEnv := (&proto.AbandonRequest{MessageID: m.id}).Encode(nextID)
					enqueue(nextID, proto.ApplicationAbandonRequest, abandonEnv, nil)
					nextID++
					tryFlush()
					maybeFinishDrain()
				}

			case cmdAbandon:
				if op, ok := pending[m.id]; ok {
					delete(pending, m.id)
					op.stop()
					c.completeOp(op, ErrAbandoned)
					c.stats.countAbandoned()
					abandonEnv := (&proto.AbandonRequest{MessageID: m.id}).Encode(nextID)
					enqueue(nextID, proto.ApplicationAbandonRequest, abandonEnv, nil)
					nextID++
					tryFlush()
					maybeFinishDrain()
				}

			case cmdForget:
				if op, ok := pending[m.id]; ok {
					delete(pending, m.id)
					c.completeOp(op, nil)
					maybeFinishDrain()
				}

			case cmdSocketErr:
				state = StateClosed
				failAll(m.err)

			case cmdClose:
				if m.immediate {
					failAll(ErrConnectionClosed)
					state = StateClosed
					closeDone = m.done
				} else {
					state = StateDraining
					closeDone = m.done
					watchdog = time.NewTicker(watchdogInterval)
					maybeFinishDrain()
				}
			}

		case <-tick(watchdog):
			tryFlush()
			maybeFinishDrain()
		}
	}
}

// tick returns t's channel, or a nil channel (which blocks forever in a
// select) when t hasn't been started yet.
func tick(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (c *Conn) completeOp(op *pendingOp, err error) {
	if op == nil {
		return
	}
	if op.stream {
		c.sendEntry(op, streamItem{err: err})
		close(op.entries)
		return
	}
	op.result <- opResult{err: err}
	close(op.result)
}

// sendEntry delivers item to op.entries, preferring a normal buffered send
// but falling back to a select against op.stopped and c.closing so a
// consumer that has stopped reading (an abandoned or torn-down cursor)
// can never wedge the run goroutine on a full channel.
func (c *Conn) sendEntry(op *pendingOp, item streamItem) {
	select {
	case op.entries <- item:
		return
	default:
	}
	select {
	case op.entries <- item:
	case <-op.stopped:
	case <-c.closing:
	}
}

// handleFrame classifies an inbound LDAPMessage by its application tag and
// routes it to the matching pending operation.
func (c *Conn) handleFrame(m cmdFrame, pending map[int64]*pendingOp, bindPending *bool) {
	op, ok := pending[m.id]
	if !ok {
		if m.id == 0 {
			// Intermediate/unsolicited notification with no correlating
			// request; connection-wide notice sink is not wired up by any
			// caller yet, so it is logged and dropped regardless of policy.
			c.logger.WithField("op", m.tag).Debug("received unsolicited notification with message id 0")
			return
		}
		switch c.unsolicitedPolicy {
		case UnsolicitedDropAndLog:
			c.logger.WithField("id", m.id).WithField("op", m.tag).Warn("dropping unsolicited response")
		default:
			c.logger.WithField("id", m.id).WithField("op", m.tag).Error("unsolicited response, closing connection")
			c.sendCmd(cmdSocketErr{err: ErrUnsolicitedResponse})
		}
		return
	}

	switch m.tag {
	case proto.ApplicationBindResponse:
		*bindPending = false
		c.finishSingle(pending, m)
	case proto.ApplicationSearchResultEntry:
		entry, err := proto.DecodeEntry(m.op)
		if err != nil {
			c.sendEntry(op, streamItem{err: err})
			return
		}
		c.sendEntry(op, streamItem{entry: entry})
	case proto.ApplicationSearchResultReference:
		ref, err := proto.DecodeSearchResultReference(m.op)
		if err != nil {
			c.sendEntry(op, streamItem{err: err})
			return
		}
		c.sendEntry(op, streamItem{ref: ref})
	case proto.ApplicationSearchResultDone:
		done, err := proto.DecodeSearchResultDone(m.op)
		delete(pending, m.id)
		c.stats.countComplete()
		if err != nil {
			c.sendEntry(op, streamItem{err: err})
		} else {
			c.sendEntry(op, streamItem{done: done})
		}
		close(op.entries)
	default:
		c.finishSingle(pending, m)
	}
}

func (c *Conn) finishSingle(pending map[int64]*pendingOp, m cmdFrame) {
	op := pending[m.id]
	delete(pending, m.id)
	c.stats.countComplete()
	op.result <- opResult{op: m.op, controls: m.controls}
	close(op.result)
}
