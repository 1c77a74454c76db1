package ber

import "bytes"

// Framer splits a byte stream into complete top-level BER TLVs without
// assuming anything about how the underlying transport chooses to chunk
// writes. Feed may be called with any number of bytes, including zero,
// one, or a stream cut in the middle of an identifier or length octet;
// every call returns the PDUs that are now complete, and buffers the
// remainder for the next call.
//
// A Framer is not safe for concurrent use; callers that hand it bytes
// from a single reader goroutine get that for free.
type Framer struct {
	buf bytes.Buffer
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends data to the internal buffer and returns every LDAPMessage
// packet that is now fully buffered, in arrival order. Remaining partial
// data, if any, stays buffered for the next Feed call.
//
// Feed never blocks and never reads from a transport itself: the caller
// owns the read loop and passes Feed whatever bytes it received,
// however they happened to be chunked.
func (f *Framer) Feed(data []byte) ([]*Packet, error) {
	if len(data) > 0 {
		f.buf.Write(data)
	}
	var out []*Packet
	for {
		p, consumed, err := f.tryDecodeOne()
		if err != nil {
			return out, err
		}
		if p == nil {
			return out, nil
		}
		out = append(out, p)
		f.advance(consumed)
	}
}

// Buffered returns the number of bytes currently held, waiting for a
// complete PDU.
func (f *Framer) Buffered() int {
	return f.buf.Len()
}

// tryDecodeOne attempts to decode one complete TLV from the front of the
// buffer without consuming it on failure. It returns (nil, 0, nil) when
// the buffer doesn't yet hold a complete PDU (NeedMore), and a non-nil
// error only for a malformed PDU the buffered bytes already commit to.
func (f *Framer) tryDecodeOne() (*Packet, int, error) {
	avail := f.buf.Bytes()
	if len(avail) == 0 {
		return nil, 0, nil
	}
	hdrLen, contentLen, ok, err := peekHeader(avail)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, nil // need more header bytes
	}
	total := hdrLen + contentLen
	if len(avail) < total {
		return nil, 0, nil // need more content bytes
	}
	p, err := DecodePacket(avail[:total])
	if err != nil {
		return nil, 0, err
	}
	return p, total, nil
}

func (f *Framer) advance(n int) {
	remaining := f.buf.Bytes()[n:]
	next := make([]byte, len(remaining))
	copy(next, remaining)
	f.buf.Reset()
	f.buf.Write(next)
}

// peekHeader reports the total identifier+length octet count (hdrLen)
// and the declared content length (contentLen) of the TLV starting at
// buf[0], without consuming buf. ok is false when buf doesn't yet hold a
// complete header. This mirrors ParseIdentifier/ParseCount but over a
// byte slice instead of an io.Reader, so a short buffer is NeedMore
// rather than io.EOF.
func peekHeader(buf []byte) (hdrLen, contentLen int, ok bool, err error) {
	if len(buf) < 1 {
		return 0, 0, false, nil
	}
	if Tag(buf[0])&TagBitmask == tagHigh {
		return 0, 0, false, ErrTagTooLargeForLDAP
	}
	pos := 1
	if pos >= len(buf) {
		return 0, 0, false, nil
	}
	lb := buf[pos]
	pos++
	switch {
	case lb == 0xff:
		return 0, 0, false, ErrInvalidLength
	case lb == longFormBitmaskLen:
		return 0, 0, false, ErrIndefiniteLengthNotAllowed
	case lb&longFormBitmaskLen == 0:
		return pos, int(lb) & valueBitmaskLen, true, nil
	default:
		n := int(lb) & valueBitmaskLen
		if n > 8 {
			return 0, 0, false, ErrLengthValueOverflow
		}
		if pos+n > len(buf) {
			return 0, 0, false, nil
		}
		var ll int64
		for i := 0; i < n; i++ {
			ll <<= 8
			ll |= int64(buf[pos+i])
		}
		pos += n
		if int64(int(ll)) != ll || ll < 0 {
			return 0, 0, false, ErrLengthValueOverflow
		}
		return pos, int(ll), true, nil
	}
}
