package ber

import (
	"bytes"
	"io"
	"unicode/utf8"
)

const (
	// longFormBitmaskLen is the mask to apply to the length byte to see if
	// a long-form byte sequence is used.
	longFormBitmaskLen = 0x80

	// valueBitmaskLen is the mask to apply to the length byte to get the
	// number of bytes in the long-form byte sequence.
	valueBitmaskLen = 0x7f
)

// MaxPacketLength bounds the content length this package will allocate a
// buffer for in one shot, protecting against a hostile or corrupt length
// field. Decode returns ErrLengthGreaterThanMax past this.
const MaxPacketLength = 1 << 24 // 16MiB, comfortably above any legitimate LDAP PDU

// ReadByte reads a single byte from r.
func ReadByte(r io.Reader) (int, byte, error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	switch {
	case err == io.EOF:
		return n, 0, ErrUnexpectedEOF
	case err != nil:
		return n, 0, err
	}
	return n, buf[0], nil
}

// ParseHeader parses a BER identifier and length from r.
func ParseHeader(r io.Reader) (int, Class, Type, Tag, int, error) {
	n, class, typ, tag, err := ParseIdentifier(r)
	if err != nil {
		return n, 0, 0, 0, 0, err
	}
	nn, count, err := ParseCount(r)
	if err != nil {
		return n + nn, class, typ, tag, count, err
	}
	n += nn
	if count == -1 {
		// RFC 4511 §5.1: LDAP BER never uses the indefinite-length form.
		return n, class, typ, tag, 0, ErrIndefiniteLengthNotAllowed
	}
	if count < -1 {
		return n, class, typ, tag, 0, ErrLengthCannotBeLessThanNegative1
	}
	return n, class, typ, tag, count, nil
}

// ParseIdentifier parses the class, constructed bit, and tag number of a
// BER identifier from r. LDAP application and context tags always fit in
// the low five bits of a single identifier octet (RFC 4511 §5.1's tags
// never exceed 30), so the high-tag-number escape form is rejected rather
// than decoded.
func ParseIdentifier(r io.Reader) (int, Class, Type, Tag, error) {
	n, b, err := ReadByte(r)
	if err != nil {
		return n, 0, 0, 0, err
	}
	class, typ := Class(b)&ClassPrivate, Type(b)&TypeConstructed
	t := Tag(b) & TagBitmask
	if t == tagHigh {
		return n, 0, 0, 0, ErrTagTooLargeForLDAP
	}
	return n, class, typ, t, nil
}

// ParseCount parses a BER length octet sequence from r. It returns -1 for
// the indefinite-length form so ParseHeader can reject it with a precise
// error rather than silently misreading the content length.
func ParseCount(r io.Reader) (int, int, error) {
	var l int
	n, b, err := ReadByte(r)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b == 0xff:
		return n, 0, ErrInvalidLength
	case b == longFormBitmaskLen:
		l = -1
	case b&longFormBitmaskLen == 0:
		l = int(b) & valueBitmaskLen
	case b&longFormBitmaskLen != 0:
		count := int(b) & valueBitmaskLen
		if count > 8 {
			return n, 0, ErrLengthValueOverflow
		}
		var ll int64
		for i := 0; i < count; i++ {
			_, b, err = ReadByte(r)
			if err != nil {
				return n, 0, err
			}
			n++
			ll <<= 8
			ll |= int64(b)
		}
		l = int(ll)
		if int64(l) != ll {
			return n, 0, ErrLengthValueOverflow
		}
	default:
		return n, 0, ErrInvalidLength
	}
	return n, l, nil
}

// Decode reads and decodes one BER TLV (and, if constructed, its entire
// child tree) from r. max bounds how many bytes a single content block
// may claim; 0 means MaxPacketLength.
func Decode(r io.Reader, max int) (int, *Packet, error) {
	if max <= 0 {
		max = MaxPacketLength
	}
	n, class, typ, tag, count, err := ParseHeader(r)
	if err != nil {
		return n, nil, err
	}
	p := &Packet{
		Class:    class,
		Type:     typ,
		Tag:      tag,
		Data:     new(bytes.Buffer),
		Children: make([]*Packet, 0, 2),
	}
	if typ == TypeConstructed {
		total := 0
		for total < count {
			nn, child, err := Decode(r, max)
			if err != nil {
				return n, nil, err
			}
			total, n = total+nn, n+nn
			if total > count {
				return n, nil, ErrPastPacketBoundary
			}
			p.AppendChild(child)
		}
		return n, p, nil
	}
	if max > 0 && count > max {
		return n, nil, ErrLengthGreaterThanMax
	}
	buf := make([]byte, count)
	if count > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				return n, nil, io.ErrUnexpectedEOF
			}
			return n, nil, err
		}
		n += count
	}
	if p.Class != ClassUniversal {
		p.Data.Write(buf)
		return n, p, nil
	}
	p.Data.Write(buf)
	switch p.Tag {
	case TagBoolean:
		v, _ := ParseInt64(buf)
		p.Value = v != 0
	case TagInteger, TagEnumerated:
		p.Value, _ = ParseInt64(buf)
	case TagOctetString:
		// The string encoding is not known at this layer; LDAP content
		// is UTF-8 almost everywhere but binary attribute values pass
		// through this tag too, so the raw bytes are kept verbatim as a
		// Go string and callers that need []byte use ByteValue().
		p.Value = string(buf)
	case TagUTF8String:
		if !utf8.Valid(buf) {
			return n, nil, ErrInvalidUTF8String
		}
		p.Value = string(buf)
	case TagPrintableString:
		if !isPrintableString(string(buf)) {
			return n, nil, ErrInvalidPrintableString
		}
		p.Value = string(buf)
	case TagIA5String:
		for _, c := range buf {
			if c >= 0x7f {
				return n, nil, ErrInvalidIA5String
			}
		}
		p.Value = string(buf)
	}
	return n, p, err
}

// DecodePacket decodes a single complete BER TLV from buf, which must
// contain exactly one top-level packet (trailing bytes are an error).
func DecodePacket(buf []byte) (*Packet, error) {
	r := bytes.NewReader(buf)
	n, p, err := Decode(r, MaxPacketLength)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, ErrPastPacketBoundary
	}
	return p, nil
}

// ParseInt64 decodes a two's-complement BER INTEGER content block.
func ParseInt64(buf []byte) (int64, error) {
	if len(buf) > 8 {
		return 0, ErrIntegerTooLarge
	}
	var i int64
	for n := 0; n < len(buf); n++ {
		i <<= 8
		i |= int64(buf[n])
	}
	i <<= 64 - uint8(len(buf))*8
	i >>= 64 - uint8(len(buf))*8
	return i, nil
}

// EncodeIdentifier encodes a BER identifier octet sequence.
func EncodeIdentifier(class Class, typ Type, tag Tag) []byte {
	buf := []byte{uint8(class) | uint8(typ)}
	if tag < tagHigh {
		buf[0] |= uint8(tag)
	} else {
		buf[0] |= byte(tagHigh)
		buf = append(buf, EncodeTag(tag)...)
	}
	return buf
}

// EncodeTag encodes the high-tag-number continuation bytes of a tag.
func EncodeTag(tag Tag) []byte {
	buf := make([]byte, 0, 4)
	for tag != 0 {
		t := tag & tagHighValueBitmask
		tag >>= 7
		if len(buf) != 0 {
			t |= tagHighContinueBitmask
		}
		buf = append(buf, byte(t))
	}
	for i, j := 0, len(buf)-1; i < len(buf)/2; i++ {
		buf[i], buf[j-i] = buf[j-i], buf[i]
	}
	return buf
}

// EncodeCount encodes a definite-form BER length.
func EncodeCount(n int) []byte {
	buf := EncodeUint64(uint64(n))
	if n > 127 || len(buf) > 1 {
		buf = append([]byte{longFormBitmaskLen | byte(len(buf))}, buf...)
	}
	return buf
}

// EncodeInt64 encodes a two's-complement INTEGER content block.
func EncodeInt64(i int64) []byte {
	n := int64Len(i)
	buf := make([]byte, n)
	var j int
	for ; n > 0; n-- {
		buf[j] = byte(i >> uint((n-1)*8))
		j++
	}
	return buf
}

// EncodeUint64 encodes an unsigned big-endian content block.
func EncodeUint64(i uint64) []byte {
	n := uint64Len(i)
	buf := make([]byte, n)
	var j int
	for ; n > 0; n-- {
		buf[j] = byte(i >> uint((n-1)*8))
		j++
	}
	return buf
}

func int64Len(i int64) int {
	n := 1
	for i > 127 {
		n++
		i >>= 8
	}
	for i < -128 {
		n++
		i >>= 8
	}
	return n
}

func uint64Len(i uint64) int {
	n := 1
	for i > 255 {
		n++
		i >>= 8
	}
	return n
}
