// Package ber implements the subset of ASN.1 BER (Basic Encoding Rules)
// that LDAPv3 (RFC 4511) needs: booleans, integers, enumerated values,
// octet strings, sequences, and sets, tagged implicitly or explicitly
// under the universal, application, context, and private classes.
//
// Decoding accepts both short-form and long-form definite lengths. The
// indefinite-length form is recognized only so it can be rejected: RFC
// 4511 §5.1 requires definite lengths on the wire, so a connection
// manager built on this package can treat ErrIndefiniteLengthNotAllowed
// as a framing error rather than something to special-case. Encoding
// always emits the minimal definite form.
package ber

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Class is the BER identifier class occupying the top two bits of the
// identifier octet.
type Class uint8

// Class values.
const (
	ClassUniversal   Class = 0   // 00xxxxxxb
	ClassApplication Class = 64  // 01xxxxxxb
	ClassContext     Class = 128 // 10xxxxxxb
	ClassPrivate     Class = 192 // 11xxxxxxb
)

// String satisfies fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "Universal"
	case ClassApplication:
		return "Application"
	case ClassContext:
		return "Context"
	case ClassPrivate:
		return "Private"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Type is the primitive/constructed bit of the identifier octet.
type Type uint8

// Type values.
const (
	TypePrimitive   Type = 0  // xx0xxxxxb
	TypeConstructed Type = 32 // xx1xxxxxb
)

// String satisfies fmt.Stringer.
func (t Type) String() string {
	if t == TypeConstructed {
		return "Constructed"
	}
	return "Primitive"
}

// Tag is the BER identifier tag number.
type Tag uint64

// Universal class tag values used over LDAP.
const (
	TagEOC              Tag = 0x00
	TagBoolean          Tag = 0x01
	TagInteger          Tag = 0x02
	TagBitString        Tag = 0x03
	TagOctetString      Tag = 0x04
	TagNULL             Tag = 0x05
	TagObjectIdentifier Tag = 0x06
	TagObjectDescriptor Tag = 0x07
	TagExternal         Tag = 0x08
	TagRealFloat        Tag = 0x09
	TagEnumerated       Tag = 0x0a
	TagEmbeddedPDV      Tag = 0x0b
	TagUTF8String       Tag = 0x0c
	TagRelativeOID      Tag = 0x0d
	TagSequence         Tag = 0x10
	TagSet              Tag = 0x11
	TagNumericString    Tag = 0x12
	TagPrintableString  Tag = 0x13
	TagT61String        Tag = 0x14
	TagVideotexString   Tag = 0x15
	TagIA5String        Tag = 0x16
	TagUTCTime          Tag = 0x17
	TagGeneralizedTime  Tag = 0x18
	TagGraphicString    Tag = 0x19
	TagVisibleString    Tag = 0x1a
	TagGeneralString    Tag = 0x1b
	TagUniversalString  Tag = 0x1c
	TagCharacterString  Tag = 0x1d
	TagBMPString        Tag = 0x1e
	TagBitmask          Tag = 0x1f // xxx11111b

	tagHigh                Tag = 0x1f // xxx11111b: start of a high-tag-number byte sequence
	tagHighContinueBitmask Tag = 0x80 // 10000000b
	tagHighValueBitmask    Tag = 0x7f // 01111111b
)

// String satisfies fmt.Stringer.
func (t Tag) String() string {
	switch t {
	case TagEOC:
		return "EOC"
	case TagBoolean:
		return "Boolean"
	case TagInteger:
		return "Integer"
	case TagBitString:
		return "BitString"
	case TagOctetString:
		return "OctetString"
	case TagNULL:
		return "NULL"
	case TagObjectIdentifier:
		return "ObjectIdentifier"
	case TagRealFloat:
		return "Real"
	case TagEnumerated:
		return "Enumerated"
	case TagUTF8String:
		return "UTF8String"
	case TagSequence:
		return "Sequence"
	case TagSet:
		return "Set"
	case TagPrintableString:
		return "PrintableString"
	case TagIA5String:
		return "IA5String"
	case TagGeneralizedTime:
		return "GeneralizedTime"
	}
	return fmt.Sprintf("Tag(0x%02x)", uint64(t))
}

// Packet is a decoded, or not-yet-encoded, BER TLV together with any
// constructed children already attached to it.
type Packet struct {
	Class    Class
	Type     Type
	Tag      Tag
	Value    interface{}
	Data     *bytes.Buffer
	Children []*Packet
	Desc     string
}

// NewPacket returns an empty packet. A string value given for a universal
// OCTET STRING is written into the returned packet's content buffer so it
// can be immediately encoded; other primitive contents are written by the
// typed constructors (NewBoolean, NewInteger, NewString), and constructed
// packets are filled in by AppendChild.
func NewPacket(class Class, typ Type, tag Tag, value interface{}) *Packet {
	p := &Packet{
		Class:    class,
		Type:     typ,
		Tag:      tag,
		Data:     new(bytes.Buffer),
		Children: make([]*Packet, 0, 2),
		Value:    value,
	}
	if value != nil && class == ClassUniversal && tag == TagOctetString {
		if sv, ok := value.(string); ok {
			p.Data.WriteString(sv)
		}
	}
	return p
}

// NewSequence returns a new, empty constructed universal SEQUENCE.
func NewSequence() *Packet {
	return NewPacket(ClassUniversal, TypeConstructed, TagSequence, nil)
}

// NewSet returns a new, empty constructed packet under the given
// class/tag, generally used for implicitly-tagged SET OF constructions.
func NewSet(class Class, typ Type, tag Tag) *Packet {
	return NewPacket(class, typ, tag, nil)
}

// NewBoolean returns a new boolean packet, encoded per RFC 4511 §5.1 with
// an all-ones TRUE octet (BER in general only requires nonzero).
func NewBoolean(class Class, typ Type, tag Tag, value bool) *Packet {
	p := NewPacket(class, typ, tag, value)
	b := byte(0x00)
	if value {
		b = 0xff
	}
	p.Data.WriteByte(b)
	return p
}

// NewInteger returns a new INTEGER or ENUMERATED packet.
func NewInteger(class Class, typ Type, tag Tag, value int64) *Packet {
	p := NewPacket(class, typ, tag, value)
	p.Data.Write(EncodeInt64(value))
	return p
}

// NewString returns a new octet-string or character-string packet.
func NewString(class Class, typ Type, tag Tag, value string) *Packet {
	p := NewPacket(class, typ, tag, value)
	p.Data.Reset()
	p.Data.WriteString(value)
	return p
}

// NewBytes returns a new octet-string packet carrying raw, non-UTF8
// content such as a binary control value.
func NewBytes(class Class, typ Type, tag Tag, value []byte) *Packet {
	p := NewPacket(class, typ, tag, value)
	p.Data.Write(value)
	return p
}

// Describe sets the packet's debug description and returns the packet, to
// allow chaining at the point of construction.
func (p *Packet) Describe(desc string) *Packet {
	p.Desc = desc
	return p
}

// AppendChild appends a child packet, extending the receiver's own
// encoded content with the child's encoding.
func (p *Packet) AppendChild(child *Packet) {
	p.Data.Write(child.Bytes())
	p.Children = append(p.Children, child)
}

// Bytes returns the encoded identifier, length, and content octets.
func (p *Packet) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Write(EncodeIdentifier(p.Class, p.Type, p.Tag))
	buf.Write(EncodeCount(p.Data.Len()))
	buf.Write(p.Data.Bytes())
	return buf.Bytes()
}

// ByteValue returns the raw content octets of the packet.
func (p *Packet) ByteValue() []byte {
	if p.Data == nil {
		return nil
	}
	return p.Data.Bytes()
}

// String satisfies fmt.Stringer, pretty-printing the packet tree.
func (p *Packet) String() string {
	buf := new(bytes.Buffer)
	p.PrettyPrint(buf, 0)
	return buf.String()
}

// PrettyPrint writes a human-readable dump of the packet tree to w, each
// level indented one tab further than its parent.
func (p *Packet) PrettyPrint(w io.Writer, indent int) {
	tagStr := fmt.Sprintf("0x%02x", uint64(p.Tag))
	if p.Class == ClassUniversal {
		tagStr = p.Tag.String()
	}
	desc := ""
	if p.Desc != "" {
		desc = p.Desc + ": "
	}
	fmt.Fprintf(w, "%s%s(%s, %s, %s) len=%d %v\n",
		strings.Repeat("\t", indent), desc, p.Class, p.Type, tagStr, p.Data.Len(), p.Value)
	for _, child := range p.Children {
		child.PrettyPrint(w, indent+1)
	}
}

func isPrintableString(val string) bool {
	for _, c := range val {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			switch c {
			case '\'', '(', ')', '+', ',', '-', '.', '=', '/', ':', '?', ' ':
			default:
				return false
			}
		}
	}
	return true
}
