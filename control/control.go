// Package control implements LDAP request and response controls (RFC 4511
// section 4.1.11) exchanged alongside protocol operations.
package control

import (
	"fmt"

	"github.com/buzz3791/dartdap/ber"
)

// Control is anything that can be encoded into and decoded out of a
// controls sequence attached to an LDAP message.
type Control interface {
	OID() string
	Encode() *ber.Packet
	String() string
}

// ID is a control's object identifier.
type ID string

func (id ID) String() string { return string(id) }

// Well-known control OIDs. Microsoft- and VChu-specific controls from the
// Behera/VChu drafts are not implemented; see DESIGN.md.
const (
	Paging               ID = "1.2.840.113556.1.4.319"    // RFC 2696
	BeheraPasswordPolicy ID = "1.3.6.1.4.1.42.2.27.8.5.1" // draft-behera-ldap-password-policy-10
	ManageDsaIT          ID = "2.16.840.1.113730.3.4.2"   // RFC 3296
)

// Encode wraps a set of controls into the Controls SEQUENCE that follows an
// LDAPMessage's protocolOp.
func Encode(controls ...Control) *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, 0, nil).Describe("Controls")
	for _, c := range controls {
		if c == nil {
			panic("control.Encode: nil control")
		}
		p.AppendChild(c.Encode())
	}
	return p
}

// Decode decodes a single Control SEQUENCE, dispatching to a concrete type
// for recognized OIDs and falling back to Generic otherwise.
func Decode(p *ber.Packet) (Control, error) {
	var oid ID
	var criticality bool
	var value *ber.Packet
	switch len(p.Children) {
	case 0:
		return nil, fmt.Errorf("control: at least one child required for control type")
	case 1:
		oid = ID(p.Children[0].Value.(string))
	case 2:
		oid = ID(p.Children[0].Value.(string))
		if b, ok := p.Children[1].Value.(bool); ok {
			criticality = b
		} else {
			value = p.Children[1]
		}
	case 3:
		oid = ID(p.Children[0].Value.(string))
		criticality, _ = p.Children[1].Value.(bool)
		value = p.Children[2]
	default:
		return nil, fmt.Errorf("control: more than 3 children is invalid for a control")
	}
	switch oid {
	case ManageDsaIT:
		return &ManageDsaITControl{Criticality: criticality}, nil
	case Paging:
		return decodePaging(value)
	case BeheraPasswordPolicy:
		return decodeBeheraPasswordPolicy(value)
	default:
		g := &Generic{OIDValue: oid.String(), Criticality: criticality}
		if value != nil {
			if s, ok := value.Value.(string); ok {
				g.Value = s
			} else {
				g.Value = string(value.ByteValue())
			}
		}
		return g, nil
	}
}

func decodeValueSequence(value *ber.Packet) (*ber.Packet, error) {
	if value.Value == nil {
		if len(value.Children) == 0 {
			return nil, fmt.Errorf("control: empty control value")
		}
		return value.Children[0], nil
	}
	inner, err := ber.DecodePacket(value.ByteValue())
	if err != nil {
		return nil, fmt.Errorf("control: decoding value: %w", err)
	}
	value.Value = nil
	value.AppendChild(inner)
	return inner, nil
}

// Generic represents any control whose OID this package does not interpret.
type Generic struct {
	OIDValue    string
	Criticality bool
	Value       string
}

// NewGeneric returns a control for an OID this package does not otherwise
// interpret.
func NewGeneric(oid string, criticality bool, value string) *Generic {
	return &Generic{OIDValue: oid, Criticality: criticality, Value: value}
}

func (c *Generic) OID() string { return c.OIDValue }

func (c *Generic) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil).Describe("Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.OIDValue).
		Describe("Control OID (" + c.OIDValue + ")"))
	if c.Criticality {
		p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, c.Criticality).
			Describe("Criticality"))
	}
	if c.Value != "" {
		p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.Value).
			Describe("Control Value"))
	}
	return p
}

func (c *Generic) String() string {
	return fmt.Sprintf("Control OID: %s Criticality: %t Value: %s", c.OIDValue, c.Criticality, c.Value)
}

// PagingControl implements simple paged results (RFC 2696).
type PagingControl struct {
	Size   uint32
	Cookie []byte
}

// NewPaging returns a paging control request for the given page size.
func NewPaging(size uint32) *PagingControl {
	return &PagingControl{Size: size}
}

func (c *PagingControl) OID() string { return Paging.String() }

func (c *PagingControl) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil).Describe("Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, Paging.String()).
		Describe("Control OID (" + Paging.String() + ")"))
	seq := ber.NewSequence().Describe("Search Control Value")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(c.Size)).
		Describe("Paging Size"))
	cookie := ber.NewBytes(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.Cookie).Describe("Cookie")
	seq.AppendChild(cookie)
	value := ber.NewBytes(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, seq.Bytes()).
		Describe("Control Value (" + Paging.String() + ")")
	p.AppendChild(value)
	return p
}

func (c *PagingControl) String() string {
	return fmt.Sprintf("Control OID: %s Size: %d Cookie: %q", Paging, c.Size, c.Cookie)
}

func decodePaging(value *ber.Packet) (*PagingControl, error) {
	inner, err := decodeValueSequence(value)
	if err != nil {
		return nil, err
	}
	if len(inner.Children) != 2 {
		return nil, fmt.Errorf("control: paging control value must have 2 children, got %d", len(inner.Children))
	}
	size, ok := inner.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("control: paging size is not an integer")
	}
	return &PagingControl{
		Size:   uint32(size),
		Cookie: inner.Children[1].ByteValue(),
	}, nil
}

// ManageDsaITControl implements RFC 3296's ManageDsaIT control, which tells
// the server to operate on referral/alias entries themselves rather than
// following them.
type ManageDsaITControl struct {
	Criticality bool
}

func (c *ManageDsaITControl) OID() string { return ManageDsaIT.String() }

func (c *ManageDsaITControl) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil).Describe("Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ManageDsaIT.String()).
		Describe("Control OID (" + ManageDsaIT.String() + ")"))
	if c.Criticality {
		p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, c.Criticality).
			Describe("Criticality"))
	}
	return p
}

func (c *ManageDsaITControl) String() string {
	return fmt.Sprintf("Control OID: %s Criticality: %t", ManageDsaIT, c.Criticality)
}
