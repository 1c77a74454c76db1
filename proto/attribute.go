package proto

import (
	"strings"

	"github.com/buzz3791/dartdap/ber"
)

// Attribute is an AttributeList element used by AddRequest (RFC 4511
// section 4.7).
type Attribute struct {
	Type string
	Vals []string
}

// Encode returns the BER encoding of the attribute.
func (a Attribute) Encode() *ber.Packet {
	seq := ber.NewSequence().Describe("Attribute")
	seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a.Type).Describe("Type"))
	set := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil).Describe("AttributeValue")
	for _, v := range a.Vals {
		set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v))
	}
	seq.AppendChild(set)
	return seq
}

// DecodeAttribute decodes a single Attribute SEQUENCE.
func DecodeAttribute(p *ber.Packet) (Attribute, bool) {
	if len(p.Children) != 2 {
		return Attribute{}, false
	}
	typ, ok := p.Children[0].Value.(string)
	if !ok {
		return Attribute{}, false
	}
	a := Attribute{Type: typ}
	for _, v := range p.Children[1].Children {
		if s, ok := v.Value.(string); ok {
			a.Vals = append(a.Vals, s)
		}
	}
	return a, true
}

// ChangeOperation identifies the kind of modification a Change requests.
type ChangeOperation uint

// ChangeOperation values (RFC 4511 section 4.6).
const (
	AddAttribute       ChangeOperation = 0
	DeleteAttribute    ChangeOperation = 1
	ReplaceAttribute   ChangeOperation = 2
	IncrementAttribute ChangeOperation = 3 // RFC 4525
)

// PartialAttribute is the attribute named by a Change (RFC 4511 section
// 4.1.7); unlike Attribute, Vals may legally be empty (delete all values).
type PartialAttribute struct {
	Type string
	Vals []string
}

// Encode returns the BER encoding of the partial attribute.
func (p PartialAttribute) Encode() *ber.Packet {
	seq := ber.NewSequence().Describe("PartialAttribute")
	seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, p.Type).Describe("Type"))
	set := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil).Describe("AttributeValue")
	for _, v := range p.Vals {
		set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v))
	}
	seq.AppendChild(set)
	return seq
}

// Change is a single element of a ModifyRequest's changes SEQUENCE.
type Change struct {
	Operation    ChangeOperation
	Modification PartialAttribute
}

// Encode returns the BER encoding of the change.
func (c Change) Encode() *ber.Packet {
	seq := ber.NewSequence().Describe("Change")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(c.Operation)).Describe("Operation"))
	seq.AppendChild(c.Modification.Encode())
	return seq
}

// EntryAttribute is a single attribute of a SearchResultEntry, carrying both
// string and raw byte representations of each value.
type EntryAttribute struct {
	Name       string
	Values     []string
	ByteValues [][]byte
}

// GetValue returns the first value, or "" if there are none.
func (a *EntryAttribute) GetValue() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

// Entry is a single SearchResultEntry.
type Entry struct {
	DN         string
	Attributes []*EntryAttribute
}

// GetAttributeValues returns the values for the named attribute, or nil.
func (e *Entry) GetAttributeValues(name string) []string {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Values
		}
	}
	return nil
}

// GetAttributeValue returns the first value for the named attribute, or "".
func (e *Entry) GetAttributeValue(name string) string {
	values := e.GetAttributeValues(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// DecodeEntry decodes a SearchResultEntry protocolOp body (the op packet's
// children, not including the application tag itself).
func DecodeEntry(p *ber.Packet) (*Entry, error) {
	if len(p.Children) != 2 {
		return nil, NewErrorf(ResultProtocolError, "search result entry must have 2 children, got %d", len(p.Children))
	}
	dn, ok := p.Children[0].Value.(string)
	if !ok {
		return nil, NewError(ResultProtocolError, "search result entry objectName is not a string")
	}
	entry := &Entry{DN: dn}
	for _, attr := range p.Children[1].Children {
		if len(attr.Children) != 2 {
			continue
		}
		name, _ := attr.Children[0].Value.(string)
		ea := &EntryAttribute{Name: name}
		for _, v := range attr.Children[1].Children {
			if s, ok := v.Value.(string); ok {
				ea.Values = append(ea.Values, s)
			}
			ea.ByteValues = append(ea.ByteValues, v.ByteValue())
		}
		entry.Attributes = append(entry.Attributes, ea)
	}
	return entry, nil
}
