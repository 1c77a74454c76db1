package proto

import (
	"time"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
	"github.com/buzz3791/dartdap/filter"
)

// Scope is a SearchRequest scope (RFC 4511 section 4.5.1.2).
type Scope int64

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

func (s Scope) String() string {
	switch s {
	case ScopeBaseObject:
		return "BaseObject"
	case ScopeSingleLevel:
		return "SingleLevel"
	case ScopeWholeSubtree:
		return "WholeSubtree"
	}
	return "Scope(unknown)"
}

// DerefAliases is a SearchRequest derefAliases choice (RFC 4511 section
// 4.5.1.3).
type DerefAliases int64

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

// SearchRequest is a SearchRequest (RFC 4511 section 4.5.1).
type SearchRequest struct {
	BaseDN       string
	Scope        Scope
	DerefAliases DerefAliases
	SizeLimit    int64
	TimeLimit    time.Duration
	TypesOnly    bool
	Filter       string
	Attributes   []string
	Controls     []control.Control
}

// Encode returns the complete LDAPMessage for the search request.
func (req *SearchRequest) Encode(id int64) (*ber.Packet, error) {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchRequest.Tag(), nil).Describe("SearchRequest")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.BaseDN).Describe("Base DN"))
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(req.Scope)).Describe("Scope"))
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(req.DerefAliases)).Describe("Deref Aliases"))
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, req.SizeLimit).Describe("Size Limit"))
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(req.TimeLimit/time.Second)).Describe("Time Limit"))
	p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, req.TypesOnly).Describe("Types Only"))
	f, err := filter.Compile(req.Filter)
	if err != nil {
		return nil, NewErrorf(ResultFilterError, "compiling filter %q: %v", req.Filter, err)
	}
	p.AppendChild(f.Encode())
	attrs := ber.NewSequence().Describe("Attributes")
	for _, a := range req.Attributes {
		attrs.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, a))
	}
	p.AppendChild(attrs)
	return EncodeEnvelope(id, p, req.Controls...), nil
}

// ResultFilterError reports that a filter string failed to compile.
const ResultFilterError Result = 87

// SearchResultReference is a SearchResultReference PDU (RFC 4511 section
// 4.5.2).
type SearchResultReference struct {
	URIs []string
}

// DecodeSearchResultReference decodes a SearchResultReference protocolOp.
func DecodeSearchResultReference(p *ber.Packet) (*SearchResultReference, error) {
	ref := &SearchResultReference{}
	for _, c := range p.Children {
		if s, ok := c.Value.(string); ok {
			ref.URIs = append(ref.URIs, s)
		}
	}
	return ref, nil
}

// SearchResultDone is the terminal PDU of a search operation.
type SearchResultDone struct {
	LDAPResult
}

// DecodeSearchResultDone decodes a SearchResultDone protocolOp.
func DecodeSearchResultDone(p *ber.Packet) (*SearchResultDone, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &SearchResultDone{*res}, nil
}
