package proto

import (
	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// AddRequest is an AddRequest (RFC 4511 section 4.7).
type AddRequest struct {
	DN         string
	Attributes []Attribute
	Controls   []control.Control
}

// Encode returns the complete LDAPMessage for the add request.
func (req *AddRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationAddRequest.Tag(), nil).Describe("AddRequest")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN).Describe("DN"))
	attrs := ber.NewSequence().Describe("Attributes")
	for _, a := range req.Attributes {
		attrs.AppendChild(a.Encode())
	}
	p.AppendChild(attrs)
	return EncodeEnvelope(id, p, req.Controls...)
}

// AddResponse is the result of an AddRequest.
type AddResponse struct {
	LDAPResult
}

// DecodeAddResponse decodes an AddResponse protocolOp.
func DecodeAddResponse(p *ber.Packet) (*AddResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &AddResponse{*res}, nil
}
