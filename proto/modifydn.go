package proto

import (
	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// ModifyDNRequest is a ModDNRequest (RFC 4511 section 4.9).
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
	Controls     []control.Control
}

// Encode returns the complete LDAPMessage for the modify DN request.
func (req *ModifyDNRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationModifyDNRequest.Tag(), nil).Describe("ModifyDNRequest")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN).Describe("DN"))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.NewRDN).Describe("New RDN"))
	p.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, req.DeleteOldRDN).Describe("Delete Old RDN"))
	if req.NewSuperior != "" {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, req.NewSuperior).Describe("New Superior"))
	}
	return EncodeEnvelope(id, p, req.Controls...)
}

// ModifyDNResponse is the result of a ModifyDNRequest.
type ModifyDNResponse struct {
	LDAPResult
}

// DecodeModifyDNResponse decodes a ModDNResponse protocolOp.
func DecodeModifyDNResponse(p *ber.Packet) (*ModifyDNResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &ModifyDNResponse{*res}, nil
}
