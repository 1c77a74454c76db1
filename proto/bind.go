package proto

import (
	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// SimpleBindRequest is a simple (username/password) BindRequest, as defined
// in RFC 4511 section 4.2.
type SimpleBindRequest struct {
	Username string
	Password string
	Controls []control.Control
}

// Encode returns the complete LDAPMessage for the bind request.
func (req *SimpleBindRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationBindRequest.Tag(), nil).Describe("BindRequest")
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(3)).Describe("Version"))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Username).Describe("Name"))
	p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, req.Password).Describe("Simple Authentication"))
	return EncodeEnvelope(id, p, req.Controls...)
}

// BindResponse is the result of a BindRequest.
type BindResponse struct {
	LDAPResult
}

// DecodeBindResponse decodes a BindResponse protocolOp.
func DecodeBindResponse(p *ber.Packet) (*BindResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &BindResponse{*res}, nil
}
