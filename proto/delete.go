package proto

import (
	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// DeleteRequest is a DelRequest (RFC 4511 section 4.8). Unusually for LDAP,
// its value is the DN itself rather than a SEQUENCE.
type DeleteRequest struct {
	DN       string
	Controls []control.Control
}

// Encode returns the complete LDAPMessage for the delete request.
func (req *DeleteRequest) Encode(id int64) *ber.Packet {
	p := ber.NewString(ber.ClassApplication, ber.TypePrimitive, ApplicationDeleteRequest.Tag(), req.DN).Describe("DelRequest")
	return EncodeEnvelope(id, p, req.Controls...)
}

// DeleteResponse is the result of a DeleteRequest.
type DeleteResponse struct {
	LDAPResult
}

// DecodeDeleteResponse decodes a DelResponse protocolOp.
func DecodeDeleteResponse(p *ber.Packet) (*DeleteResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &DeleteResponse{*res}, nil
}
