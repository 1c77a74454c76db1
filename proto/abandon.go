package proto

import "github.com/buzz3791/dartdap/ber"

// AbandonRequest is an AbandonRequest (RFC 4511 section 4.11). It carries no
// response; the abandoned operation simply stops producing PDUs.
type AbandonRequest struct {
	MessageID int64
}

// Encode returns the complete LDAPMessage for the abandon request.
func (req *AbandonRequest) Encode(id int64) *ber.Packet {
	p := ber.NewInteger(ber.ClassApplication, ber.TypePrimitive, ApplicationAbandonRequest.Tag(), req.MessageID).Describe("AbandonRequest")
	return EncodeEnvelope(id, p)
}
