package proto

import "github.com/buzz3791/dartdap/ber"

// UnbindRequest terminates a protocol session (RFC 4511 section 4.3). It
// carries no response.
type UnbindRequest struct{}

// Encode returns the complete LDAPMessage for the unbind request.
func (req *UnbindRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypePrimitive, ApplicationUnbindRequest.Tag(), nil).Describe("UnbindRequest")
	return EncodeEnvelope(id, p)
}
