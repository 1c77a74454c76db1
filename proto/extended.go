package proto

import "github.com/buzz3791/dartdap/ber"

// ExtendedOp is an extended operation's request/response name OID.
type ExtendedOp string

func (op ExtendedOp) String() string { return string(op) }

// Well-known extended operation OIDs.
const (
	ExtendedOpStartTLS       ExtendedOp = "1.3.6.1.4.1.1466.20037"
	ExtendedOpWhoAmI         ExtendedOp = "1.3.6.1.4.1.4203.1.11.3"
	ExtendedOpPasswordModify ExtendedOp = "1.3.6.1.4.1.4203.1.11.1"
	ExtendedOpCancel         ExtendedOp = "1.3.6.1.4.1.4203.1.11.2"
)

// ExtendedRequest is an ExtendedRequest (RFC 4511 section 4.12). Value, if
// non-nil, is passed through unparsed; extended operation payloads are not
// interpreted beyond this package other than password-modify below.
type ExtendedRequest struct {
	Name  ExtendedOp
	Value []byte
}

// Encode returns the complete LDAPMessage for the extended request.
func (req *ExtendedRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationExtendedRequest.Tag(), nil).Describe("ExtendedRequest")
	p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, string(req.Name)).Describe("Request Name"))
	if req.Value != nil {
		p.AppendChild(ber.NewBytes(ber.ClassContext, ber.TypePrimitive, 1, req.Value).Describe("Request Value"))
	}
	return EncodeEnvelope(id, p)
}

// ExtendedResponse is the result of an ExtendedRequest.
type ExtendedResponse struct {
	LDAPResult
	Name  ExtendedOp
	Value []byte
}

// DecodeExtendedResponse decodes an ExtendedResponse protocolOp.
func DecodeExtendedResponse(p *ber.Packet) (*ExtendedResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	out := &ExtendedResponse{LDAPResult: *res}
	for _, c := range p.Children[3:] {
		switch c.Class {
		case ber.ClassContext:
			switch c.Tag {
			case 10:
				if s, ok := c.Value.(string); ok {
					out.Name = ExtendedOp(s)
				} else {
					out.Name = ExtendedOp(c.ByteValue())
				}
			case 11:
				out.Value = c.ByteValue()
			}
		}
	}
	return out, nil
}

// NewWhoAmIRequest returns an extended request for RFC 4532's "Who am I?"
// operation.
func NewWhoAmIRequest() *ExtendedRequest {
	return &ExtendedRequest{Name: ExtendedOpWhoAmI}
}

// NewPasswordModifyRequest returns an extended request for RFC 3062's
// Password Modify operation.
func NewPasswordModifyRequest(userIdentity, oldPassword, newPassword string) *ExtendedRequest {
	value := ber.NewSequence()
	if userIdentity != "" {
		value.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, userIdentity).Describe("userIdentity"))
	}
	if oldPassword != "" {
		value.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 1, oldPassword).Describe("oldPasswd"))
	}
	if newPassword != "" {
		value.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 2, newPassword).Describe("newPasswd"))
	}
	return &ExtendedRequest{Name: ExtendedOpPasswordModify, Value: value.Bytes()}
}

// DecodePasswordModifyResponseValue decodes the genPassword field of a
// Password Modify response, if the server generated one.
func DecodePasswordModifyResponseValue(value []byte) (string, error) {
	if len(value) == 0 {
		return "", nil
	}
	p, err := ber.DecodePacket(value)
	if err != nil {
		return "", NewErrorf(ResultProtocolError, "decoding password modify response value: %v", err)
	}
	if len(p.Children) == 0 {
		return "", nil
	}
	return string(p.Children[0].ByteValue()), nil
}
