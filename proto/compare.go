package proto

import "github.com/buzz3791/dartdap/ber"

// CompareRequest is a CompareRequest (RFC 4511 section 4.10). Its result is
// communicated entirely through the response's resultCode (compareTrue or
// compareFalse), never a value.
type CompareRequest struct {
	DN        string
	Attribute string
	Value     string
}

// Encode returns the complete LDAPMessage for the compare request.
func (req *CompareRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationCompareRequest.Tag(), nil).Describe("CompareRequest")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN).Describe("DN"))
	ava := ber.NewSequence().Describe("AttributeValueAssertion")
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Attribute).Describe("Attribute"))
	ava.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.Value).Describe("Value"))
	p.AppendChild(ava)
	return EncodeEnvelope(id, p)
}

// CompareResponse is the result of a CompareRequest; Result will be one of
// ResultCompareTrue or ResultCompareFalse on success.
type CompareResponse struct {
	LDAPResult
}

// DecodeCompareResponse decodes a CompareResponse protocolOp.
func DecodeCompareResponse(p *ber.Packet) (*CompareResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &CompareResponse{*res}, nil
}

// Bool reports the boolean outcome of a compare, treating any resultCode
// other than compareTrue/compareFalse as an error.
func (res *CompareResponse) Bool() (bool, error) {
	switch res.Result {
	case ResultCompareTrue:
		return true, nil
	case ResultCompareFalse:
		return false, nil
	default:
		return false, &Error{res.LDAPResult}
	}
}
