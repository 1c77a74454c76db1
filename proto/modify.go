package proto

import (
	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// ModifyRequest is a ModifyRequest (RFC 4511 section 4.6).
type ModifyRequest struct {
	DN       string
	Changes  []Change
	Controls []control.Control
}

// Add appends an add-value change.
func (req *ModifyRequest) Add(attrType string, vals []string) {
	req.append(AddAttribute, attrType, vals)
}

// Delete appends a delete-value change.
func (req *ModifyRequest) Delete(attrType string, vals []string) {
	req.append(DeleteAttribute, attrType, vals)
}

// Replace appends a replace-value change.
func (req *ModifyRequest) Replace(attrType string, vals []string) {
	req.append(ReplaceAttribute, attrType, vals)
}

// Increment appends an increment change (RFC 4525).
func (req *ModifyRequest) Increment(attrType, val string) {
	req.append(IncrementAttribute, attrType, []string{val})
}

func (req *ModifyRequest) append(op ChangeOperation, attrType string, vals []string) {
	req.Changes = append(req.Changes, Change{
		Operation:    op,
		Modification: PartialAttribute{Type: attrType, Vals: vals},
	})
}

// Encode returns the complete LDAPMessage for the modify request.
func (req *ModifyRequest) Encode(id int64) *ber.Packet {
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationModifyRequest.Tag(), nil).Describe("ModifyRequest")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, req.DN).Describe("DN"))
	changes := ber.NewSequence().Describe("Changes")
	for _, c := range req.Changes {
		changes.AppendChild(c.Encode())
	}
	p.AppendChild(changes)
	return EncodeEnvelope(id, p, req.Controls...)
}

// ModifyResponse is the result of a ModifyRequest.
type ModifyResponse struct {
	LDAPResult
}

// DecodeModifyResponse decodes a ModifyResponse protocolOp.
func DecodeModifyResponse(p *ber.Packet) (*ModifyResponse, error) {
	res, err := DecodeLDAPResult(p)
	if err != nil {
		return nil, err
	}
	return &ModifyResponse{*res}, nil
}
