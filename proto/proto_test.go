package proto

import (
	"testing"

	"github.com/buzz3791/dartdap/ber"
)

func TestBindRequestRoundTrip(t *testing.T) {
	t.Parallel()
	req := &SimpleBindRequest{Username: "cn=admin,dc=example,dc=org", Password: "secret"}
	env := req.Encode(1)
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	id, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("expected message id 1, got %d", id)
	}
	if op.Tag != ApplicationBindRequest.Tag() {
		t.Errorf("expected bind request tag, got %v", op.Tag)
	}
	if op.Children[1].Value.(string) != req.Username {
		t.Errorf("expected username %q, got %q", req.Username, op.Children[1].Value)
	}
}

func TestBindResponseSuccess(t *testing.T) {
	t.Parallel()
	p := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationBindResponse.Tag(), nil)
	p.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(ResultSuccess)))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ""))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, ""))
	res, err := DecodeBindResponse(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Result != ResultSuccess {
		t.Errorf("expected success, got %v", res.Result)
	}
}

func TestDeleteRequestEncoding(t *testing.T) {
	t.Parallel()
	req := &DeleteRequest{DN: "cn=foo,dc=example,dc=org"}
	env := req.Encode(2)
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	_, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(op.ByteValue()) != req.DN {
		t.Errorf("expected DN %q, got %q", req.DN, op.ByteValue())
	}
}

func TestSearchRequestEncodesFilter(t *testing.T) {
	t.Parallel()
	req := &SearchRequest{
		BaseDN:     "dc=example,dc=org",
		Scope:      ScopeWholeSubtree,
		Filter:     "(&(objectClass=person)(cn=bob))",
		Attributes: []string{"cn", "mail"},
	}
	env, err := req.Encode(3)
	if err != nil {
		t.Fatal(err)
	}
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	_, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(op.Children) != 8 {
		t.Fatalf("expected 8 children in SearchRequest, got %d", len(op.Children))
	}
}

func TestModifyRequestChanges(t *testing.T) {
	t.Parallel()
	req := &ModifyRequest{DN: "cn=foo,dc=example,dc=org"}
	req.Add("mail", []string{"foo@example.org"})
	req.Delete("description", nil)
	env := req.Encode(4)
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	_, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(op.Children[1].Children) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(op.Children[1].Children))
	}
}

func TestCompareResponseBool(t *testing.T) {
	t.Parallel()
	tests := []struct {
		result  Result
		want    bool
		wantErr bool
	}{
		{ResultCompareTrue, true, false},
		{ResultCompareFalse, false, false},
		{ResultNoSuchObject, false, true},
	}
	for _, test := range tests {
		res := &CompareResponse{LDAPResult{Result: test.result}}
		got, err := res.Bool()
		if (err != nil) != test.wantErr {
			t.Errorf("result %v: expected err=%v, got %v", test.result, test.wantErr, err)
		}
		if got != test.want {
			t.Errorf("result %v: expected %v, got %v", test.result, test.want, got)
		}
	}
}

func TestDecodeEntry(t *testing.T) {
	t.Parallel()
	op := ber.NewPacket(ber.ClassApplication, ber.TypeConstructed, ApplicationSearchResultEntry.Tag(), nil)
	op.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "cn=bob,dc=example,dc=org"))
	attrs := ber.NewSequence()
	attr := ber.NewSequence()
	attr.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "cn"))
	set := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil)
	set.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "bob"))
	attr.AppendChild(set)
	attrs.AppendChild(attr)
	op.AppendChild(attrs)
	entry, err := DecodeEntry(op)
	if err != nil {
		t.Fatal(err)
	}
	if entry.DN != "cn=bob,dc=example,dc=org" {
		t.Errorf("unexpected DN: %q", entry.DN)
	}
	if entry.GetAttributeValue("cn") != "bob" {
		t.Errorf("expected cn=bob, got %q", entry.GetAttributeValue("cn"))
	}
}

func TestAbandonRequestEncoding(t *testing.T) {
	t.Parallel()
	req := &AbandonRequest{MessageID: 7}
	env := req.Encode(8)
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	_, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := ber.ParseInt64(op.ByteValue()); err != nil || v != 7 {
		t.Errorf("expected abandoned message id 7, got %v (err %v)", v, err)
	}
}

func TestExtendedWhoAmIRoundTrip(t *testing.T) {
	t.Parallel()
	req := NewWhoAmIRequest()
	env := req.Encode(9)
	p, err := ber.DecodePacket(env.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	_, op, _, err := DecodeEnvelope(p)
	if err != nil {
		t.Fatal(err)
	}
	if op.Children[0].ByteValue() == nil {
		t.Error("expected request name value")
	}
}
