package ber

import (
	"bytes"
	"math"
	"testing"
)

func TestParseInt64(t *testing.T) {
	t.Parallel()
	tests := []int64{
		0,
		10,
		128,
		1024,
		math.MaxInt64,
		-1,
		-100,
		-128,
		-1024,
		math.MinInt64,
	}
	for _, exp := range tests {
		i, err := ParseInt64(EncodeInt64(exp))
		if err != nil {
			t.Fatalf("error decoding %d: %v", exp, err)
		}
		if i != exp {
			t.Errorf("expected %d, got: %d", exp, i)
		}
	}
}

func TestParseHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v        []byte
		expN     int
		expClass Class
		expType  Type
		expTag   Tag
		expCount int
		err      string
	}{
		{ // empty
			v: []byte{}, err: "unexpected EOF",
		},
		{ // valid short form
			v:        []byte{byte(ClassUniversal) | byte(TypePrimitive) | byte(TagCharacterString), 127},
			expN:     2,
			expClass: ClassUniversal,
			expType:  TypePrimitive,
			expTag:   TagCharacterString,
			expCount: 127,
			err:      "",
		},
		{ // high-tag-number identifier is rejected before the length is read
			v: []byte{
				byte(ClassUniversal) | byte(TypePrimitive) | byte(tagHigh),
				byte(TagCharacterString),
				longFormBitmaskLen | 1,
				127,
			},
			expN: 1,
			err:  string(ErrTagTooLargeForLDAP),
		},
		{ // indefinite length on a constructed type is still rejected
			v: []byte{
				byte(ClassUniversal) | byte(TypeConstructed) | byte(TagCharacterString),
				longFormBitmaskLen,
			},
			expClass: ClassUniversal,
			expType:  TypeConstructed,
			expTag:   TagCharacterString,
			expN:     2,
			err:      string(ErrIndefiniteLengthNotAllowed),
		},
		{ // indefinite length on a primitive type is rejected
			v: []byte{
				byte(ClassUniversal) | byte(TypePrimitive) | byte(TagCharacterString),
				longFormBitmaskLen,
			},
			expClass: ClassUniversal,
			expType:  TypePrimitive,
			expTag:   TagCharacterString,
			expN:     2,
			err:      string(ErrIndefiniteLengthNotAllowed),
		},
	}
	for i, test := range tests {
		n, class, typ, tag, count, err := ParseHeader(bytes.NewReader(test.v))
		switch {
		case err != nil && test.err == "":
			t.Errorf("test %d: unexpected error: %v", i, err)
		case err != nil && err.Error() != test.err:
			t.Errorf("test %d: expected error %v, got: %v", i, test.err, err)
		case err == nil && test.err != "":
			t.Errorf("test %d: expected error: %v", i, test.err)
		case n != test.expN:
			t.Errorf("test %d: expected read %d, got: %d", i, test.expN, n)
		case class != test.expClass:
			t.Errorf("test %d: expected class type %s, got: %s", i, test.expClass, class)
		case typ != test.expType:
			t.Errorf("test %d: expected tag type %s, got: %s", i, test.expType, typ)
		case tag != test.expTag:
			t.Errorf("test %d: expected tag %s, got %s", i, test.expTag, tag)
		case err == nil && count != test.expCount:
			t.Errorf("test %d: expected count %d, got %d", i, test.expCount, count)
		}
	}
}

func TestParseIdentifier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v        []byte
		expClass Class
		expType  Type
		expTag   Tag
		expN     int
		err      string
	}{
		{
			v:    []byte{},
			expN: 0,
			err:  "unexpected EOF",
		},
		{
			v:        []byte{byte(ClassUniversal) | byte(TypePrimitive) | byte(TagEOC)},
			expClass: ClassUniversal,
			expType:  TypePrimitive,
			expTag:   TagEOC,
			expN:     1,
		},
		{
			v:        []byte{byte(ClassUniversal) | byte(TypePrimitive) | byte(TagCharacterString)},
			expClass: ClassUniversal,
			expType:  TypePrimitive,
			expTag:   TagCharacterString,
			expN:     1,
		},
		{
			v:        []byte{byte(ClassUniversal) | byte(TypeConstructed) | byte(TagBitString)},
			expClass: ClassUniversal,
			expType:  TypeConstructed,
			expTag:   TagBitString,
			expN:     1,
		},
		{
			v:        []byte{byte(ClassApplication) | byte(TypeConstructed) | byte(TagObjectDescriptor)},
			expClass: ClassApplication,
			expType:  TypeConstructed,
			expTag:   TagObjectDescriptor,
			expN:     1,
		},
		{
			v:        []byte{byte(ClassContext) | byte(TypeConstructed) | byte(TagObjectDescriptor)},
			expClass: ClassContext,
			expType:  TypeConstructed,
			expTag:   TagObjectDescriptor,
			expN:     1,
		},
		{
			v:        []byte{byte(ClassPrivate) | byte(TypeConstructed) | byte(TagObjectDescriptor)},
			expClass: ClassPrivate,
			expType:  TypeConstructed,
			expTag:   TagObjectDescriptor,
			expN:     1,
		},
		{ // high-tag-number form is always rejected, even one encoding a
			// tag that would otherwise fit in a single byte: LDAP tags
			// never need the escape at all.
			v:    []byte{byte(ClassUniversal) | byte(TypeConstructed) | byte(tagHigh), byte(TagObjectDescriptor)},
			expN: 1,
			err:  string(ErrTagTooLargeForLDAP),
		},
	}
	for i, test := range tests {
		n, class, typ, tag, err := ParseIdentifier(bytes.NewReader(test.v))
		switch {
		case err != nil && test.err == "":
			t.Errorf("test %d: unexpected error: %v", i, err)
		case err != nil && err.Error() != test.err:
			t.Errorf("test %d: expected error %v, got: %v", i, test.err, err)
		case err == nil && test.err != "":
			t.Errorf("test %d: expected error %v", i, test.err)
		case n != test.expN:
			t.Errorf("test %d: expected read %d, got: %d", i, test.expN, n)
		case class != test.expClass:
			t.Errorf("test %d: expected class %s, got: %s", i, test.expClass, class)
		case typ != test.expType:
			t.Errorf("test %d: expected tag %s, got: %s", i, test.expType, typ)
		case tag != test.expTag:
			t.Errorf("test %d: expected tag %s, got: %s", i, test.expTag, tag)
		}
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		v        []byte
		expN     int
		expCount int64
		err      string
	}{
		{
			v: []byte{}, expN: 0, err: "unexpected EOF",
		},
		{
			v: []byte{0xFF}, expN: 1, err: "invalid length",
		},
		{ // indefinite form: ParseCount itself still reports -1; rejection happens in ParseHeader
			v: []byte{longFormBitmaskLen}, expN: 1, expCount: -1,
		},
		{
			v: []byte{0}, expN: 1, expCount: 0,
		},
		{
			v: []byte{1}, expN: 1, expCount: 1,
		},
		{
			v: []byte{127}, expN: 1, expCount: 127,
		},
		{
			v: []byte{longFormBitmaskLen | 1}, expN: 1, err: "unexpected EOF",
		},
		{
			v: []byte{longFormBitmaskLen | 9}, expN: 1, err: "length value overflow",
		},
		{
			v: []byte{longFormBitmaskLen | 1, 0x0}, expN: 2,
		},
		{
			v: []byte{longFormBitmaskLen | 1, 127}, expN: 2, expCount: 127,
		},
		{
			v: []byte{longFormBitmaskLen | 4, 0x7F, 0xFF, 0xFF, 0xFF, 0xFF}, expN: 5, expCount: math.MaxInt32,
		},
		{
			v: []byte{longFormBitmaskLen | 8, 0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, expN: 9, expCount: math.MaxInt64,
		},
	}
	for i, test := range tests {
		if test.expCount != int64(int(test.expCount)) {
			continue
		}
		n, count, err := ParseCount(bytes.NewReader(test.v))
		switch {
		case err != nil && test.err == "":
			t.Errorf("test %d: expected no error, got: %v", i, err)
		case err != nil && err.Error() != test.err:
			t.Errorf("test %d: expected error %v, got %v", i, test.err, err)
		case err == nil && test.err != "":
			t.Errorf("test %d: expected error %v", i, test.err)
		case n != test.expN:
			t.Errorf("test %d: expected read %d, got %d", i, test.expN, n)
		case int64(count) != test.expCount:
			t.Errorf("test %d: expected count %d, got %d", i, test.expCount, count)
		}
	}
}

func TestEncodeIdentifier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		Class Class
		Type  Type
		Tag   Tag
		exp   []byte
	}{
		{
			Class: ClassUniversal,
			Type:  TypePrimitive,
			Tag:   TagEOC,
			exp:   []byte{byte(ClassUniversal) | byte(TypePrimitive) | byte(TagEOC)},
		},
		{
			Class: ClassApplication,
			Type:  TypeConstructed,
			Tag:   TagObjectDescriptor,
			exp:   []byte{byte(ClassApplication) | byte(TypeConstructed) | byte(TagObjectDescriptor)},
		},
		{
			Class: ClassUniversal,
			Type:  TypeConstructed,
			Tag:   TagBMPString,
			exp:   []byte{byte(ClassUniversal) | byte(TypeConstructed) | byte(TagBMPString)},
		},
		{
			Class: ClassUniversal,
			Type:  TypeConstructed,
			Tag:   TagBMPString + 1,
			exp:   []byte{byte(ClassUniversal) | byte(TypeConstructed) | byte(tagHigh), byte(TagBMPString + 1)},
		},
		{
			Class: ClassUniversal,
			Type:  TypeConstructed,
			Tag:   Tag(math.MaxInt64),
			exp: []byte{
				byte(ClassUniversal) | byte(TypeConstructed) | byte(tagHigh),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(tagHighContinueBitmask | 0x7f),
				byte(0x7f),
			},
		},
	}
	for i, test := range tests {
		buf := EncodeIdentifier(test.Class, test.Type, test.Tag)
		if !bytes.Equal(test.exp, buf) {
			t.Errorf("test %d: expected\n\t%#v\ngot\n\t%#v", i, test.exp, buf)
		}
	}
}

func TestEncodeTag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tag Tag
		exp []byte
	}{
		{134, []byte{0x80 + 0x01, 0x06}},
		{123456, []byte{0x80 + 0x07, 0x80 + 0x44, 0x40}},
		{0xFF, []byte{0x81, 0x7F}},
	}
	for _, test := range tests {
		if buf := EncodeTag(test.tag); !bytes.Equal(test.exp, buf) {
			t.Errorf("tag: %d exp: %#v got: %#v", test.tag, test.exp, buf)
		}
	}
}

func TestEncodeCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n   int64
		exp []byte
	}{
		{n: 0, exp: []byte{0}},
		{n: 1, exp: []byte{1}},
		{n: 127, exp: []byte{127}},
		{n: 128, exp: []byte{longFormBitmaskLen | 1, 128}},
		{
			n: math.MaxInt32,
			exp: []byte{
				longFormBitmaskLen | 4,
				0x7F, 0xFF, 0xFF, 0xFF,
			},
		},
		{
			n: math.MaxInt64,
			exp: []byte{
				longFormBitmaskLen | 8,
				0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
			},
		},
	}
	for i, test := range tests {
		if test.n != int64(int(test.n)) {
			continue
		}
		b := EncodeCount(int(test.n))
		if !bytes.Equal(test.exp, b) {
			t.Errorf("test %d: Expected\n\t%#v\ngot\n\t%#v", i, test.exp, b)
		}
	}
}
