// Package filter implements the RFC 4515 LDAP search filter string syntax
// and its RFC 4511 §4.5.1 BER encoding as a typed tree of filter nodes,
// rather than a bare *ber.Packet, so callers pattern-match on concrete
// Go types instead of inspecting tags by hand.
package filter

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/buzz3791/dartdap/ber"
)

// Choice tags of the LDAP Filter CHOICE (RFC 4511 §4.5.1.7).
const (
	TagAnd             ber.Tag = 0
	TagOr              ber.Tag = 1
	TagNot             ber.Tag = 2
	TagEqualityMatch   ber.Tag = 3
	TagSubstrings      ber.Tag = 4
	TagGreaterOrEqual  ber.Tag = 5
	TagLessOrEqual     ber.Tag = 6
	TagPresent         ber.Tag = 7
	TagApproxMatch     ber.Tag = 8
	TagExtensibleMatch ber.Tag = 9
)

// Substring choice tags within a SubstringFilter's substrings SEQUENCE.
const (
	tagSubstringInitial ber.Tag = 0
	tagSubstringAny     ber.Tag = 1
	tagSubstringFinal   ber.Tag = 2
)

// MatchingRuleAssertion field tags of an ExtensibleMatch.
const (
	tagRuleMatchingRule ber.Tag = 1
	tagRuleType         ber.Tag = 2
	tagRuleMatchValue   ber.Tag = 3
	tagRuleDNAttributes ber.Tag = 4
)

var star = []byte{'*'}

// Filter is a node in a parsed or to-be-encoded LDAP search filter tree.
type Filter interface {
	// Tag returns the node's Filter CHOICE tag.
	Tag() ber.Tag
	// Encode returns the node's RFC 4511 BER encoding.
	Encode() *ber.Packet
}

// And is a conjunction of zero or more filters (an empty And matches
// everything, per RFC 4511).
type And struct{ Filters []Filter }

// Or is a disjunction of zero or more filters.
type Or struct{ Filters []Filter }

// Not negates a single filter.
type Not struct{ Filter Filter }

// Equality is an attribute-value equality assertion.
type Equality struct{ Attr, Value string }

// Substring is a substring assertion: Initial anchors the match at the
// start of the value, Final at the end, and Any matches anywhere, in
// order, between them. HasInitial/HasFinal distinguish "no initial
// segment" from "an empty initial segment", matching the distinction
// RFC 4515's `attr=*value` vs `attr=value*` syntax makes.
type Substring struct {
	Attr       string
	Initial    string
	HasInitial bool
	Any        []string
	Final      string
	HasFinal   bool
}

// GreaterOrEqual is an ordering assertion.
type GreaterOrEqual struct{ Attr, Value string }

// LessOrEqual is an ordering assertion.
type LessOrEqual struct{ Attr, Value string }

// Present asserts that an attribute has at least one value.
type Present struct{ Attr string }

// Approx is an approximate-match assertion.
type Approx struct{ Attr, Value string }

// Extensible is a generalized matching-rule assertion (RFC 4515 §3,
// RFC 4511 §4.5.1.7.7). Attr, MatchingRule, and DNAttributes are
// optional per the grammar; Value is mandatory.
type Extensible struct {
	Attr         string
	MatchingRule string
	Value        string
	DNAttributes bool
}

func (f *And) Tag() ber.Tag            { return TagAnd }
func (f *Or) Tag() ber.Tag             { return TagOr }
func (f *Not) Tag() ber.Tag            { return TagNot }
func (f *Equality) Tag() ber.Tag       { return TagEqualityMatch }
func (f *Substring) Tag() ber.Tag      { return TagSubstrings }
func (f *GreaterOrEqual) Tag() ber.Tag { return TagGreaterOrEqual }
func (f *LessOrEqual) Tag() ber.Tag    { return TagLessOrEqual }
func (f *Present) Tag() ber.Tag        { return TagPresent }
func (f *Approx) Tag() ber.Tag         { return TagApproxMatch }
func (f *Extensible) Tag() ber.Tag     { return TagExtensibleMatch }

func (f *And) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagAnd, nil)
	for _, child := range f.Filters {
		p.AppendChild(child.Encode())
	}
	return p
}

func (f *Or) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagOr, nil)
	for _, child := range f.Filters {
		p.AppendChild(child.Encode())
	}
	return p
}

func (f *Not) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagNot, nil)
	p.AppendChild(f.Filter.Encode())
	return p
}

func (f *Equality) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagEqualityMatch, nil)
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attr))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Value))
	return p
}

func (f *Substring) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagSubstrings, nil)
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attr))
	seq := ber.NewSequence()
	if f.HasInitial {
		seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagSubstringInitial, f.Initial))
	}
	for _, a := range f.Any {
		seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagSubstringAny, a))
	}
	if f.HasFinal {
		seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagSubstringFinal, f.Final))
	}
	p.AppendChild(seq)
	return p
}

func (f *GreaterOrEqual) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagGreaterOrEqual, nil)
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attr))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Value))
	return p
}

func (f *LessOrEqual) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagLessOrEqual, nil)
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attr))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Value))
	return p
}

func (f *Present) Encode() *ber.Packet {
	return ber.NewString(ber.ClassContext, ber.TypePrimitive, TagPresent, f.Attr)
}

func (f *Approx) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagApproxMatch, nil)
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Attr))
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, f.Value))
	return p
}

func (f *Extensible) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassContext, ber.TypeConstructed, TagExtensibleMatch, nil)
	if f.MatchingRule != "" {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagRuleMatchingRule, f.MatchingRule))
	}
	if f.Attr != "" {
		p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagRuleType, f.Attr))
	}
	p.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, tagRuleMatchValue, f.Value))
	if f.DNAttributes {
		p.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, tagRuleDNAttributes, true))
	}
	return p
}

// Decode converts a BER-encoded filter packet (as found embedded in a
// SearchRequest, or produced by Encode) back into a typed Filter tree.
func Decode(p *ber.Packet) (Filter, error) {
	switch p.Tag {
	case TagAnd:
		f := &And{}
		for _, child := range p.Children {
			cf, err := Decode(child)
			if err != nil {
				return nil, err
			}
			f.Filters = append(f.Filters, cf)
		}
		return f, nil
	case TagOr:
		f := &Or{}
		for _, child := range p.Children {
			cf, err := Decode(child)
			if err != nil {
				return nil, err
			}
			f.Filters = append(f.Filters, cf)
		}
		return f, nil
	case TagNot:
		if len(p.Children) != 1 {
			return nil, Errorf("not filter must have exactly one child")
		}
		cf, err := Decode(p.Children[0])
		if err != nil {
			return nil, err
		}
		return &Not{Filter: cf}, nil
	case TagEqualityMatch:
		if len(p.Children) != 2 {
			return nil, Errorf("equalityMatch filter must have two children")
		}
		return &Equality{Attr: childString(p.Children[0]), Value: childString(p.Children[1])}, nil
	case TagGreaterOrEqual:
		if len(p.Children) != 2 {
			return nil, Errorf("greaterOrEqual filter must have two children")
		}
		return &GreaterOrEqual{Attr: childString(p.Children[0]), Value: childString(p.Children[1])}, nil
	case TagLessOrEqual:
		if len(p.Children) != 2 {
			return nil, Errorf("lessOrEqual filter must have two children")
		}
		return &LessOrEqual{Attr: childString(p.Children[0]), Value: childString(p.Children[1])}, nil
	case TagApproxMatch:
		if len(p.Children) != 2 {
			return nil, Errorf("approxMatch filter must have two children")
		}
		return &Approx{Attr: childString(p.Children[0]), Value: childString(p.Children[1])}, nil
	case TagPresent:
		return &Present{Attr: childString(p)}, nil
	case TagSubstrings:
		if len(p.Children) != 2 {
			return nil, Errorf("substrings filter must have two children")
		}
		f := &Substring{Attr: childString(p.Children[0])}
		for i, sub := range p.Children[1].Children {
			switch sub.Tag {
			case tagSubstringInitial:
				f.Initial, f.HasInitial = childString(sub), true
			case tagSubstringFinal:
				f.Final, f.HasFinal = childString(sub), true
			case tagSubstringAny:
				f.Any = append(f.Any, childString(sub))
			default:
				return nil, Errorf("substrings filter: unknown substring tag at index %d", i)
			}
		}
		return f, nil
	case TagExtensibleMatch:
		f := &Extensible{}
		for _, child := range p.Children {
			switch child.Tag {
			case tagRuleMatchingRule:
				f.MatchingRule = childString(child)
			case tagRuleType:
				f.Attr = childString(child)
			case tagRuleMatchValue:
				f.Value = childString(child)
			case tagRuleDNAttributes:
				if b, ok := child.Value.(bool); ok {
					f.DNAttributes = b
				} else {
					bs := child.ByteValue()
					f.DNAttributes = len(bs) > 0 && bs[0] != 0
				}
			}
		}
		return f, nil
	}
	return nil, Errorf("unknown filter tag %s", p.Tag)
}

func childString(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	return string(p.ByteValue())
}

// Compile parses an RFC 4515 string filter into a Filter tree.
func Compile(s string) (Filter, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, Error{"filter does not start with an '('"}
	}
	f, pos, err := compile(s, 1)
	if err != nil {
		return nil, err
	}
	switch {
	case pos > len(s):
		return nil, Error{"unexpected end of filter"}
	case pos < len(s):
		return nil, Errorf("finished compiling filter with extra at end: %s", s[pos:])
	}
	return f, nil
}

// Decompile renders a Filter tree back into its RFC 4515 string form.
func Decompile(f Filter) (string, error) {
	buf := new(bytes.Buffer)
	if err := decompile(buf, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decompile(buf *bytes.Buffer, f Filter) error {
	buf.WriteByte('(')
	switch v := f.(type) {
	case *And:
		buf.WriteByte('&')
		for _, child := range v.Filters {
			if err := decompile(buf, child); err != nil {
				return err
			}
		}
	case *Or:
		buf.WriteByte('|')
		for _, child := range v.Filters {
			if err := decompile(buf, child); err != nil {
				return err
			}
		}
	case *Not:
		buf.WriteByte('!')
		if err := decompile(buf, v.Filter); err != nil {
			return err
		}
	case *Substring:
		buf.WriteString(v.Attr)
		buf.WriteByte('=')
		if !v.HasInitial {
			buf.Write(star)
		} else {
			buf.WriteString(Escape(v.Initial))
			buf.Write(star)
		}
		for _, a := range v.Any {
			buf.WriteString(Escape(a))
			buf.Write(star)
		}
		if v.HasFinal {
			buf.WriteString(Escape(v.Final))
		}
	case *Equality:
		buf.WriteString(v.Attr)
		buf.WriteByte('=')
		buf.WriteString(Escape(v.Value))
	case *GreaterOrEqual:
		buf.WriteString(v.Attr)
		buf.WriteString(">=")
		buf.WriteString(Escape(v.Value))
	case *LessOrEqual:
		buf.WriteString(v.Attr)
		buf.WriteString("<=")
		buf.WriteString(Escape(v.Value))
	case *Present:
		buf.WriteString(v.Attr)
		buf.WriteString("=*")
	case *Approx:
		buf.WriteString(v.Attr)
		buf.WriteString("~=")
		buf.WriteString(Escape(v.Value))
	case *Extensible:
		if v.Attr != "" {
			buf.WriteString(v.Attr)
		}
		if v.DNAttributes {
			buf.WriteString(":dn")
		}
		if v.MatchingRule != "" {
			buf.WriteByte(':')
			buf.WriteString(v.MatchingRule)
		}
		buf.WriteString(":=")
		buf.WriteString(Escape(v.Value))
	default:
		return Errorf("unknown filter type %T", f)
	}
	buf.WriteByte(')')
	return nil
}

func compileSet(s string, pos int, append_ func(Filter)) (int, error) {
	for pos < len(s) && s[pos] == '(' {
		child, newPos, err := compile(s, pos+1)
		if err != nil {
			return pos, err
		}
		pos = newPos
		append_(child)
	}
	if pos == len(s) {
		return pos, Error{"unexpected end of filter"}
	}
	return pos + 1, nil
}

func compile(s string, pos int) (Filter, int, error) {
	newPos := pos
	currentRune, currentWidth := utf8.DecodeRuneInString(s[newPos:])
	switch currentRune {
	case utf8.RuneError:
		return nil, 0, Errorf("error reading rune at position %d", newPos)
	case '(':
		f, np, err := compile(s, pos+currentWidth)
		return f, np + 1, err
	case '&':
		f := &And{}
		np, err := compileSet(s, pos+currentWidth, func(c Filter) { f.Filters = append(f.Filters, c) })
		return f, np, err
	case '|':
		f := &Or{}
		np, err := compileSet(s, pos+currentWidth, func(c Filter) { f.Filters = append(f.Filters, c) })
		return f, np, err
	case '!':
		child, np, err := compile(s, pos+currentWidth)
		if err != nil {
			return nil, np, err
		}
		return &Not{Filter: child}, np, nil
	default:
		return compileAssertion(s, pos)
	}
}

const (
	stateReadingAttr                   = 0
	stateReadingExtensibleMatchingRule = 1
	stateReadingCondition              = 2
)

func compileAssertion(s string, pos int) (Filter, int, error) {
	newPos := pos
	state := stateReadingAttr
	attribute := bytes.NewBuffer(nil)
	extensibleDNAttributes := false
	extensibleMatchingRule := bytes.NewBuffer(nil)
	condition := bytes.NewBuffer(nil)
	tag := ber.Tag(0)
	haveTag := false
	for newPos < len(s) {
		remaining := s[newPos:]
		currentRune, currentWidth := utf8.DecodeRuneInString(remaining)
		if currentRune == ')' {
			break
		}
		if currentRune == utf8.RuneError {
			return nil, newPos, Errorf("error reading rune at position %d", newPos)
		}
		switch state {
		case stateReadingAttr:
			switch {
			case currentRune == ':' && strings.HasPrefix(remaining, ":dn:="):
				tag, haveTag = TagExtensibleMatch, true
				extensibleDNAttributes = true
				state = stateReadingCondition
				newPos += 5
			case currentRune == ':' && strings.HasPrefix(remaining, ":dn:"):
				tag, haveTag = TagExtensibleMatch, true
				extensibleDNAttributes = true
				state = stateReadingExtensibleMatchingRule
				newPos += 4
			case currentRune == ':' && strings.HasPrefix(remaining, ":="):
				tag, haveTag = TagExtensibleMatch, true
				state = stateReadingCondition
				newPos += 2
			case currentRune == ':':
				tag, haveTag = TagExtensibleMatch, true
				state = stateReadingExtensibleMatchingRule
				newPos++
			case currentRune == '=':
				tag, haveTag = TagEqualityMatch, true
				state = stateReadingCondition
				newPos++
			case currentRune == '>' && strings.HasPrefix(remaining, ">="):
				tag, haveTag = TagGreaterOrEqual, true
				state = stateReadingCondition
				newPos += 2
			case currentRune == '<' && strings.HasPrefix(remaining, "<="):
				tag, haveTag = TagLessOrEqual, true
				state = stateReadingCondition
				newPos += 2
			case currentRune == '~' && strings.HasPrefix(remaining, "~="):
				tag, haveTag = TagApproxMatch, true
				state = stateReadingCondition
				newPos += 2
			default:
				attribute.WriteRune(currentRune)
				newPos += currentWidth
			}
		case stateReadingExtensibleMatchingRule:
			switch {
			case currentRune == ':' && strings.HasPrefix(remaining, ":="):
				state = stateReadingCondition
				newPos += 2
			default:
				extensibleMatchingRule.WriteRune(currentRune)
				newPos += currentWidth
			}
		case stateReadingCondition:
			condition.WriteRune(currentRune)
			newPos += currentWidth
		}
	}
	if newPos == len(s) {
		return nil, newPos, Error{"unexpected end of filter"}
	}
	if !haveTag {
		return nil, newPos, Error{"error parsing filter"}
	}
	var out Filter
	switch {
	case tag == TagExtensibleMatch:
		value, err := Unescape(condition.Bytes())
		if err != nil {
			return nil, newPos, err
		}
		out = &Extensible{
			Attr:         attribute.String(),
			MatchingRule: extensibleMatchingRule.String(),
			Value:        value,
			DNAttributes: extensibleDNAttributes,
		}
	case tag == TagEqualityMatch && bytes.Equal(condition.Bytes(), star):
		out = &Present{Attr: attribute.String()}
	case tag == TagEqualityMatch && bytes.Contains(condition.Bytes(), star):
		sf := &Substring{Attr: attribute.String()}
		parts := bytes.Split(condition.Bytes(), star)
		for i, part := range parts {
			if len(part) == 0 {
				continue
			}
			value, err := Unescape(part)
			if err != nil {
				return nil, newPos, err
			}
			switch i {
			case 0:
				sf.Initial, sf.HasInitial = value, true
			case len(parts) - 1:
				sf.Final, sf.HasFinal = value, true
			default:
				sf.Any = append(sf.Any, value)
			}
		}
		out = sf
	default:
		value, err := Unescape(condition.Bytes())
		if err != nil {
			return nil, newPos, err
		}
		switch tag {
		case TagEqualityMatch:
			out = &Equality{Attr: attribute.String(), Value: value}
		case TagGreaterOrEqual:
			out = &GreaterOrEqual{Attr: attribute.String(), Value: value}
		case TagLessOrEqual:
			out = &LessOrEqual{Attr: attribute.String(), Value: value}
		case TagApproxMatch:
			out = &Approx{Attr: attribute.String(), Value: value}
		}
	}
	_, currentWidth := utf8.DecodeRuneInString(s[newPos:])
	newPos += currentWidth
	return out, newPos, nil
}

// Unescape converts from "ABC\xx\xx\xx" form to literal bytes, per RFC
// 4515 §3.
func Unescape(src []byte) (string, error) {
	var (
		buffer  bytes.Buffer
		offset  int
		reader  = bytes.NewReader(src)
		byteHex []byte
		byteVal []byte
	)
	for {
		runeVal, runeSize, err := reader.ReadRune()
		switch {
		case err == io.EOF:
			return buffer.String(), nil
		case err != nil:
			return "", Errorf("failed to read filter: %v", err)
		case runeVal == unicode.ReplacementChar:
			return "", Errorf("error reading rune at position %d", offset)
		}
		if runeVal == '\\' {
			if byteHex == nil {
				byteHex = make([]byte, 2)
				byteVal = make([]byte, 1)
			}
			if _, err := io.ReadFull(reader, byteHex); err != nil {
				if err == io.ErrUnexpectedEOF || err == ber.ErrUnexpectedEOF {
					return "", Error{"missing characters for escape in filter"}
				}
				return "", Errorf("invalid characters for escape in filter: %v", err)
			}
			if _, err := hex.Decode(byteVal, byteHex); err != nil {
				return "", Errorf("invalid characters for escape in filter: %v", err)
			}
			buffer.Write(byteVal)
		} else {
			buffer.WriteRune(runeVal)
		}
		offset += runeSize
	}
}

// Escape escapes the characters `()*\` and any byte outside 0 < c < 0x80,
// per RFC 4515 §3.
func Escape(s string) string {
	escape := 0
	for i := 0; i < len(s); i++ {
		if mustEscape(s[i]) {
			escape++
		}
	}
	if escape == 0 {
		return s
	}
	buf := make([]byte, len(s)+escape*2)
	for i, j := 0, 0; i < len(s); i++ {
		c := s[i]
		if mustEscape(c) {
			buf[j+0] = '\\'
			buf[j+1] = hexchars[c>>4]
			buf[j+2] = hexchars[c&0xf]
			j += 3
		} else {
			buf[j] = c
			j++
		}
	}
	return string(buf)
}

const hexchars = "0123456789abcdef"

func mustEscape(c byte) bool {
	return c > 0x7f || c == '(' || c == ')' || c == '\\' || c == '*' || c == 0
}

// Error is a filter compile/decompile error.
type Error struct{ Msg string }

func (err Error) Error() string { return err.Msg }

// Errorf formats a new Error.
func Errorf(s string, v ...interface{}) error {
	return Error{fmt.Sprintf(s, v...)}
}
