package control

import (
	"fmt"

	"github.com/buzz3791/dartdap/ber"
)

// Behera is a password policy response error code from
// draft-behera-ldap-password-policy-10.
type Behera int8

const (
	BeheraPasswordExpired             Behera = 0
	BeheraAccountLocked               Behera = 1
	BeheraChangeAfterReset            Behera = 2
	BeheraPasswordModNotAllowed       Behera = 3
	BeheraMustSupplyOldPassword       Behera = 4
	BeheraInsufficientPasswordQuality Behera = 5
	BeheraPasswordTooShort            Behera = 6
	BeheraPasswordTooYoung            Behera = 7
	BeheraPasswordInHistory           Behera = 8
	beheraNone                        Behera = -1
)

// BeheraPasswordPolicyErrorMap holds human-readable descriptions of each
// Behera response error code.
var BeheraPasswordPolicyErrorMap = map[Behera]string{
	BeheraPasswordExpired:             "password expired",
	BeheraAccountLocked:               "account locked",
	BeheraChangeAfterReset:            "password must be changed",
	BeheraPasswordModNotAllowed:       "policy prevents password modification",
	BeheraMustSupplyOldPassword:       "policy requires old password in order to change password",
	BeheraInsufficientPasswordQuality: "password fails quality checks",
	BeheraPasswordTooShort:            "password is too short for policy",
	BeheraPasswordTooYoung:            "password has been changed too recently",
	BeheraPasswordInHistory:           "new password is in list of old passwords",
}

// BeheraPasswordPolicyControl carries the warning/error fields of a
// password policy response control.
type BeheraPasswordPolicyControl struct {
	// Expire is the number of seconds before the password expires, or -1.
	Expire int64
	// Grace is the remaining number of grace authentications, or -1.
	Grace int64
	// Error is the response error code, or -1 if none was sent.
	Error       Behera
	ErrorString string
}

// NewBeheraPasswordPolicy returns a password policy control request. The
// request carries no value; the server attaches warnings/errors in its
// response control.
func NewBeheraPasswordPolicy() *BeheraPasswordPolicyControl {
	return &BeheraPasswordPolicyControl{Expire: -1, Grace: -1, Error: beheraNone}
}

func (c *BeheraPasswordPolicyControl) OID() string { return BeheraPasswordPolicy.String() }

func (c *BeheraPasswordPolicyControl) Encode() *ber.Packet {
	p := ber.NewPacket(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil).Describe("Control")
	p.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, BeheraPasswordPolicy.String()).
		Describe("Control OID (" + BeheraPasswordPolicy.String() + ")"))
	return p
}

func (c *BeheraPasswordPolicyControl) String() string {
	return fmt.Sprintf(
		"Control OID: %s Expire: %d Grace: %d Error: %d (%s)",
		BeheraPasswordPolicy, c.Expire, c.Grace, c.Error, c.ErrorString,
	)
}

const (
	beheraTagWarning = 0
	beheraTagError   = 1

	beheraWarningTagExpire = 0
	beheraWarningTagGrace  = 1
)

func decodeBeheraPasswordPolicy(value *ber.Packet) (*BeheraPasswordPolicyControl, error) {
	c := NewBeheraPasswordPolicy()
	if value == nil {
		return c, nil
	}
	inner, err := decodeValueSequence(value)
	if err != nil {
		return nil, err
	}
	for _, child := range inner.Children {
		switch child.Tag {
		case beheraTagWarning:
			if len(child.Children) == 0 {
				continue
			}
			warning := child.Children[0]
			v, err := ber.ParseInt64(warning.ByteValue())
			if err != nil {
				return nil, fmt.Errorf("control: decoding password policy warning: %w", err)
			}
			switch warning.Tag {
			case beheraWarningTagExpire:
				c.Expire = v
			case beheraWarningTagGrace:
				c.Grace = v
			}
		case beheraTagError:
			bs := child.ByteValue()
			if len(bs) != 1 || bs[0] > 8 {
				return nil, fmt.Errorf("control: invalid password policy response error value")
			}
			c.Error = Behera(int8(bs[0]))
			c.ErrorString = BeheraPasswordPolicyErrorMap[c.Error]
		}
	}
	return c, nil
}
