// Package proto implements the RFC 4511 protocol operations: request
// encoders and response decoders for bind, search, add, delete, modify,
// modify DN, compare, abandon, and extended operations.
package proto

import (
	"fmt"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
)

// Application is an LDAPMessage protocolOp application tag.
type Application ber.Tag

// Application values, as defined by the LDAPMessage CHOICE in RFC 4511
// section 4.1.1.
const (
	ApplicationBindRequest           Application = 0
	ApplicationBindResponse          Application = 1
	ApplicationUnbindRequest         Application = 2
	ApplicationSearchRequest         Application = 3
	ApplicationSearchResultEntry     Application = 4
	ApplicationSearchResultDone      Application = 5
	ApplicationModifyRequest         Application = 6
	ApplicationModifyResponse        Application = 7
	ApplicationAddRequest            Application = 8
	ApplicationAddResponse           Application = 9
	ApplicationDeleteRequest         Application = 10
	ApplicationDeleteResponse        Application = 11
	ApplicationModifyDNRequest       Application = 12
	ApplicationModifyDNResponse      Application = 13
	ApplicationCompareRequest        Application = 14
	ApplicationCompareResponse       Application = 15
	ApplicationAbandonRequest        Application = 16
	ApplicationSearchResultReference Application = 19
	ApplicationExtendedRequest       Application = 23
	ApplicationExtendedResponse      Application = 24
)

// Tag returns the application as a ber.Tag.
func (app Application) Tag() ber.Tag { return ber.Tag(app) }

var applicationNames = map[Application]string{
	ApplicationBindRequest:           "BindRequest",
	ApplicationBindResponse:          "BindResponse",
	ApplicationUnbindRequest:         "UnbindRequest",
	ApplicationSearchRequest:         "SearchRequest",
	ApplicationSearchResultEntry:     "SearchResultEntry",
	ApplicationSearchResultDone:      "SearchResultDone",
	ApplicationModifyRequest:         "ModifyRequest",
	ApplicationModifyResponse:        "ModifyResponse",
	ApplicationAddRequest:            "AddRequest",
	ApplicationAddResponse:           "AddResponse",
	ApplicationDeleteRequest:         "DeleteRequest",
	ApplicationDeleteResponse:        "DeleteResponse",
	ApplicationModifyDNRequest:       "ModifyDNRequest",
	ApplicationModifyDNResponse:      "ModifyDNResponse",
	ApplicationCompareRequest:        "CompareRequest",
	ApplicationCompareResponse:       "CompareResponse",
	ApplicationAbandonRequest:        "AbandonRequest",
	ApplicationSearchResultReference: "SearchResultReference",
	ApplicationExtendedRequest:       "ExtendedRequest",
	ApplicationExtendedResponse:      "ExtendedResponse",
}

func (app Application) String() string {
	if s, ok := applicationNames[app]; ok {
		return s
	}
	return fmt.Sprintf("Application(%d)", int(app))
}

// IsRequest reports whether app is a request (client-to-server) application.
func (app Application) IsRequest() bool {
	switch app {
	case ApplicationBindRequest, ApplicationUnbindRequest, ApplicationSearchRequest,
		ApplicationModifyRequest, ApplicationAddRequest, ApplicationDeleteRequest,
		ApplicationModifyDNRequest, ApplicationCompareRequest, ApplicationAbandonRequest,
		ApplicationExtendedRequest:
		return true
	}
	return false
}

// Result is an LDAPResult resultCode as defined in RFC 4511 section 4.1.9.
type Result uint16

// Result values.
const (
	ResultSuccess                            Result = 0
	ResultOperationsError                    Result = 1
	ResultProtocolError                      Result = 2
	ResultTimeLimitExceeded                  Result = 3
	ResultSizeLimitExceeded                  Result = 4
	ResultCompareFalse                       Result = 5
	ResultCompareTrue                        Result = 6
	ResultAuthMethodNotSupported             Result = 7
	ResultStrongAuthRequired                 Result = 8
	ResultReferral                           Result = 10
	ResultAdminLimitExceeded                 Result = 11
	ResultUnavailableCriticalExtension       Result = 12
	ResultConfidentialityRequired            Result = 13
	ResultSaslBindInProgress                 Result = 14
	ResultNoSuchAttribute                    Result = 16
	ResultUndefinedAttributeType             Result = 17
	ResultInappropriateMatching              Result = 18
	ResultConstraintViolation                Result = 19
	ResultAttributeOrValueExists             Result = 20
	ResultInvalidAttributeSyntax             Result = 21
	ResultNoSuchObject                       Result = 32
	ResultAliasProblem                       Result = 33
	ResultInvalidDNSyntax                    Result = 34
	ResultIsLeaf                             Result = 35
	ResultAliasDereferencingProblem          Result = 36
	ResultInappropriateAuthentication        Result = 48
	ResultInvalidCredentials                 Result = 49
	ResultInsufficientAccessRights           Result = 50
	ResultBusy                               Result = 51
	ResultUnavailable                        Result = 52
	ResultUnwillingToPerform                 Result = 53
	ResultLoopDetect                         Result = 54
	ResultSortControlMissing                 Result = 60
	ResultOffsetRangeError                   Result = 61
	ResultNamingViolation                    Result = 64
	ResultObjectClassViolation               Result = 65
	ResultNotAllowedOnNonLeaf                Result = 66
	ResultNotAllowedOnRDN                    Result = 67
	ResultEntryAlreadyExists                 Result = 68
	ResultObjectClassModsProhibited          Result = 69
	ResultResultsTooLarge                    Result = 70
	ResultAffectsMultipleDSAs                Result = 71
	ResultVirtualListViewErrorOrControlError Result = 76
	ResultOther                              Result = 80
	// ResultTimeout is a local, client-side result indicating a per-operation
	// deadline elapsed before a response arrived.
	ResultTimeout Result = 85
	// ResultClientError is a local, client-side result for failures that
	// never reach the wire (connection errors, decode failures, and so on).
	ResultClientError Result = 200
)

var resultNames = map[Result]string{
	ResultSuccess:                            "Success",
	ResultOperationsError:                    "Operations Error",
	ResultProtocolError:                      "Protocol Error",
	ResultTimeLimitExceeded:                  "Time Limit Exceeded",
	ResultSizeLimitExceeded:                  "Size Limit Exceeded",
	ResultCompareFalse:                       "Compare False",
	ResultCompareTrue:                        "Compare True",
	ResultAuthMethodNotSupported:             "Auth Method Not Supported",
	ResultStrongAuthRequired:                 "Strong Auth Required",
	ResultReferral:                           "Referral",
	ResultAdminLimitExceeded:                 "Admin Limit Exceeded",
	ResultUnavailableCriticalExtension:       "Unavailable Critical Extension",
	ResultConfidentialityRequired:            "Confidentiality Required",
	ResultSaslBindInProgress:                 "Sasl Bind In Progress",
	ResultNoSuchAttribute:                    "No Such Attribute",
	ResultUndefinedAttributeType:             "Undefined Attribute Type",
	ResultInappropriateMatching:              "Inappropriate Matching",
	ResultConstraintViolation:                "Constraint Violation",
	ResultAttributeOrValueExists:             "Attribute Or Value Exists",
	ResultInvalidAttributeSyntax:             "Invalid Attribute Syntax",
	ResultNoSuchObject:                       "No Such Object",
	ResultAliasProblem:                       "Alias Problem",
	ResultInvalidDNSyntax:                    "Invalid DN Syntax",
	ResultIsLeaf:                             "Is Leaf",
	ResultAliasDereferencingProblem:          "Alias Dereferencing Problem",
	ResultInappropriateAuthentication:        "Inappropriate Authentication",
	ResultInvalidCredentials:                 "Invalid Credentials",
	ResultInsufficientAccessRights:           "Insufficient Access Rights",
	ResultBusy:                               "Busy",
	ResultUnavailable:                        "Unavailable",
	ResultUnwillingToPerform:                 "Unwilling To Perform",
	ResultLoopDetect:                         "Loop Detect",
	ResultSortControlMissing:                 "Sort Control Missing",
	ResultOffsetRangeError:                   "Offset Range Error",
	ResultNamingViolation:                    "Naming Violation",
	ResultObjectClassViolation:               "Object Class Violation",
	ResultNotAllowedOnNonLeaf:                "Not Allowed On Non Leaf",
	ResultNotAllowedOnRDN:                    "Not Allowed On RDN",
	ResultEntryAlreadyExists:                 "Entry Already Exists",
	ResultObjectClassModsProhibited:          "Object Class Mods Prohibited",
	ResultResultsTooLarge:                    "Results Too Large",
	ResultAffectsMultipleDSAs:                "Affects Multiple DSAs",
	ResultVirtualListViewErrorOrControlError: "Virtual List View Error",
	ResultOther:                              "Other Error",
	ResultTimeout:                            "Timeout",
	ResultClientError:                        "Client Error",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", uint16(r))
}

// LDAPResult is the common COMPONENTS OF LDAPResult structure carried by
// every response PDU (RFC 4511 section 4.1.9).
type LDAPResult struct {
	Result    Result
	MatchedDN string
	Message   string
	Referrals []string
	Controls  []control.Control
}

// Error adapts an LDAPResult with a non-success code into an error.
type Error struct {
	LDAPResult
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Result, e.Message)
	}
	return e.Result.String()
}

// NewError builds a local, client-side error with the given result code.
func NewError(result Result, message string) error {
	return &Error{LDAPResult{Result: result, Message: message}}
}

// NewErrorf builds a local, client-side error using fmt.Sprintf.
func NewErrorf(result Result, format string, v ...interface{}) error {
	return &Error{LDAPResult{Result: result, Message: fmt.Sprintf(format, v...)}}
}

// IsResultOf reports whether err is a *Error with any one of the given
// result codes.
func IsResultOf(err error, results ...Result) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	for _, r := range results {
		if e.Result == r {
			return true
		}
	}
	return false
}

// DecodeLDAPResult decodes the LDAPResult prefix (resultCode, matchedDN,
// diagnosticMessage, and optional referral) found at the head of every
// response protocolOp's children.
func DecodeLDAPResult(p *ber.Packet) (*LDAPResult, error) {
	if p == nil || len(p.Children) < 3 {
		return nil, fmt.Errorf("proto: malformed LDAPResult")
	}
	code, ok := p.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("proto: LDAPResult resultCode is not an integer")
	}
	matched, _ := p.Children[1].Value.(string)
	message, _ := p.Children[2].Value.(string)
	res := &LDAPResult{
		Result:    Result(code),
		MatchedDN: matched,
		Message:   message,
	}
	if len(p.Children) > 3 && p.Children[3].Class == ber.ClassContext && p.Children[3].Tag == 3 {
		for _, ref := range p.Children[3].Children {
			if s, ok := ref.Value.(string); ok {
				res.Referrals = append(res.Referrals, s)
			}
		}
	}
	return res, nil
}

// ErrorFromResult returns nil if res.Result is ResultSuccess, otherwise an
// *Error wrapping res.
func ErrorFromResult(res *LDAPResult) error {
	if res.Result == ResultSuccess {
		return nil
	}
	return &Error{*res}
}

// EncodeEnvelope wraps op in the messageID SEQUENCE that forms a complete
// LDAPMessage, appending any controls as the final element.
func EncodeEnvelope(id int64, op *ber.Packet, controls ...control.Control) *ber.Packet {
	msg := ber.NewSequence()
	msg.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, id).Describe("Message ID"))
	msg.AppendChild(op)
	if len(controls) > 0 {
		msg.AppendChild(control.Encode(controls...))
	}
	return msg
}

// DecodeEnvelope splits a decoded LDAPMessage into its message ID,
// protocolOp packet, and any attached controls.
func DecodeEnvelope(p *ber.Packet) (id int64, op *ber.Packet, controls []control.Control, err error) {
	if len(p.Children) < 2 {
		return 0, nil, nil, fmt.Errorf("proto: LDAPMessage must have at least 2 children, got %d", len(p.Children))
	}
	id, ok := p.Children[0].Value.(int64)
	if !ok {
		return 0, nil, nil, fmt.Errorf("proto: LDAPMessage ID is not an integer")
	}
	op = p.Children[1]
	if len(p.Children) == 3 {
		for _, c := range p.Children[2].Children {
			decoded, err := control.Decode(c)
			if err != nil {
				return 0, nil, nil, fmt.Errorf("proto: decoding controls: %w", err)
			}
			controls = append(controls, decoded)
		}
	}
	return id, op, controls, nil
}
