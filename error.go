package dbus

import "fmt"

// A SignatureErrorKind identifies the specific way a type signature
// failed to parse or validate.
type SignatureErrorKind int

const (
	_ SignatureErrorKind = iota
	// EmptySignature is returned when a signature string is empty
	// where at least one complete type is required.
	EmptySignature
	// SignatureTooLong is returned when a signature string is longer
	// than 255 bytes.
	SignatureTooLong
	// InvalidSignature is returned for unknown type characters, stray
	// braces, unbalanced grouping, a dict entry outside an array, or
	// an array with no element type.
	InvalidSignature
	// EmptyStruct is returned for a struct signature "()" with no
	// fields.
	EmptyStruct
	// NestingTooDeep is returned when struct or array nesting (each
	// counted independently) reaches 32 levels.
	NestingTooDeep
	// TooManyTypes is returned when a struct has more than 255
	// fields. A struct whose closing ')' is missing is reported as
	// InvalidSignature instead.
	TooManyTypes
	// ShouldBeBaseType is returned when a position that the grammar
	// restricts to a basic type (a dict entry's key) is given a
	// container type instead.
	ShouldBeBaseType
)

func (k SignatureErrorKind) String() string {
	switch k {
	case EmptySignature:
		return "EmptySignature"
	case SignatureTooLong:
		return "SignatureTooLong"
	case InvalidSignature:
		return "InvalidSignature"
	case EmptyStruct:
		return "EmptyStruct"
	case NestingTooDeep:
		return "NestingTooDeep"
	case TooManyTypes:
		return "TooManyTypes"
	case ShouldBeBaseType:
		return "ShouldBeBaseType"
	default:
		return "SignatureErrorKind(?)"
	}
}

// SignatureError is returned by [ParseSignature] and by signature
// validation performed during marshalling and unmarshalling.
type SignatureError struct {
	Kind SignatureErrorKind
	// Signature is the offending signature string or, for
	// NestingTooDeep, the signature of the nested type at which the
	// limit was reached.
	Signature string
	// Detail is a human-readable explanation, for errors (like
	// InvalidSignature) whose Kind alone doesn't say much.
	Detail string
}

func (e SignatureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %q", e.Kind, e.Signature)
	}
	return fmt.Sprintf("%s: %q: %s", e.Kind, e.Signature, e.Detail)
}

func sigErrf(kind SignatureErrorKind, sig string, format string, args ...any) error {
	return SignatureError{kind, sig, fmt.Sprintf(format, args...)}
}

// A MarshalErrorKind identifies why [Marshal] failed.
type MarshalErrorKind int

const (
	_ MarshalErrorKind = iota
	MarshalInvalidSignature
	MarshalStringContainsNullByte
	MarshalStringInvalidUtf8
	MarshalInvalidObjectPath
	MarshalArrayElementTypeMismatch
	MarshalDictKeyTypeMismatch
	MarshalDictValueTypeMismatch
	MarshalEmptyStruct
	MarshalNestingTooDeep
	MarshalValueTooLarge
	MarshalIoError
)

func (k MarshalErrorKind) String() string {
	switch k {
	case MarshalInvalidSignature:
		return "InvalidSignature"
	case MarshalStringContainsNullByte:
		return "StringContainsNullByte"
	case MarshalStringInvalidUtf8:
		return "StringInvalidUtf8"
	case MarshalInvalidObjectPath:
		return "InvalidObjectPath"
	case MarshalArrayElementTypeMismatch:
		return "ArrayElementTypeMismatch"
	case MarshalDictKeyTypeMismatch:
		return "DictKeyTypeMismatch"
	case MarshalDictValueTypeMismatch:
		return "DictValueTypeMismatch"
	case MarshalEmptyStruct:
		return "EmptyStruct"
	case MarshalNestingTooDeep:
		return "NestingTooDeep"
	case MarshalValueTooLarge:
		return "ValueTooLarge"
	case MarshalIoError:
		return "IoError"
	default:
		return "MarshalErrorKind(?)"
	}
}

// MarshalError is returned by [Marshal].
type MarshalError struct {
	Kind MarshalErrorKind
	// Path is a breadcrumb describing where in the value tree the
	// error occurred, e.g. "value 0.2[5]" for element 5 of the array
	// in field 2 of the first top-level value.
	Path   string
	Detail string
	Cause  error
}

func (e MarshalError) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e MarshalError) Unwrap() error { return e.Cause }

func marshalErrf(kind MarshalErrorKind, path string, format string, args ...any) error {
	return MarshalError{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// An UnmarshalErrorKind identifies why a streaming decode failed.
type UnmarshalErrorKind int

const (
	_ UnmarshalErrorKind = iota
	NotEnoughBytes
	PaddingContainedNonZero
	InvalidBoolean
	InvalidUtf8
	UnmarshalInvalidObjectPath
	UnmarshalInvalidSignature
	ArraySizeTooLarge
	UnixFdIndexOutOfRange
	UnmarshalNestingTooDeep
)

func (k UnmarshalErrorKind) String() string {
	switch k {
	case NotEnoughBytes:
		return "NotEnoughBytes"
	case PaddingContainedNonZero:
		return "PaddingContainedNonZero"
	case InvalidBoolean:
		return "InvalidBoolean"
	case InvalidUtf8:
		return "InvalidUtf8"
	case UnmarshalInvalidObjectPath:
		return "InvalidObjectPath"
	case UnmarshalInvalidSignature:
		return "InvalidSignature"
	case ArraySizeTooLarge:
		return "ArraySizeTooLarge"
	case UnixFdIndexOutOfRange:
		return "UnixFdIndexOutOfRange"
	case UnmarshalNestingTooDeep:
		return "NestingTooDeep"
	default:
		return "UnmarshalErrorKind(?)"
	}
}

// UnmarshalError is returned by the streaming unmarshaller. The
// cursor is left wherever the failed read stopped; the decode as a
// whole should be considered aborted.
type UnmarshalError struct {
	Kind UnmarshalErrorKind
	// Offset is the byte offset in the source buffer where decoding
	// was positioned when the error occurred.
	Offset int
	Detail string
	Cause  error
}

func (e UnmarshalError) Error() string {
	msg := fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e UnmarshalError) Unwrap() error { return e.Cause }

func unmarshalErrf(kind UnmarshalErrorKind, offset int, format string, args ...any) error {
	return UnmarshalError{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}
