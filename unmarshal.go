package dbus

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/coredbus/dbuswire/fragments"
)

// maxRuntimeDepth bounds the recursion depth of decodeValue itself,
// independent of the struct/array nesting limits already enforced by
// [ParseSignature]. It exists because a variant's inner signature is
// parsed fresh at decode time and only checked against the depth
// limit relative to itself, not to the variants already on the call
// stack; without a combined check, a chain of nested variants could
// recurse arbitrarily deep. Twice the signature nesting limit gives
// room for a realistic mix of container and variant nesting while
// still bounding the recursion.
const maxRuntimeDepth = maxNestingDepth * 2

// An Iterator provides pull-based access to a sequence of DBus
// values, decoding one at a time from a shared cursor.
//
// Because Recurse decodes its value fully (descending into any
// containers) before returning, the shared cursor it advances is
// never touched by anything else during that call: the single-
// threaded, single-stack nature of recursive descent is what
// provides the exclusive-access discipline the wire format requires
// between a live child and its parent.
type Iterator struct {
	dec   *fragments.Decoder
	fds   *FDTable
	types []Type
	pos   int
}

// NewIterator returns an Iterator that will decode the types in sig,
// in order, reading from dec and resolving any [UnixFd] values
// against fds.
func NewIterator(dec *fragments.Decoder, fds *FDTable, sig Signature) *Iterator {
	return &Iterator{dec: dec, fds: fds, types: sig.Types()}
}

// Recurse decodes and returns the next value in the iterator's type
// list. Its second result is false, with a zero Value and nil error,
// once every type has been consumed.
func (it *Iterator) Recurse() (Value, bool, error) {
	if it.pos >= len(it.types) {
		return Value{}, false, nil
	}
	t := it.types[it.pos]
	it.pos++
	v, err := decodeValue(it.dec, it.fds, t, 0)
	if err != nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// Unmarshal decodes a DBus message body out of data, whose top-level
// types are described by sig, in byte order. Any [UnixFd] values
// encountered are resolved through fds; fds may be nil if sig is
// known not to reference "h".
func Unmarshal(data []byte, order fragments.ByteOrder, sig Signature, fds *FDTable) ([]Value, error) {
	dec := fragments.NewDecoder(data, order)
	it := NewIterator(dec, fds, sig)
	vals := make([]Value, 0, len(sig.Types()))
	for {
		v, ok, err := it.Recurse()
		if err != nil {
			return nil, err
		}
		if !ok {
			return vals, nil
		}
		vals = append(vals, v)
	}
}

func decodeValue(dec *fragments.Decoder, fds *FDTable, t Type, depth int) (Value, error) {
	if depth > maxRuntimeDepth {
		return Value{}, unmarshalErrf(UnmarshalNestingTooDeep, dec.Offset(), "nesting exceeds maximum depth")
	}
	switch {
	case t.IsBase():
		return decodeBase(dec, fds, t.Base())
	case t.IsArray():
		return decodeArray(dec, fds, t.Elem(), depth)
	case t.IsDict():
		return decodeDict(dec, fds, t.DictKey(), t.DictVal(), depth)
	case t.IsStruct():
		return decodeStruct(dec, fds, t.Fields(), depth)
	case t.IsVariant():
		return decodeVariant(dec, fds, depth)
	default:
		panic("dbus: Type with unknown tag")
	}
}

func decodeBase(dec *fragments.Decoder, fds *FDTable, k Kind) (Value, error) {
	switch k {
	case KindByte:
		b, err := dec.Uint8()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Byte(b), nil
	case KindBoolean:
		off := dec.Offset()
		u, err := dec.Uint32()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		if u != 0 && u != 1 {
			return Value{}, unmarshalErrf(InvalidBoolean, off, "boolean value %d is neither 0 nor 1", u)
		}
		return Bool(u != 0), nil
	case KindInt16:
		u, err := dec.Uint16()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Int16(int16(u)), nil
	case KindUint16:
		u, err := dec.Uint16()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Uint16(u), nil
	case KindInt32:
		u, err := dec.Uint32()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Int32(int32(u)), nil
	case KindUint32:
		u, err := dec.Uint32()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Uint32(u), nil
	case KindInt64:
		u, err := dec.Uint64()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Int64(int64(u)), nil
	case KindUint64:
		u, err := dec.Uint64()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Uint64(u), nil
	case KindDouble:
		u, err := dec.Uint64()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return Double(math.Float64frombits(u)), nil
	case KindUnixFd:
		off := dec.Offset()
		idx, err := dec.Uint32()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		fd, err := fds.Resolve(idx)
		if err != nil {
			return Value{}, unmarshalErrf(UnixFdIndexOutOfRange, off, "fd index %d out of range", idx)
		}
		return UnixFd(fd), nil
	case KindString:
		off := dec.Offset()
		s, err := dec.String()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		if !utf8.ValidString(s) {
			return Value{}, unmarshalErrf(InvalidUtf8, off, "string is not valid UTF-8")
		}
		return borrowedBase(KindString, s), nil
	case KindObjectPath:
		off := dec.Offset()
		s, err := dec.String()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		if !utf8.ValidString(s) {
			return Value{}, unmarshalErrf(InvalidUtf8, off, "object path is not valid UTF-8")
		}
		if verr := validateObjectPath(s); verr != nil {
			return Value{}, UnmarshalError{Kind: UnmarshalInvalidObjectPath, Offset: off, Detail: verr.Error(), Cause: verr}
		}
		return borrowedBase(KindObjectPath, s), nil
	case KindSignature:
		off := dec.Offset()
		s, err := dec.Signature()
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		if _, perr := ParseSignature(s); perr != nil {
			return Value{}, UnmarshalError{Kind: UnmarshalInvalidSignature, Offset: off, Detail: perr.Error(), Cause: perr}
		}
		return borrowedBase(KindSignature, s), nil
	default:
		panic("dbus: decodeBase called with invalid Kind")
	}
}

func decodeArray(dec *fragments.Decoder, fds *FDTable, elem Type, depth int) (Value, error) {
	lenOff := dec.Offset()
	length, err := dec.Uint32()
	if err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}
	if length > maxArrayPayload {
		return Value{}, unmarshalErrf(ArraySizeTooLarge, lenOff, "array length %d exceeds maximum of %d", length, maxArrayPayload)
	}
	if err := dec.Pad(elem.Align()); err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}

	if elem.IsBase() && elem.Base() == KindByte {
		bs, err := dec.Read(int(length))
		if err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		return ByteArray(bs), nil
	}

	start := dec.Offset()
	consumeMax := int(length)
	var vals []Value
	for dec.Offset()-start < consumeMax {
		v, err := decodeValue(dec, fds, elem, depth+1)
		if err != nil {
			return Value{}, err
		}
		vals = append(vals, v)
		if dec.Offset()-start > consumeMax {
			return Value{}, unmarshalErrf(NotEnoughBytes, dec.Offset(), "array element overran its declared payload length")
		}
	}
	return Value{tag: vtagArray, arr: &arrayValue{elem: elem, vals: vals}}, nil
}

func decodeDict(dec *fragments.Decoder, fds *FDTable, key Kind, val Type, depth int) (Value, error) {
	lenOff := dec.Offset()
	length, err := dec.Uint32()
	if err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}
	if length > maxArrayPayload {
		return Value{}, unmarshalErrf(ArraySizeTooLarge, lenOff, "dict length %d exceeds maximum of %d", length, maxArrayPayload)
	}
	if err := dec.Pad(alignStruct); err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}

	start := dec.Offset()
	consumeMax := int(length)
	var entries []DictEntry
	for dec.Offset()-start < consumeMax {
		if err := dec.Pad(alignStruct); err != nil {
			return Value{}, wrapDecodeErr(dec, err)
		}
		kv, err := decodeValue(dec, fds, BaseType(key), depth+1)
		if err != nil {
			return Value{}, err
		}
		vv, err := decodeValue(dec, fds, val, depth+1)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, DictEntry{Key: kv, Val: vv})
		if dec.Offset()-start > consumeMax {
			return Value{}, unmarshalErrf(NotEnoughBytes, dec.Offset(), "dict entry overran its declared payload length")
		}
	}
	return Value{tag: vtagDict, dc: &dictValue{key: key, val: val, entries: entries}}, nil
}

func decodeStruct(dec *fragments.Decoder, fds *FDTable, fields []Type, depth int) (Value, error) {
	if err := dec.Pad(alignStruct); err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}
	vals := make([]Value, len(fields))
	for i, f := range fields {
		v, err := decodeValue(dec, fds, f, depth+1)
		if err != nil {
			return Value{}, err
		}
		vals[i] = v
	}
	return Value{tag: vtagStruct, st: &structValue{fields: vals}}, nil
}

func decodeVariant(dec *fragments.Decoder, fds *FDTable, depth int) (Value, error) {
	off := dec.Offset()
	s, err := dec.Signature()
	if err != nil {
		return Value{}, wrapDecodeErr(dec, err)
	}
	sig, perr := ParseSignature(s)
	if perr != nil {
		return Value{}, UnmarshalError{Kind: UnmarshalInvalidSignature, Offset: off, Detail: perr.Error(), Cause: perr}
	}
	if !sig.IsSingle() {
		return Value{}, UnmarshalError{Kind: UnmarshalInvalidSignature, Offset: off, Detail: "variant signature must describe exactly one complete type"}
	}
	inner, err := decodeValue(dec, fds, sig.Single(), depth+1)
	if err != nil {
		return Value{}, err
	}
	return Value{tag: vtagVariant, vr: &variantValue{sig: sig.Single(), val: inner}}, nil
}

// wrapDecodeErr turns a [fragments.Decoder] error into an
// [UnmarshalError] positioned at dec's current offset:
// [fragments.ErrNotEnoughBytes] and [fragments.ErrPaddingNonZero] (or
// wrappers around them) get the matching kind, and any other error,
// such as a string or signature missing its NUL terminator, is
// reported as NotEnoughBytes.
func wrapDecodeErr(dec *fragments.Decoder, err error) error {
	offset := dec.Offset()
	switch {
	case errors.Is(err, fragments.ErrNotEnoughBytes):
		return UnmarshalError{Kind: NotEnoughBytes, Offset: offset, Cause: err}
	case errors.Is(err, fragments.ErrPaddingNonZero):
		return UnmarshalError{Kind: PaddingContainedNonZero, Offset: offset, Cause: err}
	default:
		return UnmarshalError{Kind: NotEnoughBytes, Offset: offset, Detail: fmt.Sprint(err), Cause: err}
	}
}
