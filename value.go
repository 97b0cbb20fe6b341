package dbus

import (
	"math"
	"strings"

	"github.com/creachadair/mds/value"
)

// maybeString is the value model's "maybe-owned" string: it carries
// either a caller-owned copy or a string borrowed (via
// [fragments.BorrowString]) from a decode buffer. Marshal treats both
// identically; the distinction only matters to a caller that wants to
// keep a decoded Value around after its source buffer is reused or
// freed, via [Value.Detach].
//
// detached holds the copy made by detach on this maybeString. Value's
// Detach calls detach on its own copy of the Value and then replaces
// the field with an owned string, so each Detach of a Value holding a
// borrowed string makes a new copy.
type maybeString struct {
	raw      string
	borrowed bool
	detached value.Maybe[string]
}

func ownedString(s string) maybeString {
	return maybeString{raw: s}
}

func borrowedString(s string) maybeString {
	return maybeString{raw: s, borrowed: true}
}

func (m maybeString) String() string { return m.raw }

// detach returns a copy of m's string that does not alias any decode
// buffer. If m is already owned, it is returned unchanged.
func (m *maybeString) detach() string {
	if !m.borrowed {
		return m.raw
	}
	if v, ok := m.detached.GetOK(); ok {
		return v
	}
	c := strings.Clone(m.raw)
	m.detached = value.Just(c)
	return c
}

// A valueTag identifies which alternative of the [Value] sum type a
// value holds.
type valueTag int

const (
	vtagBase valueTag = iota
	vtagArray
	vtagStruct
	vtagDict
	vtagVariant
)

// A Value is a tagged union holding one DBus value: a base value
// (byte, integer, string, ...) or one of the four container shapes
// (array, struct, dict, variant).
//
// Value is built by the constructor functions in this file
// ([Byte], [String], [Array], ...) or produced by the streaming
// unmarshaller. Base string-shaped payloads (string, object path,
// signature) may borrow from a decode buffer rather than copy; see
// [Value.Detach].
type Value struct {
	tag  valueTag
	base Kind // tagBase

	num uint64      // tagBase fixed-width payload (bit pattern)
	str maybeString // tagBase string-shaped payload

	arr *arrayValue
	st  *structValue
	dc  *dictValue
	vr  *variantValue
}

type arrayValue struct {
	elem Type
	vals []Value
	// rawBytes, when non-nil, backs a byte array ("ay") without
	// boxing each element into a Value. Only valid when
	// elem.Equal(BaseType(KindByte)).
	rawBytes []byte
}

type structValue struct {
	fields []Value
}

// A DictEntry is one key/value pair of a [Value] built by [Dict].
type DictEntry struct {
	Key Value
	Val Value
}

type dictValue struct {
	key     Kind
	val     Type
	entries []DictEntry
}

type variantValue struct {
	sig Type
	val Value
}

// --- base constructors ---

func baseValue(k Kind, num uint64) Value {
	return Value{tag: vtagBase, base: k, num: num}
}

func Byte(v byte) Value    { return baseValue(KindByte, uint64(v)) }
func Bool(v bool) Value {
	if v {
		return baseValue(KindBoolean, 1)
	}
	return baseValue(KindBoolean, 0)
}
func Int16(v int16) Value   { return baseValue(KindInt16, uint64(uint16(v))) }
func Uint16(v uint16) Value { return baseValue(KindUint16, uint64(v)) }
func Int32(v int32) Value   { return baseValue(KindInt32, uint64(uint32(v))) }
func Uint32(v uint32) Value { return baseValue(KindUint32, uint64(v)) }
func Int64(v int64) Value   { return baseValue(KindInt64, uint64(v)) }
func Uint64(v uint64) Value { return baseValue(KindUint64, v) }
func Double(v float64) Value { return baseValue(KindDouble, math.Float64bits(v)) }

// UnixFd wraps a raw file descriptor number. Marshal assigns it a
// wire-level index in the accompanying [FDTable] (deduplicating
// against descriptors already appended); the wire payload is that
// index, not the fd itself.
func UnixFd(fd int) Value { return Value{tag: vtagBase, base: KindUnixFd, num: uint64(uint32(fd))} }

// String returns an owned string Value. s is copied into the Value
// (or rather, Go's string immutability means no further copy is ever
// needed once s is produced); use [Value.Detach] only when s.
func String(s string) Value {
	return Value{tag: vtagBase, base: KindString, str: ownedString(s)}
}

// ObjectPath returns an object path Value. It is not validated until
// marshalled; construct via [ParseObjectPath] to validate eagerly.
func ObjectPath(s string) Value {
	return Value{tag: vtagBase, base: KindObjectPath, str: ownedString(s)}
}

// SignatureValue returns a Value of DBus type "g" (signature) whose
// payload is sig's signature string.
func SignatureValue(sig Signature) Value {
	return Value{tag: vtagBase, base: KindSignature, str: ownedString(sig.String())}
}

func borrowedBase(k Kind, s string) Value {
	return Value{tag: vtagBase, base: k, str: borrowedString(s)}
}

// --- container constructors ---

// ByteArray returns an array-of-byte Value directly backed by bs,
// without boxing each byte into its own Value. This is the fast path
// for the common "ay" case: [Value.Signature] and marshalling treat
// it identically to Array(BaseType(KindByte), ...), but avoid the
// per-element allocation and dispatch that the general array path
// pays for plain byte blobs.
func ByteArray(bs []byte) Value {
	return Value{tag: vtagArray, arr: &arrayValue{elem: BaseType(KindByte), rawBytes: bs}}
}

// Array returns an array Value whose element type is elem. Every
// value in vals must have signature elem, or Array returns a
// [MarshalError] of kind [MarshalArrayElementTypeMismatch].
func Array(elem Type, vals []Value) (Value, error) {
	if err := validateArray(elem, vals); err != nil {
		return Value{}, err
	}
	cp := make([]Value, len(vals))
	copy(cp, vals)
	return Value{tag: vtagArray, arr: &arrayValue{elem: elem, vals: cp}}, nil
}

// Struct returns a struct Value with the given fields, in order.
// fields must be non-empty.
func Struct(fields ...Value) (Value, error) {
	if len(fields) == 0 {
		return Value{}, MarshalError{Kind: MarshalEmptyStruct}
	}
	cp := make([]Value, len(fields))
	copy(cp, fields)
	return Value{tag: vtagStruct, st: &structValue{fields: cp}}, nil
}

// Dict returns a dict Value from base kind key to type val. Every
// entry's key must have kind key and every entry's value must have
// signature val, and keys must be unique, or Dict returns a
// [MarshalError].
func Dict(key Kind, val Type, entries []DictEntry) (Value, error) {
	if err := validateDict(key, val, entries); err != nil {
		return Value{}, err
	}
	cp := make([]DictEntry, len(entries))
	copy(cp, entries)
	return Value{tag: vtagDict, dc: &dictValue{key: key, val: val, entries: cp}}, nil
}

// VariantOf wraps inner in a variant Value, self-describing it with
// inner's own derived signature.
func VariantOf(inner Value) Value {
	return Value{tag: vtagVariant, vr: &variantValue{sig: inner.Type(), val: inner}}
}

// --- introspection ---

func (v Value) Tag() valueTag { return v.tag }

func (v Value) IsBase() bool    { return v.tag == vtagBase }
func (v Value) IsArray() bool   { return v.tag == vtagArray }
func (v Value) IsStruct() bool  { return v.tag == vtagStruct }
func (v Value) IsDict() bool    { return v.tag == vtagDict }
func (v Value) IsVariant() bool { return v.tag == vtagVariant }

// Kind returns the base kind of a base Value. It panics if
// !v.IsBase().
func (v Value) Kind() Kind {
	if !v.IsBase() {
		panic("dbus: Kind called on non-base Value")
	}
	return v.base
}

// Type derives the structural [Type] of v by walking its shape.
func (v Value) Type() Type {
	switch v.tag {
	case vtagBase:
		return BaseType(v.base)
	case vtagArray:
		return ArrayType(v.arr.elem)
	case vtagStruct:
		fs := make([]Type, len(v.st.fields))
		for i, f := range v.st.fields {
			fs[i] = f.Type()
		}
		t, err := StructType(fs...)
		if err != nil {
			// v.st.fields was already validated non-empty at
			// construction time.
			panic(err)
		}
		return t
	case vtagDict:
		return DictType(v.dc.key, v.dc.val)
	case vtagVariant:
		return VariantType()
	default:
		panic("dbus: Type called on zero Value")
	}
}

// Signature derives the signature of the single value v.
func (v Value) Signature() Signature {
	return mkSignature(v.Type())
}

// --- base accessors ---

func (v Value) mustKind(k Kind) {
	if !v.IsBase() || v.base != k {
		panic("dbus: wrong accessor for Value of kind " + v.base.String())
	}
}

func (v Value) Byte() byte   { v.mustKind(KindByte); return byte(v.num) }
func (v Value) Bool() bool   { v.mustKind(KindBoolean); return v.num != 0 }
func (v Value) Int16() int16 { v.mustKind(KindInt16); return int16(uint16(v.num)) }
func (v Value) Uint16() uint16 { v.mustKind(KindUint16); return uint16(v.num) }
func (v Value) Int32() int32 { v.mustKind(KindInt32); return int32(uint32(v.num)) }
func (v Value) Uint32() uint32 { v.mustKind(KindUint32); return uint32(v.num) }
func (v Value) Int64() int64 { v.mustKind(KindInt64); return int64(v.num) }
func (v Value) Uint64() uint64 { v.mustKind(KindUint64); return v.num }
func (v Value) Double() float64 {
	v.mustKind(KindDouble)
	return math.Float64frombits(v.num)
}
func (v Value) UnixFd() int { v.mustKind(KindUnixFd); return int(uint32(v.num)) }

// Str returns the string payload of a String, ObjectPath, or
// Signature Value. It panics for any other kind.
func (v Value) Str() string {
	if !v.IsBase() || (v.base != KindString && v.base != KindObjectPath && v.base != KindSignature) {
		panic("dbus: Str called on non-string-shaped Value")
	}
	return v.str.String()
}

// Detach returns v, or a copy of v, guaranteed to not alias any
// decode buffer. Values produced by constructors in this file are
// already detached; values produced by the streaming unmarshaller may
// borrow from the source buffer and should be detached before the
// buffer is reused or discarded if the Value needs to outlive it.
func (v Value) Detach() Value {
	switch v.tag {
	case vtagBase:
		if v.base == KindString || v.base == KindObjectPath || v.base == KindSignature {
			v.str = ownedString(v.str.detach())
		}
		return v
	case vtagArray:
		na := *v.arr
		if na.rawBytes != nil {
			b := make([]byte, len(na.rawBytes))
			copy(b, na.rawBytes)
			na.rawBytes = b
		}
		vals := make([]Value, len(na.vals))
		for i, e := range na.vals {
			vals[i] = e.Detach()
		}
		na.vals = vals
		v.arr = &na
		return v
	case vtagStruct:
		ns := *v.st
		fs := make([]Value, len(ns.fields))
		for i, f := range ns.fields {
			fs[i] = f.Detach()
		}
		ns.fields = fs
		v.st = &ns
		return v
	case vtagDict:
		nd := *v.dc
		es := make([]DictEntry, len(nd.entries))
		for i, e := range nd.entries {
			es[i] = DictEntry{e.Key.Detach(), e.Val.Detach()}
		}
		nd.entries = es
		v.dc = &nd
		return v
	case vtagVariant:
		nv := *v.vr
		nv.val = nv.val.Detach()
		v.vr = &nv
		return v
	default:
		return v
	}
}

// Elements returns the elements of an array Value. It panics if
// !v.IsArray(). If v was built with [ByteArray], Elements boxes each
// byte into a Value lazily on every call; prefer [Value.Bytes] for
// that case.
func (v Value) Elements() []Value {
	if !v.IsArray() {
		panic("dbus: Elements called on non-array Value")
	}
	if v.arr.rawBytes != nil {
		out := make([]Value, len(v.arr.rawBytes))
		for i, b := range v.arr.rawBytes {
			out[i] = Byte(b)
		}
		return out
	}
	return v.arr.vals
}

// Bytes returns the raw bytes of a byte-array Value (one built with
// [ByteArray] or [Array](BaseType(KindByte), ...)) without boxing.
func (v Value) Bytes() []byte {
	if !v.IsArray() || !v.arr.elem.Equal(BaseType(KindByte)) {
		panic("dbus: Bytes called on non-byte-array Value")
	}
	if v.arr.rawBytes != nil {
		return v.arr.rawBytes
	}
	out := make([]byte, len(v.arr.vals))
	for i, e := range v.arr.vals {
		out[i] = e.Byte()
	}
	return out
}

// Fields returns the fields of a struct Value. It panics if
// !v.IsStruct().
func (v Value) Fields() []Value {
	if !v.IsStruct() {
		panic("dbus: Fields called on non-struct Value")
	}
	return v.st.fields
}

// Entries returns the entries of a dict Value, in insertion order. It
// panics if !v.IsDict().
func (v Value) Entries() []DictEntry {
	if !v.IsDict() {
		panic("dbus: Entries called on non-dict Value")
	}
	return v.dc.entries
}

// VariantInner returns the signature and value a variant Value
// carries. It panics if !v.IsVariant().
func (v Value) VariantInner() (Type, Value) {
	if !v.IsVariant() {
		panic("dbus: VariantInner called on non-variant Value")
	}
	return v.vr.sig, v.vr.val
}
