package dbus

import (
	"errors"
	"strings"
)

// A typeTag identifies which alternative of the [Type] sum type a
// value holds.
type typeTag int

const (
	tagBase typeTag = iota
	tagArray
	tagStruct
	tagDict
	tagVariant
)

// A Type is a node in the signature AST: either a base type, or one
// of the four container kinds (array, struct, dict, variant).
//
// Type is a value type: it is safe to copy and compare with
// [Type.Equal], and once constructed (by [ParseSignature] or the
// constructor functions below) it is never mutated.
type Type struct {
	tag typeTag

	base Kind   // tagBase
	elem *Type  // tagArray: element type
	dkey Kind   // tagDict: key kind
	dval *Type  // tagDict: value type
	fs   []Type // tagStruct: fields, len >= 1
}

// BaseType returns the Type for a base kind k.
func BaseType(k Kind) Type {
	if !k.Valid() {
		panic("dbus: BaseType called with invalid Kind")
	}
	return Type{tag: tagBase, base: k}
}

// ArrayType returns the Type "array of elem".
func ArrayType(elem Type) Type {
	e := elem
	return Type{tag: tagArray, elem: &e}
}

// DictType returns the Type "dict from base kind key to val". A dict
// is represented on the wire as an array of dict entries, and a dict
// Type stands for that whole array: its signature is "a{KV}", so it
// is not wrapped in an [ArrayType].
func DictType(key Kind, val Type) Type {
	if !key.Valid() {
		panic("dbus: DictType called with invalid key Kind")
	}
	v := val
	return Type{tag: tagDict, dkey: key, dval: &v}
}

// StructType returns the Type for a struct with the given fields, in
// order. fields must be non-empty; DBus forbids empty structs.
func StructType(fields ...Type) (Type, error) {
	if len(fields) == 0 {
		return Type{}, SignatureError{Kind: EmptyStruct}
	}
	if len(fields) > maxSignatureLen {
		return Type{}, SignatureError{Kind: TooManyTypes}
	}
	fs := make([]Type, len(fields))
	copy(fs, fields)
	return Type{tag: tagStruct, fs: fs}, nil
}

// VariantType returns the Type for a self-describing variant value.
func VariantType() Type {
	return Type{tag: tagVariant}
}

func (t Type) IsBase() bool    { return t.tag == tagBase }
func (t Type) IsArray() bool   { return t.tag == tagArray }
func (t Type) IsStruct() bool  { return t.tag == tagStruct }
func (t Type) IsDict() bool    { return t.tag == tagDict }
func (t Type) IsVariant() bool { return t.tag == tagVariant }

// Base returns the base kind of t. It panics if !t.IsBase().
func (t Type) Base() Kind {
	if !t.IsBase() {
		panic("dbus: Base called on non-base Type")
	}
	return t.base
}

// Elem returns the element type of an array Type. It panics if
// !t.IsArray().
func (t Type) Elem() Type {
	if !t.IsArray() {
		panic("dbus: Elem called on non-array Type")
	}
	return *t.elem
}

// Fields returns the field types of a struct Type, in order. It
// panics if !t.IsStruct().
func (t Type) Fields() []Type {
	if !t.IsStruct() {
		panic("dbus: Fields called on non-struct Type")
	}
	return t.fs
}

// DictKey returns the key kind of a dict Type. It panics if
// !t.IsDict().
func (t Type) DictKey() Kind {
	if !t.IsDict() {
		panic("dbus: DictKey called on non-dict Type")
	}
	return t.dkey
}

// DictVal returns the value type of a dict Type. It panics if
// !t.IsDict().
func (t Type) DictVal() Type {
	if !t.IsDict() {
		panic("dbus: DictVal called on non-dict Type")
	}
	return *t.dval
}

// Align returns the wire alignment of t, in bytes.
func (t Type) Align() int {
	switch t.tag {
	case tagBase:
		return t.base.Align()
	case tagArray:
		return alignArray
	case tagDict:
		return alignDict
	case tagStruct:
		return alignStruct
	case tagVariant:
		return alignVariant
	default:
		return 0
	}
}

// String returns t's signature string. It is the exact inverse of
// [ParseSignature] on the single-type case: ParseSignature(t.String())
// returns a Signature equal to t.
func (t Type) String() string {
	var sb strings.Builder
	t.appendString(&sb)
	return sb.String()
}

func (t Type) appendString(sb *strings.Builder) {
	switch t.tag {
	case tagBase:
		sb.WriteByte(byte(t.base))
	case tagVariant:
		sb.WriteByte('v')
	case tagArray:
		sb.WriteByte('a')
		t.elem.appendString(sb)
	case tagDict:
		sb.WriteString("a{")
		sb.WriteByte(byte(t.dkey))
		t.dval.appendString(sb)
		sb.WriteByte('}')
	case tagStruct:
		sb.WriteByte('(')
		for _, f := range t.fs {
			f.appendString(sb)
		}
		sb.WriteByte(')')
	}
}

// Equal reports whether t and other describe the same type.
func (t Type) Equal(other Type) bool {
	if t.tag != other.tag {
		return false
	}
	switch t.tag {
	case tagBase:
		return t.base == other.base
	case tagVariant:
		return true
	case tagArray:
		return t.elem.Equal(*other.elem)
	case tagDict:
		return t.dkey == other.dkey && t.dval.Equal(*other.dval)
	case tagStruct:
		if len(t.fs) != len(other.fs) {
			return false
		}
		for i := range t.fs {
			if !t.fs[i].Equal(other.fs[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// checkDepth walks t and returns a NestingTooDeep [SignatureError] once
// struct or array nesting (each counted independently; a dict entry
// counts as one level of array nesting, the same as its "a{...}" wire
// framing implies, and does not also consume a struct level) reaches
// 32 levels. arrayDepth and structDepth are the nesting counts already
// accumulated by the caller for t itself, so every call — including
// the top-level one, which should pass (0, 0) — checks t before
// descending into it.
func (t Type) checkDepth(arrayDepth, structDepth int) error {
	if arrayDepth >= maxNestingDepth || structDepth >= maxNestingDepth {
		return SignatureError{Kind: NestingTooDeep, Signature: t.String()}
	}
	switch t.tag {
	case tagBase, tagVariant:
		return nil
	case tagArray:
		return t.elem.checkDepth(arrayDepth+1, structDepth)
	case tagDict:
		return t.dval.checkDepth(arrayDepth+1, structDepth)
	case tagStruct:
		for _, f := range t.fs {
			if err := f.checkDepth(arrayDepth, structDepth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// A Signature is an ordered sequence of zero or more complete [Type]s,
// as used for a DBus message body or a Variant's inner type.
//
// Signature is a value type, built once by [ParseSignature] (or the
// zero value, representing an empty/void sequence) and read-only
// thereafter.
type Signature struct {
	parts []Type
}

// mkSignature builds a Signature directly from already-validated
// parts, bypassing string parsing. Used internally for zero/void
// signatures and for deriving a Signature from a [Value] tree.
func mkSignature(parts ...Type) Signature {
	return Signature{parts}
}

// IsZero reports whether s is the zero Signature, describing an empty
// sequence of types (e.g. a DBus method call with no arguments).
func (s Signature) IsZero() bool { return len(s.parts) == 0 }

// IsSingle reports whether s describes exactly one complete type, as
// opposed to a multi-type message body signature.
func (s Signature) IsSingle() bool { return len(s.parts) == 1 }

// Single returns the sole type described by s. It panics if
// !s.IsSingle().
func (s Signature) Single() Type {
	if !s.IsSingle() {
		panic("dbus: Single called on non-single Signature")
	}
	return s.parts[0]
}

// Types returns the ordered list of types s describes.
func (s Signature) Types() []Type {
	return s.parts
}

// String returns s's signature string. It is the exact inverse of
// [ParseSignature]: for any signature string that ParseSignature
// accepts, ParseSignature(s).String() == s.
func (s Signature) String() string {
	var sb strings.Builder
	for _, p := range s.parts {
		p.appendString(&sb)
	}
	return sb.String()
}

var signatureCache cache[string, Signature]

// ParseSignature parses a DBus type signature string into a
// Signature.
//
// sig must be non-empty (an empty string returns [EmptySignature]) and
// at most 255 bytes (a longer string returns [SignatureTooLong]).
// Struct and array nesting are each counted independently (a dict
// entry counts only toward array nesting), and reaching 32 levels of
// either is rejected as [NestingTooDeep]; empty structs
// ([EmptyStruct]), dict entries outside of an array, and unknown or
// unbalanced syntax ([InvalidSignature]) are all rejected too.
func ParseSignature(sig string) (Signature, error) {
	if sig == "" {
		return Signature{}, SignatureError{Kind: EmptySignature}
	}
	if len(sig) > maxSignatureLen {
		return Signature{}, SignatureError{Kind: SignatureTooLong, Signature: sig}
	}
	if cached, err := signatureCache.Get(sig); err == nil {
		return cached, nil
	} else if !errors.Is(err, errNotFound) && !errors.Is(err, errRecursion) {
		return Signature{}, err
	}

	p := &sigParser{s: sig}
	var parts []Type
	for p.pos < len(p.s) {
		t, err := p.parseType()
		if err != nil {
			signatureCache.SetErr(sig, err)
			return Signature{}, err
		}
		parts = append(parts, t)
	}
	for _, t := range parts {
		if err := t.checkDepth(0, 0); err != nil {
			signatureCache.SetErr(sig, err)
			return Signature{}, err
		}
	}
	result := Signature{parts}
	signatureCache.Set(sig, result)
	return result, nil
}

// MustParseSignature is like [ParseSignature] but panics on error. It
// is intended for static signatures known at compile time.
func MustParseSignature(sig string) Signature {
	s, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return s
}

type sigParser struct {
	s   string
	pos int
}

func isBaseChar(c byte) bool {
	switch Kind(c) {
	case KindByte, KindBoolean, KindInt16, KindUint16, KindInt32, KindUint32,
		KindInt64, KindUint64, KindDouble, KindUnixFd, KindString,
		KindObjectPath, KindSignature:
		return true
	default:
		return false
	}
}

// parseType parses one complete type starting at p.pos. It does not
// itself enforce the nesting depth limit: the signature string is
// already capped at maxSignatureLen bytes, which bounds the recursion
// here regardless, and depth is instead checked once over the whole
// parsed tree by [Type.checkDepth] after parsing completes.
func (p *sigParser) parseType() (Type, error) {
	if p.pos >= len(p.s) {
		return Type{}, sigErrf(InvalidSignature, p.s, "unexpected end of signature")
	}
	c := p.s[p.pos]
	if isBaseChar(c) {
		p.pos++
		return BaseType(Kind(c)), nil
	}
	switch c {
	case 'v':
		p.pos++
		return VariantType(), nil
	case 'a':
		p.pos++
		if p.pos < len(p.s) && p.s[p.pos] == '{' {
			p.pos++
			return p.parseDictEntry()
		}
		if p.pos >= len(p.s) {
			return Type{}, sigErrf(InvalidSignature, p.s, "missing element type after 'a'")
		}
		elem, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		return ArrayType(elem), nil
	case '(':
		p.pos++
		var fields []Type
		for {
			if p.pos >= len(p.s) {
				return Type{}, sigErrf(InvalidSignature, p.s, "missing closing ) in struct")
			}
			if p.s[p.pos] == ')' {
				p.pos++
				break
			}
			f, err := p.parseType()
			if err != nil {
				return Type{}, err
			}
			fields = append(fields, f)
			if len(fields) > maxSignatureLen {
				return Type{}, SignatureError{Kind: TooManyTypes, Signature: p.s}
			}
		}
		if len(fields) == 0 {
			return Type{}, SignatureError{Kind: EmptyStruct, Signature: p.s}
		}
		return Type{tag: tagStruct, fs: fields}, nil
	case '{':
		return Type{}, sigErrf(InvalidSignature, p.s, "dict entry '{' outside of array")
	case ')':
		return Type{}, sigErrf(InvalidSignature, p.s, "unexpected ')'")
	case '}':
		return Type{}, sigErrf(InvalidSignature, p.s, "unexpected '}'")
	default:
		return Type{}, sigErrf(InvalidSignature, p.s, "unknown type code %q", string(c))
	}
}

// parseDictEntry parses a dict entry body (the key type, value type,
// and closing '}') immediately after "a{" has been consumed.
func (p *sigParser) parseDictEntry() (Type, error) {
	if p.pos >= len(p.s) {
		return Type{}, sigErrf(InvalidSignature, p.s, "unterminated dict entry")
	}
	keyc := p.s[p.pos]
	if !isBaseChar(keyc) {
		return Type{}, SignatureError{
			Kind:      ShouldBeBaseType,
			Signature: p.s,
			Detail:    "dict entry key must be a basic type, got " + string(keyc),
		}
	}
	p.pos++
	key := Kind(keyc)
	val, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	if p.pos >= len(p.s) || p.s[p.pos] != '}' {
		return Type{}, sigErrf(InvalidSignature, p.s, "missing closing } in dict entry")
	}
	p.pos++
	return DictType(key, val), nil
}
