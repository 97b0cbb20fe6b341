package dbus

// A Kind identifies one of the 13 basic DBus types. Kind is the leaf
// of the [Type] AST: every [Base] type carries exactly one Kind, and
// a dict's key type is restricted to a Kind (no container may be a
// dict key).
type Kind byte

const (
	KindInvalid    Kind = 0
	KindByte       Kind = 'y'
	KindBoolean    Kind = 'b'
	KindInt16      Kind = 'n'
	KindUint16     Kind = 'q'
	KindInt32      Kind = 'i'
	KindUint32     Kind = 'u'
	KindInt64      Kind = 'x'
	KindUint64     Kind = 't'
	KindDouble     Kind = 'd'
	KindUnixFd     Kind = 'h'
	KindString     Kind = 's'
	KindObjectPath Kind = 'o'
	KindSignature  Kind = 'g'
)

// baseKinds lists every Kind, in signature-character order, so that
// callers can range over "every base kind" without hand-maintaining a
// second list next to the const block.
var baseKinds = [...]Kind{
	KindByte, KindBoolean, KindInt16, KindUint16, KindInt32, KindUint32,
	KindInt64, KindUint64, KindDouble, KindUnixFd, KindString,
	KindObjectPath, KindSignature,
}

func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(invalid)"
	}
	return string(rune(k))
}

// Valid reports whether k is one of the 13 defined base kinds.
func (k Kind) Valid() bool {
	for _, b := range baseKinds {
		if b == k {
			return true
		}
	}
	return false
}

// Align returns the wire alignment of k, in bytes.
func (k Kind) Align() int {
	switch k {
	case KindByte, KindSignature:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindBoolean, KindInt32, KindUint32, KindUnixFd, KindString, KindObjectPath:
		return 4
	case KindInt64, KindUint64, KindDouble:
		return 8
	default:
		return 0
	}
}

// FixedWidth returns the wire width of k in bytes, and true, for
// kinds with a fixed width. Variable-width kinds (string, object
// path, signature) return (0, false); their width is a length prefix
// plus payload, not a constant.
func (k Kind) FixedWidth() (int, bool) {
	switch k {
	case KindByte:
		return 1, true
	case KindInt16, KindUint16:
		return 2, true
	case KindBoolean, KindInt32, KindUint32, KindUnixFd:
		return 4, true
	case KindInt64, KindUint64, KindDouble:
		return 8, true
	default:
		return 0, false
	}
}

// TrivialBitPattern reports whether every bit pattern of k's fixed
// width is a valid value of k at k's native alignment. This is an
// optimization hook for zero-copy access to homogeneous arrays of
// plain numerics (e.g. treating the payload of "ay" as a []byte
// directly, or "at"/"ax" as a []uint64/[]int64 on a little-endian
// host).
//
// Boolean is false: only 0 and 1 are valid u32 values, so a raw byte
// reinterpretation could produce an invalid Value. Int32 is
// conservatively false too: nothing in the wire format actually
// forbids any int32 bit pattern, but treating it as trivial buys
// little (int32 arrays are uncommon on the wire relative to bytes and
// u32/u64) and keeps the fast path's blast radius small. An
// implementation that wants the aggressive variant can flip this one
// case; see DESIGN.md.
func (k Kind) TrivialBitPattern() bool {
	switch k {
	case KindByte, KindInt16, KindUint16, KindUint32, KindInt64, KindUint64, KindDouble, KindUnixFd:
		return true
	case KindBoolean, KindInt32:
		return false
	default:
		return false
	}
}

const (
	// alignArray is the wire alignment of an array's length prefix.
	alignArray = 4
	// alignDict is the wire alignment of a dict's outer length
	// prefix; identical to alignArray since a dict is an array of
	// dict entries.
	alignDict = 4
	// alignStruct is the wire alignment of a struct (and of a dict
	// entry, which is struct-shaped on the wire).
	alignStruct = 8
	// alignVariant is the wire alignment of a variant: its signature
	// is a Kind-1-aligned byte string, so a variant itself imposes no
	// extra alignment before it.
	alignVariant = 1

	// maxSignatureLen is the maximum length in bytes of a signature
	// string, excluding the trailing NUL.
	maxSignatureLen = 255
	// maxNestingDepth is the struct or array nesting depth, counted
	// independently, at which a type is rejected; 31 levels is the
	// deepest accepted.
	maxNestingDepth = 32
	// maxArrayPayload is the maximum encoded size, in bytes, of a
	// single array's payload (its length prefix is a uint32, but the
	// wire format additionally caps the value it may hold).
	maxArrayPayload = 1 << 26
)
