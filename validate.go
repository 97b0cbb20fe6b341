package dbus

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/creachadair/mds/mapset"
)

// validateArray reports whether every element of vals has signature
// elem. On mismatch it returns a [MarshalError] of kind
// [MarshalArrayElementTypeMismatch].
func validateArray(elem Type, vals []Value) error {
	for i, v := range vals {
		if !v.Type().Equal(elem) {
			return marshalErrf(MarshalArrayElementTypeMismatch, "",
				"array element %d has signature %q, want %q", i, v.Type(), elem)
		}
	}
	return nil
}

// validateDict reports whether every entry of entries has a key of
// base kind key and a value of signature val, and that no two entries
// share a key. On failure it returns a [MarshalError] of kind
// [MarshalDictKeyTypeMismatch] or [MarshalDictValueTypeMismatch].
func validateDict(key Kind, val Type, entries []DictEntry) error {
	seen := mapset.New[string]()
	for i, e := range entries {
		if !e.Key.IsBase() || e.Key.Kind() != key {
			return marshalErrf(MarshalDictKeyTypeMismatch, "",
				"dict entry %d has key kind %v, want %v", i, e.Key.base, key)
		}
		if !e.Val.Type().Equal(val) {
			return marshalErrf(MarshalDictValueTypeMismatch, "",
				"dict entry %d has value signature %q, want %q", i, e.Val.Type(), val)
		}
		k := canonicalDictKey(e.Key)
		if seen.Has(k) {
			return marshalErrf(MarshalDictKeyTypeMismatch, "",
				"duplicate dict key %s", k)
		}
		seen.Add(k)
	}
	return nil
}

// canonicalDictKey returns a string that uniquely identifies a base
// Value's content, for use as a uniqueness-tracking set key. It is
// not a wire format.
func canonicalDictKey(v Value) string {
	switch v.base {
	case KindByte, KindUnixFd:
		return strconv.FormatUint(v.num, 10)
	case KindBoolean:
		return strconv.FormatBool(v.num != 0)
	case KindInt16:
		return strconv.FormatInt(int64(v.Int16()), 10)
	case KindUint16:
		return strconv.FormatUint(uint64(v.Uint16()), 10)
	case KindInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case KindUint32:
		return strconv.FormatUint(uint64(v.Uint32()), 10)
	case KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case KindDouble:
		return strconv.FormatUint(v.num, 16)
	case KindString, KindObjectPath, KindSignature:
		return v.Str()
	default:
		return ""
	}
}

// validateObjectPath reports whether s is a syntactically valid DBus
// object path: non-empty, beginning with '/', composed of
// '/'-separated segments each matching [A-Za-z0-9_]+, with no
// trailing '/' except for the root path "/".
func validateObjectPath(s string) error {
	if s == "" {
		return marshalErrf(MarshalInvalidObjectPath, "", "object path is empty")
	}
	if s[0] != '/' {
		return marshalErrf(MarshalInvalidObjectPath, "", "object path %q does not start with '/'", s)
	}
	if s == "/" {
		return nil
	}
	if strings.HasSuffix(s, "/") {
		return marshalErrf(MarshalInvalidObjectPath, "", "object path %q has a trailing '/'", s)
	}
	for _, seg := range strings.Split(s[1:], "/") {
		if seg == "" {
			return marshalErrf(MarshalInvalidObjectPath, "", "object path %q has an empty segment", s)
		}
		for _, c := range []byte(seg) {
			if !isPathSegmentByte(c) {
				return marshalErrf(MarshalInvalidObjectPath, "", "object path %q has invalid character %q", s, string(c))
			}
		}
	}
	return nil
}

func isPathSegmentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		return true
	default:
		return false
	}
}

// validateSignatureStr reports whether s is a syntactically valid
// DBus signature, by delegating to [ParseSignature].
func validateSignatureStr(s string) error {
	_, err := ParseSignature(s)
	return err
}

// validateString reports whether s is free of interior NUL bytes and
// is valid UTF-8. Go's string type does not otherwise guarantee
// UTF-8; values built from untrusted []byte should go through this.
func validateString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return marshalErrf(MarshalStringContainsNullByte, "", "string contains a NUL byte")
	}
	if !utf8.ValidString(s) {
		return marshalErrf(MarshalStringInvalidUtf8, "", "string is not valid UTF-8")
	}
	return nil
}
