package dbus

import (
	"testing"

	"github.com/coredbus/dbuswire/fragments"
	"github.com/google/go-cmp/cmp"
)

func mustStruct(t *testing.T, fields ...Value) Value {
	t.Helper()
	v, err := Struct(fields...)
	if err != nil {
		t.Fatalf("Struct(...) failed: %v", err)
	}
	return v
}

func mustArray(t *testing.T, elem Type, vals []Value) Value {
	t.Helper()
	v, err := Array(elem, vals)
	if err != nil {
		t.Fatalf("Array(...) failed: %v", err)
	}
	return v
}

func mustDict(t *testing.T, key Kind, val Type, entries []DictEntry) Value {
	t.Helper()
	v, err := Dict(key, val, entries)
	if err != nil {
		t.Fatalf("Dict(...) failed: %v", err)
	}
	return v
}

func TestMarshal(t *testing.T) {
	tests := []struct {
		name string
		val  Value
		want []byte
	}{
		{"byte", Byte(42), []byte{42}},
		{"bool true", Bool(true), []byte{0, 0, 0, 1}},
		{"bool false", Bool(false), []byte{0, 0, 0, 0}},
		{"int16", Int16(0x1234), []byte{0x12, 0x34}},
		{"uint32", Uint32(0xdeadbeef), []byte{0xde, 0xad, 0xbe, 0xef}},
		{"int64", Int64(1), []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		{"string", String("abc"), []byte{
			0x00, 0x00, 0x00, 0x03,
			'a', 'b', 'c',
			0x00,
		}},
		{"byte array", ByteArray([]byte{1, 2, 3}), []byte{
			0x00, 0x00, 0x00, 0x03,
			1, 2, 3,
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := Marshal(fragments.BigEndian, tc.val)
			if err != nil {
				t.Fatalf("Marshal(%v) failed: %v", tc.val, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Marshal(%v) diff (-want +got):\n%s", tc.val, diff)
			}
		})
	}
}

func TestMarshalStruct(t *testing.T) {
	v := mustStruct(t, Int16(1), Bool(true))
	got, _, err := Marshal(fragments.BigEndian, v)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x01, // n
		0x00, 0x00, // pad to 4
		0x00, 0x00, 0x00, 0x01, // b
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Marshal(struct) diff (-want +got):\n%s", diff)
	}
}

func TestMarshalArrayOfInt32(t *testing.T) {
	v := mustArray(t, BaseType(KindInt32), []Value{Int32(1), Int32(2), Int32(3)})
	got, _, err := Marshal(fragments.BigEndian, v)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x0c, // length = 12 bytes
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x03,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Marshal(array) diff (-want +got):\n%s", diff)
	}
}

func TestMarshalDict(t *testing.T) {
	v := mustDict(t, KindString, BaseType(KindInt32), []DictEntry{
		{Key: String("a"), Val: Int32(1)},
	})
	got, _, err := Marshal(fragments.LittleEndian, v)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x0c, 0x00, 0x00, 0x00, // length = 12 bytes
		// pad to 8
		0x00, 0x00, 0x00, 0x00,
		// entry: "a" then i32(1)
		0x01, 0x00, 0x00, 0x00,
		'a', 0x00,
		0x00, 0x00, // pad to 4
		0x01, 0x00, 0x00, 0x00,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Marshal(dict) diff (-want +got):\n%s", diff)
	}
}

func TestMarshalVariant(t *testing.T) {
	v := VariantOf(Int32(7))
	got, _, err := Marshal(fragments.BigEndian, v)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x01, 'i', 0x00, // signature "i"
		0x00, // pad to 4
		0x00, 0x00, 0x00, 0x07,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Marshal(variant) diff (-want +got):\n%s", diff)
	}
}

func TestMarshalUnixFd(t *testing.T) {
	mc := NewMarshalContext(fragments.LittleEndian)
	if err := MarshalAppend(mc, UnixFd(7), UnixFd(9), UnixFd(7)); err != nil {
		t.Fatal(err)
	}
	if got, want := mc.FDs.Fds(), []int{7, 9}; !cmp.Equal(got, want) {
		t.Errorf("FDs = %v, want %v (duplicate fd 7 should be deduplicated)", got, want)
	}
	want := []byte{
		0, 0, 0, 0, // index 0 -> fd 7
		1, 0, 0, 0, // index 1 -> fd 9
		0, 0, 0, 0, // index 0 -> fd 7 again
	}
	if diff := cmp.Diff(want, mc.Out); diff != "" {
		t.Errorf("Marshal(fds) diff (-want +got):\n%s", diff)
	}
}

func TestMarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		val  func() (Value, error)
		want MarshalErrorKind
	}{
		{"object path no leading slash",
			func() (Value, error) { return ParseObjectPath("no/leading/slash") },
			MarshalInvalidObjectPath,
		},
		{"string with nul",
			func() (Value, error) { return String("a\x00b"), nil },
			MarshalStringContainsNullByte,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.val()
			if err == nil {
				_, _, err = Marshal(fragments.LittleEndian, v)
			}
			me, ok := err.(MarshalError)
			if !ok {
				t.Fatalf("got %v (%T), want MarshalError", err, err)
			}
			if me.Kind != tc.want {
				t.Errorf("got kind %v, want %v", me.Kind, tc.want)
			}
		})
	}
}

func TestMarshalArrayTooLarge(t *testing.T) {
	vals := make([]Value, maxArrayPayload/4+1)
	for i := range vals {
		vals[i] = Int32(0)
	}
	v := mustArray(t, BaseType(KindInt32), vals)
	_, _, err := Marshal(fragments.LittleEndian, v)
	me, ok := err.(MarshalError)
	if !ok || me.Kind != MarshalValueTooLarge {
		t.Fatalf("got %v, want MarshalValueTooLarge", err)
	}
}

func TestMarshalEmptyStruct(t *testing.T) {
	_, err := Struct()
	me, ok := err.(MarshalError)
	if !ok || me.Kind != MarshalEmptyStruct {
		t.Fatalf("Struct() = %v, want MarshalEmptyStruct", err)
	}
}

// nestArrays wraps v in n levels of single-element arrays.
func nestArrays(t *testing.T, v Value, n int) Value {
	for i := 0; i < n; i++ {
		v = mustArray(t, v.Type(), []Value{v})
	}
	return v
}

func TestMarshalNestingTooDeep(t *testing.T) {
	v := nestArrays(t, Int32(0), maxNestingDepth)
	mc := NewMarshalContext(fragments.LittleEndian)
	err := MarshalAppend(mc, v)
	me, ok := err.(MarshalError)
	if !ok || me.Kind != MarshalNestingTooDeep {
		t.Fatalf("got %v, want MarshalNestingTooDeep", err)
	}

	v = nestArrays(t, Int32(0), maxNestingDepth-1)
	mc = NewMarshalContext(fragments.LittleEndian)
	if err := MarshalAppend(mc, v); err != nil {
		t.Errorf("Marshal(maxNestingDepth-1 nested arrays) = %v, want success", err)
	}
}

// TestMarshalVariantNestingTooDeep checks that a deeply nested Value
// built through the Array/Struct/Dict constructors (which don't check
// depth themselves) still gets caught when it's wrapped in a variant,
// not just when it's a direct MarshalAppend argument.
func TestMarshalVariantNestingTooDeep(t *testing.T) {
	deep := nestArrays(t, Int32(0), maxNestingDepth)
	v := VariantOf(deep)
	mc := NewMarshalContext(fragments.LittleEndian)
	err := MarshalAppend(mc, v)
	me, ok := err.(MarshalError)
	if !ok || me.Kind != MarshalNestingTooDeep {
		t.Fatalf("got %v, want MarshalNestingTooDeep", err)
	}

	shallow := nestArrays(t, Int32(0), maxNestingDepth-1)
	mc = NewMarshalContext(fragments.LittleEndian)
	if err := MarshalAppend(mc, VariantOf(shallow)); err != nil {
		t.Errorf("Marshal(variant of maxNestingDepth-1 nested arrays) = %v, want success", err)
	}
}
