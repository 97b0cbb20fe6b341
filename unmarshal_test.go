package dbus

import (
	"testing"

	"github.com/coredbus/dbuswire/fragments"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cmpValueOpts = cmp.Options{
	cmp.AllowUnexported(Value{}, Type{}, arrayValue{}, structValue{}, dictValue{}, variantValue{}, maybeString{}),
	cmpopts.IgnoreFields(maybeString{}, "detached"),
	cmpopts.EquateEmpty(),
}

func TestUnmarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		val  Value
	}{
		{"int32", Int32(-42)},
		{"string", String("hello, world")},
		{"array of int32", mustArray(t, BaseType(KindInt32), []Value{Int32(1), Int32(2), Int32(3)})},
		{"struct", mustStruct(t, Int16(7), Bool(true), String("x"))},
		{"dict", mustDict(t, KindString, BaseType(KindInt32), []DictEntry{
			{Key: String("a"), Val: Int32(1)},
			{Key: String("b"), Val: Int32(2)},
		})},
		{"variant", VariantOf(String("inner"))},
		{"byte array", ByteArray([]byte{1, 2, 3, 4})},
		{"nested struct", mustStruct(t, mustStruct(t, Byte(1), Bool(false)), Int64(99))},
		{"empty array", mustArray(t, BaseType(KindString), nil)},
	}

	for _, tc := range tests {
		for _, order := range []fragments.ByteOrder{fragments.BigEndian, fragments.LittleEndian} {
			t.Run(tc.name+"/"+order.String(), func(t *testing.T) {
				raw, fds, err := Marshal(order, tc.val)
				if err != nil {
					t.Fatalf("Marshal failed: %v", err)
				}
				got, err := Unmarshal(raw, order, tc.val.Signature(), fds)
				if err != nil {
					t.Fatalf("Unmarshal failed: %v", err)
				}
				if len(got) != 1 {
					t.Fatalf("Unmarshal returned %d values, want 1", len(got))
				}
				if diff := cmp.Diff(tc.val.Detach(), got[0].Detach(), cmpValueOpts); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestUnmarshalInvalidBoolean(t *testing.T) {
	raw := []byte{0, 0, 0, 2}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("b"), nil)
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != InvalidBoolean {
		t.Fatalf("got %v, want InvalidBoolean", err)
	}
}

func TestUnmarshalInvalidUtf8(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 0xff, 0}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("s"), nil)
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != InvalidUtf8 {
		t.Fatalf("got %v, want InvalidUtf8", err)
	}
}

func TestUnmarshalNotEnoughBytes(t *testing.T) {
	raw := []byte{0, 0, 0}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("u"), nil)
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != NotEnoughBytes {
		t.Fatalf("got %v, want NotEnoughBytes", err)
	}
}

func TestUnmarshalArraySizeTooLarge(t *testing.T) {
	raw := []byte{0xff, 0xff, 0xff, 0xff}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("ay"), nil)
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != ArraySizeTooLarge {
		t.Fatalf("got %v, want ArraySizeTooLarge", err)
	}
}

func TestUnmarshalUnixFdIndexOutOfRange(t *testing.T) {
	raw := []byte{0, 0, 0, 5}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("h"), NewFDTable(1, 2))
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != UnixFdIndexOutOfRange {
		t.Fatalf("got %v, want UnixFdIndexOutOfRange", err)
	}
}

func TestUnmarshalVariantBadSignature(t *testing.T) {
	raw := []byte{1, 'z', 0}
	_, err := Unmarshal(raw, fragments.BigEndian, MustParseSignature("v"), nil)
	ue, ok := err.(UnmarshalError)
	if !ok || ue.Kind != UnmarshalInvalidSignature {
		t.Fatalf("got %v, want UnmarshalInvalidSignature", err)
	}
}

func TestUnmarshalMultipleTopLevelValues(t *testing.T) {
	mc := NewMarshalContext(fragments.LittleEndian)
	if err := MarshalAppend(mc, Int32(1), String("two"), Bool(true)); err != nil {
		t.Fatal(err)
	}
	sig := MustParseSignature("isb")
	got, err := Unmarshal(mc.Out, fragments.LittleEndian, sig, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d values, want 3", len(got))
	}
	if got[0].Int32() != 1 || got[1].Str() != "two" || !got[2].Bool() {
		t.Errorf("got %v", got)
	}
}
