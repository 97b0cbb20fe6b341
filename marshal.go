package dbus

import (
	"fmt"
	"math"

	"github.com/coredbus/dbuswire/fragments"
)

// A MarshalContext carries encode-time state shared across a single
// call to [Marshal]: the growing output buffer and the file
// descriptor side table that [UnixFd] values are appended to.
type MarshalContext struct {
	fragments.Encoder
	FDs *FDTable
}

// NewMarshalContext returns a MarshalContext with an empty output
// buffer and FD table, encoding in order.
func NewMarshalContext(order fragments.ByteOrder) *MarshalContext {
	return &MarshalContext{
		Encoder: fragments.Encoder{Order: order},
		FDs:     &FDTable{},
	}
}

// Marshal encodes vals, in order, as a DBus message body and returns
// the wire bytes together with the file descriptor table any [UnixFd]
// values were appended to.
func Marshal(order fragments.ByteOrder, vals ...Value) ([]byte, *FDTable, error) {
	mc := NewMarshalContext(order)
	if err := MarshalAppend(mc, vals...); err != nil {
		return nil, nil, err
	}
	return mc.Out, mc.FDs, nil
}

// MarshalAppend encodes vals, in order, appending to mc's output
// buffer.
func MarshalAppend(mc *MarshalContext, vals ...Value) error {
	for i, v := range vals {
		path := fmt.Sprintf("value %d", i)
		if err := v.Type().checkDepth(0, 0); err != nil {
			return marshalErrf(MarshalNestingTooDeep, path, "%s", err)
		}
		if err := marshalValue(mc, v, path); err != nil {
			return err
		}
	}
	return nil
}

func marshalValue(mc *MarshalContext, v Value, path string) error {
	switch v.Tag() {
	case vtagBase:
		return marshalBase(mc, v, path)
	case vtagArray:
		return marshalArray(mc, v, path)
	case vtagStruct:
		return marshalStruct(mc, v, path)
	case vtagDict:
		return marshalDict(mc, v, path)
	case vtagVariant:
		return marshalVariant(mc, v, path)
	default:
		return marshalErrf(MarshalInvalidSignature, path, "zero Value has no representation")
	}
}

func marshalBase(mc *MarshalContext, v Value, path string) error {
	switch v.Kind() {
	case KindByte:
		mc.Uint8(v.Byte())
	case KindBoolean:
		if v.Bool() {
			mc.Uint32(1)
		} else {
			mc.Uint32(0)
		}
	case KindInt16:
		mc.Uint16(uint16(v.Int16()))
	case KindUint16:
		mc.Uint16(v.Uint16())
	case KindInt32:
		mc.Uint32(uint32(v.Int32()))
	case KindUint32:
		mc.Uint32(v.Uint32())
	case KindInt64:
		mc.Uint64(uint64(v.Int64()))
	case KindUint64:
		mc.Uint64(v.Uint64())
	case KindDouble:
		mc.Uint64(math.Float64bits(v.Double()))
	case KindUnixFd:
		mc.Uint32(mc.FDs.Append(v.UnixFd()))
	case KindString:
		if err := validateString(v.Str()); err != nil {
			return wrapMarshalValidate(err, path)
		}
		mc.String(v.Str())
	case KindObjectPath:
		if err := validateObjectPath(v.Str()); err != nil {
			return wrapMarshalValidate(err, path)
		}
		mc.String(v.Str())
	case KindSignature:
		if err := validateSignatureStr(v.Str()); err != nil {
			return wrapMarshalValidate(err, path)
		}
		mc.Signature(v.Str())
	default:
		return marshalErrf(MarshalInvalidSignature, path, "unknown base kind %v", v.Kind())
	}
	return nil
}

// wrapMarshalValidate adds a path breadcrumb to an error already
// produced by one of the validate* helpers.
func wrapMarshalValidate(err error, path string) error {
	if me, ok := err.(MarshalError); ok && me.Path == "" {
		me.Path = path
		return me
	}
	return err
}

func marshalArray(mc *MarshalContext, v Value, path string) error {
	if bs := v.arr.rawBytes; bs != nil {
		if len(bs) > maxArrayPayload {
			return marshalErrf(MarshalValueTooLarge, path, "byte array payload of %d bytes exceeds maximum of %d", len(bs), maxArrayPayload)
		}
		mc.Bytes(bs)
		return nil
	}

	elemAlign := v.arr.elem.Align()
	mc.Pad(4)
	lenOffset := len(mc.Out)
	mc.Uint32(0)
	mc.Pad(elemAlign)

	start := len(mc.Out)
	for i, elem := range v.arr.vals {
		if err := marshalValue(mc, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	end := len(mc.Out)
	if end-start > maxArrayPayload {
		return marshalErrf(MarshalValueTooLarge, path, "array payload of %d bytes exceeds maximum of %d", end-start, maxArrayPayload)
	}
	mc.Order.PutUint32(mc.Out[lenOffset:], uint32(end-start))
	return nil
}

func marshalDict(mc *MarshalContext, v Value, path string) error {
	mc.Pad(4)
	lenOffset := len(mc.Out)
	mc.Uint32(0)
	mc.Pad(alignStruct)

	start := len(mc.Out)
	for i, e := range v.dc.entries {
		mc.Pad(alignStruct)
		entryPath := fmt.Sprintf("%s{%d}", path, i)
		if err := marshalValue(mc, e.Key, entryPath+".key"); err != nil {
			return err
		}
		if err := marshalValue(mc, e.Val, entryPath+".value"); err != nil {
			return err
		}
	}
	end := len(mc.Out)
	if end-start > maxArrayPayload {
		return marshalErrf(MarshalValueTooLarge, path, "dict payload of %d bytes exceeds maximum of %d", end-start, maxArrayPayload)
	}
	mc.Order.PutUint32(mc.Out[lenOffset:], uint32(end-start))
	return nil
}

func marshalStruct(mc *MarshalContext, v Value, path string) error {
	mc.Pad(alignStruct)
	for i, f := range v.st.fields {
		if err := marshalValue(mc, f, fmt.Sprintf("%s.%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func marshalVariant(mc *MarshalContext, v Value, path string) error {
	sig, inner := v.VariantInner()
	if err := sig.checkDepth(0, 0); err != nil {
		return marshalErrf(MarshalNestingTooDeep, path, "%s", err)
	}
	mc.Signature(sig.String())
	return marshalValue(mc, inner, path+".variant")
}
