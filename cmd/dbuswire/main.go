// Command dbuswire exercises the codec from the command line: encode
// a scalar or flat array into wire bytes, decode wire bytes back into
// a value tree, or validate one or more signature strings.
//
// There is no bus connection in this module, so every subcommand here
// operates purely on local bytes.
package main

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/coredbus/dbuswire"
	"github.com/coredbus/dbuswire/fragments"
	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/heapq"
	"github.com/creachadair/mds/slice"
	"github.com/kr/pretty"
)

var globalArgs struct {
	Endian string `flag:"endian,default=little,Byte order to use: little or big"`
}

func byteOrder() fragments.ByteOrder {
	if strings.EqualFold(globalArgs.Endian, "big") {
		return fragments.BigEndian
	}
	return fragments.LittleEndian
}

func main() {
	root := &command.C{
		Name:     "dbuswire",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "encode",
				Usage: "encode signature value...",
				Help: `Encode a value as DBus wire bytes.

signature must be a single base type (e.g. "i", "s") or an array of a
single base type (e.g. "ai", "as"). For a base type, give exactly one
value argument; for an array type, give zero or more.`,
				Run: runEncode,
			},
			{
				Name:  "decode",
				Usage: "decode signature hex-bytes",
				Help:  "Decode wire bytes into a value tree and pretty-print it.",
				Run:   runDecode,
			},
			{
				Name:  "validate",
				Usage: "validate signature...",
				Help:  "Parse one or more signatures and report errors, most deeply nested first.",
				Run:   runValidate,
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	env := root.NewEnv(nil)
	command.RunOrFail(env, os.Args[1:])
}

// parseScalar converts s into a [dbus.Value] of base kind k.
func parseScalar(k dbus.Kind, s string) (dbus.Value, error) {
	switch k {
	case dbus.KindByte:
		n, err := strconv.ParseUint(s, 10, 8)
		return dbus.Byte(byte(n)), err
	case dbus.KindBoolean:
		b, err := strconv.ParseBool(s)
		return dbus.Bool(b), err
	case dbus.KindInt16:
		n, err := strconv.ParseInt(s, 10, 16)
		return dbus.Int16(int16(n)), err
	case dbus.KindUint16:
		n, err := strconv.ParseUint(s, 10, 16)
		return dbus.Uint16(uint16(n)), err
	case dbus.KindInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		return dbus.Int32(int32(n)), err
	case dbus.KindUint32:
		n, err := strconv.ParseUint(s, 10, 32)
		return dbus.Uint32(uint32(n)), err
	case dbus.KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		return dbus.Int64(n), err
	case dbus.KindUint64:
		n, err := strconv.ParseUint(s, 10, 64)
		return dbus.Uint64(n), err
	case dbus.KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		return dbus.Double(f), err
	case dbus.KindUnixFd:
		n, err := strconv.Atoi(s)
		return dbus.UnixFd(n), err
	case dbus.KindString:
		return dbus.String(s), nil
	case dbus.KindObjectPath:
		return dbus.ParseObjectPath(s)
	case dbus.KindSignature:
		inner, err := dbus.ParseSignature(s)
		if err != nil {
			return dbus.Value{}, err
		}
		return dbus.SignatureValue(inner), nil
	default:
		return dbus.Value{}, fmt.Errorf("unsupported base kind %v", k)
	}
}

// buildValue constructs a [dbus.Value] matching sig from CLI string
// arguments. Only a bare base type or an array of a bare base type is
// supported; richer shapes need the library, not this CLI.
func buildValue(sig dbus.Signature, args []string) (dbus.Value, error) {
	if !sig.IsSingle() {
		return dbus.Value{}, fmt.Errorf("encode takes a single-type signature, got %q", sig)
	}
	t := sig.Single()
	if t.IsBase() {
		if len(args) != 1 {
			return dbus.Value{}, fmt.Errorf("base type %q needs exactly one value argument, got %d", t, len(args))
		}
		return parseScalar(t.Base(), args[0])
	}
	if t.IsArray() && t.Elem().IsBase() {
		elem := t.Elem()
		vals := make([]dbus.Value, len(args))
		for i, a := range args {
			v, err := parseScalar(elem.Base(), a)
			if err != nil {
				return dbus.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			vals[i] = v
		}
		return dbus.Array(elem, vals)
	}
	return dbus.Value{}, fmt.Errorf("signature %q is not a base type or array-of-base-type; unsupported by this CLI", t)
}

func runEncode(env *command.Env) error {
	if len(env.Args) < 1 {
		return env.Usagef("encode requires a signature argument")
	}
	sig, err := dbus.ParseSignature(env.Args[0])
	if err != nil {
		return fmt.Errorf("parsing signature: %w", err)
	}
	val, err := buildValue(sig, env.Args[1:])
	if err != nil {
		return err
	}
	out, fds, err := dbus.Marshal(byteOrder(), val)
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}
	for i := 0; i < len(out); i += 16 {
		end := min(i+16, len(out))
		fmt.Println(hexRow(out[i:end]))
	}
	if fds.Len() > 0 {
		fmt.Println("fds:", fds.Fds())
	}
	return nil
}

func hexRow(bs []byte) string {
	var sb strings.Builder
	for i, b := range bs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

func runDecode(env *command.Env) error {
	if len(env.Args) != 2 {
		return env.Usagef("decode requires a signature and hex bytes")
	}
	sig, err := dbus.ParseSignature(env.Args[0])
	if err != nil {
		return fmt.Errorf("parsing signature: %w", err)
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(env.Args[1], " ", ""))
	if err != nil {
		return fmt.Errorf("decoding hex: %w", err)
	}
	vals, err := dbus.Unmarshal(raw, byteOrder(), sig, nil)
	if err != nil {
		return fmt.Errorf("unmarshalling: %w", err)
	}
	for _, v := range vals {
		fmt.Printf("%# v\n", pretty.Formatter(v))
	}
	return nil
}

// sigDiag is one validated signature's outcome, ranked by nesting
// depth so the most deeply nested problems surface first.
type sigDiag struct {
	sig   string
	depth int
	err   error
}

// nestingDepth is a rough structural-depth estimate used only to
// order diagnostics; it is not the authoritative depth check (that
// lives in the parser itself).
func nestingDepth(sig string) int {
	maxDepth, structDepth, arrayRun, maxArrayRun := 0, 0, 0, 0
	for i := 0; i < len(sig); i++ {
		switch sig[i] {
		case '(':
			structDepth++
			maxDepth = max(maxDepth, structDepth)
		case ')':
			if structDepth > 0 {
				structDepth--
			}
		case 'a':
			arrayRun++
			maxArrayRun = max(maxArrayRun, arrayRun)
		default:
			arrayRun = 0
		}
	}
	return max(maxDepth, maxArrayRun)
}

func runValidate(env *command.Env) error {
	sigs := slices.Collect(slice.Select(env.Args, func(s string) bool {
		return strings.TrimSpace(s) != ""
	}))
	if len(sigs) == 0 {
		return env.Usagef("validate requires at least one non-empty signature")
	}

	q := heapq.New(func(a, b sigDiag) int {
		return cmp.Compare(b.depth, a.depth)
	})
	for _, s := range sigs {
		_, err := dbus.ParseSignature(s)
		q.Add(sigDiag{sig: s, depth: nestingDepth(s), err: err})
	}

	var bad int
	for !q.IsEmpty() {
		d, _ := q.Pop()
		if d.err != nil {
			bad++
			fmt.Printf("%-20s INVALID (nesting %d): %v\n", d.sig, d.depth, d.err)
		} else {
			fmt.Printf("%-20s OK (nesting %d)\n", d.sig, d.depth)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d signatures invalid", bad, len(sigs))
	}
	return nil
}
