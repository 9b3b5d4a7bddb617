package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal and Unmarshal implement this package's wire encoding: a
// reflection-driven walk over each message struct's `wire:"N"` tags,
// built directly on google.golang.org/protobuf's public wire-format
// primitives (protowire.Append*/Consume*, the same ones protoc-gen-go's
// generated Marshal/Unmarshal methods call into). There is no .proto
// schema or protoc-gen-go step for this repository's small, fixed message
// set; the tags on each struct field stand in for what a .proto field
// number would otherwise assign, and carry the same compatibility rule:
// once shipped, a field's number must never be reassigned.
//
// Every signed integer field (including enums and port.Port, whose
// Unknown sentinel is negative) is zig-zag encoded via
// protowire.EncodeZigZag/DecodeZigZag so negative values round-trip as a
// small varint rather than the ten-byte two's-complement form plain
// varint-of-int64 would otherwise produce.
func Marshal(v any) ([]byte, error) {
	return marshalMessage(reflect.ValueOf(v))
}

func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("wire: Unmarshal requires a non-nil pointer")
	}
	return unmarshalMessage(data, rv.Elem())
}

// WriteMessage frames v with a 4-byte big-endian length prefix and writes
// it to w. Muxado streams are raw byte streams with no message boundaries
// of their own, so the RPC layer needs this length prefix the way
// encoding/json's Decoder gets message boundaries for free from JSON's own
// syntax.
func WriteMessage(w io.Writer, v any) error {
	b, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("wire: write message: %w", err)
	}
	return nil
}

// ReadMessage reads one WriteMessage-framed message from r into v.
func ReadMessage(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("wire: read message: %w", err)
	}
	return Unmarshal(buf, v)
}

func marshalMessage(rv reflect.Value) ([]byte, error) {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("wire: cannot marshal kind %s", rv.Kind())
	}

	t := rv.Type()
	var out []byte
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("wire")
		if tag == "" || tag == "-" {
			continue
		}
		num, err := strconv.Atoi(tag)
		if err != nil {
			return nil, fmt.Errorf("wire: invalid tag %q on %s", tag, sf.Name)
		}
		b, err := marshalField(protowire.Number(num), rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("wire: field %s: %w", sf.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func marshalField(num protowire.Number, fv reflect.Value) ([]byte, error) {
	switch fv.Kind() {
	case reflect.Bool:
		if !fv.Bool() {
			return nil, nil
		}
		return appendVarintField(nil, num, 1), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := fv.Int()
		if n == 0 {
			return nil, nil
		}
		return appendVarintField(nil, num, protowire.EncodeZigZag(n)), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := fv.Uint()
		if n == 0 {
			return nil, nil
		}
		return appendVarintField(nil, num, n), nil

	case reflect.String:
		s := fv.String()
		if s == "" {
			return nil, nil
		}
		return appendBytesField(nil, num, []byte(s)), nil

	case reflect.Array:
		// KeyState.Buttons [16]bool: packed one byte per flag.
		buf := make([]byte, fv.Len())
		nonZero := false
		for i := 0; i < fv.Len(); i++ {
			if fv.Index(i).Bool() {
				buf[i] = 1
				nonZero = true
			}
		}
		if !nonZero {
			return nil, nil
		}
		return appendBytesField(nil, num, buf), nil

	case reflect.Ptr:
		if fv.IsNil() {
			return nil, nil
		}
		sub, err := marshalMessage(fv)
		if err != nil {
			return nil, err
		}
		return appendBytesField(nil, num, sub), nil

	case reflect.Slice:
		return marshalSlice(num, fv)

	default:
		return nil, fmt.Errorf("unsupported kind %s", fv.Kind())
	}
}

func marshalSlice(num protowire.Number, fv reflect.Value) ([]byte, error) {
	if fv.Len() == 0 {
		return nil, nil
	}
	if fv.Type().Elem().Kind() == reflect.Struct {
		var out []byte
		for i := 0; i < fv.Len(); i++ {
			sub, err := marshalMessage(fv.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, appendBytesField(nil, num, sub)...)
		}
		return out, nil
	}

	// Packed repeated scalar (e.g. []port.Port): one length-delimited field
	// holding the concatenated varints.
	var packed []byte
	for i := 0; i < fv.Len(); i++ {
		ev := fv.Index(i)
		switch ev.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(ev.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			packed = protowire.AppendVarint(packed, ev.Uint())
		default:
			return nil, fmt.Errorf("unsupported repeated scalar kind %s", ev.Kind())
		}
	}
	return appendBytesField(nil, num, packed), nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func unmarshalMessage(data []byte, rv reflect.Value) error {
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("wire: cannot unmarshal into kind %s", rv.Kind())
	}
	fields := fieldsByNumber(rv.Type())

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		idx, ok := fields[int(num)]
		if !ok {
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return protowire.ParseError(m)
			}
			data = data[m:]
			continue
		}

		consumed, err := unmarshalField(data, rv.Field(idx))
		if err != nil {
			return err
		}
		data = data[consumed:]
	}
	return nil
}

func fieldsByNumber(t reflect.Type) map[int]int {
	m := make(map[int]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("wire")
		if tag == "" || tag == "-" {
			continue
		}
		if num, err := strconv.Atoi(tag); err == nil {
			m[num] = i
		}
	}
	return m
}

func unmarshalField(data []byte, fv reflect.Value) (int, error) {
	switch fv.Kind() {
	case reflect.Bool:
		val, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		fv.SetBool(val != 0)
		return n, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		fv.SetInt(protowire.DecodeZigZag(val))
		return n, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		fv.SetUint(val)
		return n, nil

	case reflect.String:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		fv.SetString(string(b))
		return n, nil

	case reflect.Array:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		for i := 0; i < fv.Len() && i < len(b); i++ {
			fv.Index(i).SetBool(b[i] != 0)
		}
		return n, nil

	case reflect.Ptr:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		if err := unmarshalMessage(b, fv.Elem()); err != nil {
			return 0, err
		}
		return n, nil

	case reflect.Slice:
		return unmarshalSlice(data, fv)

	default:
		return 0, fmt.Errorf("wire: unsupported kind %s", fv.Kind())
	}
}

func unmarshalSlice(data []byte, fv reflect.Value) (int, error) {
	b, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	elemType := fv.Type().Elem()
	if elemType.Kind() == reflect.Struct {
		elem := reflect.New(elemType).Elem()
		if err := unmarshalMessage(b, elem); err != nil {
			return 0, err
		}
		fv.Set(reflect.Append(fv, elem))
		return n, nil
	}

	for rest := b; len(rest) > 0; {
		val, m := protowire.ConsumeVarint(rest)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		rest = rest[m:]

		elem := reflect.New(elemType).Elem()
		switch elem.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			elem.SetInt(protowire.DecodeZigZag(val))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			elem.SetUint(val)
		default:
			return 0, fmt.Errorf("wire: unsupported repeated scalar kind %s", elem.Kind())
		}
		fv.Set(reflect.Append(fv, elem))
	}
	return n, nil
}
