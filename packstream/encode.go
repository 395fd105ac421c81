package packstream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Marker bytes, per the Bolt PackStream marker table.
const (
	markerTinyString = 0x80
	markerTinyList   = 0x90
	markerTinyMap    = 0xA0
	markerTinyStruct = 0xB0

	markerNull    = 0xC0
	markerFloat64 = 0xC1
	markerFalse   = 0xC2
	markerTrue    = 0xC3

	markerInt8  = 0xC8
	markerInt16 = 0xC9
	markerInt32 = 0xCA
	markerInt64 = 0xCB

	markerBytes8  = 0xCC
	markerBytes16 = 0xCD
	markerBytes32 = 0xCE

	markerString8  = 0xD0
	markerString16 = 0xD1
	markerString32 = 0xD2

	markerList8  = 0xD4
	markerList16 = 0xD5
	markerList32 = 0xD6

	markerMap8  = 0xD8
	markerMap16 = 0xD9
	markerMap32 = 0xDA

	markerStruct8  = 0xDC
	markerStruct16 = 0xDD
)

// Encode renders a single Value into its PackStream wire bytes.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte(markerNull)
	case bool:
		if val {
			buf.WriteByte(markerTrue)
		} else {
			buf.WriteByte(markerFalse)
		}
	case int:
		encodeInt(buf, int64(val))
	case int8:
		encodeInt(buf, int64(val))
	case int16:
		encodeInt(buf, int64(val))
	case int32:
		encodeInt(buf, int64(val))
	case int64:
		encodeInt(buf, val)
	case uint:
		encodeInt(buf, int64(val))
	case uint32:
		encodeInt(buf, int64(val))
	case float32:
		encodeFloat(buf, float64(val))
	case float64:
		encodeFloat(buf, val)
	case string:
		encodeString(buf, val)
	case []byte:
		encodeBytes(buf, val)
	case []Value:
		return encodeList(buf, val)
	case map[string]Value:
		return encodeMap(buf, val)
	case *Struct:
		return encodeStruct(buf, val)
	case Struct:
		return encodeStruct(buf, &val)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// encodeInt picks the narrowest lane that fits, per the smallest-fits rule:
// tiny (-16..127), else int8/16/32/64 by range.
func encodeInt(buf *bytes.Buffer, v int64) {
	switch {
	case -16 <= v && v < 128:
		buf.WriteByte(byte(v))
	case -128 <= v && v < 128:
		buf.WriteByte(markerInt8)
		buf.WriteByte(byte(v))
	case -32768 <= v && v < 32768:
		buf.WriteByte(markerInt16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf.Write(b[:])
	case -2147483648 <= v && v < 2147483648:
		buf.WriteByte(markerInt32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerInt64)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
	}
}

func encodeFloat(buf *bytes.Buffer, v float64) {
	buf.WriteByte(markerFloat64)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

func encodeString(buf *bytes.Buffer, s string) {
	n := len(s)
	switch {
	case n < 16:
		buf.WriteByte(byte(markerTinyString | n))
	case n < 256:
		buf.WriteByte(markerString8)
		buf.WriteByte(byte(n))
	case n < 65536:
		buf.WriteByte(markerString16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerString32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	}
	buf.WriteString(s)
}

func encodeBytes(buf *bytes.Buffer, data []byte) {
	n := len(data)
	switch {
	case n < 256:
		buf.WriteByte(markerBytes8)
		buf.WriteByte(byte(n))
	case n < 65536:
		buf.WriteByte(markerBytes16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerBytes32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	}
	buf.Write(data)
}

func encodeList(buf *bytes.Buffer, items []Value) error {
	n := len(items)
	switch {
	case n < 16:
		buf.WriteByte(byte(markerTinyList | n))
	case n < 256:
		buf.WriteByte(markerList8)
		buf.WriteByte(byte(n))
	case n < 65536:
		buf.WriteByte(markerList16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerList32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	}
	for _, item := range items {
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	return nil
}

// encodeMap writes keys in whatever order Go's map iteration yields, since
// the wire format does not require key order (spec §4.1). Map keys must be
// strings on the wire; map[string]Value already guarantees that statically.
func encodeMap(buf *bytes.Buffer, m map[string]Value) error {
	n := len(m)
	switch {
	case n < 16:
		buf.WriteByte(byte(markerTinyMap | n))
	case n < 256:
		buf.WriteByte(markerMap8)
		buf.WriteByte(byte(n))
	case n < 65536:
		buf.WriteByte(markerMap16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(markerMap32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	}
	for k, v := range m {
		encodeString(buf, k)
		if err := encodeValue(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeStruct(buf *bytes.Buffer, s *Struct) error {
	n := len(s.Fields)
	switch {
	case n < 16:
		buf.WriteByte(byte(markerTinyStruct | n))
	case n < 256:
		buf.WriteByte(markerStruct8)
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(markerStruct16)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	}
	buf.WriteByte(s.Tag)
	for _, f := range s.Fields {
		if err := encodeValue(buf, f); err != nil {
			return err
		}
	}
	return nil
}
