package packstream

import (
	"encoding/binary"
	"math"
)

// Decoder decodes a sequence of PackStream values from a byte slice.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps data for decoding.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Decode decodes the next value from data.
func Decode(data []byte) (Value, error) {
	return NewDecoder(data).Decode()
}

// DecodeAll decodes every value in data, in order, until exhausted.
func DecodeAll(data []byte) ([]Value, error) {
	return NewDecoder(data).DecodeAll()
}

// Remaining reports how many bytes are left to decode.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Decode returns the next value, or ErrEOF if no bytes remain.
func (d *Decoder) Decode() (Value, error) {
	if d.pos >= len(d.data) {
		return nil, ErrEOF
	}
	return d.decodeValue()
}

// DecodeAll decodes values until the buffer is exhausted.
func (d *Decoder) DecodeAll() ([]Value, error) {
	values := make([]Value, 0)
	for d.pos < len(d.data) {
		v, err := d.decodeValue()
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrEOF
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrEOF
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readUint16() (uint16, error) {
	b, err := d.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) decodeValue() (Value, error) {
	marker, err := d.readByte()
	if err != nil {
		return nil, err
	}

	// Tiny positive int: 0x00-0x7F. Must be checked before any other range.
	if marker <= 0x7F {
		return int64(marker), nil
	}

	// Tiny string: 0x80-0x8F
	if marker >= 0x80 && marker <= 0x8F {
		return d.decodeStringOfSize(int(marker & 0x0F))
	}

	// Tiny list: 0x90-0x9F
	if marker >= 0x90 && marker <= 0x9F {
		return d.decodeListOfSize(int(marker & 0x0F))
	}

	// Tiny map: 0xA0-0xAF
	if marker >= 0xA0 && marker <= 0xAF {
		return d.decodeMapOfSize(int(marker & 0x0F))
	}

	// Tiny struct: 0xB0-0xBF
	if marker >= 0xB0 && marker <= 0xBF {
		return d.decodeStructOfSize(int(marker & 0x0F))
	}

	switch marker {
	case markerNull:
		return nil, nil
	case markerFloat64:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case markerFalse:
		return false, nil
	case markerTrue:
		return true, nil
	case markerInt8:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case markerInt16:
		v, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return int64(int16(v)), nil
	case markerInt32:
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return int64(int32(v)), nil
	case markerInt64:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	}

	// Tiny negative int: 0xF0-0xFF. Checked after the named markers above,
	// none of which fall in this range.
	if marker >= 0xF0 {
		return int64(marker) - 256, nil
	}

	switch marker {
	case markerBytes8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.readBytes(int(n))
	case markerBytes16:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.readBytes(int(n))
	case markerBytes32:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.readBytes(int(n))

	case markerString8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeStringOfSize(int(n))
	case markerString16:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.decodeStringOfSize(int(n))
	case markerString32:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.decodeStringOfSize(int(n))

	case markerList8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeListOfSize(int(n))
	case markerList16:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.decodeListOfSize(int(n))
	case markerList32:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.decodeListOfSize(int(n))

	case markerMap8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeMapOfSize(int(n))
	case markerMap16:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.decodeMapOfSize(int(n))
	case markerMap32:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.decodeMapOfSize(int(n))

	case markerStruct8:
		n, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return d.decodeStructOfSize(int(n))
	case markerStruct16:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.decodeStructOfSize(int(n))
	}

	return nil, &BadMarkerError{Marker: marker}
}

func (d *Decoder) decodeStringOfSize(n int) (Value, error) {
	b, err := d.readBytes(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Decoder) decodeListOfSize(n int) (Value, error) {
	items := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (d *Decoder) decodeMapOfSize(n int) (Value, error) {
	m := make(map[string]Value, n)
	for i := 0; i < n; i++ {
		k, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, &BadMarkerError{Marker: 0}
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
	return m, nil
}

func (d *Decoder) decodeStructOfSize(n int) (Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}
	fields := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		fields = append(fields, v)
	}
	return &Struct{Tag: tag, Fields: fields}, nil
}
