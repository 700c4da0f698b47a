package sml

import (
	"errors"
	"fmt"
)

// Kind discriminates the value types of the SML Type-Length-Value encoding.
type Kind uint8

// Value kinds produced by the parser.
const (
	// KindNil marks an optional field that is not present.
	KindNil Kind = iota
	// KindOctet is a raw octet string.
	KindOctet
	// KindBool is a boolean.
	KindBool
	// KindInt is a signed integer of one to eight bytes.
	KindInt
	// KindUint is an unsigned integer of one to eight bytes.
	KindUint
	// KindList is a sequence of values.
	KindList
	// KindEndOfMessage is the 0x00 terminator closing each message.
	KindEndOfMessage
)

// Type field values of the first TL byte.
const (
	typeOctet = 0x00
	typeBool  = 0x40
	typeInt   = 0x50
	typeUint  = 0x60
	typeList  = 0x70

	tlTypeMask   = 0x70
	tlLengthMask = 0x0f
	tlContinue   = 0x80
)

var (
	// ErrTruncated is returned when a frame payload ends inside a value.
	ErrTruncated = errors.New("sml: truncated payload")
	// ErrMalformedTL is returned for a Type-Length field describing a
	// negative data length.
	ErrMalformedTL = errors.New("sml: malformed type-length field")
)

// Value is one node of the parsed SML value tree.
type Value struct {
	Kind  Kind
	Octet []byte
	Bool  bool
	Int   int64
	Uint  uint64
	List  []Value
}

// Parse decodes a frame payload into its sequence of top-level values.
// Each top-level value is one smlMessage.
func Parse(payload []byte) ([]Value, error) {
	d := &decoder{data: payload}

	var values []Value

	for !d.empty() {
		v, err := d.next()
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) empty() bool {
	return d.pos >= len(d.data)
}

func (d *decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}

	b := d.data[d.pos : d.pos+n]
	d.pos += n

	return b, nil
}

// next reads one value, skipping over reserved type fields the way the
// meters' firmware expects (consume the announced bytes, keep going).
func (d *decoder) next() (Value, error) {
	for {
		first, err := d.take(1)
		if err != nil {
			return Value{}, err
		}

		tl := first[0]
		typ := tl & tlTypeMask
		length := int(tl & tlLengthMask)
		tlBytes := 1

		// Multi-byte TL: continuation bytes contribute four more length bits
		// each as long as their type field is zero.
		for tl&tlContinue != 0 {
			next, takeErr := d.take(1)
			if takeErr != nil {
				return Value{}, takeErr
			}

			tl = next[0]
			tlBytes++

			if tl&tlTypeMask == 0 {
				length = length<<4 | int(tl&tlLengthMask)
			}
		}

		if typ == typeList {
			return d.list(length)
		}

		dataLen := length - tlBytes

		switch typ {
		case typeOctet:
			return d.octet(tl, dataLen)
		case typeBool:
			return d.boolean(dataLen)
		case typeInt:
			return d.signed(dataLen)
		case typeUint:
			return d.unsigned(dataLen)
		default:
			// Reserved type: consume the data bytes and read the next TL.
			if dataLen < 0 {
				return Value{}, ErrMalformedTL
			}

			if _, err = d.take(dataLen); err != nil {
				return Value{}, err
			}
		}
	}
}

func (d *decoder) list(elements int) (Value, error) {
	list := make([]Value, 0, elements)

	for i := 0; i < elements; i++ {
		v, err := d.next()
		if err != nil {
			return Value{}, fmt.Errorf("list element %d: %w", len(list), err)
		}

		list = append(list, v)
	}

	return Value{Kind: KindList, List: list}, nil
}

func (d *decoder) octet(tl byte, dataLen int) (Value, error) {
	switch {
	case dataLen == 0:
		// Optional field, not present.
		return Value{Kind: KindNil}, nil
	case tl == 0:
		return Value{Kind: KindEndOfMessage}, nil
	case dataLen < 0:
		return Value{}, ErrMalformedTL
	}

	data, err := d.take(dataLen)
	if err != nil {
		return Value{}, err
	}

	return Value{Kind: KindOctet, Octet: append([]byte(nil), data...)}, nil
}

func (d *decoder) boolean(dataLen int) (Value, error) {
	if dataLen < 0 {
		return Value{}, ErrMalformedTL
	}

	data, err := d.take(dataLen)
	if err != nil {
		return Value{}, err
	}

	v := false

	for _, b := range data {
		if b != 0 {
			v = true
		}
	}

	return Value{Kind: KindBool, Bool: v}, nil
}

func (d *decoder) signed(dataLen int) (Value, error) {
	if dataLen < 0 {
		return Value{}, ErrMalformedTL
	}

	data, err := d.take(dataLen)
	if err != nil {
		return Value{}, err
	}

	return Value{Kind: KindInt, Int: bigEndianSigned(data)}, nil
}

func (d *decoder) unsigned(dataLen int) (Value, error) {
	if dataLen < 0 {
		return Value{}, ErrMalformedTL
	}

	data, err := d.take(dataLen)
	if err != nil {
		return Value{}, err
	}

	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}

	return Value{Kind: KindUint, Uint: v}, nil
}

// bigEndianSigned decodes a big-endian two's-complement integer of up to
// eight bytes, sign-extending from the first byte.
func bigEndianSigned(data []byte) int64 {
	if len(data) == 0 {
		return 0
	}

	v := int64(int8(data[0]))
	for _, b := range data[1:] {
		v = v<<8 | int64(b)
	}

	return v
}
