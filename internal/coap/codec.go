package coap

import (
	"encoding/binary"

	"github.com/openthread/otcommissioner/internal/coerr"
)

const payloadMarker = 0xFF

// Encode serialises a Message into its wire form: 4-byte header, token,
// delta+length-encoded options in ascending Number order, then an optional
// 0xFF-marked payload.
func Encode(m *Message) ([]byte, error) {
	if len(m.Token) > MaxTokenLen {
		return nil, coerr.New(coerr.InvalidArgs, "coap: token length %d exceeds max %d", len(m.Token), MaxTokenLen)
	}

	buf := make([]byte, 0, 32+len(m.Payload))
	buf = append(buf, (m.Version&0x03)<<6|uint8(m.Type&0x03)<<4|uint8(len(m.Token)&0x0F))
	buf = append(buf, uint8(m.Code))
	buf = append(buf, byte(m.MessageID>>8), byte(m.MessageID))
	buf = append(buf, m.Token...)

	opts := sortOptions(append([]Option(nil), m.Options...))
	var lastNumber uint16
	for _, o := range opts {
		delta := o.Number - lastNumber
		lastNumber = o.Number
		buf = appendOption(buf, delta, o.Value)
	}

	if len(m.Payload) > 0 {
		buf = append(buf, payloadMarker)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

func appendOption(buf []byte, delta uint16, value []byte) []byte {
	deltaNibble, deltaExt := optionLenNibble(delta)
	lengthNibble, lengthExt := optionLenNibble(uint16(len(value)))

	buf = append(buf, deltaNibble<<4|lengthNibble)
	buf = append(buf, deltaExt...)
	buf = append(buf, lengthExt...)
	buf = append(buf, value...)
	return buf
}

// optionLenNibble returns the 4-bit nibble and any extended bytes for an
// option delta/length value per RFC 7252 §3.1: 0-12 direct, 13 means
// "1 extended byte, value-13", 14 means "2 extended bytes (BE), value-269".
func optionLenNibble(v uint16) (uint8, []byte) {
	switch {
	case v < 13:
		return uint8(v), nil
	case v < 269:
		return 13, []byte{uint8(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, v-269)
		return 14, ext
	}
}

// Decode parses a wire-format CoAP message.
func Decode(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, coerr.New(coerr.BadFormat, "coap: message shorter than 4-byte header")
	}
	m := &Message{
		Version:   data[0] >> 6,
		Type:      Type((data[0] >> 4) & 0x03),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}
	tokenLen := int(data[0] & 0x0F)
	if tokenLen > MaxTokenLen {
		return nil, coerr.New(coerr.BadFormat, "coap: token length nibble %d exceeds max %d", tokenLen, MaxTokenLen)
	}
	i := 4
	if i+tokenLen > len(data) {
		return nil, coerr.New(coerr.BadFormat, "coap: token overruns buffer")
	}
	m.Token = append([]byte(nil), data[i:i+tokenLen]...)
	i += tokenLen

	var lastNumber uint16
	for i < len(data) {
		if data[i] == payloadMarker {
			i++
			if i >= len(data) {
				return nil, coerr.New(coerr.BadFormat, "coap: payload marker with no payload")
			}
			m.Payload = append([]byte(nil), data[i:]...)
			break
		}
		deltaNibble := data[i] >> 4
		lengthNibble := data[i] & 0x0F
		i++

		delta, ni, err := readOptionLen(data, i, deltaNibble)
		if err != nil {
			return nil, err
		}
		i = ni
		length, ni, err := readOptionLen(data, i, lengthNibble)
		if err != nil {
			return nil, err
		}
		i = ni

		number := lastNumber + delta
		lastNumber = number

		if i+int(length) > len(data) {
			return nil, coerr.New(coerr.BadFormat, "coap: option %d value overruns buffer", number)
		}
		value := append([]byte(nil), data[i:i+int(length)]...)
		i += int(length)

		m.Options = append(m.Options, Option{Number: number, Value: value})
	}
	return m, nil
}

func readOptionLen(data []byte, i int, nibble uint8) (uint16, int, error) {
	switch {
	case nibble < 13:
		return uint16(nibble), i, nil
	case nibble == 13:
		if i >= len(data) {
			return 0, i, coerr.New(coerr.BadFormat, "coap: truncated 1-byte extended option length")
		}
		return uint16(data[i]) + 13, i + 1, nil
	case nibble == 14:
		if i+2 > len(data) {
			return 0, i, coerr.New(coerr.BadFormat, "coap: truncated 2-byte extended option length")
		}
		return binary.BigEndian.Uint16(data[i:i+2]) + 269, i + 2, nil
	default:
		return 0, i, coerr.New(coerr.BadFormat, "coap: reserved option length nibble 15")
	}
}
