package wire

// ConsumeValue reports how many bytes of data make up one value of wire type
// typ, without decoding it. It is how unknown and mismatched fields are skipped.
func ConsumeValue(typ Type, data []byte) (int, error) {
	switch typ {
	case Varint:
		_, n, err := DecodeUvarint(data)
		return n, err
	case Fixed32:
		if len(data) < Fixed32Size {
			return 0, ErrUnexpectedEOF
		}
		return Fixed32Size, nil
	case Fixed64:
		if len(data) < Fixed64Size {
			return 0, ErrUnexpectedEOF
		}
		return Fixed64Size, nil
	case Bytes:
		_, n, err := DecodeBytes(data)
		return n, err
	default:
		return 0, ErrInvalidWireType
	}
}

// ConsumeField reads a tag and skips its value, returning the field number,
// wire type and total bytes consumed.
func ConsumeField(data []byte) (num int32, typ Type, n int, err error) {
	num, typ, tagLen, err := DecodeTag(data)
	if err != nil {
		return 0, 0, 0, err
	}
	valLen, err := ConsumeValue(typ, data[tagLen:])
	if err != nil {
		return 0, 0, 0, err
	}
	return num, typ, tagLen + valLen, nil
}
