package capture

// 802.11 MAC header offsets read by the capture path. Nothing past the source
// address is inspected.
const (
	frameControlOffset = 0
	destinationOffset  = 4
	sourceOffset       = 10
	HeaderMinLen       = sourceOffset + MACLen // 16 bytes
)

type FrameType uint8

const (
	FrameTypeManagement FrameType = 0
	FrameTypeControl    FrameType = 1
	FrameTypeData       FrameType = 2
	FrameTypeExtension  FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeManagement:
		return "Management"
	case FrameTypeControl:
		return "Control"
	case FrameTypeData:
		return "Data"
	case FrameTypeExtension:
		return "Extension"
	default:
		return "Unknown"
	}
}

// Header holds the only fields taken from a received frame.
type Header struct {
	Type        FrameType
	Subtype     uint8
	Destination MAC
	Source      MAC
}

// ParseHeader reads the fixed offsets of buf. It reports false when buf is too short.
func ParseHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderMinLen {
		return Header{}, false
	}

	fc := buf[frameControlOffset]
	h := Header{
		Type:    FrameType((fc & 0x0C) >> 2),
		Subtype: (fc & 0xF0) >> 4,
	}
	copy(h.Destination[:], buf[destinationOffset:destinationOffset+MACLen])
	copy(h.Source[:], buf[sourceOffset:sourceOffset+MACLen])

	return h, true
}
