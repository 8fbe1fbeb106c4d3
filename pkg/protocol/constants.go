// Package protocol implements the bootloader's on-wire frame format:
// header bytes, command kinds, the CRC32 checksum table, and the fixed
// DeviceInfo record carried in an EnterBoot reply.
package protocol

// CommandKind identifies the single command byte carried by a Frame.
// The set is closed: an unrecognized byte on the wire is a decode
// failure, never a synthesized value.
type CommandKind byte

const (
	EnterBoot     CommandKind = 0x01
	Upload        CommandKind = 0x02
	Verify        CommandKind = 0x03
	RunApp        CommandKind = 0x04
	Ack           CommandKind = 0x05
	Nack          CommandKind = 0x06
	ErrorResponse CommandKind = 0x07
)

func (k CommandKind) String() string {
	switch k {
	case EnterBoot:
		return "EnterBoot"
	case Upload:
		return "Upload"
	case Verify:
		return "Verify"
	case RunApp:
		return "RunApp"
	case Ack:
		return "Ack"
	case Nack:
		return "Nack"
	case ErrorResponse:
		return "ErrorResponse"
	default:
		return "Unknown"
	}
}

// IsKnown reports whether k is one of the closed set of wire command
// kinds.
func (k CommandKind) IsKnown() bool {
	switch k {
	case EnterBoot, Upload, Verify, RunApp, Ack, Nack, ErrorResponse:
		return true
	default:
		return false
	}
}

const (
	headerByte1 = 0xAA
	headerByte2 = 0x55

	// FrameOverhead is the number of bytes in a frame outside the
	// payload: two header bytes, one command byte, two length bytes,
	// one checksum byte.
	FrameOverhead = 6

	// MaxPayloadSize is the largest payload a Frame can carry; the
	// length field is a little-endian uint16.
	MaxPayloadSize = 65535

	// DeviceInfoSize is the fixed size of the DeviceInfo record carried
	// in an EnterBoot reply payload.
	DeviceInfoSize = 60
)
