package protocol

import (
	"encoding/binary"
	"errors"
)

// ErrDeviceInfoSize is returned by DecodeDeviceInfo when the payload is
// not exactly DeviceInfoSize bytes.
var ErrDeviceInfoSize = errors.New("protocol: device info payload must be 60 bytes")

// DeviceInfo is the fixed 60-byte little-endian record carried in the
// payload of an EnterBoot reply.
type DeviceInfo struct {
	Model             string // up to 32 bytes UTF-8, NUL-padded on wire
	FlashSize         uint32
	AppLoadAddress    uint32
	FragmentSize      uint32
	BootloaderVersion string // up to 16 bytes UTF-8, NUL-padded on wire
}

const (
	deviceInfoModelLen   = 32
	deviceInfoVersionLen = 16
)

// DecodeDeviceInfo parses a 60-byte DeviceInfo record. Trailing NULs on
// the two string fields are stripped.
func DecodeDeviceInfo(payload []byte) (DeviceInfo, error) {
	if len(payload) != DeviceInfoSize {
		return DeviceInfo{}, ErrDeviceInfoSize
	}

	model := trimTrailingNUL(payload[0:deviceInfoModelLen])
	flashSize := binary.LittleEndian.Uint32(payload[32:36])
	appAddr := binary.LittleEndian.Uint32(payload[36:40])
	fragSize := binary.LittleEndian.Uint32(payload[40:44])
	version := trimTrailingNUL(payload[44:60])

	return DeviceInfo{
		Model:             model,
		FlashSize:         flashSize,
		AppLoadAddress:    appAddr,
		FragmentSize:      fragSize,
		BootloaderVersion: version,
	}, nil
}

// Encode serializes d back into its 60-byte wire form, zero-padding the
// two string fields and truncating them if they exceed their field
// width.
func (d DeviceInfo) Encode() []byte {
	buf := make([]byte, DeviceInfoSize)
	copyPadded(buf[0:deviceInfoModelLen], d.Model)
	binary.LittleEndian.PutUint32(buf[32:36], d.FlashSize)
	binary.LittleEndian.PutUint32(buf[36:40], d.AppLoadAddress)
	binary.LittleEndian.PutUint32(buf[40:44], d.FragmentSize)
	copyPadded(buf[44:60], d.BootloaderVersion)
	return buf
}

func trimTrailingNUL(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

func copyPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
