package protocol

import "encoding/binary"

// EncodeUploadFragment builds the Upload command payload for one
// fragment: index:4 LE | total:4 LE | data | crc32:4 LE.
func EncodeUploadFragment(index, total int, data []byte, crc uint32) []byte {
	buf := make([]byte, 4+4+len(data)+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(index))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(total))
	copy(buf[8:8+len(data)], data)
	binary.LittleEndian.PutUint32(buf[8+len(data):], crc)
	return buf
}
