// Package firmware loads a firmware image from disk, computes its
// integrity metadata (whole-image digest and CRC32, per-fragment
// CRC32), and carves it into upload-ready fragments.
package firmware

import (
	"time"

	"github.com/librescoot/flashctl/pkg/protocol"
)

// Image is created by a successful Load and is immutable thereafter.
type Image struct {
	Name         string
	Path         string
	Data         []byte
	ModifiedAt   time.Time
	Digest       string // lowercase hex, no separators
	CRC32        uint32
	FragmentSize int
	FragmentCRCs map[int]uint32
	LoadAddress  uint32
	Valid        bool
}

// FragmentCount returns ceil(len(Data)/FragmentSize).
func (img *Image) FragmentCount() int {
	if img.FragmentSize <= 0 || len(img.Data) == 0 {
		return 0
	}
	return (len(img.Data) + img.FragmentSize - 1) / img.FragmentSize
}

// FragmentBounds returns the [start, end) byte range of fragment i
// within Data.
func (img *Image) FragmentBounds(i int) (start, end int, ok bool) {
	n := img.FragmentCount()
	if i < 0 || i >= n {
		return 0, 0, false
	}
	start = i * img.FragmentSize
	end = start + img.FragmentSize
	if end > len(img.Data) {
		end = len(img.Data)
	}
	return start, end, true
}

// BuildFragment returns the Upload payload for fragment i: the 4-byte
// little-endian index, 4-byte little-endian total count, the
// fragment's data bytes, then the fragment's 4-byte little-endian
// CRC32. The last fragment's data portion is shorter than FragmentSize
// when len(Data) isn't a multiple of FragmentSize.
func (img *Image) BuildFragment(i int) ([]byte, error) {
	start, end, ok := img.FragmentBounds(i)
	if !ok {
		return nil, ErrFragmentOutOfRange
	}
	crc, ok := img.FragmentCRCs[i]
	if !ok {
		return nil, ErrFragmentOutOfRange
	}
	return protocol.EncodeUploadFragment(i, img.FragmentCount(), img.Data[start:end], crc), nil
}
