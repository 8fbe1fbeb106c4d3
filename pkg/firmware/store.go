package firmware

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/librescoot/flashctl/pkg/protocol"
)

// maxFileSize bounds what the host is willing to hold in memory and
// carve into fragments; it is a host-side policy limit, not anything
// the wire format itself limits.
const maxFileSize = 10 * 1024 * 1024

// Store owns exactly one FirmwareImage at a time. Load and Clear are
// the only writers; BuildFragment and Validate read the current image
// under a shared lock so a scheduler run never observes a half-updated
// image.
type Store struct {
	mu     sync.RWMutex
	image  *Image
	logger Logger
}

// NewStore creates an empty Store. A nil logger is replaced with a
// no-op sink.
func NewStore(logger Logger) *Store {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Store{logger: logger}
}

// Load reads the whole file at path into memory, computes its digest,
// whole-image CRC32, and per-fragment CRC32 map, then publishes the
// resulting Image. It fails if path is empty, the file is missing or
// empty, the file exceeds the 10 MiB policy limit, or fragmentSize is
// not positive. A failed Load does not touch any previously loaded
// image.
func (s *Store) Load(path string, fragmentSize int, loadAddress uint32) (*Image, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if fragmentSize <= 0 {
		return nil, ErrInvalidFragmentSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileMissing, err)
	}
	if info.Size() == 0 {
		return nil, ErrFileEmpty
	}
	if info.Size() > maxFileSize {
		return nil, ErrFileTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileMissing, err)
	}

	digest := computeDigest(data)
	s.logger.Printf("firmware: computed digest %s for %s", digest, path)

	crc := protocol.ComputeAll(data)
	s.logger.Printf("firmware: computed whole-image CRC32 0x%08X for %s", crc, path)

	fragCRCs := protocol.FragmentCRCs(data, fragmentSize)
	s.logger.Printf("firmware: computed %d fragment CRC32 entries for %s", len(fragCRCs), path)

	img := &Image{
		Name:         filepath.Base(path),
		Path:         path,
		Data:         data,
		ModifiedAt:   info.ModTime(),
		Digest:       digest,
		CRC32:        crc,
		FragmentSize: fragmentSize,
		FragmentCRCs: fragCRCs,
		LoadAddress:  loadAddress,
		Valid:        true,
	}

	s.mu.Lock()
	s.image = img
	s.mu.Unlock()

	return img, nil
}

// Clear discards the currently loaded image, if any.
func (s *Store) Clear() {
	s.mu.Lock()
	s.image = nil
	s.mu.Unlock()
}

// Image returns the currently loaded image, or nil if none is loaded.
func (s *Store) Image() *Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// Validate recomputes the digest, whole-image CRC32, and every
// fragment's CRC32 from the in-memory buffer and compares each against
// the values captured at Load time. It does not mutate the image; a
// failure is reported, not corrected.
func (s *Store) Validate() error {
	s.mu.RLock()
	img := s.image
	s.mu.RUnlock()

	if img == nil {
		return ErrNoImageLoaded
	}

	if got := computeDigest(img.Data); got != img.Digest {
		s.logger.Printf("firmware: digest check failed: want %s got %s", img.Digest, got)
		return ErrValidationFailed
	}

	if got := protocol.ComputeAll(img.Data); got != img.CRC32 {
		s.logger.Printf("firmware: whole-image CRC32 check failed: want 0x%08X got 0x%08X", img.CRC32, got)
		return ErrValidationFailed
	}

	current := protocol.FragmentCRCs(img.Data, img.FragmentSize)
	for i, want := range img.FragmentCRCs {
		got, ok := current[i]
		if !ok || got != want {
			s.logger.Printf("firmware: fragment %d CRC32 check failed: want 0x%08X got 0x%08X", i, want, got)
			return ErrValidationFailed
		}
	}

	return nil
}

// BuildFragment delegates to the current image's BuildFragment.
func (s *Store) BuildFragment(i int) ([]byte, error) {
	s.mu.RLock()
	img := s.image
	s.mu.RUnlock()

	if img == nil {
		return nil, ErrNoImageLoaded
	}
	return img.BuildFragment(i)
}

func computeDigest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
