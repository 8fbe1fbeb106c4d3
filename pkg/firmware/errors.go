package firmware

import "errors"

var (
	// ErrEmptyPath is returned by Load when the path is empty.
	ErrEmptyPath = errors.New("firmware: path is empty")
	// ErrFileMissing is returned by Load when the file cannot be opened.
	ErrFileMissing = errors.New("firmware: file not found")
	// ErrFileEmpty is returned by Load when the file has zero length.
	ErrFileEmpty = errors.New("firmware: file is empty")
	// ErrFileTooLarge is returned by Load when the file exceeds the
	// 10 MiB policy limit.
	ErrFileTooLarge = errors.New("firmware: file exceeds 10 MiB limit")
	// ErrInvalidFragmentSize is returned by Load when fragmentSize <= 0.
	ErrInvalidFragmentSize = errors.New("firmware: fragment size must be positive")
	// ErrFragmentOutOfRange is returned by BuildFragment for an index
	// outside [0, FragmentCount).
	ErrFragmentOutOfRange = errors.New("firmware: fragment index out of range")
	// ErrNoImageLoaded is returned by Store methods that require a
	// previously loaded image.
	ErrNoImageLoaded = errors.New("firmware: no image loaded")
	// ErrValidationFailed is returned by Validate when any of the
	// digest, whole-image CRC32, or per-fragment CRC32 checks fail.
	ErrValidationFailed = errors.New("firmware: validation failed")
)
