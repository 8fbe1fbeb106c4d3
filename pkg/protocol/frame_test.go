package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEmptyEnterBoot(t *testing.T) {
	f := Frame{Command: EnterBoot}
	data, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0xFE}, data)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	_, err := Decode([]byte{0xAA, 0x55, 0x01, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     CommandKind
		payload []byte
	}{
		{"empty enter boot", EnterBoot, nil},
		{"upload with payload", Upload, []byte{1, 2, 3, 4, 5}},
		{"ack", Ack, nil},
		{"nack", Nack, nil},
		{"error response text", ErrorResponse, []byte("bad crc")},
		{"max-ish payload", Verify, make([]byte, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Frame{Command: tt.cmd, Payload: tt.payload}
			data, err := f.Encode()
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, got.Command)
			assert.Equal(t, len(tt.payload), len(got.Payload))
			for i := range tt.payload {
				assert.Equal(t, tt.payload[i], got.Payload[i])
			}
		})
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	f := Frame{Command: Upload, Payload: make([]byte, MaxPayloadSize+1)}
	_, err := f.Encode()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeRejectsUnknownCommand(t *testing.T) {
	// Built by hand since Frame.Encode doesn't validate the command
	// kind (only the decoder enforces the closed set).
	buf := []byte{0xAA, 0x55, 0x42, 0x00, 0x00, 0x00}
	buf[5] = checksum(buf[2:5])
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{0xAA, 0x55, 0x01})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	buf := []byte{0xAB, 0x55, 0x01, 0x00, 0x00, 0x00}
	buf[5] = checksum(buf[2:5])
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	// Declares a 5-byte payload but the buffer only carries the 6-byte
	// shell.
	buf := []byte{0xAA, 0x55, 0x01, 0x05, 0x00, 0x00}
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

// TestSingleByteMutation checks that any single-byte mutation of a
// well-formed frame either decodes to something equivalent (a
// don't-care position) or fails with ErrMalformedFrame. Every byte,
// payload included, is flipped in turn; this format has no don't-care
// position, so every mutation is expected to be rejected.
func TestSingleByteMutationRejected(t *testing.T) {
	f := Frame{Command: Upload, Payload: []byte("hello world")}
	original, err := f.Encode()
	require.NoError(t, err)

	for i := range original {
		t.Run("", func(t *testing.T) {
			mutated := make([]byte, len(original))
			copy(mutated, original)
			mutated[i] ^= 0xFF

			_, err := Decode(mutated)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}
