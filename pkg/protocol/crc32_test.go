package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeEmptyIsZero(t *testing.T) {
	assert.Equal(t, uint32(0), ComputeAll(nil))
	assert.Equal(t, uint32(0), ComputeAll([]byte{}))
}

func TestComputeMatchesKnownVector(t *testing.T) {
	// "123456789" is the standard CRC-32/ISO-HDLC (Ethernet) check
	// vector; the reflected IEEE table this engine wraps must reproduce
	// it.
	assert.Equal(t, uint32(0xCBF43926), ComputeAll([]byte("123456789")))
}

func TestVerify(t *testing.T) {
	data := []byte("firmware payload bytes")
	crc := ComputeAll(data)
	assert.True(t, Verify(data, 0, len(data), crc))
	assert.False(t, Verify(data, 0, len(data), crc^1))
}

func TestFragmentCRCsDenseKeySet(t *testing.T) {
	data := make([]byte, 1030)
	for i := range data {
		data[i] = byte(i)
	}

	crcs := FragmentCRCs(data, 256)
	// ceil(1030/256) = 5
	assert.Len(t, crcs, 5)
	for i := 0; i < 5; i++ {
		_, ok := crcs[i]
		assert.True(t, ok, "missing fragment %d", i)
	}

	assert.Equal(t, Compute(data, 0, 256), crcs[0])
	assert.Equal(t, Compute(data, 1024, 6), crcs[4])
}
