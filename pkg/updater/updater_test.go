package updater

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/transport"
)

// fakePort mirrors the in-memory transport.Port double used throughout
// this module's test suites.
type fakePort struct {
	mu      sync.Mutex
	toRead  []byte
	written [][]byte
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if len(p.toRead) > 0 {
			n := copy(b, p.toRead[:1])
			p.toRead = p.toRead[1:]
			p.mu.Unlock()
			return n, nil
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	p.written = append(p.written, cp)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toRead = append(p.toRead, data...)
}

func (p *fakePort) writtenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.written)
}

func waitUntilWritten(p *fakePort, n int) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && p.writtenCount() < n {
		time.Sleep(time.Millisecond)
	}
}

func encodeOrPanic(f protocol.Frame) []byte {
	b, err := f.Encode()
	if err != nil {
		panic(err)
	}
	return b
}

func fastConfig() transport.Config {
	return transport.Config{TimeoutMS: 200, RetryCount: 1}
}

func TestEnterBootTransitionsStatusAndDecodesDeviceInfo(t *testing.T) {
	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	info := protocol.DeviceInfo{
		Model:             "RS-BOOT",
		FlashSize:         256 * 1024,
		AppLoadAddress:    0x08004000,
		FragmentSize:      512,
		BootloaderVersion: "2.0.1",
	}

	go func() {
		waitUntilWritten(port, 1)
		port.feed(encodeOrPanic(protocol.Frame{Command: protocol.EnterBoot, Payload: info.Encode()}))
	}()

	result, err := u.EnterBoot()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, Completed, u.Status())

	require.Len(t, result.Frames, 1)
	decoded, err := protocol.DecodeDeviceInfo(result.Frames[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestUploadAllFailsFastWithoutLoadedImage(t *testing.T) {
	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	_, err := u.UploadAll()
	assert.ErrorIs(t, err, ErrNoImageLoaded)
}

func TestUploadAllUploadsEveryFragmentAndReachesCompleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	img, err := u.LoadFirmware(path, 1024, 0x08004000)
	require.NoError(t, err)
	require.Equal(t, 3, img.FragmentCount())

	go func() {
		for i := 1; i <= 3; i++ {
			waitUntilWritten(port, i)
			port.feed(encodeOrPanic(protocol.Frame{Command: protocol.Ack}))
		}
	}()

	result, err := u.UploadAll()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ExecutedCount)
	assert.Equal(t, Completed, u.Status())
}

func TestUploadAllRetriesFragmentOnDeviceErrorThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	data := make([]byte, 3*256)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	_, err := u.LoadFirmware(path, 256, 0x08000000)
	require.NoError(t, err)

	replies := []protocol.CommandKind{protocol.Ack, protocol.ErrorResponse, protocol.Ack, protocol.Ack}
	go func() {
		for i, kind := range replies {
			waitUntilWritten(port, i+1)
			payload := []byte(nil)
			if kind == protocol.ErrorResponse {
				payload = []byte("bad crc")
			}
			port.feed(encodeOrPanic(protocol.Frame{Command: kind, Payload: payload}))
		}
	}()

	result, err := u.UploadAll()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.ExecutedCount)
	assert.Equal(t, 4, result.TotalCount)
	assert.Equal(t, 4, port.writtenCount())
}

func TestRunAppStopsOnErrorResponse(t *testing.T) {
	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	go func() {
		waitUntilWritten(port, 1)
		port.feed(encodeOrPanic(protocol.Frame{Command: protocol.ErrorResponse, Payload: []byte("app crc mismatch")}))
	}()

	result, err := u.RunApp()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, Error, u.Status())
}

func TestStopAbortsUploadAllBetweenFragments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 8), 0o644))

	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	_, err := u.LoadFirmware(path, 4, 0x08000000)
	require.NoError(t, err)

	go func() {
		waitUntilWritten(port, 1)
		time.Sleep(20 * time.Millisecond)
		u.Stop()
		port.feed(encodeOrPanic(protocol.Frame{Command: protocol.Ack}))
	}()

	result, err := u.UploadAll()
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Less(t, port.writtenCount(), 2)
}

func TestRunWorkflowFailsFastWhenAnotherIsRunning(t *testing.T) {
	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = u.EnterBoot()
	}()

	waitUntilWritten(port, 1)
	_, err := u.RunApp()
	assert.ErrorIs(t, err, ErrRunInProgress)

	port.feed(encodeOrPanic(protocol.Frame{Command: protocol.EnterBoot, Payload: protocol.DeviceInfo{}.Encode()}))
	<-done
}

func TestSideReportRoundTripsThroughCBOR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644))

	port := &fakePort{}
	u := New(port, fastConfig(), nil)
	defer u.Close()

	_, err := u.LoadFirmware(path, 4, 0x08000000)
	require.NoError(t, err)

	go func() {
		waitUntilWritten(port, 1)
		port.feed(encodeOrPanic(protocol.Frame{Command: protocol.Ack}))
	}()

	result, err := u.UploadAll()
	require.NoError(t, err)

	report := NewSideReport(result, time.Unix(0, 0).UTC())
	encoded, err := report.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSideReport(encoded)
	require.NoError(t, err)
	assert.Equal(t, report.Success, decoded.Success)
	assert.Equal(t, report.ExecutedCount, decoded.ExecutedCount)
}
