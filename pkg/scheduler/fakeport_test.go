package scheduler

import (
	"io"
	"sync"
	"time"
)

// fakePort is the same in-memory transport.Port double used by the
// transport package's own tests, duplicated here since it is an
// unexported test type and scheduler_test.go drives a real
// transport.Transport rather than mocking the scheduler/transport
// boundary.
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
