package transport

import "github.com/librescoot/flashctl/pkg/protocol"

// frameState is one step of the byte-by-byte frame assembly state
// machine. It mirrors, field for field, the sync/header/length/
// payload/checksum progression a UART receiver walks through to
// recover frame boundaries from an unstructured byte stream.
type frameState int

const (
	stateSync1 frameState = iota
	stateSync2
	stateCommand
	stateLenLo
	stateLenHi
	statePayload
	stateChecksum
)

// frameAssembler recovers complete frames from a byte-at-a-time stream.
// It resynchronizes to stateSync1 on any structural mismatch (bad
// second sync byte, oversize declared length, bad checksum) so that
// noise ahead of the target's first real reply doesn't wedge the
// reader permanently. Decode failures are logged, not silently
// dropped, so wire noise is observable before resynchronization.
type frameAssembler struct {
	state      frameState
	buf        []byte
	payloadLen int
	logger     Logger
}

func newFrameAssembler(logger Logger) *frameAssembler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &frameAssembler{state: stateSync1, buf: make([]byte, 0, 64), logger: logger}
}

// feed processes one received byte. It returns a decoded Frame and true
// exactly when that byte completed a frame whose checksum validated.
func (a *frameAssembler) feed(b byte) (protocol.Frame, bool) {
	switch a.state {
	case stateSync1:
		if b == 0xAA {
			a.buf = append(a.buf[:0], b)
			a.state = stateSync2
		}

	case stateSync2:
		if b == 0x55 {
			a.buf = append(a.buf, b)
			a.state = stateCommand
		} else {
			a.state = stateSync1
		}

	case stateCommand:
		a.buf = append(a.buf, b)
		a.state = stateLenLo

	case stateLenLo:
		a.buf = append(a.buf, b)
		a.state = stateLenHi

	case stateLenHi:
		a.buf = append(a.buf, b)
		a.payloadLen = int(a.buf[3]) | int(b)<<8
		if a.payloadLen > protocol.MaxPayloadSize {
			a.logger.Printf("transport: declared payload length %d exceeds maximum, resyncing", a.payloadLen)
			a.state = stateSync1
			return protocol.Frame{}, false
		}
		if a.payloadLen == 0 {
			a.state = stateChecksum
		} else {
			a.state = statePayload
		}

	case statePayload:
		a.buf = append(a.buf, b)
		if len(a.buf)-5 >= a.payloadLen {
			a.state = stateChecksum
		}

	case stateChecksum:
		a.buf = append(a.buf, b)
		a.state = stateSync1
		frame, err := protocol.Decode(a.buf)
		if err != nil {
			a.logger.Printf("transport: discarding malformed frame: %v", err)
			return protocol.Frame{}, false
		}
		return frame, true
	}

	return protocol.Frame{}, false
}
