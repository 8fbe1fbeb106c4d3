package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialPort adapts go.bug.st/serial to the Port interface, the real
// byte stream between host and target.
type SerialPort struct {
	port serial.Port
}

// OpenSerial opens device at the given baud rate with 8-N-1 framing,
// the configuration the bootloader's UART peripheral expects.
func OpenSerial(device string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", device, err)
	}

	return &SerialPort{port: port}, nil
}

func (p *SerialPort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *SerialPort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *SerialPort) Close() error                { return p.port.Close() }
