package source

import (
	"fmt"

	"go.bug.st/serial"
)

const defaultBaudRate = 115200

type serialSource struct {
	serial.Port
	device string
}

func (s *serialSource) Describe() string { return fmt.Sprintf("serial:%s", s.device) }

// NewSerial opens the GPS receiver on the given device. The receivers speak
// 8N1, only the baud rate varies.
func NewSerial(device string, baudRate int) (Source, error) {
	if baudRate <= 0 {
		baudRate = defaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	return &serialSource{Port: port, device: device}, nil
}
