// Package serial opens the tag reader's serial line.
package serial

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the reader's line speed.
const DefaultBaudRate = 9600

// Config describes the line settings. The reader always uses 8 data bits,
// no parity and 2 stop bits.
type Config struct {
	Device   string
	BaudRate int
}

// Mode returns the port mode for c.
func (c Config) Mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
}

// Open opens the port.
func Open(c Config) (io.ReadWriteCloser, error) {
	if c.Device == "" {
		return nil, fmt.Errorf("serial device not specified")
	}
	port, err := serial.Open(c.Device, c.Mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Device, err)
	}
	return port, nil
}

// Ports lists the serial ports present.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
