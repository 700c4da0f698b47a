package meter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/sml"
)

// readBufferSize is the chunk size for serial reads. SML telegrams arrive
// at 9600 baud, so small chunks keep latency low without costing anything.
const readBufferSize = 256

// OpenSerial opens the read head's serial device with SML line parameters:
// 8 data bits, no parity, one stop bit.
func OpenSerial(port string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}

	return p, nil
}

// Reader decodes the byte stream of a single meter.
type Reader struct {
	source  io.ReadCloser
	scanner *sml.Scanner
}

// NewReader wraps a byte source. The reader takes ownership of the source
// and closes it when Run returns.
func NewReader(source io.ReadCloser) *Reader {
	return &Reader{
		source:  source,
		scanner: sml.NewScanner(),
	}
}

// Run reads from the source until it is exhausted or the context is
// canceled, sending one Reading per telegram that carries meter values.
// Frame or decode errors are logged and skipped; the meter retransmits
// every second or so anyway.
func (r *Reader) Run(ctx context.Context, readings chan<- sml.Reading) error {
	// Serial reads block; closing the port is the only way to interrupt them.
	stop := context.AfterFunc(ctx, func() {
		_ = r.source.Close()
	})
	defer stop()

	defer func() {
		_ = r.source.Close()
	}()

	buf := make([]byte, readBufferSize)

	for {
		n, err := r.source.Read(buf)

		for _, b := range buf[:n] {
			r.consume(ctx, b, readings)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read meter stream: %w", err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// consume feeds one byte to the frame scanner and forwards any completed reading.
func (r *Reader) consume(ctx context.Context, b byte, readings chan<- sml.Reading) {
	payload, err := r.scanner.Feed(b)
	if err != nil {
		logger.WarnKV(ctx, "Dropped SML frame", "error", err)
		return
	}

	if payload == nil {
		return
	}

	file, err := sml.DecodeFile(payload)
	if err != nil {
		logger.WarnKV(ctx, "Undecodable SML frame", "error", err)
		return
	}

	reading, found := sml.ExtractReading(file)
	if !found || reading.Empty() {
		return
	}

	select {
	case readings <- reading:
	case <-ctx.Done():
	}
}
