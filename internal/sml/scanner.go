package sml

import "errors"

var (
	// ErrBadCRC is returned when a frame's checksum does not match; the
	// frame is dropped and scanning resynchronizes on the next begin marker.
	ErrBadCRC = errors.New("sml: frame checksum mismatch")
	// ErrBadPadding is returned when the end marker announces more padding
	// than the frame body holds; the frame is dropped like a checksum failure.
	ErrBadPadding = errors.New("sml: frame padding exceeds frame length")
	// ErrFrameTooLarge is returned when no end marker arrives within
	// maxFrameSize bytes, which indicates a desynchronized stream.
	ErrFrameTooLarge = errors.New("sml: frame exceeds maximum size")
)

const (
	// escLength is the length of the transport escape sequence (4 x 0x1b).
	escLength = 4
	// markerLength is the combined length of escape sequence plus marker.
	markerLength = 8
	// maxFrameSize bounds buffer growth on noisy serial lines.
	maxFrameSize = 64 * 1024

	escByte     = 0x1b
	beginByte   = 0x01
	endByte     = 0x1a
	blockByte   = 0x02
	timeoutByte = 0x03
	sizeByte    = 0x04
)

// Scanner assembles SML transport frames from a byte stream. Feed it one
// byte at a time; when a complete frame with a valid checksum has been
// seen, Feed returns the frame payload with the begin/end markers and
// padding stripped.
type Scanner struct {
	buf      []byte
	escCount int
	inEscape bool
	started  bool
}

// NewScanner returns a Scanner ready to consume bytes.
func NewScanner() *Scanner {
	return &Scanner{
		buf: make([]byte, 0, 1024),
	}
}

// Reset discards all buffered input and returns the scanner to its initial state.
func (s *Scanner) Reset() {
	s.buf = s.buf[:0]
	s.escCount = 0
	s.inEscape = false
	s.started = false
}

// Feed consumes a single byte. It returns a non-nil payload exactly when the
// byte completes a frame whose checksum verifies. A frame failing its check
// yields ErrBadCRC; the scanner keeps consuming afterwards.
func (s *Scanner) Feed(b byte) ([]byte, error) {
	if len(s.buf) >= maxFrameSize {
		s.Reset()
		return nil, ErrFrameTooLarge
	}

	s.buf = append(s.buf, b)

	if !s.inEscape {
		if b == escByte {
			s.escCount++
			if s.escCount == escLength {
				s.inEscape = true
			}
		} else {
			s.escCount = 0
		}

		return nil, nil
	}

	s.escCount--
	if s.escCount > 0 {
		return nil, nil
	}

	s.inEscape = false
	esc := s.buf[len(s.buf)-escLength:]

	switch {
	case esc[0] == escByte:
		// The escape sequence itself is escaped; keep the raw bytes.

	case esc[0] == beginByte && esc[1] == beginByte && esc[2] == beginByte && esc[3] == beginByte:
		// Begin of a version 1 message; drop everything in front of it.
		// All four marker bytes must match, a lone 0x01 after an escape
		// sequence is line noise.
		s.started = true
		s.buf = append(s.buf[:0], s.buf[len(s.buf)-markerLength:]...)

	case esc[0] == blockByte, esc[0] == timeoutByte, esc[0] == sizeByte:
		// Version 2 block transfer markers, not used by household meters.

	case esc[0] == endByte:
		return s.finishFrame(esc)
	}

	return nil, nil
}

// finishFrame validates the checksum and extracts the payload of a frame
// that just received its end marker.
func (s *Scanner) finishFrame(esc []byte) ([]byte, error) {
	started := s.started
	s.started = false

	if !started {
		// End marker without a begin marker: resynchronize.
		s.buf = s.buf[:0]
		return nil, nil
	}

	padding := int(esc[1])
	// The checksum trailer transmits the low byte first.
	wireCRC := uint16(esc[3])<<8 | uint16(esc[2])

	crc := Checksum(s.buf[:len(s.buf)-2])
	if crc != wireCRC {
		s.buf = s.buf[:0]
		return nil, ErrBadCRC
	}

	// The padding byte is covered by the checksum but not otherwise
	// validated; a corrupted frame can announce more padding than the
	// frame holds.
	if markerLength+padding+markerLength > len(s.buf) {
		s.buf = s.buf[:0]
		return nil, ErrBadPadding
	}

	body := s.buf[markerLength : len(s.buf)-markerLength-padding]
	payload := append([]byte(nil), body...)
	s.buf = s.buf[:0]

	return payload, nil
}
