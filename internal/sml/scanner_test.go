package sml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildFrame wraps a wire payload in begin/end markers, padding and checksum.
func buildFrame(payload []byte) []byte {
	pad := (4 - len(payload)%4) % 4

	frame := []byte{0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0x01, 0x01, 0x01}
	frame = append(frame, payload...)
	frame = append(frame, make([]byte, pad)...)
	frame = append(frame, 0x1b, 0x1b, 0x1b, 0x1b, 0x1a, byte(pad))

	crc := Checksum(frame)
	frame = append(frame, byte(crc), byte(crc>>8))

	return frame
}

// feed pushes every byte through the scanner, collecting payloads and errors.
func feed(t *testing.T, s *Scanner, stream []byte) ([][]byte, []error) {
	t.Helper()

	var (
		payloads [][]byte
		errs     []error
	)

	for _, b := range stream {
		payload, err := s.Feed(b)
		if err != nil {
			errs = append(errs, err)
		}

		if payload != nil {
			payloads = append(payloads, payload)
		}
	}

	return payloads, errs
}

// TestScanner_CompleteFrame checks begin/end/padding stripping on an aligned payload.
func TestScanner_CompleteFrame(t *testing.T) {
	t.Parallel()

	payload := []byte{0x76, 0x01, 0x62, 0x00}
	payloads, errs := feed(t, NewScanner(), buildFrame(payload))

	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, payload, payloads[0])
}

// TestScanner_PaddingStripped verifies unaligned payloads come back without pad bytes.
func TestScanner_PaddingStripped(t *testing.T) {
	t.Parallel()

	payload := []byte{0x76, 0x01, 0x62, 0x00, 0x52, 0xff, 0x53}
	payloads, errs := feed(t, NewScanner(), buildFrame(payload))

	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, payload, payloads[0])
}

// TestScanner_LeadingGarbage ensures bytes before the begin marker are discarded.
func TestScanner_LeadingGarbage(t *testing.T) {
	t.Parallel()

	payload := []byte{0x11, 0x22, 0x33, 0x44}
	stream := append([]byte{0xde, 0xad, 0xbe, 0xef}, buildFrame(payload)...)

	payloads, errs := feed(t, NewScanner(), stream)
	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, payload, payloads[0])
}

// TestScanner_EscapedEscape checks that an escaped escape sequence inside the
// payload neither terminates the frame nor corrupts the checksum.
func TestScanner_EscapedEscape(t *testing.T) {
	t.Parallel()

	payload := []byte{
		0x10, 0x20,
		0x1b, 0x1b, 0x1b, 0x1b, 0x1b, 0x1b, 0x1b, 0x1b,
		0x30, 0x40,
	}
	payloads, errs := feed(t, NewScanner(), buildFrame(payload))

	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	// The payload is returned raw, including the escaped escape sequence.
	require.Equal(t, payload, payloads[0])
}

// TestScanner_BadCRC_ThenRecovers drops the corrupt frame and parses the next one.
func TestScanner_BadCRC_ThenRecovers(t *testing.T) {
	t.Parallel()

	good := []byte{0x76, 0x01, 0x62, 0x00}
	corrupt := buildFrame(good)
	corrupt[9] ^= 0xff

	s := NewScanner()

	payloads, errs := feed(t, s, corrupt)
	require.Empty(t, payloads)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrBadCRC)

	payloads, errs = feed(t, s, buildFrame(good))
	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, good, payloads[0])
}

// TestScanner_OversizedPadding_Dropped rejects a frame whose end marker
// announces more padding than the frame holds. The padding byte is covered
// by the checksum, so the frame verifies; it must still be dropped, not
// sliced out of bounds.
func TestScanner_OversizedPadding_Dropped(t *testing.T) {
	t.Parallel()

	frame := []byte{0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0x01, 0x01, 0x01}
	frame = append(frame, 0x76, 0x01, 0x62, 0x00)
	frame = append(frame, 0x1b, 0x1b, 0x1b, 0x1b, 0x1a, 0xc8)

	crc := Checksum(frame)
	frame = append(frame, byte(crc), byte(crc>>8))

	s := NewScanner()

	payloads, errs := feed(t, s, frame)
	require.Empty(t, payloads)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrBadPadding)

	// The scanner keeps consuming afterwards.
	good := []byte{0x76, 0x01, 0x62, 0x00}
	payloads, errs = feed(t, s, buildFrame(good))
	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, good, payloads[0])
}

// TestScanner_PartialBeginMarker_Ignored does not start a frame on an escape
// sequence followed by a single 0x01 and noise.
func TestScanner_PartialBeginMarker_Ignored(t *testing.T) {
	t.Parallel()

	s := NewScanner()

	noise := []byte{
		0x1b, 0x1b, 0x1b, 0x1b, 0x01, 0xaa, 0xbb, 0xcc,
		0x1b, 0x1b, 0x1b, 0x1b, 0x1a, 0x00, 0x00, 0x00,
	}

	// Neither the fake begin marker nor the end marker that follows yields
	// a frame or an error: no frame ever started.
	payloads, errs := feed(t, s, noise)
	require.Empty(t, payloads)
	require.Empty(t, errs)

	payload := []byte{0x11, 0x22, 0x33, 0x44}
	payloads, errs = feed(t, s, buildFrame(payload))
	require.Empty(t, errs)
	require.Len(t, payloads, 1)
	require.Equal(t, payload, payloads[0])
}

// TestScanner_BackToBackFrames parses two frames from one stream.
func TestScanner_BackToBackFrames(t *testing.T) {
	t.Parallel()

	first := []byte{0x01, 0x02, 0x03, 0x04}
	second := []byte{0x05, 0x06, 0x07, 0x08}
	stream := append(buildFrame(first), buildFrame(second)...)

	payloads, errs := feed(t, NewScanner(), stream)
	require.Empty(t, errs)
	require.Len(t, payloads, 2)
	require.Equal(t, first, payloads[0])
	require.Equal(t, second, payloads[1])
}

// TestScanner_Overflow resets on unbounded garbage without begin markers.
func TestScanner_Overflow(t *testing.T) {
	t.Parallel()

	s := NewScanner()
	garbage := make([]byte, maxFrameSize+16)

	_, errs := feed(t, s, garbage)
	require.NotEmpty(t, errs)
	require.ErrorIs(t, errs[0], ErrFrameTooLarge)

	// The scanner is usable again after the reset.
	payload := []byte{0x0a, 0x0b, 0x0c, 0x0d}
	payloads, errs := feed(t, s, buildFrame(payload))
	require.Empty(t, errs)
	require.Len(t, payloads, 1)
}
