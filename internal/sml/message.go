package sml

import (
	"errors"
	"fmt"
)

// Message body tags as transmitted in the messageId field.
const (
	// TagOpenResponse opens a transmission.
	TagOpenResponse uint32 = 0x0101
	// TagCloseResponse closes a transmission.
	TagCloseResponse uint32 = 0x0201
	// TagGetListResponse carries the value list with meter readings.
	TagGetListResponse uint32 = 0x0701
)

// Positions of fields inside the fixed SML structures.
const (
	messageFieldCount  = 6
	bodyFieldCount     = 2
	listRespFieldCount = 7
	entryFieldCount    = 7

	valListIndex = 4
)

var (
	// ErrMalformedMessage is returned when a message does not have the
	// structure mandated by the SML specification.
	ErrMalformedMessage = errors.New("sml: malformed message")
)

// File is the sequence of messages carried by one transport frame.
type File []Message

// Message mirrors smlMessage: transaction id, group number, abort flag and
// the tagged body. The per-message CRC is not re-validated here; the
// transport frame already carries an end-to-end checksum.
type Message struct {
	TransactionID []byte
	GroupNo       uint64
	AbortOnError  uint64
	Body          Body
}

// Body is the tagged message body. GetListResponse is non-nil only for
// TagGetListResponse; other bodies keep their raw value tree in Raw.
type Body struct {
	Tag             uint32
	GetListResponse *GetListResponse
	Raw             Value
}

// GetListResponse carries the meter's value list.
type GetListResponse struct {
	ClientID []byte
	ServerID []byte
	ListName []byte
	Values   []ListEntry
}

// ListEntry is a single valList element: one object (identified by its OBIS
// name) with unit, scaler and value.
type ListEntry struct {
	ObjName []byte
	Unit    uint64
	Scaler  int
	Value   Value
}

// Numeric returns the entry value with the scaler applied, i.e.
// value x 10^scaler. The second return is false for non-numeric values.
func (e ListEntry) Numeric() (float64, bool) {
	var v float64

	switch e.Value.Kind {
	case KindInt:
		v = float64(e.Value.Int)
	case KindUint:
		v = float64(e.Value.Uint)
	default:
		return 0, false
	}

	return scale(v, e.Scaler), true
}

// scale multiplies v by 10^exp using repeated multiplication, matching the
// exact arithmetic meters are calibrated against for small exponents.
func scale(v float64, exp int) float64 {
	if exp < 0 {
		for i := 0; i < -exp; i++ {
			v /= 10
		}

		return v
	}

	for i := 0; i < exp; i++ {
		v *= 10
	}

	return v
}

// DecodeFile parses a transport frame payload into typed messages.
func DecodeFile(payload []byte) (File, error) {
	values, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	file := make(File, 0, len(values))

	for i, v := range values {
		msg, err := decodeMessage(v)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		file = append(file, msg)
	}

	return file, nil
}

func decodeMessage(v Value) (Message, error) {
	if v.Kind != KindList || len(v.List) < messageFieldCount-1 {
		return Message{}, ErrMalformedMessage
	}

	body, err := decodeBody(v.List[3])
	if err != nil {
		return Message{}, err
	}

	return Message{
		TransactionID: v.List[0].Octet,
		GroupNo:       v.List[1].Uint,
		AbortOnError:  v.List[2].Uint,
		Body:          body,
	}, nil
}

func decodeBody(v Value) (Body, error) {
	if v.Kind != KindList || len(v.List) != bodyFieldCount {
		return Body{}, ErrMalformedMessage
	}

	tagValue := v.List[0]
	if tagValue.Kind != KindUint && tagValue.Kind != KindInt {
		return Body{}, ErrMalformedMessage
	}

	tag := uint32(tagValue.Uint)
	if tagValue.Kind == KindInt {
		tag = uint32(tagValue.Int)
	}

	body := Body{Tag: tag, Raw: v.List[1]}

	if tag == TagGetListResponse {
		resp, err := decodeGetListResponse(v.List[1])
		if err != nil {
			return Body{}, err
		}

		body.GetListResponse = resp
	}

	return body, nil
}

func decodeGetListResponse(v Value) (*GetListResponse, error) {
	if v.Kind != KindList || len(v.List) < valListIndex+1 {
		return nil, ErrMalformedMessage
	}

	valList := v.List[valListIndex]
	if valList.Kind != KindList {
		return nil, ErrMalformedMessage
	}

	resp := &GetListResponse{
		ClientID: v.List[0].Octet,
		ServerID: v.List[1].Octet,
		ListName: v.List[2].Octet,
		Values:   make([]ListEntry, 0, len(valList.List)),
	}

	for i, entry := range valList.List {
		decoded, err := decodeListEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}

		resp.Values = append(resp.Values, decoded)
	}

	return resp, nil
}

func decodeListEntry(v Value) (ListEntry, error) {
	if v.Kind != KindList || len(v.List) < entryFieldCount-1 {
		return ListEntry{}, ErrMalformedMessage
	}

	scaler := 0
	if s := v.List[4]; s.Kind == KindInt {
		scaler = int(s.Int)
	}

	return ListEntry{
		ObjName: v.List[0].Octet,
		Unit:    v.List[3].Uint,
		Scaler:  scaler,
		Value:   v.List[5],
	}, nil
}
