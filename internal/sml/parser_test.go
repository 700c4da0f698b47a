package sml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// telegramPayload hand-encodes one smlMessage carrying a GetListResponse
// with import energy 1234.5 Wh, export energy 123.4 Wh and power -200 W.
func telegramPayload() []byte {
	importEntry := []byte{
		0x77,
		0x07, 0x01, 0x00, 0x01, 0x08, 0x00, 0xff, // objName 1-0:1.8.0
		0x01,             // status: absent
		0x01,             // valTime: absent
		0x62, 0x1e,       // unit: Wh
		0x52, 0xff,       // scaler: -1
		0x53, 0x30, 0x39, // value: int16 12345
		0x01, // valueSignature: absent
	}
	exportEntry := []byte{
		0x77,
		0x07, 0x01, 0x00, 0x02, 0x08, 0x00, 0xff, // objName 1-0:2.8.0
		0x01,
		0x01,
		0x62, 0x1e,
		0x52, 0xff,       // scaler: -1
		0x63, 0x04, 0xd2, // value: uint16 1234
		0x01,
	}
	powerEntry := []byte{
		0x77,
		0x07, 0x01, 0x00, 0x10, 0x07, 0x00, 0xff, // objName 1-0:16.7.0
		0x01,
		0x01,
		0x62, 0x1b,       // unit: W
		0x52, 0x00,       // scaler: 0
		0x53, 0xff, 0x38, // value: int16 -200
		0x01,
	}

	listResponse := []byte{
		0x77,
		0x01,                         // clientId: absent
		0x05, 0x09, 0x08, 0x07, 0x06, // serverId
		0x01, // listName: absent
		0x01, // actSensorTime: absent
		0x73, // valList: 3 entries
	}
	listResponse = append(listResponse, importEntry...)
	listResponse = append(listResponse, exportEntry...)
	listResponse = append(listResponse, powerEntry...)
	listResponse = append(listResponse, 0x01, 0x01) // listSignature, actGatewayTime: absent

	message := []byte{
		0x76,
		0x03, 0x61, 0x62, // transactionId "ab"
		0x62, 0x00, // groupNo
		0x62, 0x00, // abortOnError
		0x72,             // messageBody
		0x63, 0x07, 0x01, // messageId: GetListResponse
	}
	message = append(message, listResponse...)
	message = append(message, 0x63, 0x00, 0x00) // crc16 (unchecked at this layer)
	message = append(message, 0x00)             // endOfSmlMsg

	return message
}

// TestParse_PrimitiveValues exercises the TLV decoder on scalar encodings.
func TestParse_PrimitiveValues(t *testing.T) {
	t.Parallel()

	values, err := Parse([]byte{
		0x03, 0x61, 0x62, // octet "ab"
		0x01,             // optional, absent
		0x42, 0x01,       // bool true
		0x52, 0xff,       // int8 -1
		0x63, 0x04, 0xd2, // uint16 1234
		0x00, // end of message
	})
	require.NoError(t, err)
	require.Len(t, values, 6)

	require.Equal(t, KindOctet, values[0].Kind)
	require.Equal(t, []byte("ab"), values[0].Octet)

	require.Equal(t, KindNil, values[1].Kind)

	require.Equal(t, KindBool, values[2].Kind)
	require.True(t, values[2].Bool)

	require.Equal(t, KindInt, values[3].Kind)
	require.Equal(t, int64(-1), values[3].Int)

	require.Equal(t, KindUint, values[4].Kind)
	require.Equal(t, uint64(1234), values[4].Uint)

	require.Equal(t, KindEndOfMessage, values[5].Kind)
}

// TestParse_MultiByteTL decodes an octet string whose length needs a
// continuation TL byte.
func TestParse_MultiByteTL(t *testing.T) {
	t.Parallel()

	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}

	// Total length 22 (20 data + 2 TL bytes) encoded as 0x81 0x06.
	payload := append([]byte{0x81, 0x06}, data...)

	values, err := Parse(payload)
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, KindOctet, values[0].Kind)
	require.Equal(t, data, values[0].Octet)
}

// TestParse_Truncated reports an error for a value cut short.
func TestParse_Truncated(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte{0x53, 0x01})
	require.ErrorIs(t, err, ErrTruncated)
}

// TestDecodeFile_Telegram decodes the full hand-encoded telegram.
func TestDecodeFile_Telegram(t *testing.T) {
	t.Parallel()

	file, err := DecodeFile(telegramPayload())
	require.NoError(t, err)
	require.Len(t, file, 1)

	msg := file[0]
	require.Equal(t, []byte("ab"), msg.TransactionID)
	require.Equal(t, TagGetListResponse, msg.Body.Tag)
	require.NotNil(t, msg.Body.GetListResponse)

	resp := msg.Body.GetListResponse
	require.Equal(t, []byte{0x09, 0x08, 0x07, 0x06}, resp.ServerID)
	require.Len(t, resp.Values, 3)

	importValue, ok := resp.Values[0].Numeric()
	require.True(t, ok)
	require.InDelta(t, 1234.5, importValue, 1e-9)

	exportValue, ok := resp.Values[1].Numeric()
	require.True(t, ok)
	require.InDelta(t, 123.4, exportValue, 1e-9)

	powerValue, ok := resp.Values[2].Numeric()
	require.True(t, ok)
	require.InDelta(t, -200, powerValue, 1e-9)
}

// TestDecodeFile_OtherBodiesPassThrough keeps non-list-response bodies raw.
func TestDecodeFile_OtherBodiesPassThrough(t *testing.T) {
	t.Parallel()

	payload := []byte{
		0x76,
		0x03, 0x61, 0x62,
		0x62, 0x00,
		0x62, 0x00,
		0x72,
		0x63, 0x01, 0x01, // messageId: OpenResponse
		0x01, // body left absent
		0x63, 0x00, 0x00,
		0x00,
	}

	file, err := DecodeFile(payload)
	require.NoError(t, err)
	require.Len(t, file, 1)
	require.Equal(t, TagOpenResponse, file[0].Body.Tag)
	require.Nil(t, file[0].Body.GetListResponse)
}

// TestExtractReading maps OBIS names to the reading fields.
func TestExtractReading(t *testing.T) {
	t.Parallel()

	file, err := DecodeFile(telegramPayload())
	require.NoError(t, err)

	reading, found := ExtractReading(file)
	require.True(t, found)
	require.True(t, reading.HasImport)
	require.True(t, reading.HasExport)
	require.True(t, reading.HasPower)
	require.InDelta(t, 1234.5, reading.ImportWh, 1e-9)
	require.InDelta(t, 123.4, reading.ExportWh, 1e-9)
	require.InDelta(t, -200, reading.PowerW, 1e-9)
	require.False(t, reading.Empty())
}

// TestReading_Merge keeps previous values for omitted objects.
func TestReading_Merge(t *testing.T) {
	t.Parallel()

	var current Reading

	current.Merge(Reading{ImportWh: 100, HasImport: true})
	current.Merge(Reading{PowerW: -50, HasPower: true})

	require.True(t, current.HasImport)
	require.InDelta(t, 100, current.ImportWh, 1e-9)
	require.True(t, current.HasPower)
	require.InDelta(t, -50, current.PowerW, 1e-9)
	require.False(t, current.HasExport)
}

// TestListEntry_Numeric_NonNumeric returns false for octet values.
func TestListEntry_Numeric_NonNumeric(t *testing.T) {
	t.Parallel()

	entry := ListEntry{Value: Value{Kind: KindOctet, Octet: []byte("serial")}}
	_, ok := entry.Numeric()
	require.False(t, ok)
}
