package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/sml"
)

// TestTopicsFor builds fully qualified topics from the prefix.
func TestTopicsFor(t *testing.T) {
	t.Parallel()

	topics := topicsFor("devices/smartmeter")
	require.Equal(t, "devices/smartmeter/import", topics.importEnergy)
	require.Equal(t, "devices/smartmeter/export", topics.exportEnergy)
	require.Equal(t, "devices/smartmeter/power", topics.power)
	require.Equal(t, "devices/smartmeter/state", topics.state)
	require.Equal(t, "devices/smartmeter/status", topics.availability)
}

// TestFormatValue avoids exponent notation and trailing zeros.
func TestFormatValue(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1234.5", formatValue(1234.5))
	require.Equal(t, "-200", formatValue(-200))
	require.Equal(t, "0", formatValue(0))
	require.Equal(t, "12345678.9", formatValue(12345678.9))
}

// TestStatePayload encodes the retained state document.
func TestStatePayload(t *testing.T) {
	t.Parallel()

	data, err := statePayload(sml.Reading{
		ImportWh:  1234.5,
		ExportWh:  123.4,
		PowerW:    -200,
		HasImport: true,
		HasExport: true,
		HasPower:  true,
	})
	require.NoError(t, err)

	var doc map[string]float64

	require.NoError(t, json.Unmarshal(data, &doc))
	require.InDelta(t, 1234.5, doc["import"], 1e-9)
	require.InDelta(t, 123.4, doc["export"], 1e-9)
	require.InDelta(t, -200, doc["power"], 1e-9)
}

// TestConnect_RequiresBroker rejects an empty broker URL before dialing.
func TestConnect_RequiresBroker(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), config.MQTT{})
	require.Error(t, err)
}
