package daemon

import (
	"context"

	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/mqtt"
	"github.com/martinriedel/smartmeter/internal/sml"
)

// publish forwards decoded readings to the broker until the channel closes
// or the context is canceled. Publish failures are logged and the reading
// dropped; the meter retransmits within a second and the client library
// reconnects on its own.
func publish(ctx context.Context, readings <-chan sml.Reading, publisher mqtt.Publisher) error {
	var last sml.Reading

	for {
		select {
		case reading, ok := <-readings:
			if !ok {
				return nil
			}

			// Telegrams may carry only a subset of values; merging keeps the
			// retained state document complete across partial readings.
			last.Merge(reading)

			if err := publisher.PublishReading(ctx, last); err != nil {
				logger.WarnKV(ctx, "Dropped reading", "error", err)
				continue
			}

			logger.DebugKV(ctx, "Published reading",
				"import_wh", last.ImportWh, "export_wh", last.ExportWh, "power_w", last.PowerW)

		case <-ctx.Done():
			return nil
		}
	}
}
