package sml

import "bytes"

// OBIS object names published by SML meters, in their six-byte binary form.
//
//nolint:gochecknoglobals // Protocol constants.
var (
	// ObjEnergyImport is 1-0:1.8.0*255, total active energy consumed (Wh).
	ObjEnergyImport = []byte{0x01, 0x00, 0x01, 0x08, 0x00, 0xff}
	// ObjEnergyExport is 1-0:2.8.0*255, total active energy fed in (Wh).
	ObjEnergyExport = []byte{0x01, 0x00, 0x02, 0x08, 0x00, 0xff}
	// ObjActivePower is 1-0:16.7.0*255, momentary active power (W),
	// signed: negative while feeding in.
	ObjActivePower = []byte{0x01, 0x00, 0x10, 0x07, 0x00, 0xff}
)

// Reading holds the decoded meter values of interest. The Has* flags tell
// which fields the originating telegram actually carried; meters do not
// send every object in every telegram.
type Reading struct {
	ImportWh  float64
	ExportWh  float64
	PowerW    float64
	HasImport bool
	HasExport bool
	HasPower  bool
}

// Merge folds the fields present in other into r, keeping previous values
// for objects the newer telegram omitted.
func (r *Reading) Merge(other Reading) {
	if other.HasImport {
		r.ImportWh = other.ImportWh
		r.HasImport = true
	}

	if other.HasExport {
		r.ExportWh = other.ExportWh
		r.HasExport = true
	}

	if other.HasPower {
		r.PowerW = other.PowerW
		r.HasPower = true
	}
}

// Empty reports whether no field of the reading has been populated.
func (r Reading) Empty() bool {
	return !r.HasImport && !r.HasExport && !r.HasPower
}

// ExtractReading walks all GetListResponse messages of a file and collects
// the import/export energy and active power objects. The second return is
// false when the file contains no GetListResponse at all.
func ExtractReading(file File) (Reading, bool) {
	var (
		reading Reading
		found   bool
	)

	for _, msg := range file {
		resp := msg.Body.GetListResponse
		if resp == nil {
			continue
		}

		found = true

		for _, entry := range resp.Values {
			value, ok := entry.Numeric()
			if !ok {
				continue
			}

			switch {
			case bytes.Equal(entry.ObjName, ObjEnergyImport):
				reading.ImportWh = value
				reading.HasImport = true
			case bytes.Equal(entry.ObjName, ObjEnergyExport):
				reading.ExportWh = value
				reading.HasExport = true
			case bytes.Equal(entry.ObjName, ObjActivePower):
				reading.PowerW = value
				reading.HasPower = true
			}
		}
	}

	return reading, found
}
