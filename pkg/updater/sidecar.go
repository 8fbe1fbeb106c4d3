package updater

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/scheduler"
)

// SideReport is an out-of-band record of the outcome of a workflow
// run: the device's self-reported identity (when available) plus a
// summary of what the scheduler did. It never touches the bootloader
// wire protocol, which stays the fixed binary frame layout regardless
// of how this report is encoded.
type SideReport struct {
	GeneratedAt   time.Time            `cbor:"generated_at"`
	DeviceInfo    *protocol.DeviceInfo `cbor:"device_info,omitempty"`
	Success       bool                 `cbor:"success"`
	ExecutedCount int                  `cbor:"executed_count"`
	TotalCount    int                  `cbor:"total_count"`
	ErrorSummary  string               `cbor:"error_summary,omitempty"`
}

// NewSideReport builds a SideReport from a scheduler Result, pulling
// DeviceInfo out of the first EnterBoot frame present, if any.
func NewSideReport(result scheduler.Result, generatedAt time.Time) SideReport {
	report := SideReport{
		GeneratedAt:   generatedAt,
		Success:       result.Success,
		ExecutedCount: result.ExecutedCount,
		TotalCount:    result.TotalCount,
		ErrorSummary:  result.ErrorSummary,
	}
	for _, f := range result.Frames {
		if f.Command != protocol.EnterBoot {
			continue
		}
		if info, err := protocol.DecodeDeviceInfo(f.Payload); err == nil {
			report.DeviceInfo = &info
		}
		break
	}
	return report
}

// Encode serializes the report to CBOR for writing to a sidecar file
// or publishing alongside a fleet-status update.
func (r SideReport) Encode() ([]byte, error) {
	return cbor.Marshal(r)
}

// DecodeSideReport parses a previously encoded SideReport.
func DecodeSideReport(data []byte) (SideReport, error) {
	var r SideReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return SideReport{}, err
	}
	return r, nil
}
