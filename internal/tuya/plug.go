package tuya

import (
	"context"
	"fmt"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/plug"
)

// Codes names the data points that carry the plug's switch and telemetry.
type Codes struct {
	Switch  string
	Power   string
	Voltage string
	Current string
}

// Plug exposes one cloud-connected smart plug as a plug.Device.
type Plug struct {
	client   *Client
	deviceID string
	codes    Codes
}

func NewPlug(client *Client, deviceID string, codes Codes) *Plug {
	return &Plug{client: client, deviceID: deviceID, codes: codes}
}

func (p *Plug) FetchStatus(ctx context.Context) (model.Sample, error) {
	dps, err := p.client.GetStatus(ctx, p.deviceID)
	if err != nil {
		return model.Sample{}, &plug.TransportError{Op: "status", Err: err}
	}
	sample := SampleFromDataPoints(dps, p.codes)
	sample.Timestamp = time.Now()
	return sample, nil
}

func (p *Plug) SetSwitch(ctx context.Context, on bool) error {
	err := p.client.SendCommands(ctx, p.deviceID, []DataPoint{{Code: p.codes.Switch, Value: on}})
	if err != nil {
		return &plug.CommandError{On: on, Err: err}
	}
	return nil
}

// SampleFromDataPoints decodes the telemetry data points. Power and voltage
// are reported in tenths (W, V); current is reported in mA. Missing or
// malformed values read as zero.
func SampleFromDataPoints(dps []DataPoint, codes Codes) model.Sample {
	byCode := make(map[string]any, len(dps))
	for _, dp := range dps {
		byCode[dp.Code] = dp.Value
	}

	on, _ := byCode[codes.Switch].(bool)
	return model.Sample{
		SwitchOn:  on,
		PowerW:    number(byCode[codes.Power]) / 10.0,
		VoltageV:  number(byCode[codes.Voltage]) / 10.0,
		CurrentMA: number(byCode[codes.Current]),
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		var f float64
		if _, err := fmt.Sscan(n, &f); err == nil {
			return f
		}
	}
	return 0
}
