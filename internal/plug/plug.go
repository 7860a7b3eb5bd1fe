// Package plug defines how the monitor talks to the smart plug: a status
// provider for telemetry and a switcher for on/off commands.
package plug

import (
	"context"
	"fmt"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// Provider returns the plug's instantaneous readings. Failures are *TransportError.
type Provider interface {
	FetchStatus(ctx context.Context) (model.Sample, error)
}

// Switcher sets the plug's relay. Failures are *CommandError.
type Switcher interface {
	SetSwitch(ctx context.Context, on bool) error
}

// Device is a plug that can be both read and switched.
type Device interface {
	Provider
	Switcher
}

// TransportError reports a failed status fetch (network, auth, timeout or an
// error response from the device API).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("plug transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CommandError reports a switch command the device did not accept.
type CommandError struct {
	On  bool
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("plug command switch=%s: %v", OnOff(e.On), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func OnOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
