// ABOUTME: Exclusive gate around a shared accelerator
// ABOUTME: Serializes embedding and captioning calls across concurrent operations
package accel

import (
	"context"
	"sync/atomic"
)

// Device grants exclusive use of one accelerator. A single Device is shared
// by every component that runs model inference.
type Device struct {
	name string
	sem  chan struct{}
	uses atomic.Int64
}

// NewDevice creates a gate for the named device
func NewDevice(name string) *Device {
	return &Device{name: name, sem: make(chan struct{}, 1)}
}

// Name identifies the device in logs
func (d *Device) Name() string {
	return d.name
}

// Do runs fn while holding the device. It returns ctx.Err() if the context
// ends before the device becomes free.
func (d *Device) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()

	d.uses.Add(1)
	return fn(ctx)
}

// Uses reports how many calls have held the device
func (d *Device) Uses() int64 {
	return d.uses.Load()
}
