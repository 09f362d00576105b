// Package accel probes the machine for a usable WebGPU adapter. The
// detector consults it when an accelerator is requested: an absent or
// broken adapter degrades the run to host-only computation with a
// warning instead of failing.
package accel

import (
	"fmt"
	"strings"

	"github.com/openfluke/webgpu/wgpu"
)

// Report is a portable summary of the default adapter.
type Report struct {
	Backend     string `json:"backend"`
	AdapterType string `json:"adapter_type"`
	Name        string `json:"name"`
	Driver      string `json:"driver"`
}

// Handle owns an acquired device for the lifetime of a training run.
// Release must be called exactly once.
type Handle struct {
	Report *Report

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
}

// Release frees the device, adapter and instance.
func (h *Handle) Release() {
	if h.device != nil {
		h.device.Release()
	}
	if h.adapter != nil {
		h.adapter.Release()
	}
	if h.instance != nil {
		h.instance.Release()
	}
	h.device, h.adapter, h.instance = nil, nil, nil
}

// Probe requests the default adapter and device and synthesizes a report.
// Any failure along the chain is returned as an error; callers are
// expected to fall back to host computation.
func Probe() (*Report, error) {
	h, err := Open()
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return h.Report, nil
}

// Open acquires the default high-performance adapter and a device on it.
// The handle stays valid until Release; a caller holding it decides
// device residency once and keeps it for the whole run.
func Open() (*Handle, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("wgpu.CreateInstance returned nil")
	}

	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		inst.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	if adapter == nil {
		inst.Release()
		return nil, fmt.Errorf("no adapter")
	}

	info := adapter.GetInfo()

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{})
	if err != nil {
		adapter.Release()
		inst.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	return &Handle{
		Report: &Report{
			Backend:     info.BackendType.String(),
			AdapterType: info.AdapterType.String(),
			Name:        strings.TrimSpace(info.Name),
			Driver:      strings.TrimSpace(info.DriverDescription),
		},
		instance: inst,
		adapter:  adapter,
		device:   device,
	}, nil
}
