package gpu

import (
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// DeviceHandle is an alias for gpucontext.DeviceProvider. Hosts that
// already own a GPU device hand it to the painting backends through
// this type so pictures render on the shared device instead of
// opening their own.
type DeviceHandle = gpucontext.DeviceProvider

var (
	sharedMu       sync.RWMutex
	sharedProvider DeviceHandle
)

// UseDevice installs a shared device provider consulted by every
// subsequently initialized GPU backend. The provider must additionally
// implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue. Passing nil reverts to self-owned devices.
func UseDevice(provider DeviceHandle) {
	sharedMu.Lock()
	sharedProvider = provider
	sharedMu.Unlock()
}

// sharedHAL unwraps the installed provider, if any, into hal handles.
func sharedHAL() (hal.Device, hal.Queue, bool) {
	sharedMu.RLock()
	provider := sharedProvider
	sharedMu.RUnlock()
	if provider == nil {
		return nil, nil, false
	}
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, nil, false
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, nil, false
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, nil, false
	}
	return device, queue, true
}
