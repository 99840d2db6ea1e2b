// Package compute orchestrates a single GPU compute dispatch: device
// and memory selection, resource binding, pipeline construction,
// command recording, submission and fenced readback, with strict
// reverse-order teardown.
package compute

import "github.com/spaghettifunk/magma/engine/hal"

const bytesPerElement = 4 // single-precision float

// SelectionPolicy picks the device for a run. Exactly one of the two
// modes must be active.
type SelectionPolicy struct {
	FirstDevice bool
	DeviceID    *uint32
}

// DeviceDescriptor is the immutable view of one enumerated device the
// selector reasons about.
type DeviceDescriptor struct {
	Info       hal.DeviceInfo
	VendorID   uint32
	DeviceID   uint32
	Name       string
	HasCompute bool
}

// ListDevices opens a short-lived instance just to enumerate what the
// driver can see. No device is opened.
func ListDevices(driver hal.Driver, validation bool) ([]DeviceDescriptor, error) {
	instance, err := driver.Open(hal.Options{
		AppName:    "magma-compute",
		Validation: validation,
	})
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	infos, err := instance.EnumerateDevices()
	if err != nil {
		return nil, err
	}
	return describeDevices(infos), nil
}

func describeDevices(infos []hal.DeviceInfo) []DeviceDescriptor {
	descriptors := make([]DeviceDescriptor, 0, len(infos))
	for _, info := range infos {
		descriptors = append(descriptors, DeviceDescriptor{
			Info:       info,
			VendorID:   info.VendorID,
			DeviceID:   info.DeviceID,
			Name:       info.Name,
			HasCompute: info.HasComputeQueue(),
		})
	}
	return descriptors
}
