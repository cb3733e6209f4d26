package jtag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// InterfaceKind names an adapter family.
type InterfaceKind string

const (
	InterfaceKindCMSISDAP InterfaceKind = "cmsis-dap"
	InterfaceKindSim      InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected probe.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a display name, with VID:PID for hardware probes.
func (i InterfaceInfo) Label() string {
	if i.Kind == InterfaceKindSim {
		return i.Description
	}
	return fmt.Sprintf("%s [%04X:%04X]", i.Description, i.VendorID, i.ProductID)
}

// Open connects to the probe. The simulator entry returns a bare SimAdapter;
// attach a SimTarget to give it a device.
func (i InterfaceInfo) Open() (Adapter, error) {
	switch i.Kind {
	case InterfaceKindSim:
		return &SimAdapter{}, nil
	case InterfaceKindCMSISDAP:
		return NewCMSISDAPAdapter(i.VendorID, i.ProductID)
	default:
		return nil, fmt.Errorf("unsupported interface kind %q", i.Kind)
	}
}

// DiscoverInterfaces enumerates connected CMSIS-DAP probes with known
// VID/PID pairs. The simulator is always listed last.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	// The callback never asks to open a device, so nothing is returned to close.
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() != nil {
			return false
		}
		if info, ok := classifyUSBDevice(uint16(desc.Vendor), uint16(desc.Product)); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(vid, pid uint16) (InterfaceInfo, bool) {
	for _, known := range knownProbes {
		if vid == known.VendorID && pid == known.ProductID {
			return InterfaceInfo{
				Kind:        InterfaceKindCMSISDAP,
				Description: known.Description,
				VendorID:    vid,
				ProductID:   pid,
			}, true
		}
	}
	return InterfaceInfo{}, false
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownProbes = []knownUSBDevice{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi Debug Probe"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link (CMSIS-DAP)"},
	{VendorID: 0xc251, ProductID: 0xf001, Description: "Keil ULINKplus"},
}
