package jtag

import "fmt"

// IDCode is a decoded IEEE 1149.1 device identification register.
type IDCode struct {
	Raw              uint32
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1] JEP106 bank and id
	Valid            bool   // bit 0 is always 1 in a real IDCODE
}

// ParseIDCode splits a raw IDCODE into its fields.
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8((raw >> 28) & 0xF),
		PartNumber:       uint16((raw >> 12) & 0xFFFF),
		ManufacturerCode: uint16((raw >> 1) & 0x7FF),
		Valid:            raw&0x1 == 0x1,
	}
}

// Manufacturer returns the JEP106 manufacturer name, or a placeholder for
// codes not in the table.
func (id IDCode) Manufacturer() string {
	name, _ := LookupManufacturer(id.ManufacturerCode)
	return name
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X (Mfg: %s, Part: 0x%04X, Ver: %d)",
		id.Raw, id.Manufacturer(), id.PartNumber, id.Version)
}

var manufacturers = map[uint16]string{
	0x001: "AMD",
	0x009: "Intel",
	0x00E: "Freescale (Motorola)",
	0x015: "Philips Semi. (Signetics)",
	0x017: "Texas Instruments",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x021: "Lattice",
	0x029: "Microchip",
	0x034: "Cypress",
	0x041: "Infineon",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x23B: "ARM",
	0x272: "Espressif",
	0x489: "SiFive",
	0x4EF: "lowRISC",
}

// LookupManufacturer resolves a JEP106 code (bank << 7 | id).
func LookupManufacturer(code uint16) (string, bool) {
	if name, ok := manufacturers[code]; ok {
		return name, true
	}
	return fmt.Sprintf("Unknown (0x%03X)", code), false
}

// ScanIDCodes resets the chain, which selects IDCODE (or BYPASS) in every
// device, and reads count 32-bit identification registers. The device
// closest to TDO comes first.
func ScanIDCodes(eng *Engine, count int) ([]uint32, error) {
	if count <= 0 {
		return nil, fmt.Errorf("jtag: device count must be positive, got %d", count)
	}
	if err := eng.Reset(); err != nil {
		return nil, err
	}
	data, err := eng.ReadDR(32 * count)
	if err != nil {
		return nil, err
	}
	if err := eng.GoIdle(); err != nil {
		return nil, err
	}
	if len(data) != 32*count {
		return nil, fmt.Errorf("jtag: read %d bits, want %d", len(data), 32*count)
	}
	out := make([]uint32, count)
	for i := range out {
		v, err := data[i*32 : (i+1)*32].Uint64()
		if err != nil {
			return nil, err
		}
		out[i] = uint32(v)
	}
	return out, nil
}
