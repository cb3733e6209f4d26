package jtag

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
)

// dapLink carries CMSIS-DAP command packets. USBTransport is the hardware
// implementation.
type dapLink interface {
	WriteRead(cmd []byte) ([]byte, error)
	GetPacketSize() int
	Close() error
}

// trstPulseUS is how long nTRST is held low during a TAP reset.
const trstPulseUS = 100

// CMSISDAPAdapter implements the Adapter interface for CMSIS-DAP probes.
type CMSISDAPAdapter struct {
	link     dapLink
	protocol *CMSISDAPProtocol

	info      AdapterInfo
	speedHz   int
	connected bool

	mu sync.Mutex
}

// NewCMSISDAPAdapter opens the first probe matching vid:pid, connects it in
// JTAG mode and sets a 1 MHz clock.
func NewCMSISDAPAdapter(vid, pid uint16) (*CMSISDAPAdapter, error) {
	transport, err := NewUSBTransport(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	adapter, err := newCMSISDAPAdapter(transport)
	if err != nil {
		transport.Close()
		return nil, err
	}
	return adapter, nil
}

func newCMSISDAPAdapter(link dapLink) (*CMSISDAPAdapter, error) {
	a := &CMSISDAPAdapter{
		link:     link,
		protocol: NewCMSISDAPProtocol(link.GetPacketSize()),
		speedHz:  1_000_000,
	}
	if err := a.queryInfo(); err != nil {
		return nil, fmt.Errorf("failed to query device info: %w", err)
	}
	if err := a.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to JTAG: %w", err)
	}
	if err := a.SetSpeed(a.speedHz); err != nil {
		return nil, fmt.Errorf("failed to set default speed: %w", err)
	}
	return a, nil
}

func (a *CMSISDAPAdapter) queryInfo() error {
	values := make(map[byte]string, 4)
	for _, id := range []byte{InfoVendorID, InfoProductID, InfoSerialNum, InfoFirmwareVer} {
		resp, err := a.link.WriteRead(a.protocol.EncodeInfo(id))
		if err != nil {
			return err
		}
		// Probes may leave optional strings empty or reject them.
		value, _ := a.protocol.DecodeInfo(resp)
		values[id] = value
	}

	a.info = AdapterInfo{
		Name:         "CMSIS-DAP Probe",
		Vendor:       values[InfoVendorID],
		Model:        values[InfoProductID],
		SerialNumber: values[InfoSerialNum],
		Firmware:     values[InfoFirmwareVer],
		MinFrequency: 1000,
		MaxFrequency: 10_000_000,
		SupportsSRST: true,
		SupportsTRST: true,
	}
	return nil
}

func (a *CMSISDAPAdapter) connect() error {
	resp, err := a.link.WriteRead(a.protocol.EncodeConnect(PortJTAG))
	if err != nil {
		return err
	}
	port, err := a.protocol.DecodeConnect(resp)
	if err != nil {
		return err
	}
	if port != PortJTAG {
		return fmt.Errorf("failed to connect to JTAG (got port %d)", port)
	}
	a.connected = true
	return nil
}

// Info returns adapter capabilities.
func (a *CMSISDAPAdapter) Info() (AdapterInfo, error) {
	return a.info, nil
}

// ShiftIR shifts bits while the TAP walks the IR column.
func (a *CMSISDAPAdapter) ShiftIR(tms, tdi []byte, n int) ([]byte, error) {
	return a.shift(tms, tdi, n)
}

// ShiftDR shifts bits while the TAP walks the DR column.
func (a *CMSISDAPAdapter) ShiftDR(tms, tdi []byte, n int) ([]byte, error) {
	return a.shift(tms, tdi, n)
}

func (a *CMSISDAPAdapter) shift(tms, tdi []byte, n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := ValidateShiftBuffers(tms, tdi, n); err != nil {
		return nil, err
	}

	sequences := buildSequences(bits.FromBytes(tms, n), bits.FromBytes(tdi, n))
	tdo := make(bits.Sequence, 0, n)
	for _, batch := range a.protocol.BatchJTAGSequences(sequences) {
		resp, err := a.link.WriteRead(a.protocol.EncodeJTAGSequence(batch))
		if err != nil {
			return nil, fmt.Errorf("shift failed: %w", err)
		}
		captured, err := a.protocol.DecodeJTAGSequence(resp, batch)
		if err != nil {
			return nil, err
		}
		for i, data := range captured {
			tdo = append(tdo, bits.FromBytes(data, batch[i].TCKCount())...)
		}
	}
	return tdo.Bytes(), nil
}

// buildSequences splits a shift into CMSIS-DAP descriptors. A descriptor
// holds one TMS level for up to 64 clocks, so a new one starts whenever TMS
// changes or the run gets too long. Every descriptor captures TDO.
func buildSequences(tms, tdi bits.Sequence) []JTAGSequence {
	var sequences []JTAGSequence
	for start := 0; start < len(tdi); {
		level := tms[start]
		end := start + 1
		for end < len(tdi) && end-start < maxSequenceBits && tms[end] == level {
			end++
		}
		sequences = append(sequences, NewJTAGSequence(end-start, level, true, tdi[start:end].Bytes()))
		start = end
	}
	return sequences
}

// ResetTAP pulses nTRST when trst is set, otherwise clocks five TMS=1 cycles.
func (a *CMSISDAPAdapter) ResetTAP(trst bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if trst {
		if err := a.pulsePin(PinNTRST); err != nil {
			return fmt.Errorf("TRST reset failed: %w", err)
		}
		return nil
	}

	seq := []JTAGSequence{NewJTAGSequence(5, true, false, []byte{0x00})}
	resp, err := a.link.WriteRead(a.protocol.EncodeJTAGSequence(seq))
	if err != nil {
		return fmt.Errorf("TAP reset failed: %w", err)
	}
	_, err = a.protocol.DecodeJTAGSequence(resp, seq)
	return err
}

// ResetSystem asks the probe to run its target reset sequence.
func (a *CMSISDAPAdapter) ResetSystem() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp, err := a.link.WriteRead(a.protocol.EncodeResetTarget())
	if err != nil {
		return fmt.Errorf("hard reset failed: %w", err)
	}
	return a.protocol.DecodeResetTarget(resp)
}

// pulsePin drives an active-low pin low, then releases it.
func (a *CMSISDAPAdapter) pulsePin(pin byte) error {
	for _, level := range []byte{0, pin} {
		resp, err := a.link.WriteRead(a.protocol.EncodeSWJPins(level, pin, trstPulseUS))
		if err != nil {
			return err
		}
		if _, err := a.protocol.DecodeSWJPins(resp); err != nil {
			return err
		}
	}
	return nil
}

// SetSpeed sets the TCK frequency.
func (a *CMSISDAPAdapter) SetSpeed(hz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hz < a.info.MinFrequency || hz > a.info.MaxFrequency {
		return fmt.Errorf("frequency %d Hz out of range [%d, %d]",
			hz, a.info.MinFrequency, a.info.MaxFrequency)
	}
	resp, err := a.link.WriteRead(a.protocol.EncodeSetClock(uint32(hz)))
	if err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	if err := a.protocol.DecodeSetClock(resp); err != nil {
		return err
	}
	a.speedHz = hz
	return nil
}

// Close disconnects and releases resources.
func (a *CMSISDAPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		// Best effort: the link is released either way.
		_, _ = a.link.WriteRead(a.protocol.EncodeDisconnect())
		a.connected = false
	}
	return a.link.Close()
}
