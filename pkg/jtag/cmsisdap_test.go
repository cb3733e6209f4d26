package jtag

import (
	"bytes"
	"errors"
	"testing"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

// fakeProbe answers CMSIS-DAP commands like a probe whose TDI is looped back
// to TDO.
type fakeProbe struct {
	packetSize  int
	connectPort byte
	failJTAG    bool

	commands [][]byte
	closed   bool
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{packetSize: 64, connectPort: PortJTAG}
}

func (f *fakeProbe) GetPacketSize() int { return f.packetSize }

func (f *fakeProbe) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProbe) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) > f.packetSize {
		return nil, errors.New("fake probe: packet too large")
	}
	f.commands = append(f.commands, append([]byte(nil), cmd...))

	switch cmd[0] {
	case CmdInfo:
		value := map[byte]string{
			InfoVendorID:    "OpenTraceLab\x00",
			InfoProductID:   "Fake DAP",
			InfoSerialNum:   "0001",
			InfoFirmwareVer: "2.1.0",
		}[cmd[1]]
		return append([]byte{CmdInfo, byte(len(value))}, value...), nil
	case CmdConnect:
		return []byte{CmdConnect, f.connectPort}, nil
	case CmdSWJPins:
		return []byte{CmdSWJPins, cmd[1]}, nil
	case CmdJTAGSequence:
		if f.failJTAG {
			return nil, errors.New("fake probe: usb stalled")
		}
		return loopbackSequence(cmd), nil
	default:
		return []byte{cmd[0], StatusOK}, nil
	}
}

func (f *fakeProbe) commandsOf(id byte) [][]byte {
	var out [][]byte
	for _, cmd := range f.commands {
		if cmd[0] == id {
			out = append(out, cmd)
		}
	}
	return out
}

func loopbackSequence(cmd []byte) []byte {
	resp := []byte{CmdJTAGSequence, StatusOK}
	offset := 2
	for i := 0; i < int(cmd[1]); i++ {
		seq := JTAGSequence{Info: cmd[offset]}
		n := (seq.TCKCount() + 7) / 8
		if seq.CaptureTDO() {
			resp = append(resp, cmd[offset+1:offset+1+n]...)
		}
		offset += 1 + n
	}
	return resp
}

func newTestCMSISDAP(t *testing.T) (*CMSISDAPAdapter, *fakeProbe) {
	t.Helper()
	probe := newFakeProbe()
	adapter, err := newCMSISDAPAdapter(probe)
	if err != nil {
		t.Fatalf("newCMSISDAPAdapter() failed: %v", err)
	}
	probe.commands = nil
	return adapter, probe
}

func TestBuildSequences(t *testing.T) {
	tests := []struct {
		name      string
		tms       string
		tdi       string
		wantSeqs  int
		checkFunc func(*testing.T, []JTAGSequence)
	}{
		{
			name:     "constant TMS=0, 8 bits",
			tms:      "00000000",
			tdi:      "01010101",
			wantSeqs: 1,
			checkFunc: func(t *testing.T, seqs []JTAGSequence) {
				if seqs[0].TCKCount() != 8 || seqs[0].TMS() || !seqs[0].CaptureTDO() {
					t.Errorf("unexpected sequence info 0x%02X", seqs[0].Info)
				}
				if !bytes.Equal(seqs[0].TDI, []byte{0xAA}) {
					t.Errorf("TDI = %X, want AA", seqs[0].TDI)
				}
			},
		},
		{
			name:     "TMS changes, 16 bits",
			tms:      "1111000000000000",
			tdi:      "0101010110101010",
			wantSeqs: 2,
			checkFunc: func(t *testing.T, seqs []JTAGSequence) {
				if seqs[0].TCKCount() != 4 || !seqs[0].TMS() {
					t.Errorf("Seq 0: got %d TCK TMS=%v, want 4 TCK TMS=true", seqs[0].TCKCount(), seqs[0].TMS())
				}
				if seqs[1].TCKCount() != 12 || seqs[1].TMS() {
					t.Errorf("Seq 1: got %d TCK TMS=%v, want 12 TCK TMS=false", seqs[1].TCKCount(), seqs[1].TMS())
				}
				if !bytes.Equal(seqs[1].TDI, []byte{0x5A, 0x05}) {
					t.Errorf("Seq 1: TDI = %X, want 5A 05", seqs[1].TDI)
				}
			},
		},
		{
			name:     "TMS path 01100",
			tms:      "01100",
			tdi:      "00000",
			wantSeqs: 3,
			checkFunc: func(t *testing.T, seqs []JTAGSequence) {
				counts := []int{1, 2, 2}
				for i, seq := range seqs {
					if seq.TCKCount() != counts[i] {
						t.Errorf("Seq %d: got %d TCK, want %d", i, seq.TCKCount(), counts[i])
					}
				}
			},
		},
		{
			name:     "70 bits split at 64",
			tms:      string(bytes.Repeat([]byte{'0'}, 70)),
			tdi:      string(bytes.Repeat([]byte{'1'}, 70)),
			wantSeqs: 2,
			checkFunc: func(t *testing.T, seqs []JTAGSequence) {
				if seqs[0].TCKCount() != 64 || seqs[0].Info&JTAGSeqTCKMask != 0 {
					t.Errorf("Seq 0: got %d TCK (info 0x%02X), want 64 encoded as 0", seqs[0].TCKCount(), seqs[0].Info)
				}
				if seqs[1].TCKCount() != 6 {
					t.Errorf("Seq 1: Expected 6 TCK, got %d", seqs[1].TCKCount())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seqs := buildSequences(mustParseBits(t, tt.tms), mustParseBits(t, tt.tdi))
			if len(seqs) != tt.wantSeqs {
				t.Fatalf("Expected %d sequences, got %d", tt.wantSeqs, len(seqs))
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, seqs)
			}
		})
	}
}

func TestCMSISDAPAdapterOpen(t *testing.T) {
	probe := newFakeProbe()
	adapter, err := newCMSISDAPAdapter(probe)
	if err != nil {
		t.Fatalf("newCMSISDAPAdapter() failed: %v", err)
	}

	info, _ := adapter.Info()
	if info.Vendor != "OpenTraceLab" || info.Model != "Fake DAP" || info.Firmware != "2.1.0" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !info.SupportsTRST {
		t.Fatalf("expected TRST support")
	}

	wantOrder := []byte{CmdInfo, CmdInfo, CmdInfo, CmdInfo, CmdConnect, CmdSWJClock}
	if len(probe.commands) != len(wantOrder) {
		t.Fatalf("got %d commands, want %d", len(probe.commands), len(wantOrder))
	}
	for i, id := range wantOrder {
		if probe.commands[i][0] != id {
			t.Errorf("command %d = 0x%02X, want 0x%02X", i, probe.commands[i][0], id)
		}
	}
	if !bytes.Equal(probe.commands[5], []byte{CmdSWJClock, 0x40, 0x42, 0x0F, 0x00}) {
		t.Errorf("clock command = %X, want 1 MHz", probe.commands[5])
	}
}

func TestCMSISDAPAdapterConnectFailure(t *testing.T) {
	probe := newFakeProbe()
	probe.connectPort = PortDefault
	if _, err := newCMSISDAPAdapter(probe); err == nil {
		t.Fatalf("expected connect failure")
	}
}

func TestCMSISDAPAdapterShiftLoopback(t *testing.T) {
	adapter, probe := newTestCMSISDAP(t)

	const n = 300
	tms := make(bits.Sequence, n)
	tdi := make(bits.Sequence, n)
	for i := range tms {
		tms[i] = (i/3)%2 == 1
		tdi[i] = i%5 == 0 || i%7 == 0
	}

	tdo, err := adapter.ShiftDR(tms.Bytes(), tdi.Bytes(), n)
	if err != nil {
		t.Fatalf("ShiftDR() failed: %v", err)
	}
	if !bytes.Equal(tdo, tdi.Bytes()) {
		t.Fatalf("tdo = %X, want %X", tdo, tdi.Bytes())
	}
	if packets := len(probe.commandsOf(CmdJTAGSequence)); packets < 2 {
		t.Fatalf("expected the shift to span several packets, got %d", packets)
	}
}

func TestCMSISDAPAdapterShiftError(t *testing.T) {
	adapter, probe := newTestCMSISDAP(t)
	probe.failJTAG = true

	if _, err := adapter.ShiftIR([]byte{0x00}, []byte{0x01}, 4); err == nil {
		t.Fatalf("expected error from failing probe")
	}
	if _, err := adapter.ShiftIR(nil, nil, 0); err == nil {
		t.Fatalf("expected error for zero bits")
	}
}

func TestCMSISDAPAdapterResetTAP(t *testing.T) {
	adapter, probe := newTestCMSISDAP(t)

	if err := adapter.ResetTAP(false); err != nil {
		t.Fatalf("ResetTAP(false) failed: %v", err)
	}
	seqs := probe.commandsOf(CmdJTAGSequence)
	if len(seqs) != 1 || !bytes.Equal(seqs[0], []byte{CmdJTAGSequence, 0x01, 0x45, 0x00}) {
		t.Fatalf("soft reset commands = %X", seqs)
	}

	if err := adapter.ResetTAP(true); err != nil {
		t.Fatalf("ResetTAP(true) failed: %v", err)
	}
	pins := probe.commandsOf(CmdSWJPins)
	if len(pins) != 2 {
		t.Fatalf("got %d SWJ_Pins commands, want 2", len(pins))
	}
	if pins[0][1] != 0 || pins[0][2] != PinNTRST {
		t.Errorf("assert command = %X, want nTRST driven low", pins[0])
	}
	if pins[1][1] != PinNTRST || pins[1][2] != PinNTRST {
		t.Errorf("release command = %X, want nTRST driven high", pins[1])
	}
}

func TestCMSISDAPAdapterSpeedAndClose(t *testing.T) {
	adapter, probe := newTestCMSISDAP(t)

	if err := adapter.SetSpeed(100); err == nil {
		t.Errorf("SetSpeed(100Hz) should have failed")
	}
	if err := adapter.SetSpeed(100_000_000); err == nil {
		t.Errorf("SetSpeed(100MHz) should have failed")
	}
	if len(probe.commands) != 0 {
		t.Errorf("out of range speeds must not reach the probe")
	}
	if err := adapter.SetSpeed(4_000_000); err != nil {
		t.Errorf("SetSpeed(4MHz) failed: %v", err)
	}
	if err := adapter.ResetSystem(); err != nil {
		t.Errorf("ResetSystem() failed: %v", err)
	}

	if err := adapter.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !probe.closed {
		t.Fatalf("link not closed")
	}
	if len(probe.commandsOf(CmdDisconnect)) != 1 {
		t.Fatalf("expected a disconnect before closing")
	}
}

func TestCMSISDAPAdapterDrivesEngine(t *testing.T) {
	adapter, _ := newTestCMSISDAP(t)
	eng := NewEngine(NewAdapterController(adapter))

	if err := eng.Reset(); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	want := mustParseBits(t, "0xCAFE/16")
	if err := eng.ChangeState(tap.StateShiftDR); err != nil {
		t.Fatalf("ChangeState() failed: %v", err)
	}
	if err := eng.Controller().Write(want.Copy()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	// The loopback echoes TDI and Read shifts zeros.
	got, err := eng.ReadDR(8)
	if err != nil {
		t.Fatalf("ReadDR() failed: %v", err)
	}
	if !got.Equal(make(bits.Sequence, 8)) {
		t.Fatalf("ReadDR() = %s, want zeros", got)
	}
}

func TestCMSISDAPAdapter_ValidateInterface(t *testing.T) {
	var _ Adapter = (*CMSISDAPAdapter)(nil)
}

// Integration test - requires real CMSIS-DAP hardware
func TestCMSISDAPAdapter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	adapter, err := NewCMSISDAPAdapter(VendorIDRaspberryPi, ProductIDCMSISDAP)
	if err != nil {
		t.Skipf("No CMSIS-DAP hardware found: %v", err)
	}
	defer adapter.Close()

	t.Run("Info", func(t *testing.T) {
		info, err := adapter.Info()
		if err != nil {
			t.Fatalf("Info() failed: %v", err)
		}
		t.Logf("Vendor: %s Model: %s Serial: %s Firmware: %s",
			info.Vendor, info.Model, info.SerialNumber, info.Firmware)
		if info.Vendor == "" {
			t.Error("Vendor should not be empty")
		}
	})

	t.Run("ScanIDCodes", func(t *testing.T) {
		eng := NewEngine(NewAdapterController(adapter))
		codes, err := ScanIDCodes(eng, 1)
		if err != nil {
			t.Fatalf("ScanIDCodes() failed: %v", err)
		}
		t.Logf("IDCODE: %s", ParseIDCode(codes[0]))
		if codes[0]&0x01 != 1 {
			t.Errorf("IDCODE bit 0 should be 1, got 0x%08X", codes[0])
		}
	})
}

func BenchmarkBuildSequences(b *testing.B) {
	tms := make(bits.Sequence, 800)
	tdi := make(bits.Sequence, 800)
	for i := 80; i < 88; i++ {
		tms[i] = true
	}
	for i := 400; i < 408; i++ {
		tms[i] = true
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildSequences(tms, tdi)
	}
}
