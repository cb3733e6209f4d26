package jtag

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs used by this package.
const (
	CmdInfo         = 0x00
	CmdConnect      = 0x02
	CmdDisconnect   = 0x03
	CmdResetTarget  = 0x0A
	CmdSWJPins      = 0x10
	CmdSWJClock     = 0x11
	CmdJTAGSequence = 0x14
)

// DAP_Info IDs.
const (
	InfoVendorID    = 0x01
	InfoProductID   = 0x02
	InfoSerialNum   = 0x03
	InfoFirmwareVer = 0x04
	InfoPacketSize  = 0xFF
)

// DAP_Connect ports.
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

// DAP_SWJ_Pins bit positions.
const (
	PinTCK    = 1 << 0
	PinTMS    = 1 << 1
	PinTDI    = 1 << 2
	PinTDO    = 1 << 3
	PinNTRST  = 1 << 5
	PinNRESET = 1 << 7
)

const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// DAP_JTAG_Sequence info byte layout.
const (
	JTAGSeqTCKMask = 0x3F // TCK count, 0 encodes 64
	JTAGSeqTMS     = 0x40
	JTAGSeqTDO     = 0x80
)

// maxSequenceBits is the longest run one JTAG sequence descriptor can carry.
const maxSequenceBits = 64

// CMSISDAPProtocol encodes requests and decodes responses for a probe with
// the given packet size.
type CMSISDAPProtocol struct {
	PacketSize int
}

// NewCMSISDAPProtocol creates a protocol codec.
func NewCMSISDAPProtocol(packetSize int) *CMSISDAPProtocol {
	return &CMSISDAPProtocol{PacketSize: packetSize}
}

// checkResponse verifies the echoed command ID and minimum length.
func checkResponse(resp []byte, cmd byte, minLen int) error {
	if len(resp) < minLen {
		return fmt.Errorf("cmsis-dap: response to 0x%02X too short (%d bytes)", cmd, len(resp))
	}
	if resp[0] != cmd {
		return fmt.Errorf("cmsis-dap: invalid command ID 0x%02X, want 0x%02X", resp[0], cmd)
	}
	return nil
}

// checkStatus verifies a response of the form [cmd, status, ...].
func checkStatus(resp []byte, cmd byte, what string) error {
	if err := checkResponse(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("cmsis-dap: %s failed (status 0x%02X)", what, resp[1])
	}
	return nil
}

func (p *CMSISDAPProtocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo returns the string payload of a DAP_Info response.
func (p *CMSISDAPProtocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkResponse(resp, CmdInfo, 2); err != nil {
		return "", err
	}
	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("cmsis-dap: incomplete info string")
	}
	payload := resp[2 : 2+length]
	// Strings are NUL terminated on most probes.
	for i, b := range payload {
		if b == 0 {
			payload = payload[:i]
			break
		}
	}
	return string(payload), nil
}

func (p *CMSISDAPProtocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect returns the port the probe connected to.
func (p *CMSISDAPProtocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkResponse(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == PortDefault {
		return 0, fmt.Errorf("cmsis-dap: connection failed")
	}
	return resp[1], nil
}

func (p *CMSISDAPProtocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

func (p *CMSISDAPProtocol) DecodeDisconnect(resp []byte) error {
	return checkStatus(resp, CmdDisconnect, "disconnect")
}

func (p *CMSISDAPProtocol) EncodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

func (p *CMSISDAPProtocol) DecodeSetClock(resp []byte) error {
	return checkStatus(resp, CmdSWJClock, "set clock")
}

func (p *CMSISDAPProtocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

func (p *CMSISDAPProtocol) DecodeResetTarget(resp []byte) error {
	return checkStatus(resp, CmdResetTarget, "reset target")
}

// EncodeSWJPins drives the pins in selected to the levels in output and
// waits up to waitUS microseconds for them to settle.
func (p *CMSISDAPProtocol) EncodeSWJPins(output, selected byte, waitUS uint32) []byte {
	cmd := make([]byte, 7)
	cmd[0] = CmdSWJPins
	cmd[1] = output
	cmd[2] = selected
	binary.LittleEndian.PutUint32(cmd[3:], waitUS)
	return cmd
}

// DecodeSWJPins returns the pin levels read back after the write.
func (p *CMSISDAPProtocol) DecodeSWJPins(resp []byte) (byte, error) {
	if err := checkResponse(resp, CmdSWJPins, 2); err != nil {
		return 0, err
	}
	return resp[1], nil
}

// JTAGSequence is one DAP_JTAG_Sequence descriptor: up to 64 clocks with a
// constant TMS level.
type JTAGSequence struct {
	Info byte
	TDI  []byte
}

// NewJTAGSequence creates a sequence descriptor.
func NewJTAGSequence(tckCount int, tms bool, captureTDO bool, tdi []byte) JTAGSequence {
	info := byte(tckCount & JTAGSeqTCKMask)
	if tms {
		info |= JTAGSeqTMS
	}
	if captureTDO {
		info |= JTAGSeqTDO
	}
	return JTAGSequence{Info: info, TDI: tdi}
}

// TCKCount returns the number of TCK clocks in this sequence.
func (seq *JTAGSequence) TCKCount() int {
	if count := int(seq.Info & JTAGSeqTCKMask); count != 0 {
		return count
	}
	return 64
}

func (seq *JTAGSequence) TMS() bool {
	return seq.Info&JTAGSeqTMS != 0
}

func (seq *JTAGSequence) CaptureTDO() bool {
	return seq.Info&JTAGSeqTDO != 0
}

// requestSize is the encoded size of the descriptor.
func (seq *JTAGSequence) requestSize() int {
	return 1 + (seq.TCKCount()+7)/8
}

// responseSize is the number of TDO bytes the probe returns for it.
func (seq *JTAGSequence) responseSize() int {
	if !seq.CaptureTDO() {
		return 0
	}
	return (seq.TCKCount() + 7) / 8
}

// EncodeJTAGSequence builds [cmd][count]([info][tdi...])*.
func (p *CMSISDAPProtocol) EncodeJTAGSequence(sequences []JTAGSequence) []byte {
	size := 2
	for i := range sequences {
		size += sequences[i].requestSize()
	}
	cmd := make([]byte, 2, size)
	cmd[0] = CmdJTAGSequence
	cmd[1] = byte(len(sequences))
	for i := range sequences {
		seq := &sequences[i]
		data := make([]byte, seq.requestSize()-1)
		copy(data, seq.TDI)
		cmd = append(cmd, seq.Info)
		cmd = append(cmd, data...)
	}
	return cmd
}

// DecodeJTAGSequence returns the TDO bytes of every capturing sequence.
func (p *CMSISDAPProtocol) DecodeJTAGSequence(resp []byte, sequences []JTAGSequence) ([][]byte, error) {
	if err := checkStatus(resp, CmdJTAGSequence, "sequence"); err != nil {
		return nil, err
	}
	result := make([][]byte, 0, len(sequences))
	offset := 2
	for i := range sequences {
		n := sequences[i].responseSize()
		if n == 0 {
			continue
		}
		if offset+n > len(resp) {
			return nil, fmt.Errorf("cmsis-dap: incomplete TDO data")
		}
		result = append(result, append([]byte(nil), resp[offset:offset+n]...))
		offset += n
	}
	return result, nil
}

// BatchJTAGSequences splits sequences into groups whose request and
// response each fit in one packet.
func (p *CMSISDAPProtocol) BatchJTAGSequences(sequences []JTAGSequence) [][]JTAGSequence {
	var (
		batches [][]JTAGSequence
		current []JTAGSequence
		reqSize = 2
		rspSize = 2
	)
	for _, seq := range sequences {
		req, rsp := seq.requestSize(), seq.responseSize()
		full := reqSize+req > p.PacketSize || rspSize+rsp > p.PacketSize || len(current) == 255
		if full && len(current) > 0 {
			batches = append(batches, current)
			current, reqSize, rspSize = nil, 2, 2
		}
		current = append(current, seq)
		reqSize += req
		rspSize += rsp
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
