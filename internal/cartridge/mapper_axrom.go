package cartridge

// axrom implements mapper 7: 32 KiB switchable PRG bank over the whole
// $8000-$FFFF window, fixed 8 KiB CHR-RAM, single-screen mirroring
// selected by the same register that selects the PRG bank.
type axrom struct {
	cart    *Cartridge
	prgBank uint8
}

func newAxROM(c *Cartridge) *axrom { return &axrom{cart: c} }

func (m *axrom) CPUReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		return 0
	}
	bank := maskBank(int(m.prgBank), m.cart.PRGBanks/2)
	return m.cart.prgByte(bank*2*prgBankSize + int(addr-0x8000))
}

func (m *axrom) CPUWritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	m.prgBank = value & 0x07
	if value&0x10 != 0 {
		m.cart.SetMirror(MirrorSingleHigh)
	} else {
		m.cart.SetMirror(MirrorSingleLow)
	}
}

func (m *axrom) PPURead(addr uint16) uint8         { return m.cart.chrByte(int(addr & 0x1FFF)) }
func (m *axrom) PPUWrite(addr uint16, value uint8) { m.cart.writeCHRByte(int(addr&0x1FFF), value) }
func (m *axrom) StepScanline()                     {}
func (m *axrom) IRQ() bool                         { return false }

func (m *axrom) Snapshot() MapperState {
	var s MapperState
	s.U8[0] = m.prgBank
	return s
}

func (m *axrom) Restore(s MapperState) { m.prgBank = s.U8[0] }
