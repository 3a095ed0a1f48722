package cartridge

// uxrom implements mapper 2: 16 KiB switchable PRG bank at $8000-$BFFF,
// fixed last 16 KiB bank at $C000-$FFFF, fixed 8 KiB CHR-RAM.
type uxrom struct {
	cart     *Cartridge
	prgBank  uint8
}

func newUxROM(c *Cartridge) *uxrom { return &uxrom{cart: c} }

func (m *uxrom) CPUReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.cart.readPRGRAM(addr)
	case addr >= 0x8000 && addr < 0xC000:
		bank := maskBank(int(m.prgBank), m.cart.PRGBanks)
		return m.cart.prgByte(bank*prgBankSize + int(addr-0x8000))
	case addr >= 0xC000:
		last := m.cart.PRGBanks - 1
		return m.cart.prgByte(last*prgBankSize + int(addr-0xC000))
	}
	return 0
}

func (m *uxrom) CPUWritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		m.cart.writePRGRAM(addr, value)
	case addr >= 0x8000:
		m.prgBank = value & 0x0F
	}
}

func (m *uxrom) PPURead(addr uint16) uint8         { return m.cart.chrByte(int(addr & 0x1FFF)) }
func (m *uxrom) PPUWrite(addr uint16, value uint8) { m.cart.writeCHRByte(int(addr&0x1FFF), value) }
func (m *uxrom) StepScanline()                     {}
func (m *uxrom) IRQ() bool                         { return false }

func (m *uxrom) Snapshot() MapperState {
	var s MapperState
	s.U8[0] = m.prgBank
	return s
}

func (m *uxrom) Restore(s MapperState) { m.prgBank = s.U8[0] }
