package cartridge

// mmc1 implements mapper 1. A 5-bit shift register serializes writes to
// $8000-$FFFF into one of four internal registers (control, CHR bank 0,
// CHR bank 1, PRG bank) selected by the write address's top bits. A
// write with bit 7 set resets the shift register and forces PRG mode 3
// regardless of where in the sequence it lands.
type mmc1 struct {
	cart *Cartridge

	shift      uint8
	shiftCount uint8

	control uint8 // bit0-1 mirroring, bit2-3 prg mode, bit4 chr mode
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8
}

func newMMC1(c *Cartridge) *mmc1 {
	m := &mmc1{cart: c, control: 0x0C}
	m.applyMirror()
	return m
}

func (m *mmc1) CPUReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.cart.readPRGRAM(addr)
	case addr >= 0x8000:
		bank, offset := m.prgWindow(addr)
		return m.cart.prgByte(bank*prgBankSize + offset)
	}
	return 0
}

// prgWindow resolves a CPU address to a (bank index, offset-within-bank)
// pair according to the control register's PRG mode.
func (m *mmc1) prgWindow(addr uint16) (int, int) {
	offset := int(addr - 0x8000)
	switch (m.control >> 2) & 0x03 {
	case 0, 1: // 32 KiB switch, ignore low bank bit
		bank := maskBank(int(m.prgBank&0x0E), m.cart.PRGBanks)
		return bank + offset/prgBankSize, offset % prgBankSize
	case 2: // fixed first bank at $8000, switch 16 KiB at $C000
		if addr < 0xC000 {
			return 0, offset
		}
		bank := maskBank(int(m.prgBank&0x0F), m.cart.PRGBanks)
		return bank, offset - prgBankSize
	default: // 3: switch 16 KiB at $8000, fixed last bank at $C000
		if addr < 0xC000 {
			bank := maskBank(int(m.prgBank&0x0F), m.cart.PRGBanks)
			return bank, offset
		}
		return m.cart.PRGBanks - 1, offset - prgBankSize
	}
}

func (m *mmc1) CPUWritePRG(addr uint16, value uint8) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.cart.writePRGRAM(addr, value)
		return
	}
	if addr < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shift = 0
		m.shiftCount = 0
		m.control |= 0x0C
		return
	}

	m.shift |= (value & 0x01) << m.shiftCount
	m.shiftCount++
	if m.shiftCount < 5 {
		return
	}

	reg := m.shift
	m.shift = 0
	m.shiftCount = 0

	switch {
	case addr < 0xA000:
		m.control = reg
		m.applyMirror()
	case addr < 0xC000:
		m.chrBank0 = reg
	case addr < 0xE000:
		m.chrBank1 = reg
	default:
		m.prgBank = reg
	}
}

func (m *mmc1) applyMirror() {
	switch m.control & 0x03 {
	case 0:
		m.cart.SetMirror(MirrorSingleLow)
	case 1:
		m.cart.SetMirror(MirrorSingleHigh)
	case 2:
		m.cart.SetMirror(MirrorVertical)
	case 3:
		m.cart.SetMirror(MirrorHorizontal)
	}
}

func (m *mmc1) chrWindow(addr uint16) int {
	if m.control&0x10 == 0 {
		// 8 KiB mode: low bank-select bit forced to 0 (spec's Open
		// Question resolution), so both halves come from one even bank.
		bank := maskBank(int(m.chrBank0&0x1E), m.cart.CHRBanks*2)
		return bank*4096 + int(addr&0x1FFF)
	}
	if addr < 0x1000 {
		bank := maskBank(int(m.chrBank0), m.cart.CHRBanks*2)
		return bank*4096 + int(addr&0x0FFF)
	}
	bank := maskBank(int(m.chrBank1), m.cart.CHRBanks*2)
	return bank*4096 + int(addr&0x0FFF)
}

func (m *mmc1) PPURead(addr uint16) uint8         { return m.cart.chrByte(m.chrWindow(addr)) }
func (m *mmc1) PPUWrite(addr uint16, value uint8) { m.cart.writeCHRByte(m.chrWindow(addr), value) }
func (m *mmc1) StepScanline()                     {}
func (m *mmc1) IRQ() bool                         { return false }

func (m *mmc1) Snapshot() MapperState {
	var s MapperState
	s.U8[0] = m.shift
	s.U8[1] = m.shiftCount
	s.U8[2] = m.control
	s.U8[3] = m.chrBank0
	s.U8[4] = m.chrBank1
	s.U8[5] = m.prgBank
	return s
}

func (m *mmc1) Restore(s MapperState) {
	m.shift = s.U8[0]
	m.shiftCount = s.U8[1]
	m.control = s.U8[2]
	m.chrBank0 = s.U8[3]
	m.chrBank1 = s.U8[4]
	m.prgBank = s.U8[5]
}
