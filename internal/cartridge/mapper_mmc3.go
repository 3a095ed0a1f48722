package cartridge

// mmc3 implements mapper 4: eight bank registers R0-R7 selected through
// a bank-select/bank-data register pair, independently switchable 8 KiB
// PRG windows and 1/2 KiB CHR windows, and a scanline-clocked IRQ
// counter. Windowing follows the canonical 8 KiB layout rather than
// tracking bank counts in 16 KiB units.
type mmc3 struct {
	cart *Cartridge

	bankSelect uint8
	r          [8]uint8

	prgRAMProtect uint8

	irqLatch   uint8
	irqCounter uint8
	irqReload  bool
	irqEnabled bool
	irqPending bool
}

func newMMC3(c *Cartridge) *mmc3 { return &mmc3{cart: c} }

func (m *mmc3) prgBankCount8k() int { return m.cart.PRGBanks * 2 }

func (m *mmc3) prgOffset(addr uint16) int {
	window := int((addr - 0x8000) / 0x2000)
	last := m.prgBankCount8k() - 1

	prgMode1 := m.bankSelect&0x40 != 0
	var bank int
	switch {
	case !prgMode1 && window == 0, prgMode1 && window == 2:
		bank = maskBank(int(m.r[6]), m.prgBankCount8k())
	case window == 1:
		bank = maskBank(int(m.r[7]), m.prgBankCount8k())
	case !prgMode1 && window == 2, prgMode1 && window == 0:
		bank = last - 1
	default: // window == 3
		bank = last
	}
	return bank*0x2000 + int(addr&0x1FFF)
}

func (m *mmc3) CPUReadPRG(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.cart.readPRGRAM(addr)
	case addr >= 0x8000:
		return m.cart.prgByte(m.prgOffset(addr))
	}
	return 0
}

func (m *mmc3) CPUWritePRG(addr uint16, value uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		m.cart.writePRGRAM(addr, value)
	case addr >= 0x8000 && addr < 0xA000:
		if addr&0x01 == 0 {
			m.bankSelect = value
		} else {
			m.r[m.bankSelect&0x07] = value
		}
	case addr >= 0xA000 && addr < 0xC000:
		if addr&0x01 == 0 {
			if value&0x01 != 0 {
				m.cart.SetMirror(MirrorHorizontal)
			} else {
				m.cart.SetMirror(MirrorVertical)
			}
		} else {
			m.prgRAMProtect = value
		}
	case addr >= 0xC000 && addr < 0xE000:
		if addr&0x01 == 0 {
			m.irqLatch = value
		} else {
			m.irqReload = true
		}
	default: // $E000-$FFFF
		if addr&0x01 == 0 {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *mmc3) chrOffset(addr uint16) int {
	chrMode1 := m.bankSelect&0x80 != 0
	region := addr / 0x0400 // 1 KiB region index 0-7
	if chrMode1 {
		region ^= 0x04
	}

	var bank, kib int
	switch region {
	case 0, 1:
		bank, kib = int(m.r[0]&0xFE), int(region)
	case 2, 3:
		bank, kib = int(m.r[1]&0xFE), int(region)
	case 4:
		bank, kib = int(m.r[2]), 0
	case 5:
		bank, kib = int(m.r[3]), 0
	case 6:
		bank, kib = int(m.r[4]), 0
	default:
		bank, kib = int(m.r[5]), 0
	}

	totalKiB := m.cart.CHRBanks * 8
	bank = maskBank(bank, totalKiB)
	base := bank * 0x0400
	if region <= 3 {
		// 2 KiB registers: the even/odd 1 KiB half within the window.
		base += (kib % 2) * 0x0400
	}
	return base + int(addr&0x03FF)
}

func (m *mmc3) PPURead(addr uint16) uint8 { return m.cart.chrByte(m.chrOffset(addr)) }

func (m *mmc3) PPUWrite(addr uint16, value uint8) {
	m.cart.writeCHRByte(m.chrOffset(addr), value)
}

// StepScanline clocks the IRQ counter at the scanline edge, matching
// the resolution of the mapper's effect on the renderable frame rather
// than chasing exact mid-scanline PPU-dot timing.
func (m *mmc3) StepScanline() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

func (m *mmc3) IRQ() bool { return m.irqPending }

func (m *mmc3) Snapshot() MapperState {
	var s MapperState
	s.U8[0] = m.bankSelect
	copy(s.U8[1:9], m.r[:])
	s.U8[9] = m.prgRAMProtect
	s.U8[10] = m.irqLatch
	s.U8[11] = m.irqCounter
	s.B[0] = m.irqReload
	s.B[1] = m.irqEnabled
	s.B[2] = m.irqPending
	return s
}

func (m *mmc3) Restore(s MapperState) {
	m.bankSelect = s.U8[0]
	copy(m.r[:], s.U8[1:9])
	m.prgRAMProtect = s.U8[9]
	m.irqLatch = s.U8[10]
	m.irqCounter = s.U8[11]
	m.irqReload = s.B[0]
	m.irqEnabled = s.B[1]
	m.irqPending = s.B[2]
}
