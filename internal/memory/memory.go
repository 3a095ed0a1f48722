// Package memory implements the CPU-visible address decode: 2 KiB
// internal RAM, the PPU/APU/input register windows, OAM-DMA, and
// cartridge pass-through.
package memory

import "nesulator/internal/cartridge"

// PPUPort is the subset of the PPU the CPU bus can reach.
type PPUPort interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	// WriteOAMDMAByte performs exactly what a $2004 write does: store at
	// oam_addr, then increment oam_addr, wrapping mod 256.
	WriteOAMDMAByte(value uint8)
}

// APUPort is the subset of the APU the CPU bus can reach.
type APUPort interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}

// InputPort is the subset of the controller pair the CPU bus can reach.
type InputPort interface {
	WriteStrobe(value uint8)
	ReadController(index int) uint8
}

// Memory is the CPU's view of the system: RAM plus the register
// windows of every other component, routed by address.
type Memory struct {
	ram [0x0800]uint8

	ppu   PPUPort
	apu   APUPort
	input InputPort
	cart  *cartridge.Cartridge

	openBus uint8

	// A write to $4014 records the source page here rather than
	// performing the 256-byte copy inline; the owning System polls
	// PendingDMA each step and drives the copy together with the CPU's
	// stall-cycle accounting (spec's redesign away from buried
	// function-pointer callbacks between components).
	dmaPending bool
	dmaPage    uint8
}

// New constructs a Memory wired to its sibling components. RAM starts
// zeroed: reads of uninitialised RAM return $00 deterministically.
func New(ppu PPUPort, apu APUPort, input InputPort, cart *cartridge.Cartridge) *Memory {
	return &Memory{ppu: ppu, apu: apu, input: input, cart: cart}
}

// SetCartridge rebinds the cartridge, used when a System loads a new ROM.
func (m *Memory) SetCartridge(cart *cartridge.Cartridge) { m.cart = cart }

// Read dispatches a CPU-space read.
func (m *Memory) Read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		v := m.ram[addr&0x07FF]
		m.openBus = v
		return v
	case addr < 0x4000:
		v := m.ppu.ReadRegister(0x2000 + addr&0x0007)
		m.openBus = v
		return v
	case addr == 0x4015:
		v := m.apu.ReadRegister(addr)
		m.openBus = v
		return v
	case addr == 0x4016:
		v := (m.input.ReadController(0) & 0x5F) | (m.openBus & 0xA0)
		m.openBus = v
		return v
	case addr == 0x4017:
		v := (m.input.ReadController(1) & 0x5F) | (m.openBus & 0xA0)
		m.openBus = v
		return v
	case addr < 0x4018:
		return m.openBus
	case addr < 0x4020:
		return m.openBus
	case addr < 0x6000:
		return m.openBus
	case addr < 0x8000:
		v := m.cart.CPURead(addr)
		m.openBus = v
		return v
	default:
		v := m.cart.CPURead(addr)
		m.openBus = v
		return v
	}
}

// Write dispatches a CPU-space write.
func (m *Memory) Write(addr uint16, value uint8) {
	m.openBus = value
	switch {
	case addr < 0x2000:
		m.ram[addr&0x07FF] = value
	case addr < 0x4000:
		m.ppu.WriteRegister(0x2000+addr&0x0007, value)
	case addr == 0x4014:
		m.dmaPending = true
		m.dmaPage = value
	case addr == 0x4016:
		m.input.WriteStrobe(value)
	case addr <= 0x4013, addr == 0x4015, addr == 0x4017:
		m.apu.WriteRegister(addr, value)
	case addr < 0x4020:
		// open bus
	case addr < 0x6000:
		// mapper-defined, typically open bus; no cartridge hook needed
		// by any of the supported mapper variants.
	default:
		m.cart.CPUWrite(addr, value)
	}
}

// PendingDMA reports and clears a pending OAM-DMA request, returning
// the source page and whether one was pending.
func (m *Memory) PendingDMA() (page uint8, ok bool) {
	if !m.dmaPending {
		return 0, false
	}
	m.dmaPending = false
	return m.dmaPage, true
}

// DMASourceByte reads one byte from CPU RAM/cartridge space for the
// OAM-DMA copy, bypassing open-bus tracking — the copy has no visible
// bus side effect on the source read.
func (m *Memory) DMASourceByte(page uint8, offset uint8) uint8 {
	saved := m.openBus
	v := m.Read(uint16(page)<<8 | uint16(offset))
	m.openBus = saved
	return v
}

// WriteOAMByte feeds one DMA source byte into the PPU's OAM via the
// same path a $2004 write would take.
func (m *Memory) WriteOAMByte(value uint8) { m.ppu.WriteOAMDMAByte(value) }

// Snapshot returns the internal 2 KiB RAM for save-stating. Open-bus
// state is transient CPU-bus behavior, not emulator state, and is
// excluded.
func (m *Memory) Snapshot() [0x0800]uint8 { return m.ram }

// Restore replaces internal RAM from a previously captured Snapshot.
func (m *Memory) Restore(ram [0x0800]uint8) { m.ram = ram }
