// Package ppu implements the NES Picture Processing Unit (2C02): the
// scanline/dot timing grid, background shift-register pipeline,
// sprite evaluation and sprite-zero hit, and palette RAM.
package ppu

import "nesulator/internal/cartridge"

const (
	dotsPerScanline     = 341
	scanlinesPerFrame   = 262
	visibleScanlines    = 240
	postRenderScanline  = 240
	preRenderScanline   = 261
	vblankStartScanline = 241
)

// PatternSource is the subset of Cartridge the PPU needs for pattern
// table access and mirroring, reached through the mapper exactly the
// way spec's redesign requires (no copied/cached mirror mode).
type PatternSource interface {
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)
	Mirror() cartridge.MirrorMode
	SetMirror(cartridge.MirrorMode)
}

// PPU is the 2C02: CPU-visible registers, loopy scroll machinery,
// background/sprite pipelines, and the palette-index frame buffer.
type PPU struct {
	ctrl    uint8
	mask    uint8
	status  uint8
	oamAddr uint8

	v, t uint16
	x    uint8
	w    bool

	readBuffer uint8

	vram       [0x0800]uint8
	paletteRAM [32]uint8
	oam        [256]uint8

	cart PatternSource

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	nmiEdge        bool
	frameCompleted bool
	scanlineEdge   bool

	bgPatternLo, bgPatternHi uint16
	bgAttrLo, bgAttrHi       uint16

	nextTileID      uint8
	nextAttr        uint8
	nextPatternLo   uint8
	nextPatternHi   uint8

	secondaryOAM   [32]uint8
	spriteIndexes  [8]uint8
	spriteCount    int
	spritePatLo    [8]uint8
	spritePatHi    [8]uint8
	spriteX        [8]uint8
	spriteAttr     [8]uint8
	sprite0OnLine  bool

	frameBuffer [256 * 240]uint8
}

// New constructs a PPU. It must be paired with a cartridge via
// AttachCartridge before stepping.
func New() *PPU { return &PPU{scanline: preRenderScanline} }

// AttachCartridge wires the PPU to the loaded cartridge's pattern
// table and mirroring.
func (p *PPU) AttachCartridge(cart PatternSource) { p.cart = cart }

// Reset sets the PPU to its power-up state: status $A0 (VBlank and
// sprite-overflow bits set), pre-render scanline, registers, OAM and
// shifters cleared. VRAM and palette RAM keep their contents.
func (p *PPU) Reset() {
	p.ctrl, p.mask = 0, 0
	p.status = 0xA0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.scanline = preRenderScanline
	p.dot = 0
	p.frame = 0
	p.oddFrame = false
	p.nmiEdge = false
	p.frameCompleted = false
	p.scanlineEdge = false
	p.bgPatternLo, p.bgPatternHi = 0, 0
	p.bgAttrLo, p.bgAttrHi = 0, 0
	for i := range p.oam {
		p.oam[i] = 0
	}
}

// TookNMIEdge reports and clears whether VBlank was entered with NMI
// enabled since the last call. System.Step polls this instead of the PPU
// holding a callback into the CPU.
func (p *PPU) TookNMIEdge() bool {
	edge := p.nmiEdge
	p.nmiEdge = false
	return edge
}

// FrameComplete reports and clears the scanline==241,dot==1 edge,
// independent of whether NMI fired — the System's pacing signal.
func (p *PPU) FrameComplete() bool {
	done := p.frameCompleted
	p.frameCompleted = false
	return done
}

// ScanlineComplete reports and clears the one-shot edge fired when a
// new visible scanline (0-239) begins, the System's cue to clock the
// mapper's scanline-granularity IRQ counter (MMC3).
func (p *PPU) ScanlineComplete() bool {
	edge := p.scanlineEdge
	p.scanlineEdge = false
	return edge
}

// FrameBuffer borrows the PPU's internal palette-index buffer.
// Callers must treat it read-only and only read it between Step calls
// that land on a frame boundary.
func (p *PPU) FrameBuffer() *[256 * 240]uint8 { return &p.frameBuffer }

// PaletteRAM borrows the 32-byte palette RAM for render-time color
// resolution.
func (p *PPU) PaletteRAM() *[32]uint8 { return &p.paletteRAM }

func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }
func (p *PPU) showBackground() bool   { return p.mask&0x08 != 0 }
func (p *PPU) showSprites() bool      { return p.mask&0x10 != 0 }

// ReadRegister services a CPU read of $2000-$2007 (already folded to
// its canonical address by the memory bus's mirroring).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 0x2007 {
	case 0x2002:
		v := p.status
		p.status &^= 0x80
		p.w = false
		return v
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister services a CPU write to $2000-$2007.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr & 0x2007 {
	case 0x2000:
		p.ctrl = value
		p.t = (p.t &^ 0x0C00) | (uint16(value&0x03) << 10)
	case 0x2001:
		p.mask = value
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writeScroll(value)
	case 0x2006:
		p.writeAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAMDMAByte is exactly what a $2004 write does, used by OAM-DMA.
func (p *PPU) WriteOAMDMAByte(value uint8) {
	p.oam[p.oamAddr] = value
	p.oamAddr++
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0x001F) | uint16(value>>3)
		p.x = value & 0x07
	} else {
		p.t = (p.t &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value&0xF8) << 2)
	}
	p.w = !p.w
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0x7F00) | (uint16(value&0x3F) << 8)
	} else {
		p.t = (p.t &^ 0x00FF) | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

func (p *PPU) readPPUData() uint8 {
	addr := p.v & 0x3FFF
	var result uint8
	if addr >= 0x3F00 {
		result = p.readPalette(addr)
		p.readBuffer = p.busRead(addr - 0x1000)
	} else {
		result = p.readBuffer
		p.readBuffer = p.busRead(addr)
	}
	p.v += p.vramIncrement()
	return result
}

func (p *PPU) writePPUData(value uint8) {
	addr := p.v & 0x3FFF
	if addr >= 0x3F00 {
		p.writePalette(addr, value)
	} else {
		p.busWrite(addr, value)
	}
	p.v += p.vramIncrement()
}

// busRead/busWrite service the PPU's 14-bit address space: pattern
// tables through the cartridge, nametables through mirrored VRAM.
func (p *PPU) busRead(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return p.cart.PPURead(addr)
	case addr < 0x3F00:
		return p.vram[p.nametableIndex(addr)]
	default:
		return p.readPalette(addr)
	}
}

func (p *PPU) busWrite(addr uint16, value uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.cart.PPUWrite(addr, value)
	case addr < 0x3F00:
		p.vram[p.nametableIndex(addr)] = value
	default:
		p.writePalette(addr, value)
	}
}

func (p *PPU) nametableIndex(addr uint16) uint16 {
	table := (addr - 0x2000) / 0x0400 % 4
	offset := addr & 0x03FF
	switch p.cart.Mirror() {
	case cartridge.MirrorVertical:
		return (table%2)*0x0400 + offset
	case cartridge.MirrorHorizontal:
		return (table/2)*0x0400 + offset
	case cartridge.MirrorSingleLow:
		return offset
	case cartridge.MirrorSingleHigh:
		return 0x0400 + offset
	default: // four-screen: approximate with the 2 KiB physical VRAM
		return (table%2)*0x0400 + offset
	}
}

func palettefold(addr uint16) uint16 {
	a := addr & 0x1F
	if a >= 0x10 && a%4 == 0 {
		a -= 0x10
	}
	return a
}

func (p *PPU) readPalette(addr uint16) uint8  { return p.paletteRAM[palettefold(addr)] }
func (p *PPU) writePalette(addr uint16, v uint8) { p.paletteRAM[palettefold(addr)] = v & 0x3F }

// State is the PPU's save-state snapshot.
type State struct {
	Ctrl, Mask, Status, OAMAddr uint8
	V, T                        uint16
	X                           uint8
	W                           bool
	ReadBuffer                  uint8
	VRAM                        [0x0800]uint8
	PaletteRAM                  [32]uint8
	OAM                         [256]uint8
	Scanline, Dot               int
	Frame                       uint64
	OddFrame                    bool
}

func (p *PPU) Snapshot() State {
	return State{
		Ctrl: p.ctrl, Mask: p.mask, Status: p.status, OAMAddr: p.oamAddr,
		V: p.v, T: p.t, X: p.x, W: p.w, ReadBuffer: p.readBuffer,
		VRAM: p.vram, PaletteRAM: p.paletteRAM, OAM: p.oam,
		Scanline: p.scanline, Dot: p.dot, Frame: p.frame, OddFrame: p.oddFrame,
	}
}

func (p *PPU) Restore(s State) {
	p.ctrl, p.mask, p.status, p.oamAddr = s.Ctrl, s.Mask, s.Status, s.OAMAddr
	p.v, p.t, p.x, p.w, p.readBuffer = s.V, s.T, s.X, s.W, s.ReadBuffer
	p.vram, p.paletteRAM, p.oam = s.VRAM, s.PaletteRAM, s.OAM
	p.scanline, p.dot, p.frame, p.oddFrame = s.Scanline, s.Dot, s.Frame, s.OddFrame
}
