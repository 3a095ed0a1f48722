package ppu

// Step advances the PPU by exactly one dot: background fetch/shift
// pipeline, loopy v/t updates, sprite evaluation, pixel output, and
// the VBlank/frame-complete edges the System polls for.
func (p *PPU) Step() {
	if p.scanline <= visibleScanlines-1 || p.scanline == preRenderScanline {
		p.renderTick()
	}

	p.advance()

	// The VBlank and pre-render edges fire on arriving at dot 1 of their
	// scanline.
	if p.scanline == vblankStartScanline && p.dot == 1 {
		p.status |= 0x80
		p.frameCompleted = true
		if p.ctrl&0x80 != 0 {
			p.nmiEdge = true
		}
	}
	if p.scanline == preRenderScanline && p.dot == 1 {
		p.status &^= 0xE0
	}
}

func (p *PPU) advance() {
	// Odd-frame dot skip: with rendering enabled the pre-render line is
	// one dot shorter, going straight from (261, 339) to (0, 0).
	if p.scanline == preRenderScanline && p.dot == 339 && p.oddFrame && p.renderingEnabled() {
		p.dot = 341
	}

	p.dot++
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline > preRenderScanline {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
		if p.scanline <= visibleScanlines-1 {
			p.scanlineEdge = true
		}
	}
}

func (p *PPU) renderTick() {
	if !p.renderingEnabled() {
		if p.dot >= 1 && p.dot <= 256 && p.scanline != preRenderScanline {
			p.emitIdlePixel()
		}
		return
	}

	fetchPhase := (p.dot >= 1 && p.dot <= 256) || (p.dot >= 321 && p.dot <= 336)

	if fetchPhase {
		p.backgroundFetchStep()
	}

	if p.dot >= 1 && p.dot <= 256 && p.scanline != preRenderScanline {
		p.emitPixel()
	}

	if p.dot == 1 {
		next := (p.scanline + 1) % scanlinesPerFrame
		if next <= visibleScanlines-1 {
			p.evaluateSprites(next)
		} else {
			p.spriteCount = 0
			p.sprite0OnLine = false
		}
	}

	if fetchPhase {
		if p.dot%8 == 0 {
			p.incrementCoarseX()
		}
	}
	if p.dot == 256 {
		p.incrementY()
	}
	if p.dot == 257 && p.renderingEnabled() {
		p.copyHorizontal()
	}
	if p.scanline == preRenderScanline && p.dot >= 280 && p.dot <= 304 && p.renderingEnabled() {
		p.copyVertical()
	}
}

// backgroundFetchStep performs one of the four per-tile fetches and
// reloads the shift registers at the start of each 8-dot group, then
// shifts every dot.
func (p *PPU) backgroundFetchStep() {
	switch p.dot % 8 {
	case 1:
		p.reloadShifters()
		ntAddr := 0x2000 | (p.v & 0x0FFF)
		p.nextTileID = p.busRead(ntAddr)
	case 3:
		attrAddr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		attr := p.busRead(attrAddr)
		shift := ((p.v >> 4) & 0x04) | (p.v & 0x02)
		p.nextAttr = (attr >> shift) & 0x03
	case 5:
		base := uint16(0)
		if p.ctrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.nextTileID)*16 + fineY
		p.nextPatternLo = p.busRead(addr)
	case 7:
		base := uint16(0)
		if p.ctrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.nextTileID)*16 + fineY + 8
		p.nextPatternHi = p.busRead(addr)
	}

	p.bgPatternLo <<= 1
	p.bgPatternHi <<= 1
	p.bgAttrLo <<= 1
	p.bgAttrHi <<= 1
}

func (p *PPU) reloadShifters() {
	p.bgPatternLo = (p.bgPatternLo & 0xFF00) | uint16(p.nextPatternLo)
	p.bgPatternHi = (p.bgPatternHi & 0xFF00) | uint16(p.nextPatternHi)
	var loFill, hiFill uint16
	if p.nextAttr&0x01 != 0 {
		loFill = 0x00FF
	}
	if p.nextAttr&0x02 != 0 {
		hiFill = 0x00FF
	}
	p.bgAttrLo = (p.bgAttrLo & 0xFF00) | loFill
	p.bgAttrHi = (p.bgAttrHi & 0xFF00) | hiFill
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch {
	case y == 29:
		y = 0
		p.v ^= 0x0800
	case y == 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHorizontal() {
	p.v = (p.v &^ 0x041F) | (p.t & 0x041F)
}

func (p *PPU) copyVertical() {
	p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0)
}

// emitPixel composes the background and sprite layers for the current
// dot and writes the chosen palette-RAM address into the frame buffer.
func (p *PPU) emitPixel() {
	x := p.dot - 1
	y := p.scanline

	bgPixel, bgPalette := p.backgroundPixel()
	spPixel, spPalette, spPriority, spZero := p.spritePixelAt(x)

	var paletteAddr uint16
	switch {
	case bgPixel == 0 && spPixel == 0:
		paletteAddr = 0
	case bgPixel == 0:
		paletteAddr = 0x10 + uint16(spPalette)*4 + uint16(spPixel)
	case spPixel == 0:
		paletteAddr = uint16(bgPalette)*4 + uint16(bgPixel)
	case !spPriority:
		paletteAddr = 0x10 + uint16(spPalette)*4 + uint16(spPixel)
	default:
		paletteAddr = uint16(bgPalette)*4 + uint16(bgPixel)
	}

	if bgPixel != 0 && spPixel != 0 && spZero && x < 255 && p.leftClipAllows(x) && p.showBackground() && p.showSprites() {
		p.status |= 0x40
	}

	p.frameBuffer[y*256+x] = uint8(paletteAddr)
}

// emitIdlePixel implements the rendering-disabled output rule: the
// universal background color, or the palette entry v points at when v
// has been parked in palette-RAM space.
func (p *PPU) emitIdlePixel() {
	x, y := p.dot-1, p.scanline
	addr := uint16(0)
	if p.v >= 0x3F00 && p.v <= 0x3FFF {
		addr = uint16(palettefold(p.v))
	}
	p.frameBuffer[y*256+x] = uint8(addr)
}

func (p *PPU) leftClipAllows(x int) bool {
	if x >= 8 {
		return true
	}
	return p.mask&0x02 != 0 && p.mask&0x04 != 0
}

func (p *PPU) backgroundPixel() (pixel, palette uint8) {
	if !p.showBackground() {
		return 0, 0
	}
	shift := uint(15 - p.x)
	lo := uint8((p.bgPatternLo >> shift) & 1)
	hi := uint8((p.bgPatternHi >> shift) & 1)
	pixel = hi<<1 | lo
	palLo := uint8((p.bgAttrLo >> shift) & 1)
	palHi := uint8((p.bgAttrHi >> shift) & 1)
	palette = palHi<<1 | palLo
	return pixel, palette
}
