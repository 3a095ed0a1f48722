package ppu

// evaluateSprites scans all 64 OAM entries for sprites intersecting
// targetLine and loads up to 8 matches (ninth sets the overflow flag)
// into the per-scanline sprite buffers, fetching their pattern bytes
// immediately rather than spreading the fetch across dots 257-320 —
// OAM does not change mid-scanline, so the result is identical.
func (p *PPU) evaluateSprites(targetLine int) {
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}

	p.spriteCount = 0
	p.sprite0OnLine = false

	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		if targetLine < y+1 || targetLine > y+height {
			continue
		}
		if p.spriteCount >= 8 {
			p.status |= 0x20
			break
		}

		tile := p.oam[i*4+1]
		attr := p.oam[i*4+2]
		x := p.oam[i*4+3]

		row := targetLine - (y + 1)
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		lo, hi := p.fetchSpritePattern(tile, uint8(row), height, attr)

		slot := p.spriteCount
		p.spritePatLo[slot] = lo
		p.spritePatHi[slot] = hi
		p.spriteX[slot] = x
		p.spriteAttr[slot] = attr
		p.spriteIndexes[slot] = uint8(i)
		if i == 0 {
			p.sprite0OnLine = true
		}
		p.spriteCount++
	}
}

func (p *PPU) fetchSpritePattern(tile uint8, row uint8, height int, attr uint8) (lo, hi uint8) {
	var base uint16
	var index uint8
	var fineRow uint8 = row

	if height == 16 {
		base = uint16(tile&0x01) * 0x1000
		index = tile &^ 0x01
		if fineRow >= 8 {
			index++
			fineRow -= 8
		}
	} else {
		index = tile
		if p.ctrl&0x08 != 0 {
			base = 0x1000
		}
	}

	addr := base + uint16(index)*16 + uint16(fineRow)
	lo = p.busRead(addr)
	hi = p.busRead(addr + 8)

	if attr&0x40 != 0 {
		lo = reverseBits(lo)
		hi = reverseBits(hi)
	}
	return lo, hi
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// spritePixelAt returns the leftmost non-zero sprite covering x (ties go
// to the earlier OAM entry): its 2-bit pixel, its palette select,
// whether the background has priority over it (attribute bit 5), and
// whether it is OAM entry 0.
func (p *PPU) spritePixelAt(x int) (pixel, palette uint8, bgPriority bool, isSpriteZero bool) {
	if !p.showSprites() {
		return 0, 0, false, false
	}
	found := -1
	var foundPx uint8
	for slot := 0; slot < p.spriteCount; slot++ {
		offset := x - int(p.spriteX[slot])
		if offset < 0 || offset > 7 {
			continue
		}
		shift := uint(offset)
		lo := (p.spritePatLo[slot] >> (7 - shift)) & 1
		hi := (p.spritePatHi[slot] >> (7 - shift)) & 1
		px := hi<<1 | lo
		if px == 0 {
			continue
		}
		if found < 0 || p.spriteX[slot] < p.spriteX[found] {
			found, foundPx = slot, px
		}
	}
	if found < 0 {
		return 0, 0, false, false
	}
	attr := p.spriteAttr[found]
	return foundPx, attr & 0x03, attr&0x20 != 0, p.spriteIndexes[found] == 0 && p.sprite0OnLine
}
