package cartridge

import "fmt"

// Mapper translates CPU and PPU addresses into cartridge storage. Each
// variant is a tagged value satisfying this interface; the Cartridge
// holds exactly one, created at load time and never swapped.
type Mapper interface {
	CPUReadPRG(addr uint16) uint8
	CPUWritePRG(addr uint16, value uint8)
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)

	// StepScanline is called by the owning System each time the PPU
	// begins a visible scanline (0-239); the call is made whether or
	// not rendering is enabled. Only mapper 4 does anything with it.
	StepScanline()

	// IRQ reports the mapper's IRQ line level. Only mapper 4 ever
	// returns true.
	IRQ() bool

	// Snapshot/Restore carry mapper-internal register state across a
	// save state round trip.
	Snapshot() MapperState
	Restore(MapperState)
}

// MapperState is a small generic bag of register slots. Each mapper
// variant maps its own fields into a fixed subset; unused slots are
// zero. Keeping this shape (rather than one struct per variant) lets
// Cartridge's save state stay a single flat value regardless of which
// mapper is active.
type MapperState struct {
	U8  [12]uint8
	U16 [4]uint16
	B   [4]bool
}

// UnsupportedMapperError reports an iNES mapper id outside {0,1,2,3,4,7}.
type UnsupportedMapperError struct {
	ID uint8
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("cartridge: unsupported mapper id %d", e.ID)
}

// newMapper constructs the Mapper variant for the cartridge's mapper id.
func newMapper(c *Cartridge) (Mapper, error) {
	switch c.MapperID {
	case 0:
		return newNROM(c), nil
	case 1:
		return newMMC1(c), nil
	case 2:
		return newUxROM(c), nil
	case 3:
		return newCNROM(c), nil
	case 4:
		return newMMC3(c), nil
	case 7:
		return newAxROM(c), nil
	default:
		return nil, &UnsupportedMapperError{ID: c.MapperID}
	}
}

// maskBank clamps a bank index to the number of available banks: a
// power-of-two mask when count is a power of two, modulo otherwise.
func maskBank(bank int, count int) int {
	if count <= 0 {
		return 0
	}
	if count&(count-1) == 0 {
		return bank & (count - 1)
	}
	return ((bank % count) + count) % count
}
