package memory

import (
	"bytes"
	"testing"

	"nesulator/internal/cartridge"
)

type mockPPU struct {
	regReads  map[uint16]uint8
	lastWrite struct{ addr uint16; value uint8 }
	oamWrites []uint8
}

func (m *mockPPU) ReadRegister(addr uint16) uint8 {
	if m.regReads == nil {
		return 0
	}
	return m.regReads[addr]
}
func (m *mockPPU) WriteRegister(addr uint16, value uint8) {
	m.lastWrite.addr, m.lastWrite.value = addr, value
}
func (m *mockPPU) WriteOAMDMAByte(value uint8) { m.oamWrites = append(m.oamWrites, value) }

type mockAPU struct {
	lastWrite struct{ addr uint16; value uint8 }
	status    uint8
}

func (m *mockAPU) ReadRegister(addr uint16) uint8 { return m.status }
func (m *mockAPU) WriteRegister(addr uint16, value uint8) {
	m.lastWrite.addr, m.lastWrite.value = addr, value
}

type mockInput struct {
	strobeValue uint8
	bits        [2]uint8
}

func (m *mockInput) WriteStrobe(value uint8) { m.strobeValue = value }

// ReadController mirrors the real controller's bit-6-always-1 convention
// so memory decode tests exercise the same bit pattern the CPU actually sees.
func (m *mockInput) ReadController(index int) uint8 { return m.bits[index] | 0x40 }

func testCartridge(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("NES")
	buf.WriteByte(0x1A)
	buf.WriteByte(1) // 1 PRG bank
	buf.WriteByte(1) // 1 CHR bank
	buf.Write(make([]byte, 10))
	buf.Write(make([]byte, 16*1024))
	buf.Write(make([]byte, 8*1024))
	cart, err := cartridge.Load(&buf)
	if err != nil {
		t.Fatalf("cartridge.Load: %v", err)
	}
	return cart
}

func TestRAMMirroring(t *testing.T) {
	m := New(&mockPPU{}, &mockAPU{}, &mockInput{}, testCartridge(t))
	m.Write(0x0000, 0x42)
	for _, mirror := range []uint16{0x0000, 0x0800, 0x1000, 0x1800} {
		if got := m.Read(mirror); got != 0x42 {
			t.Errorf("Read(%#04x) = %#02x, want 0x42", mirror, got)
		}
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	ppu := &mockPPU{}
	m := New(ppu, &mockAPU{}, &mockInput{}, testCartridge(t))
	m.Write(0x2008, 0x11) // mirrors to $2000
	if ppu.lastWrite.addr != 0x2000 {
		t.Errorf("WriteRegister called with addr %#04x, want 0x2000", ppu.lastWrite.addr)
	}
}

func TestOAMDMATriggersOnWriteTo4014(t *testing.T) {
	m := New(&mockPPU{}, &mockAPU{}, &mockInput{}, testCartridge(t))
	if _, ok := m.PendingDMA(); ok {
		t.Fatal("DMA pending before any write to $4014")
	}
	m.Write(0x4014, 0x03)
	page, ok := m.PendingDMA()
	if !ok || page != 0x03 {
		t.Errorf("PendingDMA() = (%#02x, %v), want (0x03, true)", page, ok)
	}
	if _, ok := m.PendingDMA(); ok {
		t.Error("PendingDMA did not clear after first read")
	}
}

func TestControllerStrobeAndRead(t *testing.T) {
	input := &mockInput{bits: [2]uint8{0x01, 0x02}}
	m := New(&mockPPU{}, &mockAPU{}, input, testCartridge(t))
	m.Write(0x4016, 0x01)
	if input.strobeValue != 0x01 {
		t.Errorf("strobe value = %#02x, want 0x01", input.strobeValue)
	}
	if got := m.Read(0x4016); got != 0x41 {
		t.Errorf("Read($4016) = %#02x, want 0x41 (bit 6 always set)", got)
	}
	if got := m.Read(0x4017); got != 0x42 {
		t.Errorf("Read($4017) = %#02x, want 0x42 (bit 6 always set)", got)
	}
}

func TestOpenBusRetainsLastValue(t *testing.T) {
	m := New(&mockPPU{}, &mockAPU{}, &mockInput{}, testCartridge(t))
	m.Write(0x0000, 0x9A)
	m.Read(0x0000) // latches open bus to 0x9A
	got := m.Read(0x4018)
	if got != 0x9A {
		t.Errorf("open-bus read = %#02x, want 0x9A", got)
	}
}

func TestCartridgeReadWritePassthrough(t *testing.T) {
	m := New(&mockPPU{}, &mockAPU{}, &mockInput{}, testCartridge(t))
	m.Write(0x6000, 0x55) // PRG-RAM window, routed to the cartridge
	if got := m.Read(0x6000); got != 0x55 {
		t.Errorf("Read($6000) = %#02x, want 0x55", got)
	}
}

func TestSnapshotRestoreRAM(t *testing.T) {
	m := New(&mockPPU{}, &mockAPU{}, &mockInput{}, testCartridge(t))
	m.Write(0x0010, 0x7E)
	snap := m.Snapshot()

	m.Write(0x0010, 0x00)
	m.Restore(snap)

	if got := m.Read(0x0010); got != 0x7E {
		t.Errorf("restored RAM byte = %#02x, want 0x7E", got)
	}
}
