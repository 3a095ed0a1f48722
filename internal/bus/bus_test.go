package bus

import (
	"bytes"
	"encoding/gob"
	"testing"

	"nesulator/internal/cartridge"
)

func testCartridge(t *testing.T) *cartridge.Cartridge {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("NES")
	buf.WriteByte(0x1A)
	buf.WriteByte(2) // 2 PRG banks (32 KiB)
	buf.WriteByte(1) // 1 CHR bank
	buf.Write(make([]byte, 10))
	prg := make([]byte, 32*1024)
	// Reset vector at $FFFC -> $8000.
	prg[len(prg)-4] = 0x00
	prg[len(prg)-3] = 0x80
	buf.Write(prg)
	buf.Write(make([]byte, 8*1024))

	cart, err := cartridge.Load(&buf)
	if err != nil {
		t.Fatalf("cartridge.Load: %v", err)
	}
	return cart
}

func TestLoadCartridgeResetsCPUToVector(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	if s.CPU.PC != 0x8000 {
		t.Errorf("PC = %#04x, want 0x8000", s.CPU.PC)
	}
}

func TestStepReturnsPositiveCycleCount(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	if cycles := s.Step(); cycles <= 0 {
		t.Errorf("Step() returned %d cycles, want > 0", cycles)
	}
}

func TestFrameIncrementsFrameCount(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	s.Frame()
	if s.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", s.FrameCount())
	}
}

func TestOAMDMACopies256Bytes(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	for i := 0; i < 256; i++ {
		s.Memory.Write(0x0300+uint16(i), uint8(i))
	}
	s.Memory.Write(0x4014, 0x03) // OAM DMA from page $03

	for i := 0; i < 600; i++ { // enough steps to drain the DMA stall
		s.Step()
	}

	for i := 0; i < 256; i++ {
		s.PPU.WriteRegister(0x2003, uint8(i))
		if got := s.PPU.ReadRegister(0x2004); got != uint8(i) {
			t.Fatalf("oam[%d] = %#02x, want %#02x", i, got, uint8(i))
		}
	}
}

func TestRenderRGBARejectsSmallBuffer(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	if err := s.RenderRGBA(make([]byte, 10)); err == nil {
		t.Error("expected error for undersized buffer, got nil")
	}
}

func TestRenderRGBAFillsOpaqueAlpha(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	dst := make([]byte, 256*240*4)
	if err := s.RenderRGBA(dst); err != nil {
		t.Fatalf("RenderRGBA: %v", err)
	}
	if dst[3] != 0xFF {
		t.Errorf("alpha channel = %#02x, want 0xFF", dst[3])
	}
}

func TestSaveStateRequiresCartridge(t *testing.T) {
	s := New()
	var buf bytes.Buffer
	if err := s.SaveState(&buf); err == nil {
		t.Error("expected error saving state with no cartridge loaded, got nil")
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	for i := 0; i < 1000; i++ {
		s.Step()
	}

	var buf bytes.Buffer
	if err := s.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	wantPC := s.CPU.PC
	wantFrames := s.FrameCount()

	s.Reset()
	if err := s.LoadState(&buf); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if s.CPU.PC != wantPC {
		t.Errorf("restored PC = %#04x, want %#04x", s.CPU.PC, wantPC)
	}
	if s.FrameCount() != wantFrames {
		t.Errorf("restored FrameCount = %d, want %d", s.FrameCount(), wantFrames)
	}
}

func TestLoadStateRejectsWrongVersion(t *testing.T) {
	s := New()
	s.LoadCartridge(testCartridge(t))
	var buf bytes.Buffer
	if err := s.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	var st saveState
	if err := gob.NewDecoder(&buf).Decode(&st); err != nil {
		t.Fatalf("decoding our own save state: %v", err)
	}
	st.Version = saveStateVersion + 1

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(&st); err != nil {
		t.Fatalf("re-encoding with bumped version: %v", err)
	}
	if err := s.LoadState(&out); err == nil {
		t.Error("expected version mismatch error, got nil")
	}
}
