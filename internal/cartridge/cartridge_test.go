package cartridge

import (
	"bytes"
	"testing"
)

// buildINES assembles a minimal iNES image: prgBanks*16KiB of PRG,
// chrBanks*8KiB of CHR (0 means CHR-RAM, no CHR payload written).
func buildINES(mapperID uint8, prgBanks, chrBanks int, mirrorVertical bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES")
	buf.WriteByte(0x1A)
	buf.WriteByte(uint8(prgBanks))
	buf.WriteByte(uint8(chrBanks))

	var flags6 uint8
	if mirrorVertical {
		flags6 |= 0x01
	}
	flags6 |= (mapperID & 0x0F) << 4
	buf.WriteByte(flags6)
	buf.WriteByte(mapperID & 0xF0)
	for i := 0; i < 8; i++ {
		buf.WriteByte(0)
	}

	buf.Write(make([]byte, prgBanks*prgBankSize))
	if chrBanks > 0 {
		buf.Write(make([]byte, chrBanks*chrBankSize))
	}
	return buf.Bytes()
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildINES(0, 1, 1, false)
	data[0] = 'X'
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Error("expected error on bad magic, got nil")
	}
}

func TestLoadRejectsZeroPRGBanks(t *testing.T) {
	data := buildINES(0, 0, 1, false)
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Error("expected error on zero PRG banks, got nil")
	}
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	data := buildINES(99, 1, 1, false)
	_, err := Load(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected UnsupportedMapperError, got nil")
	}
	if _, ok := err.(*UnsupportedMapperError); !ok {
		t.Errorf("got %T, want *UnsupportedMapperError", err)
	}
}

func TestLoadSetsMirroring(t *testing.T) {
	cart, err := Load(bytes.NewReader(buildINES(0, 1, 1, true)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cart.Mirror() != MirrorVertical {
		t.Errorf("Mirror() = %v, want MirrorVertical", cart.Mirror())
	}
}

func TestWriteINESRoundTrip(t *testing.T) {
	original := buildINES(0, 2, 1, true)
	cart, err := Load(bytes.NewReader(original))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var out bytes.Buffer
	if err := cart.WriteINES(&out); err != nil {
		t.Fatalf("WriteINES: %v", err)
	}
	if !bytes.Equal(original, out.Bytes()) {
		t.Error("WriteINES output does not match original iNES bytes")
	}
}

func TestSetMirrorAndAccessor(t *testing.T) {
	cart, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cart.SetMirror(MirrorSingleHigh)
	if cart.Mirror() != MirrorSingleHigh {
		t.Errorf("Mirror() = %v, want MirrorSingleHigh", cart.Mirror())
	}
}

func TestSaveRAMRequiresBattery(t *testing.T) {
	cart, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cart.SaveRAM() != nil {
		t.Error("SaveRAM() should be nil without a battery")
	}

	cart.HasBattery = true
	cart.CPUWrite(0x6000, 0xAB)
	ram := cart.SaveRAM()
	if len(ram) != prgRAMSize {
		t.Fatalf("SaveRAM() length = %d, want %d", len(ram), prgRAMSize)
	}
	if ram[0] != 0xAB {
		t.Errorf("SaveRAM()[0] = %#02x, want 0xAB", ram[0])
	}
}

func TestLoadSaveRAMRejectsWrongSize(t *testing.T) {
	cart, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cart.LoadSaveRAM([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for wrong-sized save RAM, got nil")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cart, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cart.CPUWrite(0x6000, 0x42)
	cart.SetMirror(MirrorVertical)

	snap := cart.Snapshot()

	cart.CPUWrite(0x6000, 0x00)
	cart.SetMirror(MirrorHorizontal)

	if err := cart.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := cart.CPURead(0x6000); got != 0x42 {
		t.Errorf("restored PRG-RAM byte = %#02x, want 0x42", got)
	}
	if cart.Mirror() != MirrorVertical {
		t.Errorf("restored mirror = %v, want MirrorVertical", cart.Mirror())
	}
}

func TestCRC32ComputedOverPRGAndCHR(t *testing.T) {
	a, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(bytes.NewReader(buildINES(0, 1, 1, false)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.CRC32 != b.CRC32 {
		t.Error("identical images produced different CRC32")
	}
}
