package input

import "testing"

func TestStrobeHighReportsButtonALive(t *testing.T) {
	p := New()
	p.SetButtons(0, uint8(ButtonA|ButtonUp))
	p.WriteStrobe(0x01)

	for i := 0; i < 3; i++ {
		if got := p.ReadController(0); got&0x01 != 0x01 {
			t.Errorf("read %d while strobing = %#02x, want bit0 set (A held)", i, got)
		}
	}
}

func TestSerialReadOrderAfterStrobeFallingEdge(t *testing.T) {
	p := New()
	mask := uint8(ButtonA | ButtonStart)
	p.SetButtons(0, mask)
	p.WriteStrobe(0x01)
	p.WriteStrobe(0x00)

	var got uint8
	for i := 0; i < 8; i++ {
		got |= (p.ReadController(0) & 0x01) << i
	}
	if got != mask {
		t.Errorf("serialized buttons = %#02x, want %#02x", got, mask)
	}
}

func TestReadPastEighthBitReturnsOne(t *testing.T) {
	p := New()
	p.SetButtons(0, 0xFF)
	p.WriteStrobe(0x01)
	p.WriteStrobe(0x00)
	for i := 0; i < 8; i++ {
		p.ReadController(0)
	}
	if got := p.ReadController(0); got&0x01 != 1 {
		t.Errorf("9th serial read = %#02x, want bit0 = 1", got)
	}
}

func TestBit6AlwaysSet(t *testing.T) {
	p := New()
	p.SetButtons(0, 0x00)
	if got := p.ReadController(0); got&0x40 == 0 {
		t.Errorf("ReadController bit6 = 0, want always set")
	}
}

func TestSetButtonsWhileStrobingUpdatesSnapshotLive(t *testing.T) {
	p := New()
	p.WriteStrobe(0x01)
	p.SetButtons(1, uint8(ButtonB))
	if got := p.ReadController(1); got&0x01 != 0x00 {
		t.Errorf("port1 bit0 (A) = %#02x, want A-bit clear", got&0x01)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := New()
	p.SetButtons(0, uint8(ButtonStart))
	p.WriteStrobe(0x01)
	p.WriteStrobe(0x00)
	p.ReadController(0) // advance readIndex by one

	snap := p.Snapshot()

	p.ReadController(0)
	p.ReadController(0)
	p.Restore(snap)

	first := p.ReadController(0) & 0x01
	if first != 0 {
		t.Errorf("after restore, serial bit = %d, want matching pre-snapshot stream", first)
	}
}
