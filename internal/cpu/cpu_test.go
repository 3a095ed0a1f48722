package cpu

import "testing"

// mockBus is a flat 64 KiB address space satisfying the Bus interface.
type mockBus struct {
	data [0x10000]uint8
}

func (m *mockBus) Read(addr uint16) uint8         { return m.data[addr] }
func (m *mockBus) Write(addr uint16, value uint8) { m.data[addr] = value }

func (m *mockBus) setBytes(addr uint16, values ...uint8) {
	for i, v := range values {
		m.data[addr+uint16(i)] = v
	}
}

func newTestCPU() (*CPU, *mockBus) {
	bus := &mockBus{}
	c := New(bus)
	return c, bus
}

func (c *CPU) resetAt(bus *mockBus, addr uint16) {
	bus.setBytes(resetVector, uint8(addr), uint8(addr>>8))
	c.Reset()
}

func TestResetVector(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0xC000)

	if c.PC != 0xC000 {
		t.Errorf("PC = %#04x, want %#04x", c.PC, 0xC000)
	}
	if c.SP != 0xFD {
		t.Errorf("SP = %#02x, want 0xFD", c.SP)
	}
	if c.Cycles() != 7 {
		t.Errorf("Cycles() = %d, want 7", c.Cycles())
	}
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	tests := []struct {
		name    string
		operand uint8
		wantZ   bool
		wantN   bool
	}{
		{"positive", 0x42, false, false},
		{"zero", 0x00, true, false},
		{"negative", 0x80, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, bus := newTestCPU()
			c.resetAt(bus, 0x8000)
			bus.setBytes(0x8000, 0xA9, tt.operand) // LDA #imm

			c.Step()

			if c.A != tt.operand {
				t.Errorf("A = %#02x, want %#02x", c.A, tt.operand)
			}
			if c.Z != tt.wantZ {
				t.Errorf("Z = %v, want %v", c.Z, tt.wantZ)
			}
			if c.N != tt.wantN {
				t.Errorf("N = %v, want %v", c.N, tt.wantN)
			}
		})
	}
}

func TestADCSetsCarryAndOverflow(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xA9, 0x7F) // LDA #$7F
	bus.setBytes(0x8002, 0x69, 0x01) // ADC #$01

	c.Step()
	c.Step()

	if c.A != 0x80 {
		t.Errorf("A = %#02x, want 0x80", c.A)
	}
	if !c.V {
		t.Error("V not set on signed overflow")
	}
	if c.C {
		t.Error("C unexpectedly set")
	}
}

func TestBranchCyclePenalties(t *testing.T) {
	// BEQ with Z=0 (not taken): 2 cycles.
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xF0, 0x10) // BEQ +16, Z clear after reset
	if got := c.Step(); got != 2 {
		t.Errorf("not-taken branch cost %d cycles, want 2", got)
	}

	// BEQ with Z=1, same page (taken): 3 cycles.
	c, bus = newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xA9, 0x00) // LDA #$00 sets Z
	bus.setBytes(0x8002, 0xF0, 0x02) // BEQ +2
	c.Step()
	if got := c.Step(); got != 3 {
		t.Errorf("same-page taken branch cost %d cycles, want 3", got)
	}
}

func TestStackPushPull(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xA9, 0x55, // LDA #$55
		0x48,       // PHA
		0xA9, 0x00, // LDA #$00
		0x68, // PLA
	)
	for i := 0; i < 4; i++ {
		c.Step()
	}
	if c.A != 0x55 {
		t.Errorf("A after PLA = %#02x, want 0x55", c.A)
	}
	if c.SP != 0xFD {
		t.Errorf("SP after balanced push/pull = %#02x, want 0xFD", c.SP)
	}
}

func TestNMITakesPriorityAndPushesState(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(nmiVector, 0x00, 0x90) // NMI handler at $9000
	bus.setBytes(0x8000, 0xEA)          // NOP

	c.TriggerNMI()
	c.Step()

	if c.PC != 0x9000 {
		t.Errorf("PC after NMI = %#04x, want 0x9000", c.PC)
	}
	if !c.I {
		t.Error("I flag not set after entering NMI handler")
	}
	if c.SP != 0xFA {
		t.Errorf("SP after NMI entry = %#02x, want 0xFA (PC+status pushed)", c.SP)
	}
}

func TestIRQIgnoredWhenIFlagSet(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xEA) // NOP
	c.I = true
	c.SetIRQLine(true)

	c.Step()

	if c.PC != 0x8001 {
		t.Errorf("IRQ serviced despite I flag set; PC = %#04x", c.PC)
	}
}

func TestStallBurnsOneCyclePerStep(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	c.Stall(3)

	for i := 0; i < 3; i++ {
		if got := c.Step(); got != 1 {
			t.Fatalf("stall step %d returned %d cycles, want 1", i, got)
		}
	}
	if c.PC != 0x8000 {
		t.Errorf("PC advanced during stall: %#04x", c.PC)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c, bus := newTestCPU()
	c.resetAt(bus, 0x8000)
	bus.setBytes(0x8000, 0xA9, 0x77, 0xA2, 0x22) // LDA #$77 ; LDX #$22
	c.Step()
	c.Step()

	snap := c.Snapshot()

	c.A, c.X = 0, 0
	c.Restore(snap)

	if c.A != 0x77 || c.X != 0x22 {
		t.Errorf("restored A=%#02x X=%#02x, want 0x77/0x22", c.A, c.X)
	}
	if c.PC != 0x8004 {
		t.Errorf("restored PC = %#04x, want 0x8004", c.PC)
	}
}
