// Package cpu implements the 6502 core: registers, the full official
// addressing-mode and opcode matrix, interrupts, and OAM-DMA stall
// accounting. Decimal ADC/SBC is absent (this CPU variant never
// consults D) and unofficial opcodes fall back to a uniform 2-cycle
// no-op.
package cpu

// AddressingMode enumerates the 6502's operand-fetch shapes.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	uFlagMask  = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	pageMask = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Bus is the CPU's view of the system memory map.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// instruction describes one opcode's shape. There is no function
// pointer field: execute looks the opcode up in the table and
// dispatches on the entry's mnemonic.
type instruction struct {
	name   string
	bytes  uint8
	cycles uint8
	mode   AddressingMode
}

// CPU is the 6502 register file plus pending-interrupt and stall state.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool

	bus Bus

	cyclesConsumed uint64
	stallCycles    int

	nmiPending bool
	irqLine    bool

	table [256]instruction
}

// New constructs a CPU wired to bus. PC is undefined until Reset.
func New(bus Bus) *CPU {
	c := &CPU{bus: bus, SP: 0xFD}
	c.buildTable()
	return c
}

// Reset performs the 6502 power-up/reset sequence: SP=$FD, P=$24,
// PC loaded from the reset vector, no pushes.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.SetStatusByte(0x24)
	low := uint16(c.bus.Read(resetVector))
	high := uint16(c.bus.Read(resetVector + 1))
	c.PC = high<<8 | low
	c.cyclesConsumed += 7
	c.stallCycles = 0
	c.nmiPending = false
	c.irqLine = false
}

// Stall adds n cycles to the driver's burn-before-fetch counter, used
// by OAM-DMA (513/514 cycles).
func (c *CPU) Stall(n int) { c.stallCycles += n }

// Cycles reports the CPU's monotonic cycle counter.
func (c *CPU) Cycles() uint64 { return c.cyclesConsumed }

// TriggerNMI latches a one-shot NMI edge, consumed the next time
// interrupts are sampled. Spec models NMI as edge-triggered: this is
// called exactly once per frame by the system driver when the PPU
// reports it just entered VBlank with NMI enabled.
func (c *CPU) TriggerNMI() { c.nmiPending = true }

// SetIRQLine sets the level-triggered IRQ line; a mapper (MMC3) or the
// APU's frame sequencer holds this high until acknowledged.
func (c *CPU) SetIRQLine(asserted bool) { c.irqLine = asserted }

// Step burns one queued stall cycle, enters a pending interrupt's
// handler (7 cycles), or executes one full instruction, and returns
// the cycle count it consumed.
func (c *CPU) Step() int {
	if c.stallCycles > 0 {
		c.stallCycles--
		c.cyclesConsumed++
		return 1
	}

	if c.serviceInterrupts() {
		return 7
	}

	opcode := c.bus.Read(c.PC)
	ins := c.table[opcode]

	addr, pageCrossed := c.operandAddress(ins.mode)
	extra := c.execute(opcode, addr, pageCrossed)

	total := int(ins.cycles) + extra
	c.cyclesConsumed += uint64(total)
	return total
}

func (c *CPU) serviceInterrupts() bool {
	if c.nmiPending {
		c.nmiPending = false
		c.pushWord(c.PC)
		c.push((c.statusForPush() &^ uint8(bFlagMask)) | uFlagMask)
		c.I = true
		low := uint16(c.bus.Read(nmiVector))
		high := uint16(c.bus.Read(nmiVector + 1))
		c.PC = high<<8 | low
		c.cyclesConsumed += 7
		return true
	}
	if c.irqLine && !c.I {
		c.pushWord(c.PC)
		c.push((c.statusForPush() &^ uint8(bFlagMask)) | uFlagMask)
		c.I = true
		low := uint16(c.bus.Read(irqVector))
		high := uint16(c.bus.Read(irqVector + 1))
		c.PC = high<<8 | low
		c.cyclesConsumed += 7
		return true
	}
	return false
}

// operandAddress advances PC past the instruction's operand bytes and
// returns the effective address (unused for Implied/Accumulator) and
// whether a page boundary was crossed.
func (c *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		c.PC++
		return 0, false

	case Immediate:
		addr := c.PC + 1
		c.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(c.bus.Read(c.PC + 1))
		c.PC += 2
		return addr, false

	case ZeroPageX:
		base := c.bus.Read(c.PC + 1)
		addr := uint16(base + c.X)
		c.PC += 2
		return addr, false

	case ZeroPageY:
		base := c.bus.Read(c.PC + 1)
		addr := uint16(base + c.Y)
		c.PC += 2
		return addr, false

	case Relative:
		offset := int8(c.bus.Read(c.PC + 1))
		c.PC += 2
		target := uint16(int32(c.PC) + int32(offset))
		return target, (c.PC & pageMask) != (target & pageMask)

	case Absolute:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		c.PC += 3
		return high<<8 | low, false

	case AbsoluteX:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		base := high<<8 | low
		addr := base + uint16(c.X)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		base := high<<8 | low
		addr := base + uint16(c.Y)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect: // JMP only; reproduces the page-wrap bug.
		lowPtr := uint16(c.bus.Read(c.PC + 1))
		highPtr := uint16(c.bus.Read(c.PC + 2))
		ptr := highPtr<<8 | lowPtr
		low := uint16(c.bus.Read(ptr))
		high := uint16(c.bus.Read((ptr & pageMask) | ((ptr + 1) & 0x00FF)))
		c.PC += 3
		return high<<8 | low, false

	case IndexedIndirect:
		base := c.bus.Read(c.PC + 1)
		ptr := base + c.X
		low := uint16(c.bus.Read(uint16(ptr)))
		high := uint16(c.bus.Read(uint16(ptr + 1)))
		c.PC += 2
		return high<<8 | low, false

	case IndirectIndexed:
		ptr := uint16(c.bus.Read(c.PC + 1))
		low := uint16(c.bus.Read(ptr))
		high := uint16(c.bus.Read((ptr & 0xFF00) | ((ptr + 1) & 0x00FF)))
		base := high<<8 | low
		addr := base + uint16(c.Y)
		c.PC += 2
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

func (c *CPU) push(v uint8) {
	c.bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU) pushWord(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) popWord() uint16 {
	low := uint16(c.pop())
	high := uint16(c.pop())
	return high<<8 | low
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

// GetStatusByte packs the flags into P, with U forced to 1.
func (c *CPU) GetStatusByte() uint8 {
	var p uint8
	if c.C {
		p |= cFlagMask
	}
	if c.Z {
		p |= zFlagMask
	}
	if c.I {
		p |= iFlagMask
	}
	if c.D {
		p |= dFlagMask
	}
	if c.B {
		p |= bFlagMask
	}
	p |= uFlagMask
	if c.V {
		p |= vFlagMask
	}
	if c.N {
		p |= nFlagMask
	}
	return p
}

// statusForPush is GetStatusByte with B forced to 1, matching the
// "pushes with B=1,U=1" rule for PHP/BRK; interrupt handlers clear B
// again after the push.
func (c *CPU) statusForPush() uint8 { return c.GetStatusByte() | bFlagMask }

// SetStatusByte unpacks P into the flag fields. B is never restored
// from a pulled byte (PLP/RTI always leave B=0); callers that need the
// pushed B bit read it before calling this.
func (c *CPU) SetStatusByte(p uint8) {
	c.C = p&cFlagMask != 0
	c.Z = p&zFlagMask != 0
	c.I = p&iFlagMask != 0
	c.D = p&dFlagMask != 0
	c.B = false
	c.V = p&vFlagMask != 0
	c.N = p&nFlagMask != 0
}

// State is the CPU's save-state snapshot.
type State struct {
	A, X, Y, SP    uint8
	PC             uint16
	Status         uint8
	CyclesConsumed uint64
	StallCycles    int
	NMIPending     bool
	IRQLine        bool
}

func (c *CPU) Snapshot() State {
	return State{
		A: c.A, X: c.X, Y: c.Y, SP: c.SP, PC: c.PC,
		Status:         c.GetStatusByte(),
		CyclesConsumed: c.cyclesConsumed,
		StallCycles:    c.stallCycles,
		NMIPending:     c.nmiPending,
		IRQLine:        c.irqLine,
	}
}

func (c *CPU) Restore(s State) {
	c.A, c.X, c.Y, c.SP, c.PC = s.A, s.X, s.Y, s.SP, s.PC
	c.SetStatusByte(s.Status)
	c.cyclesConsumed = s.CyclesConsumed
	c.stallCycles = s.StallCycles
	c.nmiPending = s.NMIPending
	c.irqLine = s.IRQLine
}
