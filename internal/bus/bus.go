// Package bus assembles the CPU, PPU, APU, memory, and input
// components into one System and drives them together: instruction
// stepping, OAM-DMA, NMI/IRQ delivery, frame-buffer/sample output, and
// save-stating. Cross-component signals are polled rather than
// delivered through stored callbacks: TookNMIEdge and the IRQ levels
// once per Step before the CPU runs, FrameComplete and ScanlineComplete
// after every PPU dot.
package bus

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io"

	"nesulator/internal/apu"
	"nesulator/internal/cartridge"
	"nesulator/internal/cpu"
	"nesulator/internal/input"
	"nesulator/internal/memory"
	"nesulator/internal/ppu"
)

const saveStateVersion uint8 = 1

// System owns one complete NES and advances it one CPU instruction at
// a time, running the PPU three dots and the APU one cycle for every
// CPU cycle consumed (the fixed 3:1 ratio).
type System struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.Pair

	cart *cartridge.Cartridge

	cpuCycles  uint64
	frameCount uint64
}

// New constructs a System with no cartridge loaded; LoadCartridge must
// be called before Step.
func New() *System {
	s := &System{
		PPU:   ppu.New(),
		APU:   apu.New(44100),
		Input: input.New(),
	}
	s.Memory = memory.New(s.PPU, s.APU, s.Input, nil)
	s.CPU = cpu.New(s.Memory)
	s.APU.AttachBus(s)
	return s
}

// Read services the APU's DMC sample fetches through the same address
// decode the CPU uses.
func (s *System) Read(addr uint16) uint8 { return s.Memory.Read(addr) }

// Stall services the APU's DMC fetch stall by forwarding to the CPU.
func (s *System) Stall(cycles int) { s.CPU.Stall(cycles) }

// LoadCartridge wires a freshly loaded cartridge into the memory bus
// and PPU pattern source, then resets the system so the CPU starts
// from the new cartridge's reset vector.
func (s *System) LoadCartridge(cart *cartridge.Cartridge) {
	s.cart = cart
	s.Memory.SetCartridge(cart)
	s.PPU.AttachCartridge(cart)
	s.Reset()
}

// Reset re-initializes every component: CPU reads its vector, PPU
// returns to the pre-render scanline, APU falls silent.
func (s *System) Reset() {
	s.CPU.Reset()
	s.PPU.Reset()
	s.APU.Reset()
	s.cpuCycles = 0
	s.frameCount = 0
}

// Step executes one CPU instruction (or burns one DMA stall cycle),
// catches the PPU and APU up by the matching number of dots/cycles,
// and returns the CPU cycles consumed.
func (s *System) Step() int {
	if page, ok := s.Memory.PendingDMA(); ok {
		s.runOAMDMA(page)
	}

	if s.PPU.TookNMIEdge() {
		s.CPU.TriggerNMI()
	}
	s.CPU.SetIRQLine(s.mapperIRQ() || s.APU.IRQ())

	cycles := s.CPU.Step()
	s.cpuCycles += uint64(cycles)

	for i := 0; i < cycles*3; i++ {
		s.PPU.Step()
		if s.PPU.FrameComplete() {
			s.frameCount++
		}
		if s.PPU.ScanlineComplete() && s.cart != nil {
			s.cart.StepScanline()
		}
	}
	for i := 0; i < cycles; i++ {
		s.APU.Step()
	}

	return cycles
}

func (s *System) mapperIRQ() bool {
	if s.cart == nil {
		return false
	}
	return s.cart.IRQ()
}

// runOAMDMA stalls the CPU for 513 (or 514, on an odd CPU cycle) and
// copies 256 bytes from the requested page into PPU OAM.
func (s *System) runOAMDMA(page uint8) {
	extra := 513
	if s.cpuCycles%2 == 1 {
		extra = 514
	}
	s.CPU.Stall(extra)
	for i := 0; i < 256; i++ {
		b := s.Memory.DMASourceByte(page, uint8(i))
		s.Memory.WriteOAMByte(b)
	}
}

// Frame runs the system until one more frame has completed.
func (s *System) Frame() {
	target := s.frameCount + 1
	for s.frameCount < target {
		s.Step()
	}
}

// FrameCount reports how many frames have completed since Reset.
func (s *System) FrameCount() uint64 { return s.frameCount }

// AudioSamples drains the APU's accumulated float32 samples.
func (s *System) AudioSamples() []float32 { return s.APU.Samples() }

// SetControllerButtons updates one controller's held-button mask
// (index 0 or 1), called by the host once per frame.
func (s *System) SetControllerButtons(index int, mask uint8) {
	s.Input.SetButtons(index, mask)
}

// RenderRGBA resolves the PPU's palette-address frame buffer through
// palette RAM and the master palette into a packed RGBA image. dst
// must be at least 256*240*4 bytes.
func (s *System) RenderRGBA(dst []byte) error {
	if len(dst) < 256*240*4 {
		return errors.New("bus: RenderRGBA destination buffer too small")
	}
	fb := s.PPU.FrameBuffer()
	pal := s.PPU.PaletteRAM()
	for i, paletteAddr := range fb {
		nesColor := pal[paletteAddr&0x1F] & 0x3F
		r, g, b := ppu.ColorRGB(nesColor)
		o := i * 4
		dst[o] = r
		dst[o+1] = g
		dst[o+2] = b
		dst[o+3] = 0xFF
	}
	return nil
}

// saveState is the versioned, gob-encoded save-state blob: every
// component's Snapshot plus the cycle/frame counters needed to resume
// exactly where Save captured them.
type saveState struct {
	Version    uint8
	CPU        cpu.State
	PPU        ppu.State
	APU        apu.State
	Input      input.State
	Cartridge  cartridge.State
	RAM        [0x0800]uint8
	CPUCycles  uint64
	FrameCount uint64
}

// SaveState serializes the entire system to w. Cartridge PRG/CHR-ROM
// bytes are not included — LoadCartridge must load the same image
// before LoadState.
func (s *System) SaveState(w io.Writer) error {
	if s.cart == nil {
		return errors.New("bus: no cartridge loaded")
	}
	st := saveState{
		Version:    saveStateVersion,
		CPU:        s.CPU.Snapshot(),
		PPU:        s.PPU.Snapshot(),
		APU:        s.APU.Snapshot(),
		Input:      s.Input.Snapshot(),
		Cartridge:  s.cart.Snapshot(),
		CPUCycles:  s.cpuCycles,
		FrameCount: s.frameCount,
	}
	st.RAM = s.Memory.Snapshot()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&st); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// LoadState restores a System previously captured by SaveState. The
// matching cartridge image must already be loaded via LoadCartridge.
func (s *System) LoadState(r io.Reader) error {
	if s.cart == nil {
		return errors.New("bus: no cartridge loaded")
	}
	var st saveState
	if err := gob.NewDecoder(r).Decode(&st); err != nil {
		return err
	}
	if st.Version != saveStateVersion {
		return errors.New("bus: save state version mismatch")
	}
	s.CPU.Restore(st.CPU)
	s.PPU.Restore(st.PPU)
	s.APU.Restore(st.APU)
	s.Input.Restore(st.Input)
	if err := s.cart.Restore(st.Cartridge); err != nil {
		return err
	}
	s.Memory.Restore(st.RAM)
	s.cpuCycles = st.CPUCycles
	s.frameCount = st.FrameCount
	return nil
}
