// Package apu implements the NES Audio Processing Unit: two pulse
// channels, a triangle, a noise generator, a delta-modulation sample
// channel, the frame sequencer that drives their envelope/length/sweep
// units, and the non-linear mixer that combines them into a stream of
// float32 samples.
package apu

// Bus is the CPU-bus surface the DMC channel needs: reading a sample
// byte and stalling the CPU for the cycles that fetch consumes.
type Bus interface {
	Read(addr uint16) uint8
	Stall(cycles int)
}

// APU owns all five channels and the frame sequencer that clocks them.
type APU struct {
	pulse1   pulseChannel
	pulse2   pulseChannel
	triangle triangleChannel
	noise    noiseChannel
	dmc      dmcChannel

	bus Bus

	cycleParity   bool
	frameCounter  int
	fiveStepMode  bool
	irqInhibit    bool
	frameIRQFlag  bool

	sampleRate         float64
	cpuClockRate       float64
	sampleCycAccum     float64
	sampleBuffer       []float32
}

// New constructs an APU producing samples at sampleRate, derived from
// the NTSC CPU clock.
func New(sampleRate int) *APU {
	a := &APU{
		pulse1:       pulseChannel{isChannel1: true},
		pulse2:       pulseChannel{},
		noise:        newNoiseChannel(),
		dmc:          dmcChannel{sampleBufferEmpty: true},
		irqInhibit:   false,
		sampleRate:   float64(sampleRate),
		cpuClockRate: 1789773.0,
		sampleBuffer: make([]float32, 0, 4096),
	}
	return a
}

// AttachBus wires the DMC channel's sample fetches to the CPU bus.
func (a *APU) AttachBus(bus Bus) { a.bus = bus }

// Reset silences every channel and returns the frame sequencer to its
// power-up state.
func (a *APU) Reset() {
	a.pulse1 = pulseChannel{isChannel1: true}
	a.pulse2 = pulseChannel{}
	a.triangle = triangleChannel{}
	a.noise = newNoiseChannel()
	a.dmc = dmcChannel{sampleBufferEmpty: true}
	a.cycleParity = false
	a.frameCounter = 0
	a.fiveStepMode = false
	a.irqInhibit = false
	a.frameIRQFlag = false
	a.sampleCycAccum = 0
	a.sampleBuffer = a.sampleBuffer[:0]
}

// IRQ reports whether the frame sequencer or the DMC channel currently
// asserts the shared APU IRQ line.
func (a *APU) IRQ() bool { return (a.frameIRQFlag && !a.irqInhibit) || a.dmc.irqFlag }

// Step advances every channel by one CPU cycle: the triangle and DMC
// timers clock every cycle, the pulse/noise timers and the frame
// sequencer clock every other cycle (the APU's own half-rate clock).
func (a *APU) Step() {
	a.triangle.clockTimer()
	a.dmc.clock(a.bus)

	a.cycleParity = !a.cycleParity
	if a.cycleParity {
		a.pulse1.clockTimer()
		a.pulse2.clockTimer()
		a.noise.clockTimer()
		a.clockFrameSequencer()
	}

	a.sampleCycAccum += a.sampleRate / a.cpuClockRate
	if a.sampleCycAccum >= 1.0 {
		a.sampleCycAccum -= 1.0
		a.sampleBuffer = append(a.sampleBuffer, a.mix())
	}
}

func (a *APU) clockFrameSequencer() {
	a.frameCounter++

	quarter := func() {
		a.pulse1.clockEnvelope()
		a.pulse2.clockEnvelope()
		a.noise.clockEnvelope()
		a.triangle.clockLinear()
	}
	half := func() {
		a.pulse1.clockLength()
		a.pulse1.clockSweep()
		a.pulse2.clockLength()
		a.pulse2.clockSweep()
		a.triangle.clockLength()
		a.noise.clockLength()
	}

	if !a.fiveStepMode {
		switch a.frameCounter {
		case 3729:
			quarter()
		case 7457:
			quarter()
			half()
		case 11186:
			quarter()
		case 14915:
			quarter()
			half()
			if !a.irqInhibit {
				a.frameIRQFlag = true
			}
			a.frameCounter = 0
		}
	} else {
		switch a.frameCounter {
		case 3729:
			quarter()
		case 7457:
			quarter()
			half()
		case 11186:
			quarter()
		case 18641:
			quarter()
			half()
			a.frameCounter = 0
		}
	}
}

// mix combines the five channel outputs through the NES's non-linear
// mixing formula, scaled to [-1, 1].
func (a *APU) mix() float32 {
	p1 := float64(a.pulse1.output())
	p2 := float64(a.pulse2.output())
	t := float64(a.triangle.output())
	n := float64(a.noise.output())
	d := float64(a.dmc.output())

	var pulseOut float64
	if p1+p2 != 0 {
		pulseOut = 95.88 / (8128.0/(p1+p2) + 100.0)
	}
	tndSum := t/8227.0 + n/12241.0 + d/22638.0
	var tndOut float64
	if tndSum != 0 {
		tndOut = 159.79 / (1.0/tndSum + 100.0)
	}

	return float32(pulseOut + tndOut)
}

// Samples drains and returns the accumulated float32 samples produced
// since the last call.
func (a *APU) Samples() []float32 {
	out := make([]float32, len(a.sampleBuffer))
	copy(out, a.sampleBuffer)
	a.sampleBuffer = a.sampleBuffer[:0]
	return out
}

// ReadRegister services a CPU read of $4015: channel activity plus
// pending IRQs. Reading $4015 clears the frame-IRQ flag but not the
// DMC's.
func (a *APU) ReadRegister(addr uint16) uint8 {
	if addr != 0x4015 {
		return 0
	}
	var v uint8
	if a.pulse1.lengthCounter > 0 {
		v |= 0x01
	}
	if a.pulse2.lengthCounter > 0 {
		v |= 0x02
	}
	if a.triangle.lengthCounter > 0 {
		v |= 0x04
	}
	if a.noise.lengthCounter > 0 {
		v |= 0x08
	}
	if a.dmc.bytesRemaining > 0 {
		v |= 0x10
	}
	if a.frameIRQFlag {
		v |= 0x40
	}
	if a.dmc.irqFlag {
		v |= 0x80
	}
	a.frameIRQFlag = false
	return v
}

// WriteRegister services a CPU write to $4000-$4013, $4015, or $4017.
func (a *APU) WriteRegister(addr uint16, value uint8) {
	switch {
	case addr >= 0x4000 && addr <= 0x4003:
		a.writePulse(&a.pulse1, addr-0x4000, value)
	case addr >= 0x4004 && addr <= 0x4007:
		a.writePulse(&a.pulse2, addr-0x4004, value)
	case addr == 0x4008:
		a.triangle.writeControl(value)
	case addr == 0x400A:
		a.triangle.writeTimerLow(value)
	case addr == 0x400B:
		a.triangle.writeTimerHigh(value)
	case addr == 0x400C:
		a.noise.writeControl(value)
	case addr == 0x400E:
		a.noise.writePeriod(value)
	case addr == 0x400F:
		a.noise.writeLength(value)
	case addr == 0x4010:
		a.dmc.writeControl(value)
	case addr == 0x4011:
		a.dmc.writeDirectLoad(value)
	case addr == 0x4012:
		a.dmc.writeSampleAddress(value)
	case addr == 0x4013:
		a.dmc.writeSampleLength(value)
	case addr == 0x4015:
		a.pulse1.setEnabled(value&0x01 != 0)
		a.pulse2.setEnabled(value&0x02 != 0)
		a.triangle.setEnabled(value&0x04 != 0)
		a.noise.setEnabled(value&0x08 != 0)
		a.dmc.setEnabled(value&0x10 != 0)
		a.dmc.irqFlag = false
	case addr == 0x4017:
		a.fiveStepMode = value&0x80 != 0
		a.irqInhibit = value&0x40 != 0
		if a.irqInhibit {
			a.frameIRQFlag = false
		}
		a.frameCounter = 0
		a.cycleParity = false
		if a.fiveStepMode {
			a.pulse1.clockEnvelope()
			a.pulse2.clockEnvelope()
			a.noise.clockEnvelope()
			a.triangle.clockLinear()
			a.pulse1.clockLength()
			a.pulse1.clockSweep()
			a.pulse2.clockLength()
			a.pulse2.clockSweep()
			a.triangle.clockLength()
			a.noise.clockLength()
		}
	}
}

func (a *APU) writePulse(p *pulseChannel, reg uint16, value uint8) {
	switch reg {
	case 0:
		p.writeControl(value)
	case 1:
		p.writeSweep(value)
	case 2:
		p.writeTimerLow(value)
	case 3:
		p.writeTimerHigh(value)
	}
}

// pulseState, triangleState, noiseState, and dmcState mirror the
// private channel structs with exported fields so gob can serialize
// them as part of a save state.
type pulseState struct {
	IsChannel1                                    bool
	DutyCycle                                      uint8
	LengthHalt, ConstantVolume                     bool
	Volume                                         uint8
	SweepEnabled                                   bool
	SweepPeriod, SweepShift                        uint8
	SweepNegate, SweepReload                       bool
	SweepCounter                                   uint8
	Timer, TimerCounter                            uint16
	LengthCounter, DutyIndex                       uint8
	EnvelopeStart                                  bool
	EnvelopeVolume, EnvelopeDivider                uint8
	Enabled                                        bool
}

func snapshotPulse(p pulseChannel) pulseState {
	return pulseState{
		IsChannel1: p.isChannel1, DutyCycle: p.dutyCycle, LengthHalt: p.lengthHalt,
		ConstantVolume: p.constantVolume, Volume: p.volume, SweepEnabled: p.sweepEnabled,
		SweepPeriod: p.sweepPeriod, SweepShift: p.sweepShift, SweepNegate: p.sweepNegate,
		SweepReload: p.sweepReload, SweepCounter: p.sweepCounter, Timer: p.timer,
		TimerCounter: p.timerCounter, LengthCounter: p.lengthCounter, DutyIndex: p.dutyIndex,
		EnvelopeStart: p.envelopeStart, EnvelopeVolume: p.envelopeVolume,
		EnvelopeDivider: p.envelopeDivider, Enabled: p.enabled,
	}
}

func restorePulse(s pulseState) pulseChannel {
	return pulseChannel{
		isChannel1: s.IsChannel1, dutyCycle: s.DutyCycle, lengthHalt: s.LengthHalt,
		constantVolume: s.ConstantVolume, volume: s.Volume, sweepEnabled: s.SweepEnabled,
		sweepPeriod: s.SweepPeriod, sweepShift: s.SweepShift, sweepNegate: s.SweepNegate,
		sweepReload: s.SweepReload, sweepCounter: s.SweepCounter, timer: s.Timer,
		timerCounter: s.TimerCounter, lengthCounter: s.LengthCounter, dutyIndex: s.DutyIndex,
		envelopeStart: s.EnvelopeStart, envelopeVolume: s.EnvelopeVolume,
		envelopeDivider: s.EnvelopeDivider, enabled: s.Enabled,
	}
}

type triangleState struct {
	ControlFlag               bool
	LinearCounterLoad         uint8
	LinearCounter             uint8
	LinearReload              bool
	Timer, TimerCounter       uint16
	LengthCounter, SequenceIndex uint8
	Enabled                   bool
}

func snapshotTriangle(t triangleChannel) triangleState {
	return triangleState{
		ControlFlag: t.controlFlag, LinearCounterLoad: t.linearCounterLoad,
		LinearCounter: t.linearCounter, LinearReload: t.linearReload, Timer: t.timer,
		TimerCounter: t.timerCounter, LengthCounter: t.lengthCounter,
		SequenceIndex: t.sequenceIndex, Enabled: t.enabled,
	}
}

func restoreTriangle(s triangleState) triangleChannel {
	return triangleChannel{
		controlFlag: s.ControlFlag, linearCounterLoad: s.LinearCounterLoad,
		linearCounter: s.LinearCounter, linearReload: s.LinearReload, timer: s.Timer,
		timerCounter: s.TimerCounter, lengthCounter: s.LengthCounter,
		sequenceIndex: s.SequenceIndex, enabled: s.Enabled,
	}
}

type noiseState struct {
	LengthHalt, ConstantVolume       bool
	Volume                           uint8
	Mode                             bool
	PeriodIndex                      uint8
	TimerCounter                     uint16
	LengthCounter                    uint8
	ShiftRegister                    uint16
	EnvelopeStart                    bool
	EnvelopeVolume, EnvelopeDivider  uint8
	Enabled                          bool
}

func snapshotNoise(n noiseChannel) noiseState {
	return noiseState{
		LengthHalt: n.lengthHalt, ConstantVolume: n.constantVolume, Volume: n.volume,
		Mode: n.mode, PeriodIndex: n.periodIndex, TimerCounter: n.timerCounter,
		LengthCounter: n.lengthCounter, ShiftRegister: n.shiftRegister,
		EnvelopeStart: n.envelopeStart, EnvelopeVolume: n.envelopeVolume,
		EnvelopeDivider: n.envelopeDivider, Enabled: n.enabled,
	}
}

func restoreNoise(s noiseState) noiseChannel {
	return noiseChannel{
		lengthHalt: s.LengthHalt, constantVolume: s.ConstantVolume, volume: s.Volume,
		mode: s.Mode, periodIndex: s.PeriodIndex, timerCounter: s.TimerCounter,
		lengthCounter: s.LengthCounter, shiftRegister: s.ShiftRegister,
		envelopeStart: s.EnvelopeStart, envelopeVolume: s.EnvelopeVolume,
		envelopeDivider: s.EnvelopeDivider, enabled: s.Enabled,
	}
}

type dmcState struct {
	IRQEnabled, Loop                    bool
	RateIndex                           uint8
	SampleAddress, SampleLength         uint16
	CurrentAddress, BytesRemaining      uint16
	TimerCounter                        uint16
	ShiftRegister, BitsRemaining        uint8
	SampleBuffer                        uint8
	SampleBufferEmpty, Silence          bool
	OutputLevel                         uint8
	IRQFlag                             bool
}

func snapshotDMC(d dmcChannel) dmcState {
	return dmcState{
		IRQEnabled: d.irqEnabled, Loop: d.loop, RateIndex: d.rateIndex,
		SampleAddress: d.sampleAddress, SampleLength: d.sampleLength,
		CurrentAddress: d.currentAddress, BytesRemaining: d.bytesRemaining,
		TimerCounter: d.timerCounter, ShiftRegister: d.shiftRegister,
		BitsRemaining: d.bitsRemaining, SampleBuffer: d.sampleBuffer,
		SampleBufferEmpty: d.sampleBufferEmpty, Silence: d.silence,
		OutputLevel: d.outputLevel, IRQFlag: d.irqFlag,
	}
}

func restoreDMC(s dmcState) dmcChannel {
	return dmcChannel{
		irqEnabled: s.IRQEnabled, loop: s.Loop, rateIndex: s.RateIndex,
		sampleAddress: s.SampleAddress, sampleLength: s.SampleLength,
		currentAddress: s.CurrentAddress, bytesRemaining: s.BytesRemaining,
		timerCounter: s.TimerCounter, shiftRegister: s.ShiftRegister,
		bitsRemaining: s.BitsRemaining, sampleBuffer: s.SampleBuffer,
		sampleBufferEmpty: s.SampleBufferEmpty, silence: s.Silence,
		outputLevel: s.OutputLevel, irqFlag: s.IRQFlag,
	}
}

// State is the APU's save-state snapshot. The sample buffer is
// transient audio output, not emulator state, and is excluded.
type State struct {
	Pulse1, Pulse2 pulseState
	Triangle       triangleState
	Noise          noiseState
	DMC            dmcState

	CycleParity  bool
	FrameCounter int
	FiveStepMode bool
	IRQInhibit   bool
	FrameIRQFlag bool
}

func (a *APU) Snapshot() State {
	return State{
		Pulse1: snapshotPulse(a.pulse1), Pulse2: snapshotPulse(a.pulse2),
		Triangle: snapshotTriangle(a.triangle), Noise: snapshotNoise(a.noise),
		DMC: snapshotDMC(a.dmc),
		CycleParity: a.cycleParity, FrameCounter: a.frameCounter,
		FiveStepMode: a.fiveStepMode, IRQInhibit: a.irqInhibit, FrameIRQFlag: a.frameIRQFlag,
	}
}

func (a *APU) Restore(s State) {
	a.pulse1, a.pulse2 = restorePulse(s.Pulse1), restorePulse(s.Pulse2)
	a.triangle = restoreTriangle(s.Triangle)
	a.noise = restoreNoise(s.Noise)
	a.dmc = restoreDMC(s.DMC)
	a.cycleParity, a.frameCounter = s.CycleParity, s.FrameCounter
	a.fiveStepMode, a.irqInhibit, a.frameIRQFlag = s.FiveStepMode, s.IRQInhibit, s.FrameIRQFlag
}
