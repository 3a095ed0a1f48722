// Command nesulator is a thin Ebitengine host for the emulator core:
// it opens a window, blits System.RenderRGBA output, feeds
// System.AudioSamples into an audio.Player, and translates keyboard
// state into controller button masks. It holds no emulation state of
// its own.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"nesulator/internal/bus"
	"nesulator/internal/cartridge"
	"nesulator/internal/config"
	"nesulator/internal/input"
)

const (
	nesWidth  = 256
	nesHeight = 240
)

// soundStream adapts the System's drained float32 audio samples into
// the signed 16-bit little-endian stereo PCM stream audio.Player
// reads, looping the last sample when the core runs dry rather than
// blocking Read.
type soundStream struct {
	system *bus.System
	last   int16
}

func (s *soundStream) Read(p []byte) (int, error) {
	samples := s.system.AudioSamples()
	n := 0
	for n+4 <= len(p) {
		var v int16
		if len(samples) > 0 {
			v = floatToPCM16(samples[0])
			samples = samples[1:]
			s.last = v
		} else {
			v = s.last
		}
		binary.LittleEndian.PutUint16(p[n:], uint16(v))
		binary.LittleEndian.PutUint16(p[n+2:], uint16(v))
		n += 4
	}
	return n, nil
}

func floatToPCM16(sample float32) int16 {
	v := float64(sample) * 2 - 1 // mixer output is roughly [0,1); recenter around 0
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * 32767))
}

// game implements ebiten.Game, wiring one System to the screen, the
// audio device, and the keyboard.
type game struct {
	system  *bus.System
	cfg     *config.Config
	frame   *ebiten.Image
	rgba    []byte
	player1 keyBindings
	player2 keyBindings
}

type keyBindings struct {
	up, down, left, right, a, b, start, select_ ebiten.Key
}

func resolveBindings(m config.KeyMapping) keyBindings {
	return keyBindings{
		up:      lookupKey(m.Up),
		down:    lookupKey(m.Down),
		left:    lookupKey(m.Left),
		right:   lookupKey(m.Right),
		a:       lookupKey(m.A),
		b:       lookupKey(m.B),
		start:   lookupKey(m.Start),
		select_: lookupKey(m.Select),
	}
}

func lookupKey(name string) ebiten.Key {
	if k, ok := keyNames[name]; ok {
		return k
	}
	return -1
}

var keyNames = map[string]ebiten.Key{
	"KeyW": ebiten.KeyW, "KeyA": ebiten.KeyA, "KeyS": ebiten.KeyS, "KeyD": ebiten.KeyD,
	"KeyJ": ebiten.KeyJ, "KeyK": ebiten.KeyK, "KeyN": ebiten.KeyN, "KeyM": ebiten.KeyM,
	"KeyEnter": ebiten.KeyEnter, "KeySpace": ebiten.KeySpace,
	"KeyArrowUp": ebiten.KeyArrowUp, "KeyArrowDown": ebiten.KeyArrowDown,
	"KeyArrowLeft": ebiten.KeyArrowLeft, "KeyArrowRight": ebiten.KeyArrowRight,
	"KeyShiftRight": ebiten.KeyShiftRight, "KeyControlRight": ebiten.KeyControlRight,
}

func buttonMask(b keyBindings) uint8 {
	var mask uint8
	set := func(pressed bool, btn input.Button) {
		if pressed {
			mask |= uint8(btn)
		}
	}
	set(ebiten.IsKeyPressed(b.up), input.ButtonUp)
	set(ebiten.IsKeyPressed(b.down), input.ButtonDown)
	set(ebiten.IsKeyPressed(b.left), input.ButtonLeft)
	set(ebiten.IsKeyPressed(b.right), input.ButtonRight)
	set(ebiten.IsKeyPressed(b.a), input.ButtonA)
	set(ebiten.IsKeyPressed(b.b), input.ButtonB)
	set(ebiten.IsKeyPressed(b.start), input.ButtonStart)
	set(ebiten.IsKeyPressed(b.select_), input.ButtonSelect)
	return mask
}

func (g *game) Update() error {
	g.system.SetControllerButtons(0, buttonMask(g.player1))
	g.system.SetControllerButtons(1, buttonMask(g.player2))
	g.system.Frame()
	if err := g.system.RenderRGBA(g.rgba); err != nil {
		return err
	}
	g.frame.WritePixels(g.rgba)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(2, 2)
	screen.DrawImage(g.frame, op)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return nesWidth * 2, nesHeight * 2
}

func main() {
	romPath := flag.String("rom", "", "Path to an iNES ROM file")
	configPath := flag.String("config", config.DefaultConfigPath(), "Path to the host configuration file")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: nesulator -rom path/to/game.nes")
		os.Exit(1)
	}

	cfg := config.New()
	if err := cfg.LoadFromFile(*configPath); err != nil {
		log.Fatalf("nesulator: loading config: %v", err)
	}

	romFile, err := os.Open(*romPath)
	if err != nil {
		log.Fatalf("nesulator: opening ROM: %v", err)
	}
	defer romFile.Close()

	cart, err := cartridge.Load(romFile)
	if err != nil {
		log.Fatalf("nesulator: loading ROM: %v", err)
	}

	system := bus.New()
	system.LoadCartridge(cart)

	if cfg.Audio.Enabled {
		ctx := audio.NewContext(cfg.Audio.SampleRate)
		player, err := ctx.NewPlayer(&soundStream{system: system})
		if err != nil {
			log.Printf("nesulator: audio disabled: %v", err)
		} else {
			player.SetVolume(float64(cfg.Audio.Volume))
			player.Play()
		}
	}

	g := &game{
		system:  system,
		cfg:     cfg,
		frame:   ebiten.NewImage(nesWidth, nesHeight),
		rgba:    make([]byte, nesWidth*nesHeight*4),
		player1: resolveBindings(cfg.Input.Player1Keys),
		player2: resolveBindings(cfg.Input.Player2Keys),
	}

	ebiten.SetWindowTitle("nesulator")
	ebiten.SetWindowSize(nesWidth*2, nesHeight*2)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatalf("nesulator: %v", err)
	}
}
