// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdemu emulates a Waveshare LCD1602 RGB module on an i2c.Bus.
//
// The Board decodes the AiP31068 and PCA9633 wire protocols into a model of
// the panel, so drivers can be exercised without hardware. The panel can be
// printed to a terminal using ANSI color codes or rendered to an image.
//
// Useful while the module is still in the mail.
package lcdemu

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GermanBionicSystems/lcd1602/aip31068"
	"github.com/GermanBionicSystems/lcd1602/pca9633"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrNACK is returned for transactions the emulated chips don't acknowledge.
var ErrNACK = errors.New("lcdemu: NACK")

const (
	ddramLine = 40
	maxSpeed  = 400 * physic.KiloHertz
)

// PCA9633 registers and their power on values.
const (
	regMode1  = 0x00
	regMode2  = 0x01
	regPWM0   = 0x02
	regGrpPWM = 0x06
	regGrpFrq = 0x07
	regLEDOut = 0x08
	numRegs   = 0x0d

	mode1Sleep  = 0x10
	mode2Blink  = 0x20
	mode2Invert = 0x10
)

// Opts configures the emulated module.
type Opts struct {
	LCDAddress uint16
	RGBAddress uint16
	// Cols is the number of visible columns.
	Cols int
	// Layout is how the RGB LEDs are wired to the PCA9633 outputs.
	Layout pca9633.Layout
}

// DefaultOpts matches the factory configuration of SKU 19537.
var DefaultOpts = Opts{
	LCDAddress: 0x3e,
	RGBAddress: 0x60,
	Cols:       16,
	Layout:     pca9633.LayoutBGR,
}

// Board is an emulated LCD1602 RGB module. It implements i2c.Bus.
type Board struct {
	opts Opts

	mu        sync.Mutex
	failAfter int
	count     int
	speed     physic.Frequency

	// AiP31068 state.
	ddram      [2][ddramLine]byte
	ac         byte
	cgram      bool
	twoLine    bool
	on         bool
	cursor     bool
	blink      bool
	increment  bool
	autoShift  bool
	shift      int
	lcdHistory []byte

	// PCA9633 registers.
	regs [numRegs]byte
}

// New returns a board in its power on state.
func New(opts *Opts) *Board {
	o := DefaultOpts
	if opts != nil {
		o = *opts
		if o.Cols == 0 {
			o.Cols = DefaultOpts.Cols
		}
		if o.Layout == (pca9633.Layout{}) {
			o.Layout = DefaultOpts.Layout
		}
	}
	b := &Board{opts: o}
	b.reset()
	return b
}

func (b *Board) reset() {
	for i := range b.ddram {
		for j := range b.ddram[i] {
			b.ddram[i][j] = ' '
		}
	}
	b.increment = true
	b.regs = [numRegs]byte{regMode1: 0x11, regMode2: 0x05, regGrpPWM: 0xff, 0x09: 0xe2, 0x0a: 0xe4, 0x0b: 0xe8, 0x0c: 0xe0}
}

func (b *Board) String() string {
	return "lcdemu"
}

// SetSpeed implements i2c.Bus. Both chips are fast mode parts.
func (b *Board) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > maxSpeed {
		return fmt.Errorf("lcdemu: invalid speed %s", f)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = f
	return nil
}

// FailAfter makes every transaction after the first n fail with ErrNACK,
// counted from power on. 0 disables failures.
func (b *Board) FailAfter(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAfter = n
}

// Count returns the number of transactions attempted, acknowledged or not.
func (b *Board) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Close implements i2c.BusCloser.
func (b *Board) Close() error {
	return nil
}

// Tx implements i2c.Bus.
func (b *Board) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	if b.failAfter > 0 && b.count > b.failAfter {
		return ErrNACK
	}
	switch addr {
	case b.opts.LCDAddress:
		return b.lcdTx(w, r)
	case b.opts.RGBAddress:
		return b.rgbTx(w, r)
	}
	return fmt.Errorf("%w: no device at %#x", ErrNACK, addr)
}

// lcdTx decodes control byte framed AiP31068 writes. A control byte with Co
// set is followed by a single byte; with Co clear, every remaining byte uses
// the same register.
func (b *Board) lcdTx(w, r []byte) error {
	if len(r) != 0 {
		// Busy flag is never set, the address counter follows.
		r[0] = b.ac
		for i := 1; i < len(r); i++ {
			r[i] = 0
		}
	}
	for i := 0; i < len(w); {
		ctrl := w[i]
		i++
		if i == len(w) {
			return fmt.Errorf("%w: dangling control byte %#x", ErrNACK, ctrl)
		}
		data := ctrl&0x40 != 0
		n := len(w) - i
		if ctrl&0x80 != 0 {
			n = 1
		}
		for _, v := range w[i : i+n] {
			if data {
				b.writeData(v)
			} else {
				b.command(v)
			}
		}
		i += n
	}
	return nil
}

func (b *Board) command(c byte) {
	b.lcdHistory = append(b.lcdHistory, c)
	switch {
	case c&0x80 != 0:
		b.cgram = false
		addr := c & 0x7f
		if addr >= 0x40 {
			addr = 0x40 + (addr-0x40)%ddramLine
		} else {
			addr %= ddramLine
		}
		b.ac = addr
	case c&0x40 != 0:
		// Glyphs aren't emulated, data goes nowhere until the next DDRAM
		// address.
		b.cgram = true
	case c&0x20 != 0:
		b.twoLine = c&0x08 != 0
	case c&0x10 != 0:
		right := c&0x04 != 0
		if c&0x08 != 0 {
			b.shiftDisplay(right)
		} else {
			b.moveCursor(right)
		}
	case c&0x08 != 0:
		b.on = c&0x04 != 0
		b.cursor = c&0x02 != 0
		b.blink = c&0x01 != 0
	case c&0x04 != 0:
		b.increment = c&0x02 != 0
		b.autoShift = c&0x01 != 0
	case c&0x02 != 0:
		b.ac = 0
		b.shift = 0
		b.cgram = false
	case c&0x01 != 0:
		for i := range b.ddram {
			for j := range b.ddram[i] {
				b.ddram[i][j] = ' '
			}
		}
		b.ac = 0
		b.shift = 0
		b.increment = true
		b.cgram = false
	}
}

func (b *Board) writeData(v byte) {
	if b.cgram {
		return
	}
	line, col := b.position()
	b.ddram[line][col] = v
	b.moveCursor(b.increment)
	if b.autoShift {
		// The display moves opposite to the cursor so the cursor stays put.
		b.shiftDisplay(!b.increment)
	}
}

func (b *Board) position() (int, int) {
	if b.twoLine && b.ac >= 0x40 {
		return 1, int(b.ac - 0x40)
	}
	return 0, int(b.ac % 0x40)
}

// moveCursor advances the address counter, wrapping from the end of the
// first line to the second and from the second back to the first.
func (b *Board) moveCursor(right bool) {
	line, col := b.position()
	if right {
		col++
		if col == ddramLine {
			col = 0
			if b.twoLine {
				line ^= 1
			}
		}
	} else {
		col--
		if col < 0 {
			col = ddramLine - 1
			if b.twoLine {
				line ^= 1
			}
		}
	}
	b.ac = byte(line*0x40 + col)
}

func (b *Board) shiftDisplay(right bool) {
	if right {
		b.shift = (b.shift + ddramLine - 1) % ddramLine
	} else {
		b.shift = (b.shift + 1) % ddramLine
	}
}

// rgbTx handles PCA9633 register access. The control byte carries the
// register pointer and the auto-increment flags.
func (b *Board) rgbTx(w, r []byte) error {
	if len(w) == 0 {
		return fmt.Errorf("%w: missing control byte", ErrNACK)
	}
	ptr := w[0] & 0x0f
	ai := w[0] >> 5
	if ptr >= numRegs {
		return fmt.Errorf("%w: register %#x", ErrNACK, ptr)
	}
	for _, v := range w[1:] {
		b.regs[ptr] = v
		ptr = nextRegister(ptr, ai)
	}
	for i := range r {
		r[i] = b.regs[ptr]
		ptr = nextRegister(ptr, ai)
	}
	return nil
}

func nextRegister(ptr, ai byte) byte {
	switch ai {
	case 0b100:
		return (ptr + 1) % numRegs
	case 0b101:
		return regPWM0 + (ptr+1-regPWM0)%4
	case 0b110:
		if ptr == regGrpPWM {
			return regGrpFrq
		}
		return regGrpPWM
	case 0b111:
		if ptr >= regGrpFrq {
			return regPWM0
		}
		return ptr + 1
	}
	return ptr
}

// Lines returns the visible text of each row, decoded from the character
// ROM. Codes without a Unicode counterpart show as '?'. A display turned off
// shows blank rows.
func (b *Board) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := 1
	if b.twoLine {
		rows = 2
	}
	lines := make([]string, rows)
	for row := range lines {
		var sb strings.Builder
		for col := range b.opts.Cols {
			if !b.on {
				sb.WriteByte(' ')
				continue
			}
			r := aip31068.ROMRune(b.ddram[row][(col+b.shift)%ddramLine])
			if r == utf8.RuneError {
				r = '?'
			}
			sb.WriteRune(r)
		}
		lines[row] = sb.String()
	}
	return lines
}

// DDRAM returns the raw display data of row, all 40 cells.
func (b *Board) DDRAM(row int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, ddramLine)
	copy(out, b.ddram[row][:])
	return out
}

// Cursor returns the 0 based cursor row and column.
func (b *Board) Cursor() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position()
}

// DisplayOn reports the display, cursor and blink flags.
func (b *Board) DisplayOn() (on, cursor, blink bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on, b.cursor, b.blink
}

// Commands returns every instruction byte the LCD received, in order.
func (b *Board) Commands() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.lcdHistory...)
}

// Register returns the current value of a PCA9633 register.
func (b *Board) Register(reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[reg%numRegs]
}

var _ i2c.BusCloser = &Board{}
