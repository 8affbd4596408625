// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// The aip31068 is an HD44780 compatible I²C driver chip. It provides an I²C
// interface to an LCD. This is not a _backpack_ chip in the sense that it
// provides GPIO pins via an I²C interface. The I²C write commands go directly
// to the LCD display driver.
//
// Every instruction and every character is sent as its own two byte
// transaction: a control byte selecting the instruction or data register,
// followed by the value.
//
// Implements periph.io/x/conn/display/TextDisplay
//
// # Datasheet
//
// https://support.newhavendisplay.com/hc/en-us/article_attachments/4414498095511
package aip31068

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
)

const (
	// Control bytes. Bit 7 (Co) says another control byte follows, bit 6
	// (RS) selects the data register.
	ctrlCommand byte = 0x80
	ctrlData    byte = 0x40
	packageName      = "aip31068"
)

// Instruction set.
const (
	cmdClear          byte = 0x01
	cmdHome           byte = 0x02
	cmdEntryMode      byte = 0x04
	cmdDisplayControl byte = 0x08
	cmdShift          byte = 0x10
	cmdFunctionSet    byte = 0x20
	cmdSetDDRAM       byte = 0x80

	entryIncrement byte = 0x02
	entryShift     byte = 0x01

	displayOn   byte = 0x04
	cursorOn    byte = 0x02
	blinkOn     byte = 0x01
	shiftRight  byte = 0x04
	funcTwoLine byte = 0x08
)

const (
	powerOnDelay     = 80 * time.Millisecond
	functionSetDelay = 5 * time.Millisecond
	clearDelay       = 2 * time.Millisecond
)

var ErrNotImplemented = fmt.Errorf("%s: %w", packageName, display.ErrNotImplemented)

// Delayer blocks the caller for at least d. The controller needs fixed
// pauses during power on and after clear / home.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer is a Delayer backed by time.Sleep.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}

// Opts holds the configuration of the display.
type Opts struct {
	// Rows is 1, 2 or 4.
	Rows int
	// Cols is the number of visible characters per row, up to 40.
	Cols int
	// Charset decides what happens to text the character ROM can't display.
	Charset CharsetPolicy
	// Delay is used for the datasheet pauses. nil means time.Sleep.
	Delay Delayer
}

// DefaultOpts is a 16x2 display passing text to the controller unchanged.
var DefaultOpts = Opts{
	Rows:    2,
	Cols:    16,
	Charset: CharsetRaw,
}

// Dev is an AiP31068 controlled character LCD.
type Dev struct {
	rows    int
	cols    int
	charset CharsetPolicy
	delay   Delayer

	mu         sync.Mutex
	d          *i2c.Dev
	blink      bool
	on         bool
	cursor     bool
	autoScroll bool
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

// New creates an aip31068 based LCD and runs the power on sequence. The bus
// is borrowed, not owned: Halt doesn't close it.
//
// If opts is nil, DefaultOpts is used. Any transaction that isn't
// acknowledged aborts initialization and the error is returned; the caller
// has to start over with a new Dev.
func New(bus i2c.Bus, address uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	rows, cols := opts.Rows, opts.Cols
	if rows == 0 {
		rows = DefaultOpts.Rows
	}
	if cols == 0 {
		cols = DefaultOpts.Cols
	}
	if (rows != 1 && rows != 2 && rows != 4) || cols < 1 || cols > 40 || (rows == 4 && cols > 20) {
		return nil, fmt.Errorf("%s: unsupported geometry %dx%d", packageName, cols, rows)
	}
	delay := opts.Delay
	if delay == nil {
		delay = SleepDelayer{}
	}
	dev := &Dev{
		d:       &i2c.Dev{Bus: bus, Addr: address},
		rows:    rows,
		cols:    cols,
		charset: opts.Charset,
		delay:   delay,
	}
	if err := dev.init(); err != nil {
		return nil, wrap(err)
	}
	return dev, nil
}

// Perform the display initialization routine.
func (dev *Dev) init() error {
	dev.delay.Delay(powerOnDelay)

	fs := cmdFunctionSet
	if dev.rows > 1 {
		fs |= funcTwoLine
	}
	for i := range 3 {
		if err := dev.command(fs); err != nil {
			return err
		}
		if i < 2 {
			dev.delay.Delay(functionSetDelay)
		}
	}

	dev.on = true
	if err := dev.command(dev.controlValue()); err != nil {
		return err
	}
	if err := dev.clear(); err != nil {
		return err
	}
	return dev.command(dev.entryValue())
}

func (dev *Dev) command(value byte) error {
	return dev.d.Tx([]byte{ctrlCommand, value}, nil)
}

func (dev *Dev) controlValue() byte {
	val := cmdDisplayControl
	if dev.on {
		val |= displayOn
	}
	if dev.cursor {
		val |= cursorOn
	}
	if dev.blink {
		val |= blinkOn
	}
	return val
}

func (dev *Dev) entryValue() byte {
	val := cmdEntryMode | entryIncrement
	if dev.autoScroll {
		val |= entryShift
	}
	return val
}

func (dev *Dev) clear() error {
	err := dev.command(cmdClear)
	dev.delay.Delay(clearDelay)
	return err
}

// Return the DDRAM address of the first column of row (0 based).
func (dev *Dev) rowOffset(row int) byte {
	return [...]byte{0x00, 0x40, byte(dev.cols), 0x40 + byte(dev.cols)}[row]
}

// Enable/Disable auto scroll. When enabled, the display shifts instead of
// the cursor moving as characters are written.
func (dev *Dev) AutoScroll(enabled bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.autoScroll = enabled
	return wrap(dev.command(dev.entryValue()))
}

// Return the number of columns the display supports
func (dev *Dev) Cols() int {
	return dev.cols
}

// Clear the display and move the cursor home. This is a single instruction
// but the controller needs about 1.5ms to execute it, so overwriting with
// spaces is usually faster for small areas.
func (dev *Dev) Clear() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return wrap(dev.clear())
}

// Set the cursor mode. You can pass multiple arguments.
// Cursor(CursorOff, CursorUnderline)
func (dev *Dev) Cursor(modes ...display.CursorMode) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	cursor, blink := dev.cursor, dev.blink
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			cursor = false
			blink = false
		case display.CursorUnderline:
			cursor = true
		case display.CursorBlink, display.CursorBlock:
			// The blinking cursor is a full character block.
			blink = true
		default:
			return fmt.Errorf("%s: unexpected cursor: %d", packageName, mode)
		}
	}
	dev.cursor, dev.blink = cursor, blink
	return wrap(dev.command(dev.controlValue()))
}

// Turn the display on / off. The DDRAM content is kept while off.
func (dev *Dev) Display(on bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.on = on
	return wrap(dev.command(dev.controlValue()))
}

// Halt clears the display and turns it off. The bus is not closed.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	err := dev.clear()
	dev.on = false
	if err2 := dev.command(dev.controlValue()); err == nil {
		err = err2
	}
	return wrap(err)
}

// Move the cursor home (MinRow(),MinCol()) and undo any display shift.
func (dev *Dev) Home() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	err := dev.command(cmdHome)
	dev.delay.Delay(clearDelay)
	return wrap(err)
}

// Return the min column position.
func (dev *Dev) MinCol() int {
	return 1
}

// Return the min row position.
func (dev *Dev) MinRow() int {
	return 1
}

// Move the cursor forward or backward.
func (dev *Dev) Move(dir display.CursorDirection) error {
	val := cmdShift
	switch dir {
	case display.Backward:
	case display.Forward:
		val |= shiftRight
	default:
		return ErrNotImplemented
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return wrap(dev.command(val))
}

// Move the cursor to arbitrary position. row and col are 1 based.
func (dev *Dev) MoveTo(row, col int) error {
	if row < dev.MinRow() || row > dev.rows || col < dev.MinCol() || col > dev.cols {
		return fmt.Errorf("%s.MoveTo(%d,%d) value out of range", packageName, row, col)
	}
	return dev.SetCursor(row-1, col-1)
}

// SetCursor moves the cursor to the 0 based row and column with a single
// instruction.
func (dev *Dev) SetCursor(row, col int) error {
	if row < 0 || row >= dev.rows || col < 0 || col >= dev.cols {
		return fmt.Errorf("%s.SetCursor(%d,%d) value out of range", packageName, row, col)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return wrap(dev.command(cmdSetDDRAM | (dev.rowOffset(row) + byte(col))))
}

// Return the number of rows the display supports.
func (dev *Dev) Rows() int {
	return dev.rows
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s Rows: %d Cols: %d", packageName, dev.rows, dev.cols)
}

// Print writes text at the cursor position, one transaction per character.
// The text is not wrapped; positioning past the end of a row is up to the
// caller. It returns the number of characters acknowledged by the
// controller.
func (dev *Dev) Print(text string) (int, error) {
	codes, err := dev.charset.encode(text)
	if err != nil {
		return 0, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.writeData(codes)
}

func (dev *Dev) writeData(codes []byte) (int, error) {
	for i, c := range codes {
		if err := dev.d.Tx([]byte{ctrlData, c}, nil); err != nil {
			return i, wrap(err)
		}
	}
	return len(codes), nil
}

// Write a set of bytes to the display, honoring the charset policy. It
// implements io.Writer: on success the whole of p is reported written even
// if the policy dropped characters.
func (dev *Dev) Write(p []byte) (int, error) {
	n, err := dev.Print(string(p))
	if err == nil {
		n = len(p)
	}
	return n, err
}

// Write a string output to the display.
func (dev *Dev) WriteString(text string) (int, error) {
	return dev.Write([]byte(text))
}

var _ conn.Resource = &Dev{}
var _ display.TextDisplay = &Dev{}
