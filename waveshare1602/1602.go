// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// The Waveshare 1602 LCD is a 2 line by 16 column LCD display. The I²C
// variants use the [aip31068] I²C LCD Driver chip, whose command set is
// compatible with the HD44780:
//
//   - LCD1602 I²C Module, White color w/ Blue Background, 16x2 characters, 3.3V/5V
//   - LCD1602 I²C Module, Options for 3 Colors 3.3v/5v Backlight Adjustable
//
// The tri-color version has purchase options to select a backlight color and
// uses an SN3193 to dim the backlight.
//
//   - LCD1602 RGB Module, 16x2 Characters LCD, RGB Backlight, 3.3V/5V, I²C Bus
//
// This display uses the AiP31068 I²C LCD Driver w/ a PCA9633 RGB LED PWM
// controller. Both chips sit on the same bus; Dev drives them together.
package waveshare1602

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/GermanBionicSystems/lcd1602/aip31068"
	"github.com/GermanBionicSystems/lcd1602/pca9633"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
)

type Variant string

const (
	// SKU 19537 - RGB Backlight
	LCD1602RGBBacklight Variant = "LCD1602RGBBacklight"
	// SKU 23991 - I²C w/ Monochrome Backlight
	LCD1602MonoBacklight Variant = "LCD1602MonoBacklight"
	// Not Implemented. SKU 30494, 30495, and 30496. Uses an SN3193 for
	// controlling the backlight.
	LCD1602DimmableMonoBacklight Variant = "LCD1602DimmableMonoBacklight"

	LCDAddress uint16 = 0x3e
	RGBAddress uint16 = 0x60
)

var ErrNotImplemented = fmt.Errorf("waveshare1602: %w", display.ErrNotImplemented)

// Opts holds the board configuration. Zero fields take the value from
// DefaultOpts, so address-strapped boards only need to set the address.
type Opts struct {
	Variant    Variant
	LCDAddress uint16
	RGBAddress uint16
	Rows       int
	Cols       int
	// Charset is the policy for text the LCD ROM can't display.
	Charset aip31068.CharsetPolicy
	// Delay is used for the controller power on pauses. nil means time.Sleep.
	Delay aip31068.Delayer
	// Layout is how the RGB LEDs are wired to the PCA9633 outputs.
	Layout pca9633.Layout
}

// DefaultOpts describes SKU 19537 at its factory addresses.
var DefaultOpts = Opts{
	Variant:    LCD1602RGBBacklight,
	LCDAddress: LCDAddress,
	RGBAddress: RGBAddress,
	Rows:       2,
	Cols:       16,
	Charset:    aip31068.CharsetRaw,
	Layout:     pca9633.LayoutBGR,
}

// Dev is a Waveshare LCD1602 module. After New returns it is a pass-through
// to the two chips.
type Dev struct {
	variant Variant
	lcd     *aip31068.Dev
	rgb     *pca9633.Dev
}

// New initializes the LCD controller, then the backlight controller, and
// turns the backlight on white. The bus is borrowed for the life of Dev.
//
// The first error aborts the sequence; no transaction is sent to the
// backlight if the LCD failed.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o.Charset = opts.Charset
		o.Delay = opts.Delay
		if opts.Variant != "" {
			o.Variant = opts.Variant
		}
		if opts.LCDAddress != 0 {
			o.LCDAddress = opts.LCDAddress
		}
		if opts.RGBAddress != 0 {
			o.RGBAddress = opts.RGBAddress
		}
		if opts.Rows != 0 {
			o.Rows = opts.Rows
		}
		if opts.Cols != 0 {
			o.Cols = opts.Cols
		}
		if opts.Layout != (pca9633.Layout{}) {
			o.Layout = opts.Layout
		}
	}

	switch o.Variant {
	case LCD1602RGBBacklight, LCD1602MonoBacklight:
	case LCD1602DimmableMonoBacklight:
		return nil, ErrNotImplemented
	default:
		return nil, fmt.Errorf("waveshare1602: unknown variant %q", o.Variant)
	}

	lcd, err := aip31068.New(bus, o.LCDAddress, &aip31068.Opts{
		Rows:    o.Rows,
		Cols:    o.Cols,
		Charset: o.Charset,
		Delay:   o.Delay,
	})
	if err != nil {
		return nil, err
	}
	dev := &Dev{variant: o.Variant, lcd: lcd}
	if o.Variant != LCD1602RGBBacklight {
		return dev, nil
	}
	dev.rgb, err = pca9633.New(bus, o.RGBAddress, &pca9633.Opts{Layout: o.Layout})
	if err != nil {
		return nil, err
	}
	if err = dev.rgb.SetRGB(0xff, 0xff, 0xff); err != nil {
		return nil, err
	}
	return dev, nil
}

// Display returns the LCD controller for the rest of the text API (cursor
// modes, auto scroll, ...).
func (dev *Dev) Display() *aip31068.Dev {
	return dev.lcd
}

// Print writes text at the cursor position. See aip31068.Dev.Print.
func (dev *Dev) Print(text string) (int, error) {
	return dev.lcd.Print(text)
}

// Clear the display and move the cursor home.
func (dev *Dev) Clear() error {
	return dev.lcd.Clear()
}

// SetCursor moves the cursor to the 0 based row and column.
func (dev *Dev) SetCursor(row, col int) error {
	return dev.lcd.SetCursor(row, col)
}

// SetRGB sets the backlight color. The values are linear duty cycles.
//
// It is a single burst write starting at PWM0. With the default LayoutBGR,
// which is how the board is wired, the bytes on the bus are blue, green,
// red.
func (dev *Dev) SetRGB(red, green, blue byte) error {
	if dev.rgb == nil {
		return ErrNotImplemented
	}
	return dev.rgb.SetRGB(red, green, blue)
}

// SetColor sets the backlight to c. Alpha is ignored.
func (dev *Dev) SetColor(c color.Color) error {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return dev.SetRGB(n.R, n.G, n.B)
}

// Set the backlight intensity. On the RGB variant this is a shade of white.
func (dev *Dev) Backlight(intensity display.Intensity) error {
	if dev.rgb == nil {
		return ErrNotImplemented
	}
	v := clamp(intensity)
	return dev.rgb.SetRGB(v, v, v)
}

// For units that have an RGB Backlight, set the backlight color/intensity.
// This unit does not persist settings in EEPROM, so you can call it as often
// as desired. The range of the values is 0-255.
func (dev *Dev) RGBBacklight(red, green, blue display.Intensity) error {
	return dev.SetRGB(clamp(red), clamp(green), clamp(blue))
}

// Halt clears and turns off the display, then the backlight. The bus is not
// closed.
func (dev *Dev) Halt() error {
	err := dev.lcd.Halt()
	if dev.rgb != nil {
		err = errors.Join(err, dev.rgb.Halt())
	}
	return err
}

func (dev *Dev) String() string {
	return fmt.Sprintf("waveshare1602 %s {%s}", dev.variant, dev.lcd)
}

func clamp(i display.Intensity) byte {
	if i < 0 {
		return 0
	}
	if i > 0xff {
		return 0xff
	}
	return byte(i)
}

var _ conn.Resource = &Dev{}
var _ display.DisplayBacklight = &Dev{}
var _ display.DisplayRGBBacklight = &Dev{}
