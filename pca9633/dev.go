// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// The PCA9633 is a four-channel LED PWM controller. Additionally, it provides
// features for dimming and blink. Here it drives the RGB backlight of a
// character LCD: three of the four channels carry red, green and blue.
//
// # Datasheet
//
// https://www.nxp.com/docs/en/data-sheet/PCA9633.pdf
package pca9633

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
)

type LEDStructure byte

const (
	// LEDs are connected in OpenDrain format
	STRUCT_OPENDRAIN LEDStructure = iota
	// LEDs are connected in TotemPole format.
	STRUCT_TOTEMPOLE
)

type LEDMode byte

const (
	MODE_FULL_OFF LEDMode = iota
	MODE_FULL_ON
	// The brightness of the LED is controlled by the PWM setting.
	MODE_PWM
	// The brightness of the LED is controlled by the PWM setting AND the group
	// PWM/blinking options.
	MODE_PWM_PLUS_GROUP
)

const (
	// Register offsets from the datasheet
	_DEV_MODE1 byte = iota
	_DEV_MODE2
	_PWM0
	_PWM1
	_PWM2
	_PWM3
	_GRPPWM
	_GRPFREQ
	_LED_MODE
)

const (
	// Set in the control byte, the register pointer rolls over all
	// registers after each byte.
	_AUTO_INCREMENT byte = 0x80

	_DEV_MODE_BLINK  byte = 0x20
	_DEV_MODE_INVERT byte = 0x10
	_DEV_MODE_TOTEM  byte = 0x04
	// Oscillator on, no sub addresses, no all call.
	_DEV_MODE1_DEFAULT byte = 0x00
	// Every output driven by its own PWM register and the group control.
	_LED_MODE_DEFAULT byte = 0xff
)

// Layout tells which PWM channel (0-3) is wired to the red, green and blue
// LED, in that order.
type Layout [3]byte

var (
	// LayoutRGB has red on PWM0, green on PWM1 and blue on PWM2.
	LayoutRGB = Layout{0, 1, 2}
	// LayoutBGR has blue on PWM0, green on PWM1 and red on PWM2.
	LayoutBGR = Layout{2, 1, 0}
)

func (l Layout) valid() bool {
	return l[0] < 4 && l[1] < 4 && l[2] < 4 && l[0] != l[1] && l[0] != l[2] && l[1] != l[2]
}

// Opts holds the configuration of the controller.
type Opts struct {
	// Structure is how the LEDs are connected to the outputs.
	Structure LEDStructure
	// Layout maps colors to channels. The zero value means LayoutRGB.
	Layout Layout
	// Invert the meaning of the PWM values.
	Invert bool
}

// Dev represents a PCA9633 LED PWM Controller.
type Dev struct {
	d      *i2c.Dev
	layout Layout
	modes  []LEDMode
	pwm    [4]byte
	// bit settings for device mode register 2
	devMode2 byte
}

// New returns an initialized PCA9633 device ready for use. If opts is nil,
// open drain outputs with LayoutRGB are used.
func New(bus i2c.Bus, address uint16, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	layout := opts.Layout
	if layout == (Layout{}) {
		layout = LayoutRGB
	}
	if !layout.valid() {
		return nil, fmt.Errorf("pca9633: invalid channel layout %v", layout)
	}
	dev := &Dev{d: &i2c.Dev{Bus: bus, Addr: address},
		layout:   layout,
		modes:    make([]LEDMode, 4),
		devMode2: _DEV_MODE_BLINK}

	if opts.Structure == STRUCT_TOTEMPOLE {
		dev.devMode2 |= _DEV_MODE_TOTEM
	}
	if opts.Invert {
		dev.devMode2 |= _DEV_MODE_INVERT
	}
	if err := dev.init(); err != nil {
		return nil, err
	}
	return dev, nil
}

func (dev *Dev) init() error {
	// Writing 0 to the SLEEP bit turns on the PWM oscillator.
	err := dev.d.Tx([]byte{_DEV_MODE1, _DEV_MODE1_DEFAULT}, nil)
	if err == nil {
		err = dev.d.Tx([]byte{_LED_MODE, _LED_MODE_DEFAULT}, nil)
	}
	if err == nil {
		for i := range dev.modes {
			dev.modes[i] = MODE_PWM_PLUS_GROUP
		}
		err = dev.d.Tx([]byte{_DEV_MODE2, dev.devMode2}, nil)
	}
	return wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("pca9633: %w", err)
}

// Halt stops all LED display by setting them all to MODE_FULL_OFF. Implements
// conn.Resource
func (dev *Dev) Halt() error {
	return dev.SetModes(MODE_FULL_OFF, MODE_FULL_OFF, MODE_FULL_OFF, MODE_FULL_OFF)
}

// SetRGB writes the three color duty cycles in a single auto-incremented
// transaction starting at PWM0. Values are linear, no gamma correction is
// applied. Channels not in the layout keep their last value.
//
// Color channels left full on or full off by Out or Halt are switched back
// to PWM control after the burst, so the values take effect.
func (dev *Dev) SetRGB(red, green, blue byte) error {
	pwm := dev.pwm
	pwm[dev.layout[0]] = red
	pwm[dev.layout[1]] = green
	pwm[dev.layout[2]] = blue
	last := max(dev.layout[0], dev.layout[1], dev.layout[2])
	w := make([]byte, 0, 5)
	w = append(w, _AUTO_INCREMENT|_PWM0)
	w = append(w, pwm[:last+1]...)
	if err := dev.d.Tx(w, nil); err != nil {
		return wrap(err)
	}
	dev.pwm = pwm

	modes := make([]LEDMode, len(dev.modes))
	copy(modes, dev.modes)
	for _, ch := range dev.layout {
		if modes[ch] != MODE_PWM && modes[ch] != MODE_PWM_PLUS_GROUP {
			modes[ch] = MODE_PWM_PLUS_GROUP
		}
	}
	return dev.SetModes(modes...)
}

// Set the output intensity for LEDs. If intensity is 0, the LED is set to full
// off. If intensity==255, the LED is set to full on, otherwise the LED is PWMd
// to the desired intensity.
func (dev *Dev) Out(intensities ...display.Intensity) error {
	if len(intensities) > len(dev.modes) {
		return fmt.Errorf("pca9633: %d intensities for %d channels", len(intensities), len(dev.modes))
	}
	newModes := make([]LEDMode, len(dev.modes))
	copy(newModes, dev.modes)
	for ix, intensity := range intensities {
		if intensity <= 0 {
			newModes[ix] = MODE_FULL_OFF
		} else if intensity >= 0xff {
			newModes[ix] = MODE_FULL_ON
		} else {
			if dev.modes[ix] != MODE_PWM && dev.modes[ix] != MODE_PWM_PLUS_GROUP {
				newModes[ix] = MODE_PWM
			}
			err := dev.d.Tx([]byte{_PWM0 + byte(ix), byte(intensity)}, nil)
			if err != nil {
				return wrap(err)
			}
			dev.pwm[ix] = byte(intensity)
		}
	}
	return dev.SetModes(newModes...)
}

// SetGroupPWMBlink sets the group level PWM value, and optionally, a blink
// duration. Blink duration can range from 41,666 uS to 10.625 S. If 0, blink
// is disabled.
//
// Refer to the datasheet on this functionality. If the mode is not blink,
// then it's group PWM, but group PWM is only applied if the individual led
// mode is MODE_PWM_PLUS_GROUP
func (dev *Dev) SetGroupPWMBlink(intensity display.Intensity, blinkDuration time.Duration) error {
	periodIncrement := 41_666 * time.Microsecond
	newDevMode := dev.devMode2
	if blinkDuration >= periodIncrement {
		// GRPFREQ counts periods minus one.
		cnt := int(blinkDuration/periodIncrement) - 1
		if cnt > 0xff {
			cnt = 0xff
		}
		err := dev.d.Tx([]byte{_GRPFREQ, byte(cnt)}, nil)
		if err != nil {
			return wrap(err)
		}
		newDevMode |= _DEV_MODE_BLINK
	} else {
		newDevMode &^= _DEV_MODE_BLINK
	}
	if newDevMode != dev.devMode2 {
		err := dev.d.Tx([]byte{_DEV_MODE2, newDevMode}, nil)
		if err != nil {
			return wrap(err)
		}
		dev.devMode2 = newDevMode
	}
	err := dev.d.Tx([]byte{_GRPPWM, clamp(intensity)}, nil)
	return wrap(err)
}

// SetInvert allows you to easily invert the meaning of the PWM values. This
// is useful if you're driving LEDs with a transistor or other device that
// inverts the output.
func (dev *Dev) SetInvert(invert bool) error {
	mode := dev.devMode2 &^ _DEV_MODE_INVERT
	if invert {
		mode |= _DEV_MODE_INVERT
	}
	err := dev.d.Tx([]byte{_DEV_MODE2, mode}, nil)
	if err == nil {
		dev.devMode2 = mode
	}
	return wrap(err)
}

// SetModes sets the output mode of LEDs. The value for modes should be
// one of the LEDMode constants.
func (dev *Dev) SetModes(modes ...LEDMode) error {
	if len(modes) > len(dev.modes) {
		return fmt.Errorf("pca9633: %d modes for %d channels", len(modes), len(dev.modes))
	}
	var changed bool
	for i := range modes {
		changed = changed || (modes[i] != dev.modes[i])
	}
	if !changed {
		return nil
	}
	next := make([]LEDMode, len(dev.modes))
	copy(next, dev.modes)
	copy(next, modes)
	var mode byte
	for i, m := range next {
		mode |= byte(m&0x03) << (i * 2)
	}
	err := dev.d.Tx([]byte{_LED_MODE, mode}, nil)
	if err == nil {
		dev.modes = next
	}
	return wrap(err)
}

func (dev *Dev) String() string {
	return fmt.Sprintf("PCA9633::%#v", dev.d)
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
