// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcd1602 is a container for the drivers of I²C character LCD
// modules with an RGB backlight.
//
// The [waveshare1602] package drives a complete module. [aip31068] and
// [pca9633] drive the LCD controller and the backlight LED controller on
// their own. [lcdemu] emulates the module on an i2c.Bus for testing.
package lcd1602
