//go:build linux

package trigger

import (
	"errors"
	"fmt"

	"github.com/holoplot/go-evdev"
)

// inputDevice adapts an evdev device to keyDevice
type inputDevice struct {
	path string
	dev  *evdev.InputDevice
}

func (d *inputDevice) Path() string { return d.path }

func (d *inputDevice) ReadKey() (uint16, int32, error) {
	for {
		ev, err := d.dev.ReadOne()
		if err != nil {
			return 0, 0, err
		}
		if ev.Type == evdev.EV_KEY {
			return uint16(ev.Code), ev.Value, nil
		}
	}
}

func (d *inputDevice) Close() error { return d.dev.Close() }

// openEvdevDevices opens every input device able to emit keycode.
// Devices that cannot be opened are skipped.
func openEvdevDevices(keycode uint16) ([]keyDevice, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var (
		devices []keyDevice
		errs    []error
	)
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !hasKey(dev, keycode) {
			_ = dev.Close()
			continue
		}
		devices = append(devices, &inputDevice{path: p.Path, dev: dev})
	}

	if len(devices) == 0 {
		return nil, errors.Join(append([]error{ErrNoKeyboard}, errs...)...)
	}
	return devices, nil
}

func hasKey(dev *evdev.InputDevice, keycode uint16) bool {
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		if uint16(code) == keycode {
			return true
		}
	}
	return false
}
