//go:build !linux

package trigger

func openEvdevDevices(keycode uint16) ([]keyDevice, error) {
	return nil, ErrEvdevUnsupported
}
