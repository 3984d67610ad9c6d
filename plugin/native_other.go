//go:build !darwin && !linux && !freebsd && !windows

package plugin

func loadModule(path string) (module, error) {
	return nil, ErrUnsupported
}
