//go:build !(darwin || freebsd || linux || netbsd || windows)

package native

import (
	"fmt"
	"runtime"
)

func openLibrary(path string) (uintptr, error) {
	return 0, fmt.Errorf("dynamic loading not supported on %s/%s", runtime.GOOS, runtime.GOARCH)
}

func closeLibrary(handle uintptr) error {
	return nil
}
