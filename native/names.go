package native

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvLibrary names the environment variable that overrides library lookup.
const EnvLibrary = "TAGLINK_LIBPLCTAG"

// LibraryFile returns the platform file name of the native library.
func LibraryFile(goos string) string {
	switch goos {
	case "windows":
		return "plctag.dll"
	case "darwin":
		return "libplctag.dylib"
	default:
		return "libplctag.so"
	}
}

// platformDir returns the per-platform folder the released binaries ship in.
func platformDir(goos, goarch string) string {
	switch goos {
	case "windows":
		if goarch == "amd64" || goarch == "arm64" {
			return "windows_x64"
		}
		return "windows_x86"
	case "darwin":
		if goarch == "arm64" {
			return "macos_arm64"
		}
		return "macos_x64"
	case "linux", "android":
		switch goarch {
		case "arm":
			return "armeabi-v7a"
		case "arm64":
			return "arm64-v8a"
		case "amd64":
			return "ubuntu_x64"
		case "386":
			return "ubuntu_x86"
		}
	}
	return ""
}

// LibraryNames returns the relative names tried for a platform, most
// specific first. The bare file name comes last so the system loader
// search path is used as a fallback.
func LibraryNames(goos, goarch string) []string {
	file := LibraryFile(goos)
	var names []string
	if dir := platformDir(goos, goarch); dir != "" {
		names = append(names, filepath.Join(dir, file))
	}
	return append(names, file)
}

// Candidates returns the ordered list of paths Load will try.
// An explicit path is tried alone. Otherwise the environment override,
// the platform names next to the executable, then the platform names as
// given (relative to the working directory or the loader search path).
func Candidates(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}

	var out []string
	if env := os.Getenv(EnvLibrary); env != "" {
		out = append(out, env)
	}

	names := LibraryNames(runtime.GOOS, runtime.GOARCH)
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		for _, n := range names {
			out = append(out, filepath.Join(dir, n))
		}
	}
	return append(out, names...)
}
