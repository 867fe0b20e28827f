// Package backend opens the tag engine selected by name.
package backend

import (
	"fmt"
	"strings"

	"taglink/engine"
	"taglink/logging"
	"taglink/native"
	"taglink/sim"
	"taglink/status"
)

// Engine kinds.
const (
	Native = "native"
	Sim    = "sim"
)

// Kinds lists the accepted engine names.
var Kinds = []string{Native, Sim}

// Oldest native library that exports the string accessors and the
// integer attribute calls.
const (
	MinMajor int32 = 2
	MinMinor int32 = 2
	MinPatch int32 = 0
)

// debugSink forwards engine log output to the debug log under component.
func debugSink(component string) engine.Logger {
	return func(handle, level int32, msg string) {
		logging.DebugLog(component, "tag %d level %d: %s", handle, level, strings.TrimRight(msg, "\r\n"))
	}
}

// checkVersion returns an ErrVersion error unless eng is new enough to
// back a Tag.
func checkVersion(eng engine.Engine) error {
	return engine.RequireVersion(eng, MinMajor, MinMinor, MinPatch)
}

// Open returns the engine for kind and a function that shuts it down.
// library is the native library path, empty for the default search.
// A debug level above zero is passed on to the engine.
func Open(kind, library string, debug int32) (engine.Engine, func() error, error) {
	var eng engine.Engine
	var closeFn func() error

	switch strings.ToLower(kind) {
	case Native, "":
		lib, err := native.Load(library)
		if err != nil {
			return nil, nil, err
		}
		if err := checkVersion(lib); err != nil {
			lib.Close()
			return nil, nil, fmt.Errorf("%s: %w", lib.Path(), err)
		}
		logging.DebugLog("engine", "native library %s", lib.Path())
		if rc := status.Status(lib.RegisterLogger(debugSink(Native))); !rc.IsOK() {
			logging.DebugLog("engine", "native logger not registered: %s", rc)
		}
		eng, closeFn = lib, lib.Close
	case Sim:
		s := sim.New()
		eng = s
		closeFn = func() error {
			s.Shutdown()
			return nil
		}
	default:
		return nil, nil, fmt.Errorf("%w %q (want %s)", engine.ErrUnknownKind, kind, strings.Join(Kinds, " or "))
	}

	if debug > 0 {
		eng.SetDebugLevel(debug)
	}
	return eng, closeFn, nil
}
