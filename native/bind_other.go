//go:build !(darwin || freebsd || linux || netbsd || windows)

package native

import "taglink/engine"

func bind(l *Library) error {
	return engine.ErrSymbolMissing
}
