//go:build !unix

package main

import "os"

// redirectStderr is a no-op where dup2 is not available.
func redirectStderr(f *os.File) {}
