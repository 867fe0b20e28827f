// tag_rw reads or writes a single tag.
//
//	tag_rw -t sint32 -p 'protocol=ab_eip&gateway=10.1.2.3&path=1,0&cpu=LGX&elem_size=4&elem_count=10&name=TestDINTArray'
//	tag_rw -t real32 -p 'protocol=ab_eip&...&name=Setpoint' -w 3.5
//
// Without -w every element of the tag is printed. With -w the value is
// written to the first element.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"taglink/backend"
	"taglink/engine"
	"taglink/logging"
	"taglink/status"
	"taglink/tag"
)

// Version is set at build time via -ldflags
var Version = "dev"

const dataTimeout = 5000 * time.Millisecond

// Creation is polled every pollInterval for up to createWait.
var (
	pollInterval = time.Second
	createWait   = 5 * time.Second
)

var types = map[string]tag.Kind{
	"uint8":  tag.Uint8,
	"sint8":  tag.Int8,
	"uint16": tag.Uint16,
	"sint16": tag.Int16,
	"uint32": tag.Uint32,
	"sint32": tag.Int32,
	"real32": tag.Float32,
}

const typeHelp = `Type is one of "uint8", "sint8", "uint16", "sint16", "uint32", "sint32", or "real32".
The type is the type of the data to be read/written to the named tag. The
types starting with "u" are unsigned and with "s" are signed.
For floating point, use "real32".`

// opener returns the engine to use and a function that releases it.
type opener func(kind, library string, debug int32) (engine.Engine, func() error, error)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, backend.Open))
}

func run(args []string, out io.Writer, open opener) int {
	fs := flag.NewFlagSet("tag_rw", flag.ContinueOnError)
	fs.SetOutput(out)

	var typeName, path, value, engineKind, library, logDebug string
	var debugLevel int
	var showVersion bool
	fs.StringVar(&typeName, "t", "", typeHelp)
	fs.StringVar(&typeName, "type", "", "Same as -t")
	fs.StringVar(&path, "p", "", "The path to the device containing the named data.")
	fs.StringVar(&path, "path", "", "Same as -p")
	fs.StringVar(&value, "w", "", "The value to write. Must be formatted appropriately for the data type.")
	fs.StringVar(&value, "val", "", "Same as -w")
	fs.StringVar(&engineKind, "engine", backend.Native, "Tag engine: native or sim")
	fs.StringVar(&library, "lib", "", "Path to the native tag library")
	fs.IntVar(&debugLevel, "debug", 0, "Engine debug level (0-5)")
	fs.StringVar(&logDebug, "log-debug", "", "Write debug.log, optionally filtered (e.g. tag,native)")
	fs.BoolVar(&showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintf(out, "tag_rw %s\n", Version)
		return 0
	}

	isWrite := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "w" || f.Name == "val" {
			isWrite = true
		}
	})

	if typeName == "" || path == "" {
		fmt.Fprintln(out, "ERROR: the -t/--type and -p/--path arguments are required")
		fs.Usage()
		return 2
	}

	kind, ok := types[strings.ToLower(typeName)]
	if !ok {
		fmt.Fprintln(out, "ERROR: Invalid value for type")
		fs.Usage()
		return -1
	}

	var writeValue any
	var wrote string
	if isWrite {
		v, display, err := parseWriteValue(kind, value)
		if err != nil {
			fmt.Fprintf(out, "ERROR: cannot convert incoming write value %s\n", value)
			return -1
		}
		writeValue, wrote = v, display
	}

	if logDebug != "" {
		if dl, err := logging.NewDebugLogger("debug.log"); err == nil {
			if logDebug != "all" {
				dl.SetFilter(logDebug)
			}
			logging.SetGlobalDebugLogger(dl)
			defer dl.Close()
		}
	}

	eng, closeEngine, err := open(engineKind, library, int32(debugLevel))
	if err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return -1
	}
	defer closeEngine()

	t, err := tag.Create(eng, strings.ToLower(path), 0)
	if err != nil {
		fmt.Fprintln(out, "ERROR: error creating tag!")
		return -1
	}

	end := time.Now().Add(createWait)
	rc := t.Status()
	for time.Now().Before(end) && rc.IsPending() {
		time.Sleep(pollInterval)
		rc = t.Status()
	}

	rc = t.Status()
	if rc != status.OK {
		fmt.Fprintf(out, "ERROR: tag creation error, tag status: %d\n", rc)
		t.Destroy()
		return -1
	}

	if !isWrite {
		rc = t.Read(dataTimeout)
		if rc != status.OK {
			fmt.Fprintf(out, "ERROR: tag read error, tag status: %d\n", rc)
			t.Destroy()
			return -1
		}
		printElements(out, t, kind)
	} else if err := t.SetValue(kind, 0, writeValue); err != nil {
		// A value that does not fit the buffer is reported like a failed
		// write and nothing is sent.
		fmt.Fprintf(out, "ERROR: error setting the data: %v\n", err)
	} else {
		rc = t.Write(dataTimeout)
		if rc != status.OK {
			// Reported but not fatal: the tag is still destroyed and the
			// exit status stays 0.
			fmt.Fprintf(out, "ERROR: error writing the data: %d (%s)!\n", rc, rc)
		} else {
			fmt.Fprintf(out, "Wrote %s\n", wrote)
		}
	}

	t.Destroy()
	fmt.Fprintln(out, "Done")
	return 0
}

// printElements prints every element of the buffer, one per line.
func printElements(out io.Writer, t *tag.Tag, kind tag.Kind) {
	size, err := t.Size()
	if err != nil {
		return
	}
	width := kind.Width()
	for i, index := 0, 0; index+width <= size; i, index = i+1, index+width {
		v, err := t.GetValue(kind, index)
		if err != nil {
			return
		}
		switch {
		case kind.Float():
			fmt.Fprintf(out, "data[%d]=%f\n", i, v)
		default:
			fmt.Fprintf(out, "data[%d]=%d (%X)\n", i, v, v)
		}
	}
}

// parseWriteValue converts the -w argument. Floats are accepted only for
// real32 and integers must fit the tag type. display is how the value is
// echoed after a successful write.
func parseWriteValue(kind tag.Kind, s string) (any, string, error) {
	s = strings.TrimSpace(s)
	if kind.Float() {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, "", err
		}
		v, err := tag.Convert(kind, f)
		return v, formatFloat(f), err
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, "", err
	}
	v, err := tag.Convert(kind, i)
	return v, strconv.FormatInt(i, 10), err
}

// formatFloat prints a float the short way but always with a decimal
// point, so 3 prints as 3.0.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
