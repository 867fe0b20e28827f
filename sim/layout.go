package sim

import (
	"encoding/binary"
	"strconv"
	"strings"

	"taglink/attr"
	"taglink/status"
)

// Logix STRING: a 4 byte count, 82 characters and 2 bytes of padding.
const (
	logixStringCount    = 4
	logixStringCapacity = 82
	logixStringTotal    = 88
)

// layout describes how a protocol places values in the tag buffer.
type layout struct {
	order binary.ByteOrder
	// counted strings carry a 4 byte length word ahead of a fixed
	// capacity character area; others are zero terminated.
	counted bool
}

var protocols = map[string]layout{
	"ab_eip":     {order: binary.LittleEndian, counted: true},
	"ab-eip":     {order: binary.LittleEndian, counted: true},
	"modbus_tcp": {order: binary.BigEndian},
	"modbus-tcp": {order: binary.BigEndian},
	"system":     {order: binary.LittleEndian},
}

// elemTypes maps elem_type names to their element size in bytes.
var elemTypes = map[string]int{
	"bool":   1,
	"sint":   1,
	"usint":  1,
	"byte":   1,
	"int":    2,
	"uint":   2,
	"word":   2,
	"dint":   4,
	"udint":  4,
	"dword":  4,
	"real":   4,
	"lint":   8,
	"ulint":  8,
	"lword":  8,
	"lreal":  8,
	"string": logixStringTotal,
}

// tagDef is a validated tag definition.
type tagDef struct {
	protocol    string
	layout      layout
	key         deviceKey
	elemSize    int
	elemCount   int
	readCacheMS int
	debug       int
}

type deviceKey struct {
	gateway string
	path    string
	name    string
}

// parseDef validates an attribute string the way the engine would.
func parseDef(attributes string) (tagDef, status.Status) {
	if strings.TrimSpace(attributes) == "" {
		return tagDef{}, status.ErrBadConfig
	}
	a, err := attr.Parse(attributes)
	if err != nil {
		return tagDef{}, status.ErrBadConfig
	}

	protocol := strings.ToLower(a.Get(attr.KeyProtocol))
	lay, ok := protocols[protocol]
	if !ok {
		return tagDef{}, status.ErrBadParam
	}

	s := tagDef{
		protocol: strings.ReplaceAll(protocol, "-", "_"),
		layout:   lay,
		key: deviceKey{
			gateway: a.Get(attr.KeyGateway),
			path:    a.Get(attr.KeyPath),
			name:    a.Get(attr.KeyName),
		},
	}
	if s.key.name == "" {
		return tagDef{}, status.ErrBadConfig
	}

	defSize := 1
	if t := a.Get("elem_type"); t != "" {
		size, ok := elemTypes[strings.ToLower(t)]
		if !ok {
			return tagDef{}, status.ErrBadConfig
		}
		defSize = size
	}

	if s.elemSize, err = a.Int(attr.KeyElemSize, defSize); err != nil || s.elemSize <= 0 {
		return tagDef{}, status.ErrBadConfig
	}
	if s.elemCount, err = a.Int(attr.KeyElemCount, 1); err != nil || s.elemCount <= 0 {
		return tagDef{}, status.ErrBadConfig
	}
	if s.readCacheMS, err = a.Int(attr.KeyReadCacheMS, 0); err != nil {
		return tagDef{}, status.ErrBadConfig
	}
	if s.readCacheMS < 0 {
		s.readCacheMS = 0
	}
	if s.debug, err = a.Int(attr.KeyDebug, 0); err != nil {
		return tagDef{}, status.ErrBadConfig
	}

	if s.protocol == "system" {
		switch s.key.name {
		case "version":
			s.elemSize, s.elemCount = len(versionString())+1, 1
		case "debug":
			s.elemSize, s.elemCount = 4, 1
		default:
			return tagDef{}, status.ErrBadParam
		}
	}
	return s, status.OK
}

func (s tagDef) size() int {
	return s.elemSize * s.elemCount
}

func versionString() string {
	return strconv.Itoa(int(VersionMajor)) + "." + strconv.Itoa(int(VersionMinor)) + "." + strconv.Itoa(int(VersionPatch))
}

// string geometry at off for a buffer of size n. ok is false when no
// string fits at that offset.
func (l layout) stringGeometry(off, n int) (capacity, total int, ok bool) {
	if off < 0 || off >= n {
		return 0, 0, false
	}
	if l.counted {
		if off+logixStringTotal > n {
			return 0, 0, false
		}
		return logixStringCapacity, logixStringTotal, true
	}
	return n - off - 1, n - off, true
}

func (l layout) stringLength(data []byte, off int) (int, status.Status) {
	capacity, _, ok := l.stringGeometry(off, len(data))
	if !ok {
		return 0, status.ErrOutOfBounds
	}
	if l.counted {
		n := int(l.order.Uint32(data[off:]))
		if n > capacity {
			return 0, status.ErrBadData
		}
		return n, status.OK
	}
	for i := 0; i < capacity; i++ {
		if data[off+i] == 0 {
			return i, status.OK
		}
	}
	return capacity, status.OK
}

func (l layout) readString(data []byte, off int) (string, status.Status) {
	n, rc := l.stringLength(data, off)
	if rc != status.OK {
		return "", rc
	}
	start := off
	if l.counted {
		start += logixStringCount
	}
	return string(data[start : start+n]), status.OK
}

func (l layout) writeString(data []byte, off int, value string) status.Status {
	capacity, _, ok := l.stringGeometry(off, len(data))
	if !ok {
		return status.ErrOutOfBounds
	}
	if len(value) > capacity {
		return status.ErrTooLarge
	}

	start := off
	if l.counted {
		l.order.PutUint32(data[off:], uint32(len(value)))
		start += logixStringCount
	}
	copy(data[start:], value)
	for i := start + len(value); i < start+capacity && i < len(data); i++ {
		data[i] = 0
	}
	if !l.counted {
		data[start+len(value)] = 0
	}
	return status.OK
}
