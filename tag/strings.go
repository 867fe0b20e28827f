package tag

import "taglink/status"

// GetString returns the string stored at offset, using the protocol's
// string layout.
func (t *Tag) GetString(offset int) (string, error) {
	h, ok := t.live()
	if !ok {
		return "", status.Err("get string", status.ErrNotFound)
	}
	off, err := engineOffset("get string", offset)
	if err != nil {
		return "", err
	}
	n := t.eng.GetStringLength(h, off)
	if n < 0 {
		return "", status.Err("get string", status.Status(n))
	}
	buf := make([]byte, n+1)
	if err := status.Err("get string", status.Status(t.eng.GetString(h, off, buf))); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// SetString stages s at offset. The engine refuses strings longer than
// the capacity at that offset with ERR_TOO_LARGE.
func (t *Tag) SetString(offset int, s string) error {
	h, ok := t.live()
	if !ok {
		return status.Err("set string", status.ErrNotFound)
	}
	off, err := engineOffset("set string", offset)
	if err != nil {
		return err
	}
	return status.Err("set string", status.Status(t.eng.SetString(h, off, s)))
}

// StringLength returns the number of characters in the string at offset.
func (t *Tag) StringLength(offset int) (int, error) {
	return t.stringMetric("string length", offset, t.eng.GetStringLength)
}

// StringCapacity returns the maximum characters the string at offset holds.
func (t *Tag) StringCapacity(offset int) (int, error) {
	return t.stringMetric("string capacity", offset, t.eng.GetStringCapacity)
}

// StringTotalLength returns the bytes the string at offset occupies,
// including any count word and padding.
func (t *Tag) StringTotalLength(offset int) (int, error) {
	return t.stringMetric("string total length", offset, t.eng.GetStringTotalLength)
}

func (t *Tag) stringMetric(op string, offset int, fn func(int32, int32) int32) (int, error) {
	h, ok := t.live()
	if !ok {
		return 0, status.Err(op, status.ErrNotFound)
	}
	off, err := engineOffset(op, offset)
	if err != nil {
		return 0, err
	}
	n := fn(h, off)
	if n < 0 {
		return 0, status.Err(op, status.Status(n))
	}
	return int(n), nil
}
