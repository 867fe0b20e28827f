package tagman

import (
	"fmt"
	"time"

	"taglink/status"
	"taglink/tag"
)

// TagValue is a snapshot of one tag's last poll.
type TagValue struct {
	Name      string        // Tag name from config
	Kind      tag.Kind      // Element type used to decode the buffer
	Value     interface{}   // Scalar for one element, []interface{} for arrays
	Count     int           // Number of elements decoded
	Status    status.Status // Engine status of the last poll
	Error     error         // Poll error (nil if successful)
	Timestamp time.Time     // When the value was read
}

// GoValue returns the decoded value, or nil if the last poll failed.
func (v *TagValue) GoValue() interface{} {
	if v == nil || v.Error != nil {
		return nil
	}
	return v.Value
}

// TypeName returns the element type name.
func (v *TagValue) TypeName() string {
	return v.Kind.String()
}

// decode extracts count elements of kind from the tag buffer. count 0
// means as many as the buffer holds. The tag must be locked.
func decode(t *tag.Tag, kind tag.Kind, count int) (interface{}, int, error) {
	switch kind {
	case tag.String:
		s, err := t.GetString(0)
		return s, 1, err
	case tag.Bit:
		v, err := t.GetValue(tag.Bit, 0)
		return v, 1, err
	}

	width := kind.Width()
	if width == 0 {
		return nil, 0, fmt.Errorf("%w: cannot decode type %s", ErrInvalidInput, kind)
	}
	if count == 0 {
		size, err := t.Size()
		if err != nil {
			return nil, 0, err
		}
		count = size / width
		if count == 0 {
			count = 1
		}
	}
	if count == 1 {
		v, err := t.GetValue(kind, 0)
		return v, 1, err
	}
	vals, err := t.GetValues(kind, 0, count, width)
	return vals, len(vals), err
}

// encode stages value into the tag buffer. A slice writes consecutive
// elements from offset 0. The tag must be locked.
func encode(t *tag.Tag, kind tag.Kind, value interface{}) error {
	if kind == tag.String {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalidInput, value)
		}
		return t.SetString(0, s)
	}

	elems, ok := value.([]interface{})
	if !ok {
		elems = []interface{}{value}
	}
	if len(elems) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidInput)
	}

	stride := kind.Width()
	if kind == tag.Bit {
		stride = 1
	}
	// Convert everything first so a bad element stages nothing.
	converted := make([]interface{}, len(elems))
	for i, e := range elems {
		v, err := tag.Convert(kind, e)
		if err != nil {
			return fmt.Errorf("%w: element %d: %v", ErrInvalidInput, i, err)
		}
		converted[i] = v
	}
	for i, v := range converted {
		if err := t.SetValue(kind, i*stride, v); err != nil {
			return err
		}
	}
	return nil
}

// sameValue reports whether two decoded values print the same.
func sameValue(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
