package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"taglink/config"
	"taglink/sim"
	"taglink/status"
	"taglink/tag"
	"taglink/tagman"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{int32(7), "7"},
		{float32(3.5), "3.5"},
		{"line 2", `"line 2"`},
		{[]interface{}{uint16(1), uint16(2)}, "[1 2]"},
		{true, "true"},
	}
	for _, tc := range tests {
		if got := formatValue(tc.in); got != tc.want {
			t.Errorf("formatValue(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := make([]interface{}, 100)
	for i := range long {
		long[i] = i
	}
	got := formatValue(long)
	if n := len([]rune(got)); n != maxValueWidth || !strings.HasSuffix(got, "…") {
		t.Errorf("long value %q has %d runes", got, n)
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		st   status.Status
		want string
	}{
		{status.OK, "OK"},
		{status.Pending, "PENDING"},
		{status.ErrTimeout, "ERR_TIMEOUT"},
	}
	for _, tc := range tests {
		if got := statusText(tc.st); got != tc.want {
			t.Errorf("statusText(%d) = %q, want %q", tc.st, got, tc.want)
		}
	}
	if statusColor(status.OK) != ColorConnected || statusColor(status.ErrWrite) != ColorError {
		t.Error("unexpected status colors")
	}
}

func TestFormatPoll(t *testing.T) {
	if formatPoll(time.Time{}) != "-" {
		t.Error("zero time should render as -")
	}
	ts := time.Date(2024, 1, 15, 10, 30, 5, 250e6, time.Local)
	if got := formatPoll(ts); got != "10:30:05.250" {
		t.Errorf("formatPoll = %q", got)
	}
}

func TestBuildRows(t *testing.T) {
	const attrs = "protocol=ab_eip&gateway=10.0.0.5&path=1,0&cpu=lgx&elem_size=2&elem_count=2&name=Speeds"
	s := sim.New()
	s.Seed(attrs, []byte{1, 0, 2, 0})
	s.Fail("Broken", sim.OpCreate, status.ErrBadGateway)

	m := tagman.NewManager(s, 10*time.Millisecond)
	m.AddTag(config.TagConfig{Name: "speeds", Attributes: attrs, Type: tag.Uint16, Enabled: true})
	m.AddTag(config.TagConfig{Name: "broken", Attributes: "protocol=ab_eip&gateway=10.0.0.5&path=1,0&cpu=lgx&elem_size=4&name=Broken", Type: tag.Int32, Enabled: true})
	m.Start()
	defer m.Stop()

	var rows []tagRow
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows = buildRows(m.ListTags())
		if len(rows) == 2 && rows[1].Value != "-" && rows[0].Status != "PENDING" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rows never settled: %+v", rows)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rows[1].Name != "speeds" || rows[1].Type != "uint16" || rows[1].Value != "[1 2]" || rows[1].Status != "OK" {
		t.Errorf("speeds row = %+v", rows[1])
	}
	if rows[1].LastPoll == "-" {
		t.Error("speeds row has no poll time")
	}
	if rows[0].Name != "broken" || rows[0].Color != ColorError || !strings.Contains(rows[0].Value, "ERR_BAD_GATEWAY") {
		t.Errorf("broken row = %+v", rows[0])
	}
}

func TestDebugLogStore(t *testing.T) {
	s := NewDebugStore(3)

	var mu sync.Mutex
	var got []LogMessage
	done := make(chan struct{}, 10)
	id := s.Subscribe(func(msg LogMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		done <- struct{}{}
	})

	for i := 0; i < 5; i++ {
		s.Log("MQTT", "message %d", i)
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("listener not called")
		}
	}

	msgs := s.GetMessages()
	if len(msgs) != 3 || msgs[0].Message != "message 2" || msgs[2].Message != "message 4" {
		t.Errorf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].String(), "[MQTT] message 2") {
		t.Errorf("String() = %q", msgs[0].String())
	}

	s.Unsubscribe(id)
	s.Log("", "after")
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if len(got) != 5 {
		t.Errorf("listener got %d messages after unsubscribe", len(got))
	}
	mu.Unlock()

	s.Clear()
	if len(s.GetMessages()) != 0 {
		t.Error("Clear left messages")
	}
}
