package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeEvents(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.ftlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	defer r.Close()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, ev)
	}
}

func TestReaderReadsAll(t *testing.T) {
	base := time.Now()
	path := writeEvents(t,
		Event{Timestamp: base, ConnectionID: "a"},
		Event{Timestamp: base.Add(time.Second), ConnectionID: "b"},
	)

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	events := readAll(t, r)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ConnectionID != "a" || events[1].ConnectionID != "b" {
		t.Errorf("unexpected order: %+v", events)
	}
}

func TestReaderFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rest := InterfaceREST
	transfer := CategoryTransfer
	out := DirectionOut
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	path := writeEvents(t,
		Event{Timestamp: base, ConnectionID: "c1", Category: CategoryMessage, Filename: "a"},
		Event{Timestamp: base.Add(time.Second), ConnectionID: "c1", Category: CategoryTransfer, Filename: "a", Interface: InterfaceREST},
		Event{Timestamp: base.Add(2 * time.Second), ConnectionID: "c2", Category: CategoryTransfer, Filename: "b", Direction: DirectionOut},
		Event{Timestamp: base.Add(3 * time.Second), ConnectionID: "c2", Category: CategoryError, Filename: "b"},
	)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 4},
		{"connection", Filter{ConnectionID: "c2"}, 2},
		{"category", Filter{Category: &transfer}, 2},
		{"filename", Filter{Filename: "a"}, 2},
		{"interface", Filter{Interface: &rest}, 1},
		{"direction", Filter{Direction: &out}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.ftlog")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	path := writeEvents(t,
		Event{Timestamp: time.Now(), ConnectionID: "complete"},
		Event{Timestamp: time.Now(), ConnectionID: "partial", Filename: "large.bin"},
	)
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, st.Size()-3); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ev, err := r.Next()
	if err != nil || ev.ConnectionID != "complete" {
		t.Fatalf("first event: %+v, %v", ev, err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestReaderAll(t *testing.T) {
	transfer := CategoryTransfer
	path := writeEvents(t,
		Event{ConnectionID: "a", Category: CategoryMessage},
		Event{ConnectionID: "b", Category: CategoryTransfer},
		Event{ConnectionID: "c", Category: CategoryTransfer},
	)
	r, err := NewFilteredReader(path, Filter{Category: &transfer})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var ids []string
	for ev, err := range r.All() {
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, ev.ConnectionID)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Errorf("got %v, want [b c]", ids)
	}
	if r.Decoded() != 3 {
		t.Errorf("Decoded() = %d, want 3", r.Decoded())
	}
}
