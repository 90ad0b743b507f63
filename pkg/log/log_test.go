package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type capturingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (l *capturingLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func TestEventCBORPreservesPayload(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	event := Event{
		Timestamp:    ts,
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerFraming,
		Category:     CategoryData,
		RemoteAddr:   "127.0.0.1:9000",
		Frame:        &FrameEvent{Size: 7, Data: []byte{1, 2, 3}},
	}

	data, err := Encode(event)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", got.Timestamp, ts)
	}
	if got.Frame == nil || !bytes.Equal(got.Frame.Data, []byte{1, 2, 3}) {
		t.Errorf("Frame: got %+v", got.Frame)
	}
	if got.StateChange != nil || got.Error != nil {
		t.Error("unexpected payloads decoded")
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(slogger).Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Layer:        LayerClient,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			OldState: "CONNECTING",
			NewState: "CONNECTED",
		},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "protocol state" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["connection"] != "conn-123" {
		t.Errorf("connection: got %v", entry["connection"])
	}
	if entry["layer"] != "CLIENT" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	state, _ := entry["state"].(map[string]any)
	if state["new"] != "CONNECTED" || state["old"] != "CONNECTING" {
		t.Errorf("state: got %v", entry["state"])
	}
	if _, ok := state["reason"]; ok {
		t.Error("empty reason should be omitted")
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(slogger).WithLevel(slog.LevelWarn).Log(Event{
		ConnectionID: "conn-9",
		Category:     CategoryError,
		Error:        &ErrorEventData{Layer: LayerSocket, Message: "reset", Expected: true},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("level: got %v", entry["level"])
	}
	e, _ := entry["error"].(map[string]any)
	if e["message"] != "reset" || e["expected"] != true || e["layer"] != "SOCKET" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSlogAdapterBelowLevelIsSilent(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogAdapter(slogger).Log(Event{ConnectionID: "x"})

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &capturingLogger{}
	var seen []string
	b := LoggerFunc(func(e Event) { seen = append(seen, e.ConnectionID) })
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{ConnectionID: "c"})

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if len(a.events) != 1 || len(seen) != 1 || seen[0] != "c" {
		t.Errorf("got %d and %v, want one event each", len(a.events), seen)
	}
}

func TestMultiLoggerClosesFileSinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.tlog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	m := NewMultiLogger(fl, NoopLogger{})

	m.Log(Event{ConnectionID: "before"})
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	m.Log(Event{ConnectionID: "after"})

	if fl.Written() != 1 || fl.Dropped() != 1 {
		t.Errorf("written=%d dropped=%d, want 1 and 1", fl.Written(), fl.Dropped())
	}
}

func TestFileLoggerClosedDropsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be nil, got %v", err)
	}
	logger.Log(Event{ConnectionID: "late"})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d, want 0", info.Size())
	}
	if logger.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", logger.Dropped())
	}
}

func TestFileLoggerWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.tlog")
	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{ConnectionID: "c"})
		if logger.Path() != path {
			t.Errorf("Path() = %q", logger.Path())
		}
		logger.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, fileMagic) {
		t.Errorf("file does not start with the capture header: % x", data[:4])
	}
	if bytes.Count(data, fileMagic) != 1 {
		t.Error("capture header written more than once")
	}
	if got := countEvents(t, path); got != 2 {
		t.Errorf("read %d events, want 2", got)
	}
}

func TestReaderAcceptsHeaderlessFile(t *testing.T) {
	var raw []byte
	for _, id := range []string{"a", "b"} {
		data, err := Encode(Event{ConnectionID: id})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		raw = append(raw, data...)
	}
	path := filepath.Join(t.TempDir(), "plain.tlog")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := countEvents(t, path); got != 2 {
		t.Errorf("read %d events, want 2", got)
	}
}

func TestReaderTruncatedEvent(t *testing.T) {
	data, err := Encode(Event{ConnectionID: "cut", Frame: &FrameEvent{Size: 3, Data: []byte("abc")}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cut.tlog")
	if err := os.WriteFile(path, append(append([]byte{}, fileMagic...), data[:len(data)-2]...), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("Next() error = %v, want a decode error", err)
	}
}

func countEvents(t *testing.T, path string) int {
	t.Helper()
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	n := 0
	for {
		_, err := reader.Next()
		if err == io.EOF {
			return n
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		n++
	}
}

func TestFileLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{ConnectionID: "c", Frame: &FrameEvent{Size: j}})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if logger.Written() != 200 {
		t.Errorf("Written() = %d, want 200", logger.Written())
	}
	if count := countEvents(t, path); count != 200 {
		t.Errorf("read %d events, want 200", count)
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Now()
	events := []Event{
		{Timestamp: base, ConnectionID: "conn-1", Direction: DirectionIn, Layer: LayerFraming, Category: CategoryData},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-2", Direction: DirectionOut, Layer: LayerFraming, Category: CategoryData},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-1", Direction: DirectionIn, Layer: LayerClient, Category: CategoryState},
	}
	path := createTestLogFile(t, events)

	category := CategoryData
	dir := DirectionIn
	reader, err := NewFilteredReader(path, Filter{Category: &category, Direction: &dir})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	first, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first.ConnectionID != "conn-1" || first.Layer != LayerFraming {
		t.Errorf("unexpected event: %+v", first)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFilterTimeWindow(t *testing.T) {
	base := time.Now()
	start := base.Add(time.Second)
	end := base.Add(2 * time.Second)
	f := Filter{TimeStart: &start, TimeEnd: &end}

	if f.Matches(Event{Timestamp: base}) {
		t.Error("event before window matched")
	}
	if !f.Matches(Event{Timestamp: start}) {
		t.Error("event at window start did not match")
	}
	if f.Matches(Event{Timestamp: end}) {
		t.Error("event at window end matched")
	}
}

func TestStringers(t *testing.T) {
	if DirectionOut.String() != "OUT" || Direction(9).String() != "UNKNOWN" {
		t.Error("Direction.String mismatch")
	}
	if LayerTLS.String() != "TLS" || Layer(9).String() != "UNKNOWN" {
		t.Error("Layer.String mismatch")
	}
	if CategoryError.String() != "ERROR" || Category(9).String() != "UNKNOWN" {
		t.Error("Category.String mismatch")
	}
}

func TestParseNames(t *testing.T) {
	if l, ok := ParseLayer("framing"); !ok || l != LayerFraming {
		t.Errorf("ParseLayer(framing) = %v, %v", l, ok)
	}
	if d, ok := ParseDirection("Out"); !ok || d != DirectionOut {
		t.Errorf("ParseDirection(Out) = %v, %v", d, ok)
	}
	if c, ok := ParseCategory("STATE"); !ok || c != CategoryState {
		t.Errorf("ParseCategory(STATE) = %v, %v", c, ok)
	}
	if _, ok := ParseLayer("unknown"); ok {
		t.Error("ParseLayer(unknown) should fail")
	}
}
