package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tether-io/tether-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	return path
}

// sessionEvents is a short connection: connect, one frame each way, close.
func sessionEvents() []log.Event {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	conn := "abc12345-6789-0123-4567-890abcdef012"
	return []log.Event{
		{
			Timestamp: base, ConnectionID: conn, RemoteAddr: "192.0.2.10:7000",
			Layer: log.LayerClient, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "IDLE", NewState: "CONNECTING"},
		},
		{
			Timestamp: base.Add(10 * time.Millisecond), ConnectionID: conn, RemoteAddr: "192.0.2.10:7000",
			Layer: log.LayerClient, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTING", NewState: "CONNECTED"},
		},
		{
			Timestamp: base.Add(20 * time.Millisecond), ConnectionID: conn,
			Direction: log.DirectionOut, Layer: log.LayerFraming, Category: log.CategoryData,
			Frame: &log.FrameEvent{Size: 9, Data: []byte("hello")},
		},
		{
			Timestamp: base.Add(30 * time.Millisecond), ConnectionID: conn,
			Direction: log.DirectionIn, Layer: log.LayerFraming, Category: log.CategoryData,
			Frame: &log.FrameEvent{Size: 7, Data: []byte(" :)")},
		},
		{
			Timestamp: base.Add(2 * time.Second), ConnectionID: conn,
			Layer: log.LayerSocket, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerSocket, Message: "connection reset by peer", Context: "receive", Expected: true},
		},
		{
			Timestamp: base.Add(2 * time.Second), ConnectionID: conn,
			Layer: log.LayerClient, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "CONNECTED", NewState: "CLOSED", Reason: "peer closed"},
		},
	}
}
