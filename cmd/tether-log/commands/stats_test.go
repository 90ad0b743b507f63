package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if len(stats.Connections) != 1 {
		t.Fatalf("Connections = %d, want 1", len(stats.Connections))
	}

	conn := stats.Connections["abc12345-6789-0123-4567-890abcdef012"]
	if conn == nil {
		t.Fatal("connection missing")
	}
	if conn.BytesIn != 7 || conn.BytesOut != 9 {
		t.Errorf("bytes in=%d out=%d, want 7/9", conn.BytesIn, conn.BytesOut)
	}
	if conn.FinalState != "CLOSED" {
		t.Errorf("FinalState = %q, want CLOSED", conn.FinalState)
	}
	if conn.RemoteAddr != "192.0.2.10:7000" {
		t.Errorf("RemoteAddr = %q", conn.RemoteAddr)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 6",
		"FRAMING:",
		"CLIENT:",
		"SOCKET:",
		"DATA:",
		"STATE:",
		"Connections: 1",
		"[abc12345] 6 events, duration 2s",
		"Bytes: in=7 out=9",
		"State: CLOSED",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
