package interactive

import (
	"errors"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		framing bool
		kind    Kind
		payload string
		wantErr bool
	}{
		{name: "Empty", line: "   ", kind: KindNone},
		{name: "TextFramed", line: "hello", framing: true, kind: KindSend, payload: "hello"},
		{name: "TextRaw", line: "hello\r\n", kind: KindSend, payload: "hello\n"},
		{name: "EscapedSlash", line: "//etc", framing: true, kind: KindSend, payload: "/etc"},
		{name: "Help", line: "/help", kind: KindHelp},
		{name: "Status", line: "/STATUS", kind: KindStatus},
		{name: "Quit", line: "/q", kind: KindQuit},
		{name: "Hex", line: "/hex 01 02 ff", kind: KindSend, payload: "\x01\x02\xff"},
		{name: "HexIgnoresFraming", line: "/hex 0a", kind: KindSend, payload: "\n"},
		{name: "BadHex", line: "/hex zz", wantErr: true},
		{name: "EmptyHex", line: "/hex", wantErr: true},
		{name: "Unknown", line: "/frobnicate", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseLine(tt.line, tt.framing)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cmd.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", cmd.Kind, tt.kind)
			}
			if string(cmd.Payload) != tt.payload {
				t.Errorf("Payload = %q, want %q", cmd.Payload, tt.payload)
			}
		})
	}
}

func TestParseLineUnknownCommand(t *testing.T) {
	_, err := ParseLine("/nope", false)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestFormatData(t *testing.T) {
	if got := FormatData([]byte("hi there\n"), false); got != `"hi there\n"` {
		t.Errorf("FormatData(text) = %s", got)
	}

	got := FormatData([]byte{0x00, 0x01, 0xfe}, false)
	if !strings.Contains(got, "00 01 fe") {
		t.Errorf("FormatData(binary) = %s", got)
	}

	got = FormatData([]byte("text"), true)
	if !strings.Contains(got, "74 65 78 74") {
		t.Errorf("FormatData(forced hex) = %s", got)
	}
}
