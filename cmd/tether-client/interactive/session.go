// Package interactive provides the interactive command-line interface
// for tether-client.
package interactive

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/chzyer/readline"
)

// Sender writes a message to the peer. Both *transport.Client and
// *connection.Supervisor implement it.
type Sender interface {
	Send(data []byte) error
}

// Options configures a Session.
type Options struct {
	// Framing is true when every line is sent as one framed message.
	// Without framing a newline is appended to each line.
	Framing bool

	// Status describes the connection for the /status command.
	Status func() string
}

// Session handles interactive mode for tether-client.
type Session struct {
	rl      *readline.Instance
	sender  Sender
	framing bool
	status  func() string
}

// New creates a new interactive session. The sender may be attached later
// with SetSender, once the connection is established.
func New(opts Options) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tether> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Session{
		rl:      rl,
		framing: opts.Framing,
		status:  opts.Status,
	}, nil
}

// SetSender attaches the connection lines are sent on.
func (s *Session) SetSender(sender Sender) {
	s.sender = sender
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Session) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Close releases the terminal.
func (s *Session) Close() error {
	return s.rl.Close()
}

// Run starts the interactive command loop.
func (s *Session) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		cmd, err := ParseLine(line, s.framing)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			continue
		}

		switch cmd.Kind {
		case KindNone:
		case KindHelp:
			s.printHelp()
		case KindStatus:
			if s.status != nil {
				fmt.Fprintln(s.rl.Stdout(), s.status())
			}
		case KindQuit:
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		case KindSend:
			s.send(cmd.Payload)
		}
	}
}

func (s *Session) send(payload []byte) {
	if s.sender == nil {
		fmt.Fprintln(s.rl.Stdout(), "Not connected")
		return
	}
	if err := s.sender.Send(payload); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Send failed: %v\n", err)
	}
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Tether Client Commands:
  <text>            - Send text to the peer
  /hex <bytes>      - Send raw bytes, e.g. /hex 01 02 ff
  /status           - Show connection status
  /help             - Show this help
  /quit             - Exit

  Lines starting with "//" are sent with one slash removed.`)
}

// Kind identifies what a line asks for.
type Kind int

const (
	KindNone Kind = iota
	KindSend
	KindHelp
	KindStatus
	KindQuit
)

// Command is a parsed input line.
type Command struct {
	Kind    Kind
	Payload []byte
}

// ErrUnknownCommand is returned for an unrecognized slash command.
var ErrUnknownCommand = errors.New("unknown command")

// ParseLine turns an input line into a command. Without framing, text
// payloads are newline terminated so line-oriented peers see whole lines.
func ParseLine(line string, framing bool) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{Kind: KindNone}, nil
	}

	if strings.HasPrefix(line, "//") {
		return textCommand(line[1:], framing), nil
	}
	if !strings.HasPrefix(line, "/") {
		return textCommand(line, framing), nil
	}

	name, arg, _ := strings.Cut(strings.TrimSpace(line[1:]), " ")
	switch strings.ToLower(name) {
	case "help", "?":
		return Command{Kind: KindHelp}, nil
	case "status":
		return Command{Kind: KindStatus}, nil
	case "quit", "exit", "q":
		return Command{Kind: KindQuit}, nil
	case "hex":
		payload, err := hex.DecodeString(strings.Join(strings.Fields(arg), ""))
		if err != nil {
			return Command{}, fmt.Errorf("invalid hex: %w", err)
		}
		if len(payload) == 0 {
			return Command{}, errors.New("invalid hex: no bytes")
		}
		return Command{Kind: KindSend, Payload: payload}, nil
	default:
		return Command{}, fmt.Errorf("%w: /%s (type /help for commands)", ErrUnknownCommand, name)
	}
}

func textCommand(text string, framing bool) Command {
	if !framing {
		text += "\n"
	}
	return Command{Kind: KindSend, Payload: []byte(text)}
}

// FormatData renders received bytes for display: printable UTF-8 as a
// quoted string, anything else as a hex dump.
func FormatData(p []byte, forceHex bool) string {
	if !forceHex && utf8.Valid(p) && printable(p) {
		return fmt.Sprintf("%q", string(p))
	}
	return strings.TrimRight(hex.Dump(p), "\n")
}

func printable(p []byte) bool {
	for _, r := range string(p) {
		switch {
		case r == '\n', r == '\r', r == '\t':
		case r < 0x20, r == 0x7f:
			return false
		}
	}
	return true
}
