package interaction

import (
	"errors"
	"io"
	"os"
)

// ErrNotTerminal is returned when stdin cannot be put in raw mode
var ErrNotTerminal = errors.New("input is not a terminal")

// KeyboardReader reads key presses from a terminal in raw mode
type KeyboardReader struct {
	in      io.Reader
	restore func() error
	input   chan KeyEvent
	stop    chan struct{}
}

// KeyEvent represents a keyboard event
type KeyEvent struct {
	Key  rune
	Type KeyType
}

// KeyType represents the type of key pressed
type KeyType int

const (
	KeyChar KeyType = iota
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
)

// Ctrl+C in raw mode
const KeyInterrupt rune = 3

// NewKeyboardReader puts stdin in raw mode and starts reading
func NewKeyboardReader() (*KeyboardReader, error) {
	return NewKeyboardReaderFrom(os.Stdin)
}

// NewKeyboardReaderFrom reads keys from the terminal tty
func NewKeyboardReaderFrom(tty *os.File) (*KeyboardReader, error) {
	restore, err := enableRawMode(int(tty.Fd()))
	if err != nil {
		return nil, err
	}
	kr := newReader(tty)
	kr.restore = restore
	go kr.readInput()
	return kr, nil
}

func newReader(in io.Reader) *KeyboardReader {
	return &KeyboardReader{
		in:    in,
		input: make(chan KeyEvent, 10),
		stop:  make(chan struct{}),
	}
}

// readInput reads keyboard input in a goroutine
func (kr *KeyboardReader) readInput() {
	buf := make([]byte, 8)
	for {
		n, err := kr.in.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return
			}
			select {
			case <-kr.stop:
				return
			default:
				continue
			}
		}
		if event := kr.parseInput(buf[:n]); event != nil {
			select {
			case kr.input <- *event:
			case <-kr.stop:
				return
			}
		}
		select {
		case <-kr.stop:
			return
		default:
		}
	}
}

// parseInput parses raw keyboard input
func (kr *KeyboardReader) parseInput(buf []byte) *KeyEvent {
	if len(buf) == 0 {
		return nil
	}

	if buf[0] == 27 { // ESC
		if len(buf) == 1 {
			return &KeyEvent{Key: 27, Type: KeyEscape}
		}
		// CSI or SS3 arrow sequences
		if len(buf) >= 3 && (buf[1] == '[' || buf[1] == 'O') {
			switch buf[2] {
			case 'A':
				return &KeyEvent{Type: KeyUp}
			case 'B':
				return &KeyEvent{Type: KeyDown}
			case 'C':
				return &KeyEvent{Type: KeyRight}
			case 'D':
				return &KeyEvent{Type: KeyLeft}
			}
		}
		return nil
	}

	return &KeyEvent{Key: rune(buf[0]), Type: KeyChar}
}

// Events returns the keyboard event channel
func (kr *KeyboardReader) Events() <-chan KeyEvent {
	return kr.input
}

// Close stops the keyboard reader and restores the terminal
func (kr *KeyboardReader) Close() error {
	close(kr.stop)
	if kr.restore == nil {
		return nil
	}
	return kr.restore()
}
