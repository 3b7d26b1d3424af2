// Package e2e drives terminal UIs through a pseudo-terminal in tests.
package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// TUIConfig sizes the pseudo-terminal
type TUIConfig struct {
	Rows uint16
	Cols uint16
	// Timeout bounds the whole session
	Timeout time.Duration
}

// RunFunc is the program under test. It reads keys from and draws on tty
// and must return once ctx is done.
type RunFunc func(ctx context.Context, tty *os.File) error

// TUISession is a running program attached to a pseudo-terminal
type TUISession struct {
	ptmx *os.File
	tty  *os.File

	output     bytes.Buffer
	outputLock sync.RWMutex

	cancel context.CancelFunc
	result chan error
	once   sync.Once
	err    error
}

// StartTUI opens a pseudo-terminal and starts run on its tty side
func StartTUI(config TUIConfig, run RunFunc) (*TUISession, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Rows == 0 {
		config.Rows = 24
	}
	if config.Cols == 0 {
		config.Cols = 100
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open PTY: %w", err)
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: config.Rows, Cols: config.Cols}); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("failed to size PTY: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	s := &TUISession{
		ptmx:   ptmx,
		tty:    tty,
		cancel: cancel,
		result: make(chan error, 1),
	}

	go s.captureOutput()
	go func() {
		s.result <- run(ctx, tty)
	}()
	return s, nil
}

// captureOutput continuously reads from the PTY and stores output
func (s *TUISession) captureOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.outputLock.Lock()
			s.output.Write(buf[:n])
			s.outputLock.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// SendKey sends a key press
func (s *TUISession) SendKey(key byte) error {
	_, err := s.ptmx.Write([]byte{key})
	return err
}

// SendString sends raw input, such as an escape sequence
func (s *TUISession) SendString(str string) error {
	_, err := s.ptmx.Write([]byte(str))
	return err
}

// WaitForText waits for text to appear in the output, ANSI codes removed
func (s *TUISession) WaitForText(text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(s.CleanOutput(), text) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for text: %s", text)
}

// Output returns everything written so far
func (s *TUISession) Output() string {
	s.outputLock.RLock()
	defer s.outputLock.RUnlock()
	return s.output.String()
}

// CleanOutput returns output with ANSI escape codes removed
func (s *TUISession) CleanOutput() string {
	return StripANSI(s.Output())
}

// ClearOutput clears the output buffer
func (s *TUISession) ClearOutput() {
	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	s.output.Reset()
}

// Wait returns the program's result once it exits by itself
func (s *TUISession) Wait(timeout time.Duration) error {
	select {
	case err := <-s.result:
		s.finish(err)
		return err
	case <-time.After(timeout):
		return errors.New("program did not exit")
	}
}

// Stop cancels the program if still running and releases the PTY
func (s *TUISession) Stop() error {
	s.cancel()
	select {
	case err := <-s.result:
		s.finish(err)
	case <-time.After(2 * time.Second):
		s.finish(errors.New("program did not stop"))
	}
	return s.err
}

func (s *TUISession) finish(err error) {
	s.once.Do(func() {
		s.err = err
		s.cancel()
		s.tty.Close()
		s.ptmx.Close()
	})
}
