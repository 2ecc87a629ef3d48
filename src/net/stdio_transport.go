package net

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/sirupsen/logrus"
)

const stdioConsumerBuffer = 64

// StdioTransport implements the Transport interface over a pair of streams,
// one message per line. Under a harness, in is stdin and out is stdout.
type StdioTransport struct {
	in  *bufio.Reader
	out *bufio.Writer

	outLock sync.Mutex

	consumerCh chan maelstrom.Message

	errLock sync.Mutex
	err     error

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	logger *logrus.Entry
}

// NewStdioTransport ...
func NewStdioTransport(in io.Reader, out io.Writer, logger *logrus.Entry) *StdioTransport {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &StdioTransport{
		in:         bufio.NewReader(in),
		out:        bufio.NewWriter(out),
		consumerCh: make(chan maelstrom.Message, stdioConsumerBuffer),
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}
}

// Listen implements the Transport interface. It reads lines until end of
// input, a read error, or a malformed line, and then closes the consumer
// channel. Blank lines are skipped.
func (t *StdioTransport) Listen() {
	defer close(t.consumerCh)

	for {
		line, readErr := t.in.ReadBytes('\n')

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			msg, err := DecodeMessage(trimmed)
			if err != nil {
				t.setErr(err)
				return
			}

			t.logger.WithFields(logrus.Fields{
				"src":  msg.Src,
				"body": string(msg.Body),
			}).Debug("RECV")

			select {
			case t.consumerCh <- msg:
			case <-t.shutdownCh:
				return
			}
		}

		if readErr != nil {
			if readErr != io.EOF {
				t.setErr(readErr)
			}
			return
		}
	}
}

// Consumer implements the Transport interface.
func (t *StdioTransport) Consumer() <-chan maelstrom.Message {
	return t.consumerCh
}

// Err implements the Transport interface.
func (t *StdioTransport) Err() error {
	t.errLock.Lock()
	defer t.errLock.Unlock()
	return t.err
}

func (t *StdioTransport) setErr(err error) {
	t.errLock.Lock()
	defer t.errLock.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// Send implements the Transport interface. Concurrent calls never interleave
// their lines.
func (t *StdioTransport) Send(msg maelstrom.Message) error {
	if t.IsShutdown() {
		return ErrTransportShutdown
	}

	line, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.outLock.Lock()
	defer t.outLock.Unlock()

	if _, err := t.out.Write(line); err != nil {
		return err
	}
	if err := t.out.WriteByte('\n'); err != nil {
		return err
	}
	if err := t.out.Flush(); err != nil {
		return err
	}

	t.logger.WithFields(logrus.Fields{
		"dest": msg.Dest,
		"body": string(msg.Body),
	}).Debug("SEND")

	return nil
}

// IsShutdown ...
func (t *StdioTransport) IsShutdown() bool {
	t.shutdownLock.Lock()
	defer t.shutdownLock.Unlock()
	return t.shutdown
}

// Close implements the Transport interface. A Listen blocked on a read is not
// interrupted, but it stops delivering messages.
func (t *StdioTransport) Close() error {
	t.shutdownLock.Lock()
	defer t.shutdownLock.Unlock()

	if !t.shutdown {
		close(t.shutdownCh)
		t.shutdown = true
	}
	return nil
}
