// Package console drives the chat widget from a line-oriented terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Hajira-org/hajira-chat/pkg/chat/assistant"
	"github.com/Hajira-org/hajira-chat/pkg/chat/session"
	"github.com/Hajira-org/hajira-chat/pkg/chat/widget"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

const helpText = `commands:
  <text>          send a message (chat tab) or ask the assistant (ai tab)
  /draft <text>   set the draft and wait for a suggestion
  /tab            accept the current suggestion (a line with only a Tab works too)
  /send           send the current draft
  /ai, /chat      switch tab
  /help           show this help
  /quit           close the chat`

// Widget is the part of *widget.Widget the console drives.
type Widget interface {
	SwitchTab(tab widget.Tab)
	SetDraft(text string) error
	AcceptSuggestion() bool
	Send() (wire.Message, error)
	Ask(text string) error
	Snapshot() widget.View
	Close() error
}

type Console struct {
	w   Widget
	out io.Writer
}

func New(w Widget, out io.Writer) *Console {
	return &Console{w: w, out: out}
}

// Run reads commands until /quit, end of input or ctx is done. The widget
// is closed on return.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	defer c.w.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(c.out, "type /help for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.Handle(line); quit {
				return nil
			}
		}
	}
}

// Handle executes one input line and reports whether the user asked to quit.
func (c *Console) Handle(line string) bool {
	if line == "\t" {
		c.accept()
		return false
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, helpText)
	case "/ai":
		c.w.SwitchTab(widget.TabAI)
	case "/chat":
		c.w.SwitchTab(widget.TabChat)
	case "/tab":
		c.accept()
	case "/draft":
		c.report(c.w.SetDraft(arg))
	case "/send":
		c.send()
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintf(c.out, "! unknown command %s, try /help\n", cmd)
			return false
		}
		c.submit(line)
	}
	return false
}

func (c *Console) submit(text string) {
	if c.w.Snapshot().Tab == widget.TabAI {
		c.report(c.w.Ask(text))
		return
	}
	if err := c.w.SetDraft(text); err != nil {
		c.report(err)
		return
	}
	c.send()
}

func (c *Console) send() {
	_, err := c.w.Send()
	c.report(err)
}

func (c *Console) accept() {
	if !c.w.AcceptSuggestion() {
		fmt.Fprintln(c.out, "! no suggestion to accept")
		return
	}
	fmt.Fprintf(c.out, "  draft: %s\n", c.w.Snapshot().Draft)
}

func (c *Console) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEmptyMessage), errors.Is(err, assistant.ErrEmptyQuestion):
		fmt.Fprintln(c.out, "! nothing to send")
	case errors.Is(err, session.ErrNotConnected):
		fmt.Fprintln(c.out, "! not connected, message dropped")
	default:
		fmt.Fprintf(c.out, "! %v\n", err)
	}
}
