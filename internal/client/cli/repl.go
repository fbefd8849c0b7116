package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Senders(ctx context.Context) error
	From(ctx context.Context, args []string) error
	To(ctx context.Context, args []string) error
	Subject(ctx context.Context, args []string) error
	Body(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Detach(ctx context.Context, args []string) error
	Draft(ctx context.Context) error
	Reset(ctx context.Context) error
	Send(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  senders              list allowed sender addresses
  from <n|address>     choose the sender
  to <a@x, b@y>        set recipients (comma separated)
  subject <text>       set the subject
  body [text]          set the body (multi-line prompt without text)
  attach <path>...     select files to attach
  detach <n>           remove the n-th attachment
  draft                show the current draft
  reset                discard the draft
  send                 upload attachments and send
  (l)ist               list sent mail
  show <id>            show one sent message
  exit | quit          leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// The first token is the command; the rest are its arguments. Handler errors
// are printed and the loop goes on. It returns on EOF, on "exit"/"quit", or
// when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("chunkmail %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "senders":
			cmdErr = a.Senders(ctx)
		case "from":
			cmdErr = a.From(ctx, args)
		case "to":
			cmdErr = a.To(ctx, args)
		case "subject":
			cmdErr = a.Subject(ctx, args)
		case "body":
			cmdErr = a.Body(ctx, args)
		case "attach":
			cmdErr = a.Attach(ctx, args)
		case "detach":
			cmdErr = a.Detach(ctx, args)
		case "draft":
			cmdErr = a.Draft(ctx)
		case "reset":
			cmdErr = a.Reset(ctx)
		case "send":
			cmdErr = a.Send(ctx)
		case "l", "list":
			cmdErr = a.List(ctx)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
