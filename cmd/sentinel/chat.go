package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/render"
	"github.com/sentinel-zero/sentinel/store"
)

const chatHelp = `Commands:
  :mode query|evaluate   switch between questions and essay evaluation
  :telemetry             toggle the retrieved context shown after answers
  :history               list this session's turns
  :clear                 forget this session
  exit, quit             leave
In evaluate mode, finish the essay with a line holding a single "."`

// chatSession is one interactive session. Every answered turn is appended to
// history together with its telemetry.
type chatSession struct {
	runner    Runner
	history   store.HistoryStore
	term      render.Terminal
	sessionID string
	mode      rag.Mode
}

func (c *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if c.mode == "" {
		c.mode = rag.ModeQuery
	}
	fmt.Fprintf(out, "Sentinel Zero, session %s\n%s\n", c.sessionID, chatHelp)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(out, "\n[%s] > ", c.mode)
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, ":"):
			c.command(ctx, line, out)
			continue
		}

		input := line
		if c.mode == rag.ModeEvaluate {
			input = readEssay(sc, line)
		}

		req := rag.Request{Query: input, Mode: c.mode}
		resp, err := c.runner.Run(ctx, req)
		if err != nil {
			fmt.Fprint(out, c.term.Error(err))
			continue
		}
		fmt.Fprint(out, c.term.Response(c.mode, resp))

		if err := c.history.Append(ctx, store.NewTurn(c.sessionID, req, resp)); err != nil {
			fmt.Fprintf(out, "warning: turn not saved: %v\n", err)
		}
	}
}

// readEssay collects lines until a lone "." or end of input.
func readEssay(sc *bufio.Scanner, first string) string {
	if first == "." {
		return ""
	}
	lines := []string{first}
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "." {
			break
		}
		lines = append(lines, sc.Text())
	}
	return strings.Join(lines, "\n")
}

func (c *chatSession) command(ctx context.Context, line string, out io.Writer) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":mode":
		if len(fields) != 2 {
			fmt.Fprintln(out, "usage: :mode query|evaluate")
			return
		}
		mode, err := rag.ParseMode(fields[1])
		if err != nil {
			fmt.Fprintln(out, err)
			return
		}
		c.mode = mode
	case ":telemetry":
		c.term.ShowTelemetry = !c.term.ShowTelemetry
		fmt.Fprintf(out, "telemetry %s\n", onOff(c.term.ShowTelemetry))
	case ":history":
		turns, err := c.history.List(ctx, c.sessionID)
		if err != nil {
			fmt.Fprintln(out, c.term.Error(err))
			return
		}
		if len(turns) == 0 {
			fmt.Fprintln(out, "no turns yet")
		}
		for i, t := range turns {
			fmt.Fprintf(out, "%d. [%s] %s\n", i+1, t.Mode, firstLine(t.Query))
		}
	case ":clear":
		if err := c.history.Clear(ctx, c.sessionID); err != nil {
			fmt.Fprintln(out, c.term.Error(err))
			return
		}
		fmt.Fprintln(out, "session cleared")
	default:
		fmt.Fprintln(out, chatHelp)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
