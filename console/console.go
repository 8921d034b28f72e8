// Package console serves the operator commands over SSH.
package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/command"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/loop"
	"github.com/zond/worldtest/termio"
	"golang.org/x/term"
)

// CommandTimeout bounds how long a session waits for the tick thread.
const CommandTimeout = 10 * time.Second

// confirmations are asked before running the destructive commands.
var confirmations = map[string]string{
	"clearall": "Remove every test structure near the origin?",
}

type Server struct {
	loop    *loop.Loop
	console *command.Console
	orch    *gametest.Orchestrator
	srv     *ssh.Server
}

// New returns a console server that runs commands through l.
func New(l *loop.Loop, c *command.Console, orch *gametest.Orchestrator, hostKeyPEM []byte) (*Server, error) {
	s := &Server{
		loop:    l,
		console: c,
		orch:    orch,
	}
	s.srv = &ssh.Server{Handler: s.HandleSession}
	if err := s.srv.SetOption(ssh.HostKeyPEM(hostKeyPEM)); err != nil {
		return nil, worldtest.WithStack(err)
	}
	return s, nil
}

// Serve accepts sessions on ln until Close.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return worldtest.WithStack(err)
	}
	return nil
}

func (s *Server) Close() error {
	return worldtest.WithStack(s.srv.Close())
}

// run executes line and returns what it printed. Only detached commands run
// outside the tick thread.
func (s *Server) run(ctx context.Context, line string) (string, error) {
	buf := &bytes.Buffer{}
	if s.console.Detached(line) {
		err := s.console.Execute(buf, line)
		return buf.String(), err
	}
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()
	err := s.loop.Call(ctx, func() error {
		return s.console.Execute(buf, line)
	})
	return buf.String(), err
}

func (s *Server) prompt(ctx context.Context) string {
	progress := ""
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()
	if err := s.loop.Call(ctx, func() error {
		if s.orch.Running() {
			progress = s.orch.Progress()
		}
		return nil
	}); err != nil {
		return "> "
	}
	if progress == "" {
		return "> "
	}
	return fmt.Sprintf("[%s] > ", progress)
}

func (s *Server) HandleSession(sess ssh.Session) {
	t := term.NewTerminal(sess, "> ")
	if pty, winCh, isPTY := sess.Pty(); isPTY {
		t.SetSize(pty.Window.Width, pty.Window.Height)
		go func() {
			for win := range winCh {
				t.SetSize(win.Width, win.Height)
			}
		}()
	}
	if err := s.process(sess.Context(), t); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(t, "InternalServerError: %v\n", err)
		log.Println(err)
		log.Println(worldtest.StackTrace(err))
	}
}

func (s *Server) process(ctx context.Context, t *term.Terminal) error {
	fmt.Fprint(t, "worldtest console, try help\n\n")
	for {
		t.SetPrompt(s.prompt(ctx))
		line, err := t.ReadLine()
		if err != nil {
			return worldtest.WithStack(err)
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if question, found := confirmations[strings.TrimPrefix(strings.Fields(line)[0], "/")]; found {
			ok, err := termio.Confirm(t, question)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(t, "Aborted.")
				continue
			}
		}
		out, err := s.run(ctx, line)
		io.WriteString(t, out)
		if err != nil {
			fmt.Fprintln(t, err)
		}
	}
}
