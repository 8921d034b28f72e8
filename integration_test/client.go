package integration_test

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	cryptossh "golang.org/x/crypto/ssh"
)

// consoleClient is an operator session on the SSH console.
type consoleClient struct {
	conn    *cryptossh.Client
	session *cryptossh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	readCh  chan readResult
	done    chan struct{}
}

type readResult struct {
	data []byte
	err  error
}

func newConsoleClient(addr string) (*consoleClient, error) {
	config := &cryptossh.ClientConfig{
		User: "operator",
		Auth: []cryptossh.AuthMethod{cryptossh.Password("ignored")},
		// The server under test was started with a fresh key.
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	conn, err := cryptossh.Dial("tcp", addr, config)
	if err != nil {
		return nil, errors.Wrap(err, "dialing console")
	}
	session, err := conn.NewSession()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "creating session")
	}
	cleanup := func(err error, what string) error {
		session.Close()
		conn.Close()
		return errors.Wrap(err, what)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, cleanup(err, "getting stdin")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, cleanup(err, "getting stdout")
	}
	if err := session.RequestPty("xterm", 40, 200, cryptossh.TerminalModes{}); err != nil {
		return nil, cleanup(err, "requesting pty")
	}
	if err := session.Shell(); err != nil {
		return nil, cleanup(err, "starting shell")
	}
	cc := &consoleClient{
		conn:    conn,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		readCh:  make(chan readResult, 100),
		done:    make(chan struct{}),
	}
	go cc.read()
	return cc, nil
}

func (cc *consoleClient) read() {
	buf := make([]byte, 1024)
	for {
		n, err := cc.stdout.Read(buf)
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case cc.readCh <- readResult{data: data, err: err}:
		case <-cc.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (cc *consoleClient) sendLine(s string) error {
	_, err := cc.stdin.Write([]byte(s + "\r"))
	return errors.Wrapf(err, "sending %q", s)
}

// readUntil collects output until match returns true or timeout passes.
func (cc *consoleClient) readUntil(timeout time.Duration, match func(string) bool) string {
	result := &strings.Builder{}
	deadline := time.After(timeout)
	for {
		select {
		case r := <-cc.readCh:
			result.Write(r.data)
			if r.err != nil || (match != nil && match(result.String())) {
				return result.String()
			}
		case <-deadline:
			return result.String()
		}
	}
}

func (cc *consoleClient) waitFor(expected string, timeout time.Duration) (string, bool) {
	output := cc.readUntil(timeout, func(s string) bool {
		return strings.Contains(s, expected)
	})
	return output, strings.Contains(output, expected)
}

// command sends line and returns the output up to the next prompt.
func (cc *consoleClient) command(line string) (string, error) {
	if err := cc.sendLine(line); err != nil {
		return "", err
	}
	prompted := func(s string) bool {
		i := strings.Index(s, line)
		return i >= 0 && strings.Contains(s[i+len(line):], "> ")
	}
	output := cc.readUntil(5*time.Second, prompted)
	if !prompted(output) {
		return output, errors.Errorf("%q did not return to the prompt: %q", line, output)
	}
	return output, nil
}

func (cc *consoleClient) Close() {
	close(cc.done)
	cc.stdin.Close()
	cc.session.Close()
	cc.conn.Close()
}

func waitForCondition(timeout time.Duration, interval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
