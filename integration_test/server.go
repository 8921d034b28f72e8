package integration_test

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest/config"
	"github.com/zond/worldtest/pemfile"
	"github.com/zond/worldtest/server"
	"github.com/zond/worldtest/worldtests"
)

// TestServer is a server hosting the sample suite on a random port.
type TestServer struct {
	*server.Server
	tmpDir      string
	sshListener net.Listener
	cancel      context.CancelFunc
}

// NewTestServer starts a server with its state in a fresh temporary directory.
func NewTestServer(out io.Writer) (*TestServer, error) {
	tmpDir, err := os.MkdirTemp("", "worldtest-integration-*")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// A small key keeps startup fast.
	keys := pemfile.InDir(tmpDir)
	keys.Bits = 2048
	if err := keys.Generate(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	cfg := config.Default()
	cfg.Engine.TickRate = 5 * time.Millisecond
	cfg.Console.Dir = tmpDir
	cfg.Reports.History = filepath.Join(tmpDir, "history.db")
	cfg.Reports.JUnit = filepath.Join(tmpDir, "junit.xml")
	cfg.Reports.Journal = filepath.Join(tmpDir, "journal.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(ctx, cfg, server.Suite{
		Templates: worldtests.Templates(),
		Register:  worldtests.Register,
		Out:       out,
	})
	if err != nil {
		cancel()
		os.RemoveAll(tmpDir)
		return nil, err
	}
	sshLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		srv.Close()
		os.RemoveAll(tmpDir)
		return nil, errors.WithStack(err)
	}
	ts := &TestServer{
		Server:      srv,
		tmpDir:      tmpDir,
		sshListener: sshLn,
		cancel:      cancel,
	}
	go func() {
		srv.StartWithListener(ctx, sshLn)
	}()

	ready := waitForCondition(5*time.Second, 50*time.Millisecond, func() bool {
		conn, err := net.DialTimeout("tcp", ts.SSHAddr(), 100*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
	if !ready {
		ts.Close()
		return nil, errors.New("server did not become ready")
	}
	return ts, nil
}

func (ts *TestServer) Close() {
	ts.cancel()
	ts.Server.Close()
	os.RemoveAll(ts.tmpDir)
}

func (ts *TestServer) SSHAddr() string {
	return ts.sshListener.Addr().String()
}

// JUnitPath is where the server writes its JUnit report.
func (ts *TestServer) JUnitPath() string {
	return filepath.Join(ts.tmpDir, "junit.xml")
}
