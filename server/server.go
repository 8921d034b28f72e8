// Package server wires the world, the test engine, the reporters and the
// operator console into one process.
package server

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/command"
	"github.com/zond/worldtest/config"
	"github.com/zond/worldtest/console"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/loop"
	"github.com/zond/worldtest/metrics"
	"github.com/zond/worldtest/pemfile"
	"github.com/zond/worldtest/report"
	"github.com/zond/worldtest/storage"
	"github.com/zond/worldtest/world"
	"github.com/zond/worldtest/world/memworld"

	gossh "golang.org/x/crypto/ssh"
)

// Suite is the set of tests a server hosts.
type Suite struct {
	Templates world.TemplateSource
	Register  func(r *gametest.Registry)
	// Out receives the human readable reports. Defaults to stdout.
	Out io.Writer
}

type Server struct {
	config  *config.Config
	world   *memworld.World
	orch    *gametest.Orchestrator
	loop    *loop.Loop
	console *command.Console
	history *storage.History
	journal *storage.Journal
	ssh     *console.Server

	loopOnce sync.Once
	loopErr  error
	cancel   context.CancelFunc
	// waiters is only touched on the tick thread.
	waiters []chan report.Tally
}

func New(ctx context.Context, cfg *config.Config, suite Suite) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if suite.Out == nil {
		suite.Out = os.Stdout
	}
	s := &Server{config: cfg}
	if suite.Templates == nil {
		suite.Templates = world.Templates{}
	}
	s.world = memworld.New(world.NewTemplateCache(suite.Templates, cfg.Template.CacheTTL, cfg.Template.CacheSize))

	reporters := gametest.Reporters{
		report.NewLogSink(suite.Out, report.LogOptions{Stacks: cfg.Logging.Stacks}),
		&report.MetricsSink{},
	}
	if cfg.Reports.Table {
		reporters = append(reporters, report.NewTableSink(suite.Out))
	}
	if cfg.Reports.JUnit != "" {
		reporters = append(reporters, report.NewJUnitSink(cfg.Reports.JUnit))
	}
	if cfg.Reports.Journal != "" {
		journal, err := storage.NewJournal(cfg.Reports.Journal, storage.JournalOptions{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
		s.journal = journal
		reporters = append(reporters, report.NewJSONSink(journal))
	}
	if cfg.Reports.History != "" {
		history, err := storage.OpenHistory(ctx, cfg.Reports.History)
		if err != nil {
			if s.journal != nil {
				s.journal.Close()
			}
			return nil, err
		}
		s.history = history
		reporters = append(reporters, report.NewHistorySink(history, cfg.Reports.HistoryKeep))
	}

	reg := gametest.NewRegistry()
	if suite.Register != nil {
		suite.Register(reg)
	}
	s.orch = gametest.NewOrchestrator(gametest.Options{
		Registry:    reg,
		World:       s.world,
		Reporter:    reporters,
		Origin:      cfg.Engine.Origin,
		Rotation:    cfg.Engine.Rotation,
		RowWidth:    cfg.Engine.RowWidth,
		ClearRadius: cfg.Engine.ClearRadius,
	})
	s.orch.OnRunFinished(s.runFinished)
	s.console = command.New(s.orch, s.history)

	ticker := s.orch.Ticker()
	s.loop = loop.New(loop.Config{
		TickRate:    cfg.Engine.TickRate,
		MaxCommands: cfg.Engine.MaxCommands,
	}, s.world.Tick, func() {
		ticker.Tick()
		metrics.LiveExecutions.Set(float64(ticker.Len()))
	})
	return s, nil
}

func (s *Server) World() *memworld.World {
	return s.world
}

func (s *Server) Orchestrator() *gametest.Orchestrator {
	return s.orch
}

func (s *Server) Loop() *loop.Loop {
	return s.loop
}

// History is nil unless a history database is configured.
func (s *Server) History() *storage.History {
	return s.history
}

func (s *Server) runFinished(roster *gametest.Collector) {
	tally := report.Tally{}
	for _, e := range roster.Executions() {
		tally.Add(report.FromExecution(e))
	}
	for _, w := range s.waiters {
		w <- tally
	}
	s.waiters = nil
}

func (s *Server) startLoop(ctx context.Context) error {
	s.loopOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.loopErr = s.loop.Start(ctx)
		if s.loopErr == nil && s.config.Metrics.Addr != "" {
			go func() {
				if err := metrics.Serve(ctx, s.config.Metrics.Addr); err != nil {
					log.Printf("metrics server: %v", err)
				}
			}()
		}
	})
	return s.loopErr
}

// Start listens for console sessions on the configured address.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Console.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", s.config.Console.Addr)
	}
	return s.StartWithListener(ctx, ln)
}

// StartWithListener starts the tick loop and serves the console on ln until Close.
func (s *Server) StartWithListener(ctx context.Context, ln net.Listener) error {
	pemBytes, signer, err := pemfile.InDir(s.config.Console.Dir).Ensure()
	if err != nil {
		return err
	}
	s.ssh, err = console.New(s.loop, s.console, s.orch, pemBytes)
	if err != nil {
		return err
	}
	if err := s.startLoop(ctx); err != nil {
		return err
	}
	log.Printf("Console on %q with host key %q", ln.Addr(), gossh.FingerprintSHA256(signer.PublicKey()))
	return s.ssh.Serve(ln)
}

// RunOnce runs the tests matching selector and waits for the run to finish.
func (s *Server) RunOnce(ctx context.Context, selector string) (report.Tally, error) {
	if err := s.startLoop(ctx); err != nil {
		return report.Tally{}, err
	}
	done := make(chan report.Tally, 1)
	if err := s.loop.Call(ctx, func() error {
		// A run whose tests all fail to place finishes inside RunAll.
		s.waiters = append(s.waiters, done)
		if _, err := s.orch.RunAll(selector); err != nil {
			s.waiters = slices.DeleteFunc(s.waiters, func(w chan report.Tally) bool { return w == done })
			return err
		}
		return nil
	}); err != nil {
		return report.Tally{}, err
	}
	select {
	case tally := <-done:
		return tally, nil
	case <-ctx.Done():
		return report.Tally{}, worldtest.WithStack(ctx.Err())
	}
}

// Close stops the loop and the console, and closes the stores.
func (s *Server) Close() error {
	if s.ssh != nil {
		if err := s.ssh.Close(); err != nil {
			log.Printf("closing console: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.loop != nil {
		s.loop.Stop()
	}
	var errs worldtest.Errs
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.Err()
}
