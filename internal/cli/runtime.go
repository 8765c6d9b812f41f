// Package cli implements the worklog command-line client. Every command that touches the
// document goes through the sync orchestrator.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"worklog/api/internal/config"
	"worklog/api/internal/logging"
	"worklog/api/internal/store"
	"worklog/api/internal/syncer"
	"worklog/api/internal/tracker"
)

// Deps are the seams tests replace.
type Deps struct {
	OpenStore func(ctx context.Context, cfg config.ClientConfig) (store.Store, error)
	Now       func() time.Time
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
}

func DefaultDeps() Deps {
	return Deps{
		OpenStore: openStore,
		Now:       time.Now,
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
	}
}

func openStore(ctx context.Context, cfg config.ClientConfig) (store.Store, error) {
	return store.OpenStore(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		DocumentID:  cfg.DocumentID,
	})
}

// session is one loaded orchestrator plus the store it owns.
type session struct {
	store   store.Store
	orch    *syncer.Orchestrator
	tracker *tracker.Tracker
}

func (a *cliApp) open(ctx context.Context, view syncer.View) (*session, error) {
	st, err := a.deps.OpenStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	orch := syncer.New(st, syncer.Options{View: view})
	if err := orch.Load(ctx); err != nil {
		_ = orch.Close()
		_ = st.Close()
		return nil, err
	}
	return &session{store: st, orch: orch, tracker: tracker.New(a.deps.Now)}, nil
}

func (s *session) Close() error {
	err := s.orch.Close()
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// initLogging uses the text handler on a terminal and JSON otherwise.
func initLogging(w io.Writer, level string, verbose bool) {
	cfg := logging.DefaultConfig()
	cfg.Output = w
	cfg.Level = logging.ParseLevel(level)
	if verbose {
		cfg.Level = logging.ParseLevel("debug")
	}
	cfg.JSON = true
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		cfg.JSON = false
	}
	logging.Init(cfg)
}
