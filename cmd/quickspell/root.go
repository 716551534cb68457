package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quickspell/internal/app"
	"quickspell/internal/config"
	"quickspell/internal/domain"
	"quickspell/internal/eventbus"
	"quickspell/internal/metrics"
	"quickspell/internal/provider"
	"quickspell/internal/spells"
	"quickspell/internal/template"
	"quickspell/internal/ui"
)

var (
	cfgFile     string
	metricsAddr string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quickspell",
		Short:         "A keyboard driven launcher for shell defined spells",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()
			return runTUI(cmd.Context(), env)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. localhost:9090")

	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewQueryCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// environment is the wiring shared by every command
type environment struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Metrics
	closers []io.Closer
}

func setup() (*environment, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log, closer, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, log: log, metrics: metrics.New()}
	if closer != nil {
		env.closers = append(env.closers, closer)
	}
	return env, nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

// newLogger writes to the configured log file, discarding output when it
// cannot be opened so the terminal stays clean.
func newLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetOutput(io.Discard)

	if cfg.LogFile == "" {
		return log, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return log, nil, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return log, nil, nil
	}
	log.SetOutput(f)
	return log, f, nil
}

func (e *environment) loadSpells() (map[string]domain.Spell, error) {
	return spells.LoadDir(e.cfg.SpellsDir, e.cfg.SpellPattern, e.log)
}

// newSession wires a session and the bus it publishes on
func (e *environment) newSession(startingSpell string) (*app.Session, eventbus.EventBus, error) {
	resolver, err := template.NewResolver(e.cfg.TemplateCacheSize)
	if err != nil {
		return nil, nil, err
	}
	runner := provider.NewRunner(provider.Config{
		Dir:      e.cfg.ResourcesDir,
		Shell:    e.cfg.Shell,
		Interval: e.cfg.StreamInterval,
		Logger:   e.log,
	})

	filterLog := metrics.NewFilterLog(e.cfg.FilterLogFile, e.metrics)
	e.closers = append(e.closers, filterLog)

	bus := eventbus.New(e.log)
	if startingSpell == "" {
		startingSpell = e.cfg.StartingSpell
	}
	session, err := app.New(app.Options{
		Load:          e.loadSpells,
		Runner:        runner,
		Resolver:      resolver,
		Bus:           bus,
		Metrics:       e.metrics,
		FilterSink:    filterLog,
		StartingSpell: startingSpell,
		Logger:        e.log,
	})
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return session, bus, nil
}

func runTUI(ctx context.Context, env *environment) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		go serveMetrics(ctx, metricsAddr, env.metrics, env.log)
	}

	session, bus, err := env.newSession("")
	if err != nil {
		return err
	}
	defer bus.Close()

	model := ui.NewModel(ctx, session, env.cfg, env.log)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := ui.ForwardEvents(bus, p.Send)
	defer unsubscribe()

	// A failed start is shown by the UI as the Error state
	if err := session.Start(ctx); err != nil {
		env.log.WithError(err).Error("session start failed")
	}

	env.log.Info("starting UI")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		env.log.WithError(err).Error("error running program")
		return fmt.Errorf("error running program: %w", err)
	}
	env.log.Info("UI exited normally")
	return nil
}

// serveMetrics exposes the prometheus registry until ctx is done
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server failed")
	}
}
