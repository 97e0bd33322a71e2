// Command gaiad runs a Gaia protocol core node: the task lifecycle
// engine over an in-memory or PostgreSQL substrate, served over gRPC.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"gopkg.in/urfave/cli.v1"

	gaiagrpc "github.com/arko05roy/gaia-core/grpc"
	"github.com/arko05roy/gaia-core/protocol"
	"github.com/arko05roy/gaia-core/rules"
	"github.com/arko05roy/gaia-core/store"
)

func main() {
	app := cli.NewApp()
	app.Name = "gaiad"
	app.Usage = "Gaia task lifecycle and verification node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Usage: "gRPC listen address",
			Value: "127.0.0.1:7470",
		},
		cli.StringFlag{
			Name:  "postgres",
			Usage: "PostgreSQL DSN; empty runs the in-memory substrate",
		},
		cli.StringFlag{
			Name:  "rules",
			Usage: "Path to a rules JSON file; empty uses defaults",
		},
		cli.StringFlag{
			Name:  "log.level",
			Usage: "Log level (trace|debug|info|warn|error)",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "log.pretty",
			Usage: "Human-readable console log output",
		},
		cli.DurationFlag{
			Name:  "sweep.interval",
			Usage: "How often to finalize tasks past their deadline; 0 disables the sweep",
			Value: time.Minute,
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(ctx *cli.Context) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(ctx.String("log.level"))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}
	out := zerolog.New(os.Stdout)
	if ctx.Bool("log.pretty") {
		w := zerolog.NewConsoleWriter()
		w.TimeFormat = time.DateTime
		out = out.Output(w)
	}
	return out.Level(level).With().Timestamp().Logger(), nil
}

func run(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return err
	}

	r := rules.DefaultRules()
	if path := ctx.String("rules"); path != "" {
		if r, err = rules.Load(path); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if dsn := ctx.String("postgres"); dsn != "" {
		pg, err := store.NewPostgresStore(rootCtx, dsn)
		if err != nil {
			return fmt.Errorf("open postgres substrate: %w", err)
		}
		st = pg
		log.Info().Msg("using postgres substrate")
	} else {
		st = store.NewMemoryStore()
		log.Warn().Msg("using in-memory substrate, state is not durable")
	}
	defer st.Close()

	core, err := protocol.New(rootCtx, st, r, protocol.WithLogger(log))
	if err != nil {
		return fmt.Errorf("start protocol core: %w", err)
	}

	if interval := ctx.Duration("sweep.interval"); interval > 0 {
		go sweepExpired(rootCtx, core, interval, log)
	}

	addr := ctx.String("listen")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	gs := grpc.NewServer()
	gaiagrpc.NewGRPCServer(core).Register(gs)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()
	log.Info().
		Str("listen", addr).
		Str("rules", r.Name).
		Msg("gaiad started")

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutting down")
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// sweepExpired periodically rejects in-progress tasks whose voting
// deadline has elapsed without a quorum.
func sweepExpired(ctx context.Context, core *protocol.Engine, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := core.FinalizeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("deadline sweep failed")
				continue
			}
			if len(ids) > 0 {
				log.Info().Uints64("tasks", ids).Msg("finalized expired tasks")
			}
		}
	}
}
