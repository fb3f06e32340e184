// Command combatsim plays combat scenarios through the rules engine.
//
//	combatsim -config config.yaml scenarios/*.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/magefree/mage-rules-go/internal/config"
	"github.com/magefree/mage-rules-go/internal/game/engine"
	"github.com/magefree/mage-rules-go/internal/game/replay"
	"github.com/magefree/mage-rules-go/internal/logging"
	"github.com/magefree/mage-rules-go/internal/scenario"
)

var (
	configPath = flag.String("config", "", "path to configuration file")
	parallel   = flag.Int("parallel", 4, "maximum scenarios run at once")
	replayDir  = flag.String("replay-dir", "", "directory to save scenario event journals")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: combatsim [-config file] scenario.yaml...")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting combatsim",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Int("scenarios", flag.NArg()))

	if err := run(ctx, logger, cfg, flag.Args()); err != nil {
		logger.Error("combatsim failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("all scenarios passed")
}

// engineOptions maps configuration onto engine options.
func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		UseTriggerIndex:          cfg.Engine.UseTriggerIndex,
		VerifyTriggerIndex:       cfg.Engine.VerifyTriggerIndex,
		MaxReplacementIterations: cfg.Damage.MaxReplacementIterations,
		AutoOrderBlockers:        cfg.Combat.AutoOrderBlockers,
	}
}

// run loads every scenario first, then plays them concurrently with one
// engine each.
func run(ctx context.Context, logger *zap.Logger, cfg *config.Config, paths []string) error {
	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}

	opts := engineOptions(cfg)
	var recorder *replay.Recorder
	if *replayDir != "" {
		recorder = replay.NewRecorder(logger, *replayDir)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for _, s := range scenarios {
		s := s // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			out, err := scenario.Run(gctx, s, logger, opts)
			if err != nil {
				return err
			}
			if recorder != nil {
				if err := recorder.Save(out.Journal); err != nil {
					return err
				}
			}
			logger.Info("scenario passed",
				zap.String("scenario", out.Name),
				zap.Int("damage_steps", len(out.Steps)),
				zap.Int("events", out.Journal.Size()),
				zap.Any("life", out.Life))
			return nil
		})
	}
	return g.Wait()
}
