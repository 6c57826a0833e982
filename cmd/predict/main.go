package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/segtta/internal/app"
	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/dataset"
	"github.com/Brownie44l1/segtta/internal/logging"
	"github.com/Brownie44l1/segtta/internal/mask"
	"github.com/Brownie44l1/segtta/internal/predict"
)

func main() {
	var root, configPath string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Write test-time-augmented segmentation masks for data/test/x",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, root, configPath)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&root, "root", ".", "project directory holding config/, data/ and results/")
	cmd.Flags().StringVar(&configPath, "config", "", "predict config (default <root>/config/predict.yaml)")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("Prediction failed: %v", err)
	}
}

func run(ctx context.Context, root, configPath string) error {
	env, err := app.Load(root, configPath)
	if err != nil {
		return err
	}

	out, err := env.Layout.NewRun(env.Predict.TrainSerial, time.Now())
	if err != nil {
		return err
	}

	logger, err := logging.New("pred", env.Predict.Verbose, out.LogPath())
	if err != nil {
		return err
	}
	defer logger.Sync()

	paths, err := env.Layout.TestImages()
	if err != nil {
		return err
	}
	ds, err := env.Dataset(paths)
	if err != nil {
		return err
	}
	loader, err := dataset.NewLoader(ds, env.Predict.BatchSize, env.Predict.NumWorkers)
	if err != nil {
		return err
	}
	logger.Infof("Load test dataset: %d", ds.Len())

	env.CheckScheduler(logger)

	session, err := env.OpenModel(logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := config.Save(out.TrainConfigCopy(), env.Train); err != nil {
		return err
	}
	if err := config.Save(out.PredictConfigCopy(), env.Predict); err != nil {
		return err
	}

	runner := &predict.Runner{
		Model:    session,
		Geometry: env.Geometry,
		Runtime:  env.Runtime,
		Logger:   logger,
		Progress: os.Stderr,
	}
	stats, err := runner.Run(ctx, loader, &mask.Writer{Dir: out.MaskDir})
	if err != nil {
		return err
	}
	logger.Infof("Saved %d masks to %s", stats.Masks, out.MaskDir)
	return nil
}
