package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/dataset"
	"github.com/Brownie44l1/waste-classifier/internal/history"
	"github.com/Brownie44l1/waste-classifier/internal/imaging"
	"github.com/Brownie44l1/waste-classifier/internal/logger"
	"github.com/Brownie44l1/waste-classifier/internal/model"
	"github.com/Brownie44l1/waste-classifier/internal/training"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid training config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Log, "classifier-train")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := dataset.Scan(cfg.DatasetDir)
	if err != nil {
		return err
	}
	train, validation, err := dataset.Split(ds.Samples, cfg.ValidationSplit, cfg.Seed)
	if err != nil {
		return err
	}

	counts := dataset.CountByClass(ds.Samples, len(ds.Classes))
	for i, class := range ds.Classes {
		log.Info("Class", zap.String("label", class), zap.Int("images", counts[i]))
	}
	log.Info("Dataset loaded",
		zap.String("dir", cfg.DatasetDir),
		zap.Int("classes", len(ds.Classes)),
		zap.Int("training", len(train)),
		zap.Int("validation", len(validation)),
	)

	manifest, err := training.LoadManifest(cfg.ArtifactsDir)
	if err != nil {
		return err
	}
	if err := manifest.Check(cfg, len(ds.Classes)); err != nil {
		return fmt.Errorf("training artifacts do not match this run: %w", err)
	}

	if err := model.InitRuntime(cfg.LibraryPath); err != nil {
		return err
	}
	defer func() { _ = model.ShutdownRuntime() }()

	metadata := model.NewMetadata(ds.Classes, manifest.ImageSize, manifest.Layout, manifest.InputName, manifest.OutputName)
	if err := metadata.Validate(); err != nil {
		return err
	}
	loader := dataset.Loader{Preprocessor: imaging.NewPreprocessor(metadata)}

	session, err := training.NewOrtSession(cfg.ArtifactsDir, manifest, cfg.BatchSize, cfg.IntraOpThreads)
	if err != nil {
		return err
	}
	defer session.Close()

	evaluator := &training.OrtEvaluator{
		Metadata:       metadata,
		Loader:         loader,
		IntraOpThreads: cfg.IntraOpThreads,
	}

	opts := training.Options{Logger: log}

	var recorder *historyRecorder
	if cfg.History.DSN != "" {
		store, err := history.Open(cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		recorder, err = startRun(ctx, store, cfg, ds.Classes)
		if err != nil {
			return err
		}
		opts.Recorder = recorder
		log.Info("Recording run history", zap.String("driver", cfg.History.Driver), zap.Int64("run_id", recorder.runID))
	}

	log.Info("Starting training",
		zap.String("backbone", manifest.Backbone),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Float64("learning_rate", cfg.LearningRate),
		zap.Int("trainable_layers", cfg.TrainableLayers),
	)

	trainer := training.NewTrainer(cfg, metadata, train, validation, loader, session, evaluator, opts)
	result, err := trainer.Fit(ctx)
	if err != nil {
		return err
	}

	if recorder != nil {
		if err := recorder.finish(ctx, result); err != nil {
			log.Warn("Failed to finish run history", zap.Error(err))
		}
	}

	log.Info("Training finished",
		zap.String("best_checkpoint", result.BestCheckpoint),
		zap.Float64("best_accuracy", result.BestAccuracy),
		zap.String("final_model", result.FinalModel),
	)
	return nil
}

func parseConfig(args []string) (training.Config, error) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML training config")
	datasetDir := fs.String("dataset", "", "dataset directory, one subdirectory per class")
	artifactsDir := fs.String("artifacts", "", "directory holding the training artifacts and manifest.json")
	outputDir := fs.String("out", "", "where checkpoints and the final model are written")
	epochs := fs.Int("epochs", 0, "number of epochs")
	libraryPath := fs.String("ort-lib", "", "path to the onnxruntime shared library")
	historyDSN := fs.String("history", "", "run history DSN; \"none\" disables it")
	if err := fs.Parse(args); err != nil {
		return training.Config{}, err
	}

	cfg, err := training.LoadConfig(*configPath)
	if err != nil {
		return training.Config{}, err
	}

	if *datasetDir != "" {
		cfg.DatasetDir = *datasetDir
	}
	if *artifactsDir != "" {
		cfg.ArtifactsDir = *artifactsDir
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *epochs > 0 {
		cfg.Epochs = *epochs
	}
	if *libraryPath != "" {
		cfg.LibraryPath = *libraryPath
	}
	switch strings.ToLower(*historyDSN) {
	case "":
	case "none":
		cfg.History.DSN = ""
	default:
		cfg.History.DSN = *historyDSN
	}
	return cfg, nil
}
