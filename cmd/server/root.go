package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecolens/backend/config"
	httpDelivery "github.com/ecolens/backend/internal/delivery/http"
	"github.com/ecolens/backend/internal/infrastructure/corpus"
	"github.com/ecolens/backend/internal/infrastructure/logger"
	"github.com/ecolens/backend/internal/usecase"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ecolens",
		Short:         "EcoLens food product detection backend",
		Long:          `EcoLens detects the food product a shopping page is about and looks up its sustainability data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is ./config.yaml, ./config/config.yaml or /etc/ecolens/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newDetectCommand(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ecolens %s\n", httpDelivery.Version)
		},
	})

	return root
}

// load reads the configuration and builds the logger for a command
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// detection bundles the classifier, extractor and detector built from one corpus
type detection struct {
	classifier *usecase.Classifier
	extractor  *usecase.Extractor
	detector   *usecase.Detector
}

func buildDetection(cfg *config.Config, log *zap.Logger) (*detection, error) {
	c, err := corpus.Load(cfg.Matching.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load food corpus: %w", err)
	}

	classifier := usecase.NewClassifier(c.CategoryTerms, c.FoodDescriptions, usecase.ClassifierConfig{
		CategoryThreshold:    cfg.Matching.CategoryThreshold,
		DescriptionThreshold: cfg.Matching.DescriptionThreshold,
	}, log)
	extractor := usecase.NewExtractor(classifier, usecase.NewNormalizer(log), log)

	log.Info("food corpus loaded",
		zap.Int("categoryTerms", len(c.CategoryTerms)),
		zap.Int("foodDescriptions", len(c.FoodDescriptions)),
		zap.String("path", cfg.Matching.CorpusPath),
	)

	return &detection{
		classifier: classifier,
		extractor:  extractor,
		detector:   usecase.NewDetector(classifier, extractor),
	}, nil
}
