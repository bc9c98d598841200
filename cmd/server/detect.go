package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/infrastructure/htmldoc"
)

type detectOptions struct {
	url         string
	contentType string
}

func newDetectCommand(root *rootOptions) *cobra.Command {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect the food product of a saved HTML page",
		Long:  `Reads an HTML page from file, or stdin when no file is given, and prints the detected food categories and ranked product candidates as JSON.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readPage(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runDetect(cmd.OutOrStdout(), root, opts, content)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "about:blank", "URL the page was saved from")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "text/html", "Content-Type the page was served with")

	return cmd
}

func readPage(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return content, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return content, nil
}

func runDetect(out io.Writer, root *rootOptions, opts *detectOptions, content []byte) error {
	if len(content) == 0 {
		return errors.New("page is empty")
	}

	cfg, log, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	det, err := buildDetection(cfg, log)
	if err != nil {
		return err
	}

	doc, err := htmldoc.Load(opts.url, content, opts.contentType, htmldoc.WithViewportHeight(cfg.Detection.ViewportHeight))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	result := det.detector.Detect(doc)
	log.Debug("detection finished",
		zap.Bool("isFoodPage", result.IsFoodPage),
		zap.Int("candidates", len(result.Candidates)),
	)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
