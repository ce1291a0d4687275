package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocrlab/ocreval/internal/engine"
)

var (
	recognizeImage  string
	recognizeEngine string
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run a single OCR engine and print the recognized text",
	RunE: func(cmd *cobra.Command, args []string) error {
		engines, err := engine.FromConfig(cfg.Engines)
		if err != nil {
			return err
		}

		e := engines[0]
		if recognizeEngine != "" {
			e, err = engine.ByName(engines, recognizeEngine)
			if err != nil {
				return err
			}
		}

		text, err := e.Recognize(cmd.Context(), recognizeImage)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, text)
		return nil
	},
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeImage, "image", "", "image file to recognize (required)")
	recognizeCmd.Flags().StringVar(&recognizeEngine, "engine", "", "engine name (default first configured)")
	_ = recognizeCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(recognizeCmd)
}
