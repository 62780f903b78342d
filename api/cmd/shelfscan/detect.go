package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shelf-scan/api/internal/app"
	"shelf-scan/api/internal/scan"
)

func detectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [image]",
		Short: "Detect products on one image and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := scan.WithSource(cmd.Context(), "cli")
			rec, err := a.Service.Scan(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			return printJSON(cmd, recordView(rec))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
