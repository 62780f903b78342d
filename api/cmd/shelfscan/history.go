package main

import (
	"time"

	"github.com/spf13/cobra"

	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/scan"
	"shelf-scan/api/internal/store"
)

type recordJSON struct {
	ID         int64                     `json:"id"`
	ImageName  string                    `json:"image_name"`
	UploadTime time.Time                 `json:"upload_time"`
	Products   []product.DetectedProduct `json:"products"`
	ImageURL   string                    `json:"image_url,omitempty"`
}

func recordView(r store.Record) recordJSON {
	p := r.Products
	if p == nil {
		p = []product.DetectedProduct{}
	}
	return recordJSON{ID: r.ID, ImageName: r.ImageName, UploadTime: r.UploadTime, Products: p, ImageURL: r.ImageURL}
}

func historyCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent detections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, err := store.Open(cmd.Context(), c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			repo := store.NewDetectionRepo(db, dialect)
			if err := repo.EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			var recs []store.Record
			if limit > 0 {
				// явный --limit обходит потолок HTTP-истории
				recs, err = repo.Recent(cmd.Context(), limit)
			} else {
				svc := &scan.Service{Repo: repo, HistoryLimit: c.cfg.HistoryLimit, Log: c.log}
				recs, err = svc.History(cmd.Context())
			}
			if err != nil {
				return err
			}
			out := make([]recordJSON, 0, len(recs))
			for _, r := range recs {
				out = append(out, recordView(r))
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of records (default HISTORY_LIMIT)")
	return cmd
}
