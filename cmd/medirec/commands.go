package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/medirec/internal/config"
	"github.com/suPer8Hu/medirec/internal/predict"
	"github.com/suPer8Hu/medirec/internal/store/sqlstore"
	"github.com/suPer8Hu/medirec/internal/symptoms"
)

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "List the symptoms the prediction endpoint understands",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, id := range symptoms.All() {
			fmt.Fprintf(w, "%s\t%s\n", id, symptoms.Label(id))
		}
		return nil
	},
}

var predictSymptoms []string

var predictCmd = &cobra.Command{
	Use:     "predict",
	Short:   "Run one prediction and print the normalized record (not saved)",
	Example: `  medirec predict --symptoms back_pain,mild_fever`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.PredictAPIURL == "" {
			return errors.New("missing PREDICT_API_URL")
		}
		sel := symptoms.NewSelection()
		for _, s := range predictSymptoms {
			if s = strings.TrimSpace(s); s != "" {
				sel.Add(s)
			}
		}
		if sel.Len() == 0 {
			return errors.New("pass at least one symptom with --symptoms")
		}
		if unknown := sel.Unknown(); len(unknown) > 0 {
			return fmt.Errorf("unknown symptoms: %s", strings.Join(unknown, ", "))
		}

		rec, err := predict.NewClient(cfg.PredictAPIURL, cfg.PredictTimeout).Predict(cmd.Context(), sel.List())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL tables used by ROW_STORE=sql",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.DBDSN == "" {
			return errors.New("missing DB_DSN")
		}
		db, err := sqlstore.Open(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := sqlstore.Migrate(db); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		fmt.Fprintln(os.Stderr, "schema up to date")
		return nil
	},
}

func init() {
	predictCmd.Flags().StringSliceVar(&predictSymptoms, "symptoms", nil, "comma-separated symptom ids")
}
