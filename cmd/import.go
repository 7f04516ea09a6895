package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/taxonomy"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a taxonomy workbook into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tree, err := taxonomy.LoadXLSX(importFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs := tree.Records()
		if err := st.SaveTaxonomy(ctx, recs); err != nil {
			return err
		}

		zap.L().Info("taxonomy imported",
			zap.String("file", importFile),
			zap.Int("categories", len(recs)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "taxonomy .xlsx workbook (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
