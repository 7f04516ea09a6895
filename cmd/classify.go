package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/classifier"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
)

var (
	classifyInput    string
	classifyTaxonomy string
	classifyName     string
	classifyLevel    int
	classifyOffline  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a vendor list into the taxonomy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		vendors, err := loadVendors(classifyInput)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tree, err := loadTaxonomy(ctx, st, classifyTaxonomy)
		if err != nil {
			return err
		}

		gw, err := buildGateway(classifyOffline)
		if err != nil {
			return err
		}
		searcher := buildSearcher(classifyOffline)

		clCfg := cfg.Classify
		if classifyLevel > 0 {
			clCfg.TargetLevel = classifyLevel
		}
		if err := clCfg.Validate(); err != nil {
			return err
		}

		name := classifyName
		if name == "" {
			name = classifyInput
		}
		job, err := st.CreateJob(ctx, name, clCfg.TargetLevel, len(vendors))
		if err != nil {
			return err
		}
		if err := st.SaveVendors(ctx, job.ID, vendors); err != nil {
			return err
		}
		zap.L().Info("job created",
			zap.String("job_id", job.ID),
			zap.Int("vendors", len(vendors)),
			zap.Int("target_level", clCfg.TargetLevel),
		)

		if err := st.UpdateJobStatus(ctx, job.ID, model.JobStatusClassifying); err != nil {
			return err
		}

		engine := classifier.NewEngine(gw, tree, searcher, store.NewJobProgress(st, job.ID), clCfg)
		results, err := engine.ClassifyAll(ctx, vendors)

		// Persist whatever was produced even on cancellation.
		if saveErr := st.SaveResults(ctx, job.ID, results); saveErr != nil {
			zap.L().Error("save results failed", zap.Error(saveErr))
		}
		stats := engine.Stats()
		if saveErr := st.SaveStats(ctx, job.ID, stats); saveErr != nil {
			zap.L().Error("save stats failed", zap.Error(saveErr))
		}

		status := model.JobStatusComplete
		if err != nil {
			status = model.JobStatusFailed
		}
		if stErr := st.UpdateJobStatus(ctx, job.ID, status); stErr != nil {
			zap.L().Error("update job status failed", zap.Error(stErr))
		}
		if err != nil {
			return eris.Wrap(err, "classify job")
		}

		engine.Usage().LogCost(cfg.Anthropic.Model, "classify")
		zap.L().Info("job complete",
			zap.String("job_id", job.ID),
			zap.Int64("model_calls", stats.ModelCalls),
			zap.Int64("search_attempts", stats.SearchAttempts),
			zap.Int64("invalid_categories", stats.InvalidCategories),
		)

		return printJSON(classifySummary{JobID: job.ID, Stats: stats, Results: results})
	},
}

type classifySummary struct {
	JobID   string              `json:"job_id"`
	Stats   model.StatsSnapshot `json:"stats"`
	Results model.ResultSet     `json:"results"`
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "vendor list file, .csv or .xlsx (required)")
	classifyCmd.Flags().StringVar(&classifyTaxonomy, "taxonomy", "", "taxonomy .xlsx (default: stored snapshot)")
	classifyCmd.Flags().StringVar(&classifyName, "name", "", "job name (default: input file name)")
	classifyCmd.Flags().IntVar(&classifyLevel, "target-level", 0, "deepest taxonomy level to reach, 1-5 (default from config)")
	classifyCmd.Flags().BoolVar(&classifyOffline, "offline", false, "use deterministic stub gateways, no API calls")
	_ = classifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(classifyCmd)
}
