package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/classifier"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
)

var (
	reviewJobID   string
	reviewVendor  string
	reviewHint    string
	reviewInput   string
	reviewOffline bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Re-classify vendors from a prior job with human hints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reqs, err := reviewRequests()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, reviewJobID)
		if err != nil {
			return err
		}
		prior, err := st.GetResults(ctx, reviewJobID)
		if err != nil {
			return err
		}
		vendors, err := st.GetVendors(ctx, reviewJobID)
		if err != nil {
			return err
		}

		tree, err := loadTaxonomy(ctx, st, "")
		if err != nil {
			return err
		}
		gw, err := buildGateway(reviewOffline)
		if err != nil {
			return err
		}

		clCfg := cfg.Classify
		clCfg.TargetLevel = job.TargetLevel

		if err := st.UpdateJobStatus(ctx, job.ID, model.JobStatusReviewing); err != nil {
			return err
		}

		engine := classifier.NewEngine(gw, tree, nil, store.NewJobProgress(st, job.ID), clCfg)
		items, err := engine.Reclassify(ctx, vendors, prior, reqs)
		if err != nil {
			_ = st.UpdateJobStatus(ctx, job.ID, model.JobStatusFailed)
			return eris.Wrap(err, "review job")
		}

		if err := st.SaveReviews(ctx, job.ID, items); err != nil {
			return err
		}
		if err := st.UpdateJobStatus(ctx, job.ID, model.JobStatusComplete); err != nil {
			return err
		}

		engine.Usage().LogCost(cfg.Anthropic.Model, "review")
		zap.L().Info("review complete",
			zap.String("job_id", job.ID),
			zap.Int("items", len(items)),
		)

		return printJSON(items)
	},
}

// reviewRequests assembles the requested items from either the single
// --vendor/--hint pair or a csv with vendor_name,hint columns.
func reviewRequests() ([]model.ReviewRequest, error) {
	if reviewInput == "" {
		if reviewVendor == "" || reviewHint == "" {
			return nil, eris.New("either --input or both --vendor and --hint are required")
		}
		return []model.ReviewRequest{{VendorName: reviewVendor, Hint: reviewHint}}, nil
	}

	f, err := os.Open(reviewInput)
	if err != nil {
		return nil, eris.Wrap(err, "open review csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Header row, then vendor_name,hint per row.
	if _, err := r.Read(); err != nil {
		return nil, eris.Wrap(err, "read review csv header")
	}

	var reqs []model.ReviewRequest
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read review csv row")
		}
		if len(rec) < 2 || rec[0] == "" {
			continue
		}
		reqs = append(reqs, model.ReviewRequest{VendorName: rec[0], Hint: rec[1]})
	}
	if len(reqs) == 0 {
		return nil, eris.Errorf("no review rows in %s", reviewInput)
	}
	return reqs, nil
}

func init() {
	reviewCmd.Flags().StringVar(&reviewJobID, "job", "", "prior job id (required)")
	reviewCmd.Flags().StringVar(&reviewVendor, "vendor", "", "vendor name to re-classify")
	reviewCmd.Flags().StringVar(&reviewHint, "hint", "", "human hint for the re-classification")
	reviewCmd.Flags().StringVar(&reviewInput, "input", "", "csv of vendor_name,hint pairs")
	reviewCmd.Flags().BoolVar(&reviewOffline, "offline", false, "use deterministic stub gateway, no API calls")
	_ = reviewCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(reviewCmd)
}
