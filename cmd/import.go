package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/icp"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
	"github.com/lenilani/leadscout/internal/source"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		profile, err := icp.Load(cfg.ICP.Profile)
		if err != nil {
			return err
		}

		// A local path with an empty query reads every row in the file.
		src := source.NewDirectory(importFilePath, nil, nil)
		candidates, err := src.Search(ctx, "")
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		leads := leadsFromCandidates(candidates, profile)
		imported, err := st.ImportLeads(ctx, leads)
		if err != nil {
			return eris.Wrap(err, "import leads")
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.Int("skipped", len(candidates)-imported),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// leadsFromCandidates converts parsed rows into leads ready for bulk upsert.
// Imported rows are scored but never dropped: these are existing CRM
// relationships, not prospects auditioning for admission.
func leadsFromCandidates(candidates []model.Candidate, profile *icp.Profile) []model.Lead {
	now := time.Now().UTC()
	leads := make([]model.Lead, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		keys := normalize.ForCandidate(*c)
		score, breakdown := profile.Score(c)
		leads = append(leads, model.Lead{
			CompanyName:    c.Name,
			Website:        c.Website,
			ContactEmail:   c.Email,
			ContactPhone:   c.Phone,
			Industry:       c.Industry,
			Location:       c.Location,
			EmployeeCount:  c.EmployeeCount,
			PainPoints:     c.PainPoints,
			TechStack:      c.TechStack,
			Score:          score,
			ScoreBreakdown: breakdown,
			Status:         model.LeadStatusNew,
			Source:         "import",
			NameKey:        keys.Name,
			WebsiteKey:     keys.Website,
			PhoneKey:       keys.Phone,
			CreatedAt:      now,
		})
	}
	return leads
}
