package main

import (
	"context"
	"fmt"
	"time"

	"match-engine/internal/engine"
	"match-engine/internal/models"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and today's outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			status, err := e.QueueStatus(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		})
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent processor runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			runs, err := e.RunHistory(ctx, runsLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), runs)
		})
	},
}

var (
	topCandidate   string
	topOpportunity string
	topLimit       int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the best stored matches for a candidate or an opportunity",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if (topCandidate == "") == (topOpportunity == "") {
			return fmt.Errorf("exactly one of --candidate or --opportunity is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			var (
				records []models.MatchScoreRecord
				err     error
			)
			if topCandidate != "" {
				records, err = e.TopMatchesForCandidate(ctx, topCandidate, topLimit)
			} else {
				records, err = e.TopMatchesForOpportunity(ctx, topOpportunity, topLimit)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		})
	},
}

var (
	enqueueCandidate   string
	enqueueOpportunity string
	enqueuePriority    int
	enqueueActor       string
	enqueueNote        string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a manual recomputation",
	Long: "Enqueue a manual recomputation. Passing both --candidate and --opportunity refreshes one pair; " +
		"passing only one refreshes every score of that candidate or opportunity.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scope, err := scopeFromFlags(enqueueCandidate, enqueueOpportunity)
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			task, err := e.TriggerManualRecompute(ctx, scope, enqueuePriority, enqueueActor, enqueueNote)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), task)
		})
	},
}

func scopeFromFlags(candidateID, opportunityID string) (models.TaskScope, error) {
	switch {
	case candidateID != "" && opportunityID != "":
		return models.PairScope(candidateID, opportunityID), nil
	case candidateID != "":
		return models.CandidateScope(candidateID), nil
	case opportunityID != "":
		return models.OpportunityScope(opportunityID), nil
	default:
		return models.TaskScope{}, fmt.Errorf("--candidate or --opportunity is required")
	}
}

var processBatch int

var processNowCmd = &cobra.Command{
	Use:   "process-now",
	Short: "Claim and process one batch immediately",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			entry, err := e.ProcessBatchNow(ctx, processBatch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		})
	},
}

var purgeAge time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete finished tasks older than --older-than",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			n, err := e.Purge(ctx, purgeAge)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"purged": n})
		})
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")

	topCmd.Flags().StringVar(&topCandidate, "candidate", "", "Candidate id")
	topCmd.Flags().StringVar(&topOpportunity, "opportunity", "", "Opportunity id")
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 10, "Number of matches to show")

	enqueueCmd.Flags().StringVar(&enqueueCandidate, "candidate", "", "Candidate id")
	enqueueCmd.Flags().StringVar(&enqueueOpportunity, "opportunity", "", "Opportunity id")
	enqueueCmd.Flags().IntVarP(&enqueuePriority, "priority", "p", 5, "Priority from 1 (lowest) to 10")
	enqueueCmd.Flags().StringVar(&enqueueActor, "actor", "", "Who is asking (required)")
	enqueueCmd.Flags().StringVar(&enqueueNote, "note", "", "Free-form note appended to the trigger reason")
	if err := enqueueCmd.MarkFlagRequired("actor"); err != nil {
		panic(fmt.Sprintf("failed to mark actor flag as required: %v", err))
	}

	processNowCmd.Flags().IntVarP(&processBatch, "batch", "b", 0, "Batch size (0 uses the configured size)")

	purgeCmd.Flags().DurationVar(&purgeAge, "older-than", 7*24*time.Hour, "Minimum age of finished tasks to delete")

	rootCmd.AddCommand(statusCmd, runsCmd, topCmd, enqueueCmd, processNowCmd, purgeCmd)
}
