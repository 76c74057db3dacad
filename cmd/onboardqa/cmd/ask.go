package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/logging"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/ui"
	"github.com/Aman-CERP/onboardqa/internal/validation"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	userID     int64
	name       string
	role       string
	department string
	verbose    bool
	jsonOutput bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask an onboarding question",
		Long: `Ask a single question against the policy corpus.

The question is routed to a department agent, answered from retrieved
policy text, and printed with sources and confidence.

Examples:
  onboardqa ask "How many vacation days do I get?"
  onboardqa ask "How do I set up VPN?" --verbose
  onboardqa ask "When are expense reports due?" --department Finance --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runAsk(cmd.Context(), cmd, question, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.userID, "user-id", 0, "User ID for conversation memory")
	cmd.Flags().StringVar(&opts.name, "name", "", "User name for the profile")
	cmd.Flags().StringVar(&opts.role, "role", "", "User role for the profile")
	cmd.Flags().StringVar(&opts.department, "department", "", "User's own department")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show routing details")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger := slog.Default()
	if l, cleanup, err := logging.Setup(logCfg); err == nil {
		logger = l
		defer cleanup()
	}

	if err := validation.ValidateQuery(question); err != nil {
		return err
	}

	cfg, err := config.Load(".")
	if err != nil {
		cfg = config.NewConfig()
	}

	logger.Info("ask_started", slog.String("question", question), slog.Int64("user_id", opts.userID))

	svc, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp := svc.Orchestrator.Process(ctx, orchestrate.Request{
		UserID:  opts.userID,
		Message: question,
		Profile: orchestrate.Profile{
			Name:       opts.name,
			Role:       opts.role,
			Department: opts.department,
		},
	})

	logger.Info("ask_complete",
		slog.String("department", resp.Routing.FinalDepartment),
		slog.Int64("total_ms", resp.TotalTimeMS))

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	renderer := ui.NewAnswerRenderer(cmd.OutOrStdout(), ui.DetectNoColor(), opts.verbose)
	if err := renderer.Render(resp); err != nil {
		return fmt.Errorf("failed to render answer: %w", err)
	}
	return nil
}
