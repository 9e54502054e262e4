package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/escape-engine/internal/config"
	"github.com/jwebster45206/escape-engine/internal/storage"
	"github.com/jwebster45206/escape-engine/pkg/restraint"
)

var checkSessions bool

var validateCmd = &cobra.Command{
	Use:   "validate [policy-file]",
	Short: "Check a safety policy file",
	Long: `Validate parses a safety policy file and reports what it disallows.
Names that match no restraint kind are errors. With --sessions, persisted
sessions are also checked against the policy; any that fail would be ended
at the next start.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&checkSessions, "sessions", false, "also check persisted sessions against the policy")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path := cfg.SafetyPolicyFile
	if len(args) == 1 {
		path = args[0]
	}

	out := cmd.OutOrStdout()
	catalog := restraint.DefaultCatalog()

	fmt.Fprintf(out, "Validating %s...\n", path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read policy file: %w", err)
	}
	policy, err := restraint.LoadPolicy(path, catalog)
	if err != nil {
		return err
	}

	printPolicy(out, catalog, policy)
	if len(policy.Unknown) > 0 {
		return fmt.Errorf("policy names %d unknown restraint(s): %v", len(policy.Unknown), policy.Unknown)
	}

	if checkSessions {
		if err := validateSessions(cmd.Context(), out, cfg, catalog, policy); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Safety policy is valid!")
	return nil
}

func printPolicy(out io.Writer, catalog *restraint.Catalog, policy *restraint.Policy) {
	fmt.Fprintln(out, "Disallowed:")
	if len(policy.Disallowed) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, k := range policy.Disallowed {
		fmt.Fprintf(out, "  - %s (%s)\n", k, catalog.DisplayName(k))
	}

	fmt.Fprintln(out, "Offered to players:")
	for _, k := range catalog.Offerable(policy.Disallowed) {
		fmt.Fprintf(out, "  - %s (max %d)\n", catalog.DisplayName(k), catalog.Max(k))
	}

	if len(policy.Restrictions) > 0 {
		fmt.Fprintln(out, "Narrator restrictions:")
		for _, r := range policy.Restrictions {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	for _, u := range policy.Unknown {
		fmt.Fprintf(out, "Unknown restraint: %q\n", u)
	}
}

func validateSessions(ctx context.Context, out io.Writer, cfg *config.Config, catalog *restraint.Catalog, policy *restraint.Policy) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open(cfg.StoreBackend, cfg.DataDir, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessions, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}

	bad := 0
	for _, s := range sessions {
		if err := s.Validate(catalog, policy.Disallowed); err != nil {
			bad++
			fmt.Fprintf(out, "Session %s (player %s): %v\n", s.RoomID, s.PlayerID, err)
		}
	}
	fmt.Fprintf(out, "Checked %d session(s), %d would be ended.\n", len(sessions), bad)
	return nil
}
