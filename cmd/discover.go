package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/searchscout/searchscout/internal/pattern"
)

func newDiscoverCmd() *cobra.Command {
	var domainsFile string
	cmd := &cobra.Command{
		Use:   "discover [domains...]",
		Short: "Runs pattern discovery over a batch of domains",
		Long: `Fetches each domain's landing page, runs the DOM, network, and CMS
detectors, scores the combined signals, and persists the winning pattern.
Domains come from the arguments, from --file, or both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchCommand(cmd, args, domainsFile, pattern.ModeDiscover)
		},
	}
	cmd.Flags().StringVar(&domainsFile, "file", "", "path to a newline-separated domain list")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var domainsFile string
	cmd := &cobra.Command{
		Use:   "verify [domains...]",
		Short: "Re-checks stored patterns and flags drift",
		Long: `Re-fetches each domain and compares the freshly detected pattern
against the stored one. Matching patterns get their verification timestamp
bumped; mismatches are flagged as drift and replaced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchCommand(cmd, args, domainsFile, pattern.ModeVerify)
		},
	}
	cmd.Flags().StringVar(&domainsFile, "file", "", "path to a newline-separated domain list")
	return cmd
}

func runBatchCommand(cmd *cobra.Command, args []string, domainsFile string, mode pattern.Mode) error {
	domains, err := collectDomains(args, domainsFile)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return errors.New("no domains given; pass them as arguments or via --file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer app.Close()

	var report pattern.Report
	if mode == pattern.ModeVerify {
		report = app.orch.Verify(ctx, domains)
	} else {
		report = app.orch.Discover(ctx, domains)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted: %w", context.Cause(ctx))
	}
	return nil
}

func collectDomains(args []string, domainsFile string) ([]string, error) {
	domains := append([]string(nil), args...)
	if domainsFile == "" {
		return domains, nil
	}
	f, err := os.Open(domainsFile)
	if err != nil {
		return nil, fmt.Errorf("open domain list: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domain list: %w", err)
	}
	return domains, nil
}
