package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/correlation"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
	"ricochet.dev/ricochet/internal/suggest"
)

func newReportCmd() *cobra.Command {
	var (
		correlationID string
		all           bool
		outputDir     string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a Markdown report for one or all correlated findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (correlationID == "") == !all {
				return rerrors.UsageError("report requires exactly one of --correlation-id TOKEN or --all")
			}
			if all && outputDir == "" {
				return rerrors.UsageError("--all requires --output DIR")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := context.Background()
			findings, err := correlation.Query(ctx, s, time.Time{}, "")
			if err != nil {
				return err
			}

			if correlationID != "" {
				for _, f := range findings {
					if f.Token != correlationID {
						continue
					}
					doc := renderReport(f)
					if outputDir != "" {
						return writeReport(outputDir, f, doc)
					}
					fmt.Fprint(os.Stdout, doc)
					return nil
				}
				return rerrors.NotFoundError(fmt.Sprintf("no finding correlated for token %q", correlationID))
			}

			if len(findings) == 0 {
				printWarning("no findings to report")
				return nil
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return rerrors.StoreIOError(err, "creating report output directory")
			}
			for _, f := range findings {
				if err := writeReport(outputDir, f, renderReport(f)); err != nil {
					return err
				}
			}
			printSuccess("wrote %d report(s) to %s", len(findings), outputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "render a single finding by its token")
	cmd.Flags().BoolVar(&all, "all", false, "render every correlated finding")
	cmd.Flags().StringVar(&outputDir, "output", "", "directory to write report(s) into")
	return cmd
}

func writeReport(dir string, f correlation.Finding, doc string) error {
	name := fmt.Sprintf("%s-%s.md", f.Token, uuid.NewString())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return rerrors.StoreIOError(err, "writing report")
	}
	printSuccess("wrote %s", path)
	return nil
}

func renderReport(f correlation.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Second-order finding: %s\n\n", f.Token)
	fmt.Fprintf(&b, "- **Severity:** %s\n", f.Severity)
	fmt.Fprintf(&b, "- **Context tag:** %s\n", f.ContextTag)
	fmt.Fprintf(&b, "- **Injected:** %s %s (param `%s`) at %s\n", f.Method, f.URL, f.ParamName, f.InjectedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Callback:** %s from %s at %s (delay %.1fs)\n\n", f.Callback.Protocol, f.Callback.RemoteAddr, f.CallbackAt.UTC().Format(time.RFC3339), f.DelaySeconds)
	fmt.Fprintf(&b, "## Payload\n\n```\n%s\n```\n\n", f.PayloadUsed)
	fmt.Fprintf(&b, "## Callback detail\n\n- Path: `%s`\n- Body: `%s`\n\n", f.Callback.RequestPath, f.Callback.Body)
	fmt.Fprintf(&b, "## Where this might fire\n\n%s\n", suggest.ForContextTag(f.ContextTag))
	return b.String()
}
