package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/correlation"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
)

// findingLine is the JSONL schema emitted by `findings -o json`, one
// object per line, stable so downstream report tooling can consume it
// without a translation layer.
type findingLine struct {
	Timestamp string      `json:"timestamp"`
	Tool      string      `json:"tool"`
	Finding   findingJSON `json:"finding"`
}

type findingJSON struct {
	CorrelationID string        `json:"correlation_id"`
	Severity      string        `json:"severity"`
	Injection     injectionJSON `json:"injection"`
	Callback      callbackJSON  `json:"callback"`
}

type injectionJSON struct {
	TargetURL  string `json:"target_url"`
	Parameter  string `json:"parameter"`
	Payload    string `json:"payload"`
	Context    string `json:"context"`
	InjectedAt string `json:"injected_at"`
}

type callbackJSON struct {
	SourceIP     string         `json:"source_ip"`
	RequestPath  string         `json:"request_path"`
	ReceivedAt   string         `json:"received_at"`
	DelaySeconds float64        `json:"delay_seconds"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func newFindingsCmd() *cobra.Command {
	var (
		output      string
		sinceHours  float64
		minSeverity string
		verboseOut  bool
	)

	cmd := &cobra.Command{
		Use:   "findings",
		Short: "List correlated injection/callback findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "text" {
				return rerrors.UsageError("-o/--output must be \"json\" or \"text\"")
			}
			sev := correlation.Severity(minSeverity)
			switch sev {
			case "", correlation.SeverityInfo, correlation.SeverityMedium, correlation.SeverityHigh:
			default:
				return rerrors.UsageError("--min-severity must be one of info, medium, high")
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

			var since time.Time
			if sinceHours > 0 {
				since = time.Now().Add(-time.Duration(sinceHours * float64(time.Hour)))
			}

			findings, err := correlation.Query(context.Background(), s, since, sev)
			if err != nil {
				return err
			}

			if output == "json" {
				return emitFindingsJSON(findings)
			}
			emitFindingsText(findings, verboseOut)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().Float64Var(&sinceHours, "since", 0, "only findings whose callback arrived in the last N hours")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "minimum severity: info, medium, or high")
	cmd.Flags().BoolVarP(&verboseOut, "verbose", "v", false, "include payload text in text output")
	return cmd
}

func emitFindingsJSON(findings []correlation.Finding) error {
	enc := json.NewEncoder(os.Stdout)
	for _, f := range findings {
		line := findingLine{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Tool:      "ricochet",
			Finding: findingJSON{
				CorrelationID: f.Token,
				Severity:      string(f.Severity),
				Injection: injectionJSON{
					TargetURL:  f.URL,
					Parameter:  f.ParamName,
					Payload:    f.PayloadUsed,
					Context:    f.ContextTag,
					InjectedAt: f.InjectedAt.UTC().Format(time.RFC3339),
				},
				Callback: callbackJSON{
					SourceIP:     f.Callback.RemoteAddr,
					RequestPath:  f.Callback.RequestPath,
					ReceivedAt:   f.CallbackAt.UTC().Format(time.RFC3339),
					DelaySeconds: f.DelaySeconds,
					Metadata:     f.Metadata,
				},
			},
		}
		if err := enc.Encode(line); err != nil {
			return rerrors.StoreIOError(err, "encoding finding")
		}
	}
	return nil
}

func emitFindingsText(findings []correlation.Finding, verboseOut bool) {
	if len(findings) == 0 {
		printInfo("no findings")
		return
	}
	for _, f := range findings {
		printSuccess("[%s] token=%s %s %s param=%s delay=%.1fs via %s", f.Severity, f.Token, f.Method, f.URL, f.ParamName, f.DelaySeconds, f.Callback.Protocol)
		if verboseOut {
			fmt.Fprintf(os.Stdout, "    payload:  %s\n", f.PayloadUsed)
			fmt.Fprintf(os.Stdout, "    callback: %s %s from %s\n", f.Callback.Protocol, f.Callback.RequestPath, f.Callback.RemoteAddr)
		}
	}
}
