package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/activeprobe"
	"ricochet.dev/ricochet/internal/httpclient"
	"ricochet.dev/ricochet/internal/inject"
	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/ratelimit"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
)

func newActiveCmd() *cobra.Command {
	var (
		baseURL       string
		endpointsFile string
		payload       string
		callbackURL   string
		contextTag    string
		rate          float64
		burst         int
		concurrency   int
		proxy         string
		insecureTLS   bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Cross a catalog of endpoints and parameters and inject into all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				return rerrors.UsageError("active requires -u/--url")
			}
			if payload == "" {
				return rerrors.UsageError("active requires --payload TEMPLATE")
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

			if rate <= 0 {
				rate = cfg.RateLimit.RequestsPerSecond
			}
			if burst <= 0 {
				burst = cfg.RateLimit.Burst
			}

			injr := inject.New(s, ratelimit.New(rate, burst))
			injr.Client = httpclient.New(httpclient.Options{Timeout: 10 * time.Second, InsecureTLS: insecureTLS, Proxy: proxy})
			injr.CallbackBase = callbackURL
			injr.Logger = observability.GetLogger()
			injr.Metrics = observability.NewMetrics()

			var endpoints []string
			if endpointsFile != "" {
				data, err := os.ReadFile(endpointsFile)
				if err != nil {
					return rerrors.UsageError("reading --endpoints file: " + err.Error())
				}
				endpoints = activeprobe.ParseEndpointsFile(string(data))
			}

			opts := activeprobe.Options{
				BaseURL:         strings.TrimRight(baseURL, "/"),
				Endpoints:       endpoints,
				PayloadTemplate: payload,
				ContextTag:      contextTag,
				Concurrency:     concurrency,
				DryRun:          dryRun,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			results := activeprobe.Run(ctx, injr, opts)

			var ok, failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					printWarning("token=%s %s %s: %v", r.Token, r.Vector.ParamName, r.Vector.URL, r.Err)
					continue
				}
				ok++
				if dryRun {
					printSuccess("token=%s dry-run %s %s", r.Token, r.Vector.ParamName, r.Vector.URL)
				} else {
					printSuccess("token=%s sent %s %s -> %d", r.Token, r.Vector.ParamName, r.Vector.URL, r.StatusCode)
				}
			}
			printInfo("%d sent, %d failed", ok, failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "", "base target URL")
	cmd.Flags().StringVar(&endpointsFile, "endpoints", "", "file of endpoint path templates, one per line (default: built-in catalog)")
	cmd.Flags().StringVar(&payload, "payload", "", "payload template containing {{CALLBACK}}")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "callback base URL substituted for {{CALLBACK}}")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag driving severity")
	cmd.Flags().Float64Var(&rate, "rate", 0, "requests/sec (default from config)")
	cmd.Flags().IntVar(&burst, "burst", 0, "rate limiter burst (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent workers")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP(S) proxy URL")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record planned injections without sending them")
	return cmd
}
