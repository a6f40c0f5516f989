package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/httpclient"
	"ricochet.dev/ricochet/internal/inject"
	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/poll"
	"ricochet.dev/ricochet/internal/ratelimit"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/request"
	"ricochet.dev/ricochet/internal/store"
)

func newPassiveCmd() *cobra.Command {
	var (
		targetURL    string
		paramName    string
		requestFile  string
		payload      string
		payloadsFile string
		callbackURL  string
		contextTag   string
		rate         float64
		burst        int
		proxy        string
		insecureTLS  bool
		pollInterval time.Duration
		pollTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "passive",
		Short: "Inject a batch, then adaptively poll the store for its callbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if requestFile == "" {
				if err := requireTogether(targetURL, paramName); err != nil {
					return err
				}
			}
			templates, err := resolveTemplates(payload, payloadsFile)
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

			params := poll.Params{
				BaseInterval: cfg.Poll.BaseInterval,
				MaxInterval:  cfg.Poll.MaxInterval,
				QuietRounds:  cfg.Poll.QuietRounds,
				GrowthFactor: cfg.Poll.GrowthFactor,
				MaxTotalWait: cfg.Poll.MaxTotalWait,
			}
			if pollInterval > 0 {
				params.BaseInterval = pollInterval
			}
			if pollTimeout > 0 {
				params.MaxTotalWait = pollTimeout
			}

			// Ctrl-C ends the polling loop cleanly: the batch reports what
			// it saw so far and the process exits 0.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var tokens []string

			if requestFile != "" {
				data, err := os.ReadFile(requestFile)
				if err != nil {
					return rerrors.UsageError("reading request file: " + err.Error())
				}
				raw, err := request.ParseRaw(data, schemeHint(targetURL))
				if err != nil {
					return rerrors.UsageError("parsing request file: " + err.Error())
				}
				rawVectors := request.ExtractVectors(raw)
				if len(rawVectors) == 0 {
					return rerrors.UsageError("no injectable vectors found in request file")
				}
				for _, tmpl := range templates {
					for _, rv := range rawVectors {
						r := injr.SendRaw(ctx, raw, rv, tmpl, contextTag, false)
						if r.Err != nil {
							printWarning("%s %s: %v", rv.In, rv.ParamName, r.Err)
							continue
						}
						tokens = append(tokens, r.Token)
						printInfo("token=%s injected %s %s", r.Token, rv.In, rv.ParamName)
					}
				}
			} else {
				vectors, err := resolveVectors(targetURL, paramName, "", contextTag)
				if err != nil {
					return err
				}
				for _, tmpl := range templates {
					for _, v := range vectors {
						v.PayloadTemplate = tmpl
						r := injr.Send(ctx, v, false)
						if r.Err != nil {
							printWarning("%s %s: %v", v.In, v.ParamName, r.Err)
							continue
						}
						tokens = append(tokens, r.Token)
						printInfo("token=%s injected %s %s", r.Token, v.In, v.ParamName)
					}
				}
			}

			if len(tokens) == 0 {
				return rerrors.UsageError("no injections were recorded; nothing to poll")
			}

			printInfo("polling %d token(s) for up to %s", len(tokens), params.MaxTotalWait)

			batch := poll.NewBatch(s, tokens, params)
			batch.OnObservation = func(obs poll.Observation) {
				for _, cb := range obs.NewCallbacks {
					printSuccess("token=%s callback via %s from %s", cb.Token, cb.Protocol, cb.RemoteAddr)
				}
				if len(obs.NewCallbacks) == 0 && obs.State == poll.StatePollQuiet {
					printInfo("quiet; next poll in %s", obs.NextInterval)
				}
			}

			cbs, _ := batch.Run(ctx)

			correlated := make(map[string]bool)
			for _, cb := range cbs {
				correlated[cb.Token] = true
			}
			fmt.Fprintf(os.Stdout, "%d/%d tokens correlated (%d callback(s) total)\n", len(correlated), len(tokens), len(cbs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetURL, "url", "u", "", "target URL")
	cmd.Flags().StringVarP(&paramName, "param", "p", "", "parameter name to inject (query)")
	cmd.Flags().StringVarP(&requestFile, "request-file", "r", "", "Burp-style raw HTTP request file")
	cmd.Flags().StringVar(&payload, "payload", "", "single payload template containing {{CALLBACK}}")
	cmd.Flags().StringVar(&payloadsFile, "payloads", "", "file of payload templates, one per line")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "callback base URL substituted for {{CALLBACK}}")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag driving severity")
	cmd.Flags().Float64Var(&rate, "rate", 0, "requests/sec (default from config)")
	cmd.Flags().IntVar(&burst, "burst", 0, "rate limiter burst (default from config)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP(S) proxy URL")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "base poll interval (default from config)")
	cmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 0, "total wall-time budget for polling (default from config)")
	return cmd
}
