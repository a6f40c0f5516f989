package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/httpclient"
	"ricochet.dev/ricochet/internal/inject"
	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/ratelimit"
	"ricochet.dev/ricochet/internal/request"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
)

// crawlVector is one entry of the JSON vector file the HTML crawler
// produces. The crawler is a separate tool; ricochet only consumes its
// output format.
type crawlVector struct {
	URL        string `json:"url"`
	Param      string `json:"param"`
	In         string `json:"in"`
	ContextTag string `json:"context,omitempty"`
}

func newInjectCmd() *cobra.Command {
	var (
		targetURL   string
		paramName   string
		requestFile string
		payload     string
		payloadsFile string
		callbackURL string
		rate        float64
		burst       int
		timeout     time.Duration
		proxy       string
		insecureTLS bool
		dryRun      bool
		fromCrawl   string
		contextTag  string
	)

	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Inject one or more payloads into a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if fromCrawl == "" && requestFile == "" {
				if err := requireTogether(targetURL, paramName); err != nil {
					return err
				}
			}
			if payload == "" && payloadsFile == "" {
				return rerrors.UsageError("inject requires --payload TEMPLATE or --payloads FILE")
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
			if timeout <= 0 {
				timeout = 10 * time.Second
			}

			limiter := ratelimit.New(rate, burst)
			injr := inject.New(s, limiter)
			injr.Client = httpclient.New(httpclient.Options{Timeout: timeout, InsecureTLS: insecureTLS, Proxy: proxy})
			injr.CallbackBase = callbackURL
			injr.Logger = observability.GetLogger()
			injr.Metrics = observability.NewMetrics()

			// Ctrl-C stops the batch between sends; injections already
			// recorded stay recorded.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			var results []inject.Result

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
						results = append(results, injr.SendRaw(ctx, raw, rv, tmpl, contextTag, dryRun))
					}
				}
			} else {
				vectors, err := resolveVectors(targetURL, paramName, fromCrawl, contextTag)
				if err != nil {
					return err
				}
				for _, tmpl := range templates {
					for _, v := range vectors {
						v.PayloadTemplate = tmpl
						results = append(results, injr.Send(ctx, v, dryRun))
					}
				}
			}

			for _, r := range results {
				if r.Err != nil {
					printWarning("token=%s %s %s: %v", r.Token, r.Vector.ParamName, r.Vector.URL, r.Err)
					continue
				}
				if dryRun {
					printSuccess("token=%s dry-run %s %s (%s)", r.Token, r.Vector.ParamName, r.Vector.URL, r.Vector.In)
					continue
				}
				printSuccess("token=%s sent %s %s -> %d", r.Token, r.Vector.ParamName, r.Vector.URL, r.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetURL, "url", "u", "", "target URL")
	cmd.Flags().StringVarP(&paramName, "param", "p", "", "parameter name to inject (query)")
	cmd.Flags().StringVarP(&requestFile, "request-file", "r", "", "Burp-style raw HTTP request file")
	cmd.Flags().StringVar(&payload, "payload", "", "single payload template containing {{CALLBACK}}")
	cmd.Flags().StringVar(&payloadsFile, "payloads", "", "file of payload templates, one per line")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "callback base URL substituted for {{CALLBACK}}")
	cmd.Flags().Float64Var(&rate, "rate", 0, "requests/sec (default from config)")
	cmd.Flags().IntVar(&burst, "burst", 0, "rate limiter burst (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout (default 10s)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP(S) proxy URL")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record planned injections without sending them")
	cmd.Flags().StringVar(&fromCrawl, "from-crawl", "", "JSON vector file produced by the crawler")
	cmd.Flags().StringVar(&contextTag, "context", "", "context tag (e.g. xss:html, sqli:mssql) driving severity")
	return cmd
}

func resolveTemplates(payload, payloadsFile string) ([]string, error) {
	if payloadsFile != "" {
		data, err := os.ReadFile(payloadsFile)
		if err != nil {
			return nil, rerrors.UsageError("reading --payloads file: " + err.Error())
		}
		templates := parsePayloadLines(string(data))
		if len(templates) == 0 {
			return nil, rerrors.UsageError("--payloads file contained no templates")
		}
		return templates, nil
	}
	return []string{payload}, nil
}

func resolveVectors(targetURL, paramName, fromCrawl, contextTag string) ([]request.Vector, error) {
	switch {
	case fromCrawl != "":
		data, err := os.ReadFile(fromCrawl)
		if err != nil {
			return nil, rerrors.UsageError("reading --from-crawl file: " + err.Error())
		}
		var crawled []crawlVector
		if err := json.Unmarshal(data, &crawled); err != nil {
			return nil, rerrors.UsageError("parsing --from-crawl JSON: " + err.Error())
		}
		vectors := make([]request.Vector, 0, len(crawled))
		for _, c := range crawled {
			tag := c.ContextTag
			if tag == "" {
				tag = contextTag
			}
			in := c.In
			if in == "" {
				in = "query"
			}
			vectors = append(vectors, request.Vector{URL: c.URL, Method: "GET", ParamName: c.Param, In: in, ContextTag: tag})
		}
		if len(vectors) == 0 {
			return nil, rerrors.UsageError("--from-crawl file contained no vectors")
		}
		return vectors, nil

	default:
		return []request.Vector{{URL: targetURL, Method: "GET", ParamName: paramName, In: "query", ContextTag: contextTag}}, nil
	}
}
