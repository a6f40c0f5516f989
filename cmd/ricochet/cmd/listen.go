package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ricochet.dev/ricochet/internal/listener/dnslistener"
	"ricochet.dev/ricochet/internal/listener/httplistener"
	"ricochet.dev/ricochet/internal/observability"
	"ricochet.dev/ricochet/internal/rerrors"
	"ricochet.dev/ricochet/internal/store"
)

func newListenCmd() *cobra.Command {
	var (
		useHTTP    bool
		useDNS     bool
		host       string
		port       int
		dnsPort    int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Start the HTTP and/or DNS callback listener(s)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !useHTTP && !useDNS {
				return rerrors.UsageError("listen requires --http, --dns, or both")
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

			logger := observability.GetLogger()
			metrics := observability.NewMetrics()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", metrics.Handler())
					logger.Sugar().Infow("metrics endpoint listening", "addr", metricsAddr)
					if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
						logger.WithError(err).Warn("metrics endpoint stopped")
					}
				}()
			}

			errCh := make(chan error, 2)
			running := 0

			if useHTTP {
				httpAddr := cfg.Listener.HTTPAddr
				if host != "" {
					_, cfgPort, _ := net.SplitHostPort(httpAddr)
					httpAddr = net.JoinHostPort(host, cfgPort)
				}
				if port != 0 {
					httpAddr = joinHostPort(addrHost(httpAddr), port)
				}
				l := &httplistener.Listener{Store: s, Logger: logger, Metrics: metrics}
				running++
				go func() {
					printInfo("HTTP callback listener on %s", httpAddr)
					errCh <- httplistener.ListenAndServe(ctx, httpAddr, l)
				}()
			}

			if useDNS {
				dnsAddr := cfg.Listener.DNSAddr
				if host != "" {
					_, cfgPort, _ := net.SplitHostPort(dnsAddr)
					dnsAddr = net.JoinHostPort(host, cfgPort)
				}
				if dnsPort != 0 {
					dnsAddr = joinHostPort(addrHost(dnsAddr), dnsPort)
				}
				l := &dnslistener.Listener{Store: s, Logger: logger, Metrics: metrics}
				running++
				go func() {
					printInfo("DNS callback listener on %s", dnsAddr)
					errCh <- dnslistener.ListenAndServe(ctx, dnsAddr, l)
				}()
			}

			for i := 0; i < running; i++ {
				if err := <-errCh; err != nil {
					return err
				}
			}
			printSuccess("listeners shut down cleanly")
			return nil
		},
	}

	cmd.Flags().BoolVar(&useHTTP, "http", false, "start the HTTP callback listener")
	cmd.Flags().BoolVar(&useDNS, "dns", false, "start the DNS callback listener")
	cmd.Flags().StringVar(&host, "host", "", "bind host for the listener(s) (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP listener port (default from config, 8080)")
	cmd.Flags().IntVar(&dnsPort, "dns-port", 0, "DNS listener port (default from config, 5353)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "optional address to expose prometheus metrics on (e.g. :9090)")
	return cmd
}
