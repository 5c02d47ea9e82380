package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpclient "github.com/romanperesypkin/http-client"
)

func newGetCmd(o *rootOptions) *cobra.Command {
	var params, headers []string

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Issue a GET and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := requestOptions(params, headers)
			if err != nil {
				return err
			}

			client, err := o.newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Get(cmd.Context(), args[0], opts...)
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as 'Key: value' (repeatable)")
	return cmd
}

func newPostCmd(o *rootOptions) *cobra.Command {
	var (
		data    string
		params  []string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "post URL",
		Short: "POST a JSON document and print the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" && !gojson.Valid([]byte(data)) {
				return errors.New("--data is not valid JSON")
			}

			opts, err := requestOptions(params, headers)
			if err != nil {
				return err
			}

			client, err := o.newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Post(cmd.Context(), args[0], []byte(data), opts...)
			return printResponse(cmd.OutOrStdout(), resp, err)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as 'Key: value' (repeatable)")
	return cmd
}

func newServeMetricsCmd(o *rootOptions) *cobra.Command {
	var (
		addr     string
		probes   []string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose the client counters on /metrics, optionally probing URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}

			client, err := o.newClient(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = client.Stop(context.Background()) }()

			server := &http.Server{
				Addr:              addr,
				Handler:           metricsHandler(o.registry),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				o.logger.Info("Metrics server starting", zap.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// Runs before the deferred Stop so no probe hits a closed client.
			probeCtx, cancelProbes := context.WithCancel(ctx)
			waitProbes := startProbes(probeCtx, client, probes, interval)
			defer func() {
				cancelProbes()
				waitProbes()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			o.logger.Info("Metrics server stopping")
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9102", "Listen address for the metrics endpoint")
	cmd.Flags().StringArrayVar(&probes, "probe", nil, "URL to GET on every interval (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "Probe interval")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), httpclient.ReadBuildInfo())
				return err
			}
			enc := gojson.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(httpclient.ReadBuildInfo())
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version metadata as JSON")
	return cmd
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return mux
}

// startProbes runs probeLoop in the background. The returned func blocks
// until the loop has exited.
func startProbes(ctx context.Context, client *httpclient.Client, urls []string, interval time.Duration) func() {
	var wg sync.WaitGroup
	if len(urls) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeLoop(ctx, client, urls, interval)
		}()
	}
	return wg.Wait
}

func probeLoop(ctx context.Context, client *httpclient.Client, urls []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		probeOnce(ctx, client, urls)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// probeOnce issues one GET per URL and reports how many produced a result.
func probeOnce(ctx context.Context, client *httpclient.Client, urls []string) int {
	present := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if resp, _ := client.Get(ctx, u); resp != nil {
			present++
		}
	}
	return present
}

func requestOptions(params, headers []string) ([]httpclient.RequestOption, error) {
	opts := make([]httpclient.RequestOption, 0, len(params)+len(headers))

	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		opts = append(opts, httpclient.WithParam(key, value))
	}

	for _, h := range headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --header %q, want 'Key: value'", h)
		}
		opts = append(opts, httpclient.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	return opts, nil
}

func printResponse(w io.Writer, resp *httpclient.Response, err error) error {
	if err != nil {
		return err
	}
	if resp == nil {
		return errAbsent
	}

	body := resp.Body
	if gojson.Valid(body) {
		var buf bytes.Buffer
		if gojson.Indent(&buf, body, "", "  ") == nil {
			body = buf.Bytes()
		}
	}

	if _, err := w.Write(body); err != nil {
		return err
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		_, err = io.WriteString(w, "\n")
	}
	return err
}
