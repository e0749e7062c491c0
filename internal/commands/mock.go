package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/gglsbl/internal/mockserver"
)

func (c *cli) newMockCmd() *cobra.Command {
	var (
		listen      string
		environment string
		latency     time.Duration
		rateLimit   float64
		block       []string
		shutdown    time.Duration
	)

	mockCmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a local mock gglsbl-rest service",
		Long: `Serve the gglsbl-rest status and lookup endpoints from an in-memory
blocklist. Useful for trying the client without a real service.

The Google safe browsing test URL is always on the blocklist.

Examples:
  gglsbl mock
  gglsbl mock --listen 127.0.0.1:5001 --block http://malware.example/=MALWARE
  gglsbl mock --latency 15s   # exercise client timeouts`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			blocklist, err := parseBlocklist(block)
			if err != nil {
				return err
			}

			server := mockserver.New(mockserver.Config{
				Environment: environment,
				Latency:     latency,
				RateLimit:   rateLimit,
				Blocklist:   blocklist,
				Logger:      c.logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt,
				syscall.SIGTERM,
				syscall.SIGQUIT,
			)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				c.logger.Info("mock service listening", "addr", listen, "blocklisted", len(server.Blocklisted()))
				if err := server.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errChan <- err
				}
			}()

			select {
			case <-ctx.Done():
				c.logger.Info("shutdown signal received")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("mock server shutdown error: %w", err)
				}
				return nil

			case err := <-errChan:
				return fmt.Errorf("mock server error: %w", err)
			}
		},
	}

	f := mockCmd.Flags()
	f.StringVar(&listen, "listen", "127.0.0.1:5000", "address to listen on")
	f.StringVar(&environment, "environment", "mock", "environment name reported by the status endpoint")
	f.DurationVar(&latency, "latency", 0, "delay added before every response")
	f.Float64Var(&rateLimit, "rate-limit", 0, "maximum requests per second per client (0 disables)")
	f.StringArrayVar(&block, "block", nil, "blocklist entry as url[=THREAT_TYPE] (repeatable)")
	f.DurationVar(&shutdown, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	return mockCmd
}

// threatTypes are the Safe Browsing threat types accepted after '='.
var threatTypes = map[string]bool{
	"MALWARE":                         true,
	"SOCIAL_ENGINEERING":              true,
	"UNWANTED_SOFTWARE":               true,
	"POTENTIALLY_HARMFUL_APPLICATION": true,
	"THREAT_TYPE_UNSPECIFIED":         true,
}

// parseBlocklist turns url=THREAT entries into a map. The threat type
// defaults to MALWARE. Only a known threat type after the last '=' is split
// off, so URLs with query strings keep their own '=' signs.
func parseBlocklist(entries []string) (map[string]string, error) {
	blocklist := make(map[string]string, len(entries))
	for _, e := range entries {
		u, threat := e, "MALWARE"
		if i := strings.LastIndexByte(e, '='); i >= 0 && threatTypes[e[i+1:]] {
			u, threat = e[:i], e[i+1:]
		}
		if u == "" {
			return nil, fmt.Errorf("invalid blocklist entry: %q", e)
		}
		blocklist[u] = threat
	}
	return blocklist, nil
}
