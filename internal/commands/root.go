package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/gglsbl/internal/config"
	"evalgo.org/gglsbl/internal/logging"
	"evalgo.org/gglsbl/internal/version"
	"evalgo.org/gglsbl/pkg/gglsbl/client"
)

const (
	defaultRemoteHost = "127.0.0.1"
	defaultPort       = "5000"

	// skipConfig marks commands that run without a configuration file.
	skipConfig = "skip-config"
)

// proxyEnv lists the variables removed when the proxy is ignored.
var proxyEnv = []string{"http_proxy", "HTTP_PROXY", "https_proxy", "HTTPS_PROXY"}

// cli holds flag values and the state shared by all commands of one run.
type cli struct {
	cfgFile     string
	profile     string
	debug       bool
	logFormat   string
	remoteHost  string
	port        string
	ignoreProxy bool
	useTLS      bool
	timeout     time.Duration

	checkStatus bool
	lookupURL   string

	logger   *slog.Logger
	settings *config.Settings
}

// Execute runs the gglsbl command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "gglsbl",
		Short: "A client for querying gglsbl-rest services",
		Long: `gglsbl queries a gglsbl-rest service (https://github.com/mlsecproject/gglsbl-rest)
for its status and for safe browsing lookups of URLs.

Without flags it prints the client configuration and the service status.`,
		Example: `  gglsbl --check-status
  gglsbl --lookup-url http://testsafebrowsing.appspot.com/apiv4/ANY_PLATFORM/MALWARE/URL/
  gglsbl -r scanner.local -p 5001 lookup http://example.com/`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.runRoot,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default: search bundled, /etc/gglsbl-rest/config.ini, ~/.config/gglsbl-rest.ini)")
	pf.StringVar(&c.profile, "profile", config.DefaultProfile, "configuration profile (INI section) to use")
	pf.BoolVarP(&c.debug, "debug", "d", false, "set logging to DEBUG")
	pf.StringVar(&c.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVarP(&c.remoteHost, "remote-host", "r", defaultRemoteHost, "the hostname or IP address where the service is listening")
	pf.StringVarP(&c.port, "port", "p", defaultPort, "the port the service is listening on")
	pf.BoolVar(&c.ignoreProxy, "ignore-proxy", true, "ignore system proxy")
	pf.BoolVar(&c.useTLS, "ssl", false, "use https and verify the service certificate")
	pf.DurationVar(&c.timeout, "timeout", client.DefaultTimeout, "request timeout")

	rootCmd.Flags().BoolVarP(&c.checkStatus, "check-status", "c", false, "check the status of the service")
	rootCmd.Flags().StringVarP(&c.lookupURL, "lookup-url", "l", "", "the url to lookup")
	rootCmd.MarkFlagsMutuallyExclusive("check-status", "lookup-url")

	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newLookupCmd())
	rootCmd.AddCommand(c.newConfigCmd())
	rootCmd.AddCommand(c.newMockCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "%s" .Version}}
`)

	return rootCmd
}

// setup builds the logger and resolves settings from the configuration
// files and the flags.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	level := "info"
	if c.debug {
		level = "debug"
	}
	logger, err := logging.New(level, c.logFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.logger = logger

	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	var paths []string
	if c.cfgFile != "" {
		paths = []string{c.cfgFile}
	}

	// Configuration errors are reported once, by the caller of Execute.
	settings, err := config.Load(c.profile, paths...)
	if err != nil {
		return err
	}
	for _, f := range settings.Files {
		c.logger.Debug("found config file", "path", f)
	}

	c.mergeFlags(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}
	c.settings = settings

	if settings.IgnoreProxy {
		for _, name := range proxyEnv {
			if _, ok := os.LookupEnv(name); ok {
				c.logger.Debug("deleting proxy environment variable", "name", name)
				_ = os.Unsetenv(name)
			}
		}
	}

	return nil
}

// mergeFlags lets flags the operator set explicitly win over configuration
// values. Flags left at their defaults keep the configured value.
func (c *cli) mergeFlags(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("remote-host") {
		s.RemoteHost = c.remoteHost
	}
	if flags.Changed("port") {
		s.RemotePort = c.port
	}
	if flags.Changed("ignore-proxy") {
		s.IgnoreProxy = c.ignoreProxy
	}
	if flags.Changed("ssl") {
		s.TLS = c.useTLS
	}
	if flags.Changed("timeout") {
		s.Timeout = c.timeout
	}
}

func (c *cli) newClient() *client.Client {
	s := c.settings
	return client.New(s.RemoteHost, s.RemotePort,
		client.WithTLS(s.TLS),
		client.WithTimeout(s.Timeout),
		client.WithIgnoreProxy(s.IgnoreProxy),
		client.WithLogger(c.logger),
	)
}

func (c *cli) runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	sbc := c.newClient()

	if c.checkStatus {
		return c.printStatus(ctx, out, sbc)
	}
	if c.lookupURL != "" {
		return c.printLookup(ctx, out, sbc, c.lookupURL)
	}

	fmt.Fprintln(out, "No arguments specified. Printing client info and service status.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, sbc.String())

	res, err := sbc.ServiceStatus(ctx)
	if err != nil {
		return err
	}
	if !res.OK() {
		c.logger.Warn("service seems down", "outcome", res.Outcome, "response", sbc.LastResponse().Text())
		return nil
	}

	fmt.Fprintln(out, "GGLSBL Service status:")
	return printPayload(out, res.Payload)
}

func (c *cli) printStatus(ctx context.Context, out io.Writer, sbc *client.Client) error {
	res, err := sbc.ServiceStatus(ctx)
	if err != nil {
		return err
	}
	if res.OK() {
		return printPayload(out, res.Payload)
	}
	return nil
}

func (c *cli) printLookup(ctx context.Context, out io.Writer, sbc *client.Client, rawURL string) error {
	res, err := sbc.Lookup(ctx, rawURL)
	if err != nil {
		return err
	}
	if res.OK() {
		return printPayload(out, res.Payload)
	}
	return nil
}

// printPayload prints JSON indented and text as-is.
func printPayload(out io.Writer, p client.Payload) error {
	if p.Kind == client.PayloadText {
		_, err := fmt.Fprintln(out, p.Text)
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(p.Value())
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			info := version.Get()
			fmt.Fprintln(out, info.String())

			if cmd.Flag("verbose").Changed {
				fmt.Fprintf(out, "\nDetails:\n")
				fmt.Fprintf(out, "  Version:    %s\n", info.Version)
				fmt.Fprintf(out, "  Git Commit: %s\n", info.GitCommit)
				fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
				fmt.Fprintf(out, "  Go Version: %s\n", info.GoVersion)
				fmt.Fprintf(out, "  Platform:   %s\n", info.Platform)
			}
		},
	}
	versionCmd.Flags().BoolP("verbose", "v", false, "verbose version output")
	return versionCmd
}
