package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configPath     string
	envFile        string
	vars           []string
	session        string
	storePath      string
	encoding       string
	connectTimeout time.Duration
	readTimeout    time.Duration
	proxy          string
	keepCookie     bool
	jsonOutput     bool
	verbose        bool
	noColor        bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hitsession",
		Short: "HTTP requests that share a session.",
		Long: `hitsession sends GET and POST requests that carry one cookie from
call to call, decodes responses with the declared or configured charset and
prints them with their URL broken into parts.

Examples:
  hitsession get http://localhost:8080/search -p q=go -p page=2
  hitsession post http://localhost:8080/login -p user=admin -p pass={{$PASSWORD}} --session work
  hitsession get http://localhost:8080/me --session work --extract user.name
  hitsession gunzip http://localhost:8080/export.gz --encoding GBK`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withCode(ExitUsageError, err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", getEnvString("HITSESSION_CONFIG", ""), "Path to config file (env: HITSESSION_CONFIG)")
	pf.StringVar(&opts.envFile, "env-file", getEnvString("HITSESSION_ENV_FILE", ""), "Path to .env file for variable interpolation (env: HITSESSION_ENV_FILE)")
	pf.StringArrayVar(&opts.vars, "var", nil, "Template variable as name=value (repeatable)")
	pf.StringVarP(&opts.session, "session", "s", getEnvString("HITSESSION_SESSION", ""), "Named session to load and save (env: HITSESSION_SESSION)")
	pf.StringVar(&opts.storePath, "store", getEnvString("HITSESSION_STORE", ""), "Session store file (env: HITSESSION_STORE)")
	pf.StringVar(&opts.encoding, "encoding", getEnvString("HITSESSION_ENCODING", ""), "Default charset when a response declares none (env: HITSESSION_ENCODING)")
	pf.DurationVar(&opts.connectTimeout, "connect-timeout", 0, "Connect timeout (e.g., 5s)")
	pf.DurationVar(&opts.readTimeout, "read-timeout", 0, "Read timeout (e.g., 30s)")
	pf.StringVar(&opts.proxy, "proxy", getEnvString("HITSESSION_PROXY", ""), "Proxy URL for HTTP requests (env: HITSESSION_PROXY)")
	pf.BoolVar(&opts.keepCookie, "keep-cookie", false, "Keep the session cookie when a response sets none")
	pf.BoolVar(&opts.jsonOutput, "json", getEnvBool("HITSESSION_JSON", false), "Write output as JSON (env: HITSESSION_JSON)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output and debug logging")
	pf.BoolVar(&opts.noColor, "no-color", getEnvBool("HITSESSION_NO_COLOR", false), "Disable colored output (env: HITSESSION_NO_COLOR)")

	rootCmd.AddCommand(newRequestCmd(opts, "GET"))
	rootCmd.AddCommand(newRequestCmd(opts, "POST"))
	rootCmd.AddCommand(newGunzipCmd(opts))
	rootCmd.AddCommand(newSessionCmd(opts))
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !isReported(err) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// usageArgs marks argument validation failures as usage errors
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return withCode(ExitUsageError, err)
		}
		return nil
	}
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return val == "yes"
		}
		return b
	}
	return defaultVal
}
