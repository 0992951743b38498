package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/hitsession/packages/capture"
	"github.com/spf13/cobra"
)

type requestOptions struct {
	params   []string
	headers  []string
	extract  []string
	schema   string
	numbered bool
}

func newRequestCmd(opts *globalOptions, method string) *cobra.Command {
	ropts := &requestOptions{}
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request through the session", method),
		Long: fmt.Sprintf(`Send a %[1]s request. Parameters given with -p are %[2]s.
The URL, parameter values and header values may use {{variables}},
{{$ENV_VARS}} and {{functions()}} such as {{uuid()}} or {{urlEncode(v)}}.

Examples:
  hitsession %[3]s http://localhost:8080/api -p id=7
  hitsession %[3]s http://localhost:8080/api -H "Accept: application/json" --extract data.id
  hitsession %[3]s http://localhost:8080/api --schema user.schema.json --session work`,
			method, paramPlacement(method), name),
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, ropts, method, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&ropts.params, "param", "p", nil, "Request parameter as name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&ropts.headers, "header", "H", nil, `Request header as "Name: value" or Name=value (repeatable)`)
	cmd.Flags().StringArrayVarP(&ropts.extract, "extract", "x", nil, "Print only a value: status, cookie, header.<Name>, or a JSON path (prefix with body. when a field is named status, cookie or header) (repeatable)")
	cmd.Flags().StringVar(&ropts.schema, "schema", "", "Validate the response content against a JSON schema file")
	cmd.Flags().BoolVar(&ropts.numbered, "lines", false, "Print the content as numbered lines")

	return cmd
}

func paramPlacement(method string) string {
	if method == "POST" {
		return "sent as a form body"
	}
	return "appended as a query string"
}

func runRequest(cmd *cobra.Command, opts *globalOptions, ropts *requestOptions, method, rawURL string) error {
	params, err := parsePairs(ropts.params, "=")
	if err != nil {
		return withCode(ExitUsageError, fmt.Errorf("invalid --param: %w", err))
	}
	headers, err := parsePairs(ropts.headers, ":", "=")
	if err != nil {
		return withCode(ExitUsageError, fmt.Errorf("invalid --header: %w", err))
	}

	a, err := newApp(cmd, opts, ropts.numbered)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rawURL = a.resolver.Resolve(rawURL)
	params = a.resolver.ResolveAll(params)
	headers = a.resolver.ResolveAll(headers)
	if unresolved := a.resolver.Unresolved(); len(unresolved) > 0 {
		a.logger.Warn().Strs("variables", unresolved).Msg("unresolved template variables")
	}

	return a.finish(a.exchange(ctx, ropts, method, rawURL, params, headers))
}

func (a *app) exchange(ctx context.Context, ropts *requestOptions, method, rawURL string, params, headers map[string]string) error {
	resp, err := a.session.Do(ctx, method, rawURL, params, headers)
	if err != nil {
		a.out.FormatError(err)
		return reported(exitCodeForRequest(err), err)
	}

	if err := a.saveSession(ctx, rawURL); err != nil {
		a.logger.Warn().Err(err).Msg("session not persisted")
	}

	if len(ropts.extract) == 0 {
		a.out.FormatResponse(resp)
	}
	for _, expr := range ropts.extract {
		value, err := capture.Extract(resp, expr)
		if err != nil {
			a.out.FormatError(err)
			return reported(ExitFailure, err)
		}
		a.out.FormatValue(expr, value)
	}

	if ropts.schema != "" {
		if err := capture.ValidateSchema(resp, ropts.schema); err != nil {
			a.out.FormatError(err)
			return reported(ExitFailure, err)
		}
		a.logger.Debug().Str("schema", ropts.schema).Msg("response matches schema")
	}
	return nil
}
