package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newGunzipCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gunzip <url>",
		Short: "Download a gzip payload and print it decoded",
		Long: `Download a gzip-compressed resource and print the decompressed text.
No cookie or headers are sent. At most 10,240,000 compressed bytes are read;
the text is decoded with the session's default encoding.

Examples:
  hitsession gunzip http://localhost:8080/dump.gz
  hitsession gunzip http://localhost:8080/dump.gz --encoding GBK`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			text, err := a.session.FetchCompressed(ctx, a.resolver.Resolve(args[0]))
			if err != nil {
				a.out.FormatError(err)
				return a.finish(reported(exitCodeForRequest(err), err))
			}
			a.out.FormatText(text)
			return a.finish(nil)
		},
	}
}
