package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/abdul-hamid-achik/hitsession/packages/http"
	"github.com/abdul-hamid-achik/hitsession/packages/store"
	"github.com/fatih/color"
)

// truncate shortens long values such as cookies in the verbose listing
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer   io.Writer
	verbose  bool
	noColor  bool
	numbered bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithNumberedLines prints ContentCollection one numbered line at a time
// instead of the raw Content.
func WithNumberedLines(n bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.numbered = n
	}
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgYellow, color.Bold)
	case code >= 300:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

func (f *ConsoleFormatter) FormatResponse(resp *http.Response) {
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	status := statusColor(resp.Code).Sprintf("%d %s", resp.Code, resp.Message)
	fmt.Fprintf(f.writer, "%s %s %s %s\n", status, bold(resp.Method), resp.URLString, cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))

	if f.verbose {
		port := "-"
		if resp.Port >= 0 {
			port = strconv.Itoa(resp.Port)
		}
		fmt.Fprintf(f.writer, "  %s %s://%s:%s (default %d)\n", faint("url:"), resp.Protocol, resp.Host, port, resp.DefaultPort)
		fmt.Fprintf(f.writer, "  %s %s\n", faint("file:"), resp.File)
		if resp.Ref != "" {
			fmt.Fprintf(f.writer, "  %s %s\n", faint("ref:"), resp.Ref)
		}
		fmt.Fprintf(f.writer, "  %s %s\n", faint("charset:"), resp.ContentEncoding)
		fmt.Fprintf(f.writer, "  %s connect %s, read %s\n", faint("timeouts:"), resp.ConnectTimeout, resp.ReadTimeout)
		if resp.Cookie != "" {
			fmt.Fprintf(f.writer, "  %s %s\n", faint("cookie:"), truncate(resp.Cookie, 80))
		}
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "  %s %s\n", faint(name+":"), resp.Headers[name])
		}
	}

	if len(resp.ContentCollection) == 0 {
		return
	}
	fmt.Fprintf(f.writer, "\n")

	if f.numbered {
		width := len(strconv.Itoa(len(resp.ContentCollection)))
		for i, line := range resp.ContentCollection {
			fmt.Fprintf(f.writer, "%s %s\n", faint(fmt.Sprintf("%*d |", width, i+1)), line)
		}
		return
	}

	fmt.Fprint(f.writer, resp.Content)
}

func (f *ConsoleFormatter) FormatValue(name, value string) {
	if !f.verbose {
		fmt.Fprintln(f.writer, value)
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(f.writer, "%s = %s\n", cyan(name), value)
}

func (f *ConsoleFormatter) FormatText(text string) {
	fmt.Fprint(f.writer, text)
}

func (f *ConsoleFormatter) FormatSessions(records []store.Record) {
	if len(records) == 0 {
		fmt.Fprintln(f.writer, "No stored sessions")
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	for _, rec := range records {
		cookie := rec.Cookie
		if cookie == "" {
			cookie = faint("(no cookie)")
		}
		fmt.Fprintf(f.writer, "%s %s\n", bold(rec.Name), faint(rec.UpdatedAt.Format("2006-01-02 15:04:05")))
		fmt.Fprintf(f.writer, "  cookie:   %s\n", cookie)
		fmt.Fprintf(f.writer, "  encoding: %s\n", rec.Encoding)
		if rec.LastURL != "" {
			fmt.Fprintf(f.writer, "  last url: %s\n", rec.LastURL)
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// Flush is a no-op; console output is written as it is produced.
func (f *ConsoleFormatter) Flush() error {
	return nil
}
