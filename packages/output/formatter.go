package output

import (
	"io"

	"github.com/abdul-hamid-achik/hitsession/packages/http"
	"github.com/abdul-hamid-achik/hitsession/packages/store"
)

type Formatter interface {
	FormatResponse(resp *http.Response)
	FormatValue(name, value string)
	FormatText(text string)
	FormatSessions(records []store.Record)
	FormatError(err error)
	Flush() error
}

// New returns the JSON formatter when asJSON is set and the console one
// otherwise.
func New(w io.Writer, asJSON, verbose, noColor, numbered bool) Formatter {
	if asJSON {
		return NewJSONFormatter(JSONWithWriter(w))
	}
	return NewConsoleFormatter(
		WithWriter(w),
		WithVerbose(verbose),
		WithNoColor(noColor),
		WithNumberedLines(numbered),
	)
}
