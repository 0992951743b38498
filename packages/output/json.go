package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitsession/packages/http"
	"github.com/abdul-hamid-achik/hitsession/packages/store"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Responses []JSONResponse    `json:"responses,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	Text      string            `json:"text,omitempty"`
	Sessions  []JSONSession     `json:"sessions,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	Time      string            `json:"time"`
}

// JSONResponse represents one exchange
type JSONResponse struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	StatusCode      int               `json:"statusCode"`
	Status          string            `json:"status"`
	Protocol        string            `json:"protocol"`
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	DefaultPort     int               `json:"defaultPort"`
	Path            string            `json:"path"`
	File            string            `json:"file"`
	Query           string            `json:"query,omitempty"`
	Ref             string            `json:"ref,omitempty"`
	UserInfo        string            `json:"userInfo,omitempty"`
	ContentType     string            `json:"contentType,omitempty"`
	ContentEncoding string            `json:"contentEncoding"`
	Cookie          string            `json:"cookie,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Lines           []string          `json:"lines"`
	Content         string            `json:"content"`
	ConnectTimeout  float64           `json:"connectTimeout"`
	ReadTimeout     float64           `json:"readTimeout"`
	Duration        float64           `json:"duration"`
}

// JSONSession represents a stored session
type JSONSession struct {
	Name      string `json:"name"`
	Cookie    string `json:"cookie"`
	Encoding  string `json:"encoding"`
	LastURL   string `json:"lastUrl,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// JSONFormatter collects output and writes it as one JSON document
type JSONFormatter struct {
	writer io.Writer
	out    JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResponse(resp *http.Response) {
	f.out.Responses = append(f.out.Responses, JSONResponse{
		Method:          resp.Method,
		URL:             resp.URLString,
		StatusCode:      resp.Code,
		Status:          resp.Message,
		Protocol:        resp.Protocol,
		Host:            resp.Host,
		Port:            resp.Port,
		DefaultPort:     resp.DefaultPort,
		Path:            resp.Path,
		File:            resp.File,
		Query:           resp.Query,
		Ref:             resp.Ref,
		UserInfo:        resp.UserInfo,
		ContentType:     resp.ContentType,
		ContentEncoding: resp.ContentEncoding,
		Cookie:          resp.Cookie,
		Headers:         resp.Headers,
		Lines:           resp.ContentCollection,
		Content:         resp.Content,
		ConnectTimeout:  float64(resp.ConnectTimeout.Milliseconds()),
		ReadTimeout:     float64(resp.ReadTimeout.Milliseconds()),
		Duration:        float64(resp.DurationMs()),
	})
}

func (f *JSONFormatter) FormatValue(name, value string) {
	if f.out.Values == nil {
		f.out.Values = make(map[string]string)
	}
	f.out.Values[name] = value
}

func (f *JSONFormatter) FormatText(text string) {
	f.out.Text += text
}

func (f *JSONFormatter) FormatSessions(records []store.Record) {
	for _, rec := range records {
		f.out.Sessions = append(f.out.Sessions, JSONSession{
			Name:      rec.Name,
			Cookie:    rec.Cookie,
			Encoding:  rec.Encoding,
			LastURL:   rec.LastURL,
			UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
		})
	}
}

func (f *JSONFormatter) FormatError(err error) {
	f.out.Errors = append(f.out.Errors, err.Error())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	f.out.Time = time.Now().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.out)
}
