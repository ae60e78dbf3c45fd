package cli

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/gjson"

	"github.com/kroma-labs/fetchly-go/fetchly"
)

// colorScheme holds the colors used when printing a result.
type colorScheme struct {
	method   *color.Color
	url      *color.Color
	success  *color.Color
	apiError *color.Color
	failure  *color.Color
	header   *color.Color
	value    *color.Color
	timing   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		method:   color.New(color.FgBlue, color.Bold),
		url:      color.New(color.FgCyan),
		success:  color.New(color.FgGreen, color.Bold),
		apiError: color.New(color.FgYellow, color.Bold),
		failure:  color.New(color.FgRed, color.Bold),
		header:   color.New(color.FgMagenta),
		value:    color.New(color.FgWhite),
		timing:   color.New(color.FgHiBlack),
	}
}

// setEnabled forces color on or off for every entry of the scheme,
// regardless of the global color.NoColor setting.
func (s *colorScheme) setEnabled(enabled bool) {
	for _, c := range []*color.Color{
		s.method, s.url, s.success, s.apiError,
		s.failure, s.header, s.value, s.timing,
	} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// printer renders a Result for a terminal.
type printer struct {
	w       io.Writer
	colors  *colorScheme
	verbose bool
}

// newPrinter returns a printer writing to w. Color is used only when w is
// a terminal and noColor is false.
func newPrinter(w io.Writer, noColor, verbose bool) *printer {
	colors := newColorScheme()
	colors.setEnabled(!noColor && isTerminal(w))
	return &printer{w: w, colors: colors, verbose: verbose}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printResult writes the request line, the outcome and the payload.
func (p *printer) printResult(res *fetchly.Result[any, any], selectPath string) error {
	if res.Config != nil {
		fmt.Fprintf(p.w, "%s %s\n",
			p.colors.method.Sprint(res.Config.Method),
			p.colors.url.Sprint(res.Config.URL))
	}

	p.printStatus(res)

	if p.verbose {
		p.printHeaders(res)
		if res.Trace != nil {
			fmt.Fprintln(p.w, p.colors.timing.Sprint(res.Trace.String()))
		}
	}

	var payload any
	switch {
	case res.IsSuccess() && res.Data != nil:
		payload = *res.Data
	case res.IsAPIError() && res.Error != nil:
		payload = *res.Error
	default:
		return nil
	}

	out, err := render(payload, selectPath)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(p.w, out)
	}
	return nil
}

func (p *printer) printStatus(res *fetchly.Result[any, any]) {
	elapsed := p.colors.timing.Sprintf("(%s)", res.Duration.Round(100*time.Microsecond))

	switch {
	case res.IsSuccess():
		fmt.Fprintf(p.w, "%s %s\n",
			p.colors.success.Sprintf("%d %s", res.StatusCode, res.StatusText), elapsed)
	case res.IsAPIError():
		fmt.Fprintf(p.w, "%s %s\n",
			p.colors.apiError.Sprintf("%d %s", res.StatusCode, res.StatusText), elapsed)
	case res.IsNetworkError():
		fmt.Fprintf(p.w, "%s %s\n",
			p.colors.failure.Sprintf("network error (%s): %v",
				fetchly.NetworkReason(res.InternalError), res.InternalError),
			elapsed)
	default:
		fmt.Fprintf(p.w, "%s %s\n",
			p.colors.failure.Sprintf("internal error: %v", res.InternalError), elapsed)
	}
}

func (p *printer) printHeaders(res *fetchly.Result[any, any]) {
	if len(res.Headers) == 0 {
		return
	}
	keys := make([]string, 0, len(res.Headers))
	for k := range res.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		fmt.Fprintf(p.w, "%s: %s\n",
			p.colors.header.Sprint(k),
			p.colors.value.Sprint(strings.Join(res.Headers[k], ", ")))
	}
	fmt.Fprintln(p.w)
}

// render formats a decoded payload. When selectPath is set the payload is
// viewed as JSON and only the value at that path is returned.
func render(payload any, selectPath string) (string, error) {
	if selectPath != "" {
		return selectJSON(payload, selectPath)
	}

	switch v := payload.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fetchly.Blob:
		return fmt.Sprintf("<blob %s, %d bytes>", v.Type, v.Size()), nil
	case *multipart.Form:
		return renderForm(v), nil
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format payload: %w", err)
	}
	return string(data), nil
}

func selectJSON(payload any, path string) (string, error) {
	var doc string
	switch v := payload.(type) {
	case string:
		doc = v
	case []byte:
		doc = string(v)
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("format payload: %w", err)
		}
		doc = string(data)
	}

	if !gjson.Valid(doc) {
		return "", errors.New("--select needs a JSON payload")
	}
	result := gjson.Get(doc, path)
	if !result.Exists() {
		return "", fmt.Errorf("path %q not found in payload", path)
	}
	if result.IsObject() || result.IsArray() {
		var pretty any
		if err := json.Unmarshal([]byte(result.Raw), &pretty); err == nil {
			if data, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				return string(data), nil
			}
		}
		return result.Raw, nil
	}
	return result.String(), nil
}

func renderForm(form *multipart.Form) string {
	keys := make([]string, 0, len(form.Value)+len(form.File))
	for k := range form.Value {
		keys = append(keys, k)
	}
	for k := range form.File {
		if _, ok := form.Value[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range form.Value[k] {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
		for _, fh := range form.File[k] {
			fmt.Fprintf(&b, "%s=@%s (%d bytes)\n", k, fh.Filename, fh.Size)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
