package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/fetchly-go/fetchly"
)

var version = "0.1.0"

// errRequestFailed marks a request whose failure was already printed.
var errRequestFailed = errors.New("request failed")

// rootFlags are shared by every request command.
type rootFlags struct {
	configPath string
	baseURL    string
	headers    []string
	params     []string
	timeout    time.Duration
	format     string
	redirect   string
	proxy      string
	selectPath string
	verbose    bool
	showLogs   bool
	noColor    bool
}

// NewRootCmd builds the fetchly command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:     "fetchly",
		Short:   "Send HTTP requests through the fetchly client",
		Version: version,
		Long: `fetchly sends a single HTTP request and prints its outcome: the decoded
body of a success or API error, or the cause of a network or internal failure.

Client defaults can be kept in a YAML file and overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML file with client defaults")
	pf.StringVarP(&flags.baseURL, "base-url", "b", "", "Prefix concatenated with the request URL")
	pf.StringArrayVarP(&flags.headers, "header", "H", nil, `Header "Key: Value" (repeatable)`)
	pf.StringArrayVarP(&flags.params, "param", "p", nil, `Query parameter "key=value" (repeatable, ordered)`)
	pf.DurationVarP(&flags.timeout, "timeout", "t", fetchly.DefaultTimeout, "Request timeout")
	pf.StringVarP(&flags.format, "format", "f", "", "Response format: json, text, blob, formdata, arraybuffer")
	pf.StringVar(&flags.redirect, "redirect", "", "Redirect policy: follow, manual, error")
	pf.StringVar(&flags.proxy, "proxy", "", "Proxy URL")
	pf.StringVarP(&flags.selectPath, "select", "s", "", "Print only the value at this path of the JSON payload")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Print request config, response headers and timings")
	pf.BoolVar(&flags.showLogs, "logs", false, "Write the debug log record of the call to stderr")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newRequestCmd(flags, fetchly.MethodGet, false),
		newRequestCmd(flags, fetchly.MethodPost, true),
		newRequestCmd(flags, fetchly.MethodPut, true),
		newRequestCmd(flags, fetchly.MethodPatch, true),
		newRequestCmd(flags, fetchly.MethodDelete, false),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRequestFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// clientOptions turns the config file and the flags into client defaults.
// Flags override the file only when they were set.
func (f *rootFlags) clientOptions(cmd *cobra.Command, stderr io.Writer) ([]fetchly.Option, error) {
	var opts []fetchly.Option

	if f.configPath != "" {
		cfg, err := fetchly.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cfg.Options()...)
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		opts = append(opts, fetchly.WithBaseURL(f.baseURL))
	}
	if changed("timeout") {
		opts = append(opts, fetchly.WithTimeout(f.timeout))
	}
	if changed("redirect") {
		opts = append(opts, fetchly.WithRedirect(f.redirect))
	}
	if changed("proxy") {
		opts = append(opts, fetchly.WithProxy(f.proxy))
	}
	if changed("format") {
		format, err := fetchly.ParseResponseFormat(f.format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetchly.WithResponseFormat(format))
	}
	if f.showLogs {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: f.noColor}).
			With().Timestamp().Logger()
		opts = append(opts, fetchly.WithShowLogs(true), fetchly.WithLogger(logger))
	}
	return opts, nil
}

// callOptions turns the header and param flags into per-call options.
func (f *rootFlags) callOptions() ([]fetchly.Option, error) {
	var opts []fetchly.Option

	for _, h := range f.headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		opts = append(opts, fetchly.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	if len(f.params) > 0 {
		params := make(fetchly.Params, 0, len(f.params))
		for _, p := range f.params {
			key, value, ok := strings.Cut(p, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid param %q, want \"key=value\"", p)
			}
			params = append(params, fetchly.Param{Key: key, Value: value})
		}
		opts = append(opts, fetchly.WithParams(params))
	}
	return opts, nil
}
