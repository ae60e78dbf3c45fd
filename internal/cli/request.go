package cli

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/fetchly-go/fetchly"
)

// bodyFlags hold the body of POST, PUT and PATCH.
type bodyFlags struct {
	data string
	form []string
}

func newRequestCmd(flags *rootFlags, method fetchly.Method, withBody bool) *cobra.Command {
	body := &bodyFlags{}
	name := strings.ToLower(method.String())

	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request", method),
		Example: fmt.Sprintf(`  fetchly %s https://dummyjson.com/products/1
  fetchly %s -b https://dummyjson.com /products/1 -H "Authorization: Bearer token"`, name, name),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, flags, body, method, args[0])
		},
	}

	if withBody {
		cmd.Flags().StringVarP(&body.data, "data", "d", "", "JSON request body")
		cmd.Flags().StringArrayVar(&body.form, "form", nil, `Multipart field "key=value" (repeatable)`)
		cmd.MarkFlagsMutuallyExclusive("data", "form")
		cmd.Example += fmt.Sprintf(`
  fetchly %s https://dummyjson.com/products/add -d '{"title":"Phone"}'
  fetchly %s https://example.com/upload --form title=report`, name, name)
	}
	return cmd
}

func runRequest(
	cmd *cobra.Command,
	flags *rootFlags,
	body *bodyFlags,
	method fetchly.Method,
	url string,
) error {
	defaults, err := flags.clientOptions(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	callOpts, err := flags.callOptions()
	if err != nil {
		return err
	}
	payload, err := body.payload()
	if err != nil {
		return err
	}

	client := fetchly.New(defaults...)
	p := newPrinter(cmd.OutOrStdout(), flags.noColor, flags.verbose)

	res := fetchly.Do[any, any](cmd.Context(), client, method, url, payload, callOpts...)

	if err := p.printResult(res, flags.selectPath); err != nil {
		return err
	}
	if !res.IsSuccess() {
		return errRequestFailed
	}
	return nil
}

// payload returns the request body, or nil when no body flag was set.
func (b *bodyFlags) payload() (any, error) {
	if b.data != "" {
		if !json.Valid([]byte(b.data)) {
			return nil, errors.New("--data is not valid JSON")
		}
		return json.RawMessage(b.data), nil
	}

	if len(b.form) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range b.form {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid form field %q, want \"key=value\"", field)
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write form field %q: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}
	return fetchly.NewFormData(w.FormDataContentType(), &buf), nil
}
