package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/apiguard/internal/client"
	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/errs"
)

var (
	reqData          string
	reqEndpoint      string
	reqAction        string
	reqUser          string
	reqMessage       string
	reqHeaders       []string
	reqNoCredentials bool
)

var requestCmd = &cobra.Command{
	Use:   "request [method] [url]",
	Short: "Perform one call through the retry, error and session stack",
	Example: `  apiguard request GET /api/widgets
  apiguard request POST /api/orders --data '{"sku":"A1"}' --action create_order`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&reqData, "data", "", "request body")
	requestCmd.Flags().StringVar(&reqEndpoint, "endpoint", "", "logical endpoint name for error context")
	requestCmd.Flags().StringVar(&reqAction, "action", "", "action name for error context")
	requestCmd.Flags().StringVar(&reqUser, "user", "", "acting user id for error context")
	requestCmd.Flags().StringVar(&reqMessage, "message", "", "user-facing message on failure")
	requestCmd.Flags().StringArrayVarP(&reqHeaders, "header", "H", nil, "extra header, \"Name: value\"")
	requestCmd.Flags().BoolVar(&reqNoCredentials, "no-credentials", false, "do not send cookies or bearer token")
	rootCmd.AddCommand(requestCmd)
}

func parseHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q, want \"Name: value\"", h)
	}
	return name, strings.TrimSpace(value), nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	target := args[1]

	opts := []client.RequestOption{
		client.WithCallContext(domain.CallContext{Endpoint: reqEndpoint, Action: reqAction, UserID: reqUser}),
		client.WithIncludeCredentials(!reqNoCredentials),
	}
	for _, h := range reqHeaders {
		name, value, err := parseHeader(h)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithHeader(name, value))
	}
	if reqMessage != "" {
		opts = append(opts, client.WithUserMessage(reqMessage))
	}

	a, _, err := setup(cmd)
	if err != nil {
		return err
	}

	var body any
	if reqData != "" {
		body = json.RawMessage(reqData)
	}

	ctx := cmd.Context()
	var resp *domain.Response
	switch method {
	case "GET":
		resp, err = a.Client.Get(ctx, target, opts...)
	case "POST":
		resp, err = a.Client.Post(ctx, target, body, opts...)
	case "PUT":
		resp, err = a.Client.Put(ctx, target, body, opts...)
	case "PATCH":
		resp, err = a.Client.Patch(ctx, target, body, opts...)
	case "DELETE":
		resp, err = a.Client.Delete(ctx, target, opts...)
	default:
		return fmt.Errorf("unsupported method %q", method)
	}

	out := cmd.OutOrStdout()
	if err != nil {
		if apiErr, ok := errs.AsAPIError(err); ok {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(apiErr)
			os.Exit(1)
		}
		return err
	}
	_, _ = out.Write(resp.Body)
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		_, _ = fmt.Fprintln(out)
	}
	return nil
}
