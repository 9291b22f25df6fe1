package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/gateway"
	"github.com/namelens/ascgate/internal/observability"
)

// gatewayOptions lets tests substitute transports.
var gatewayOptions []gateway.Option

func openGateway(ctx context.Context, opts ...gateway.Option) (*gateway.Gateway, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, core.WrapFailure(core.KindConfig, err, "load config")
	}

	all := append([]gateway.Option{gateway.WithLogger(observability.Logger())}, gatewayOptions...)
	all = append(all, opts...)
	return gateway.New(ctx, cfg, all...)
}

// addParamFlag registers the repeatable --param key=value flag.
func addParamFlag(cmd *cobra.Command) {
	cmd.Flags().StringArray("param", nil, "Query parameter as key=value (repeatable)")
}

func resolveParams(cmd *cobra.Command) (url.Values, error) {
	raw, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return nil, err
	}
	return parseParams(raw)
}

// parseParams turns key=value pairs into query values. Repeated keys are
// kept in order.
func parseParams(raw []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, core.Failuref(core.KindValidation, "invalid --param %q: expected key=value", pair)
		}
		values.Add(key, strings.TrimSpace(value))
	}
	return values, nil
}

// apiPath validates a resource path argument. Absolute URLs are rejected so
// credentials are only sent to the configured base URL.
func apiPath(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", core.NewFailure(core.KindValidation, "resource path is required")
	}
	if parsed, err := url.Parse(path); err != nil || parsed.IsAbs() || parsed.Host != "" {
		return "", core.NewFailure(core.KindValidation, fmt.Sprintf("resource path must be relative to api.base_url: %s", path))
	}
	return strings.TrimPrefix(path, "/"), nil
}
