package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/settings"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// session bundles what every subcommand needs. It is built lazily so that
// --help works without any environment.
type session struct {
	cfg      *config.ClientConfig
	logg     *logger.Logger
	api      *checkout.APIClient
	settings *settings.SessionProvider
	cart     *checkout.FileCart
}

type rootOptions struct {
	cartPath string
	apiURL   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Drive the storefront checkout from the terminal",
		Long: `checkout plays the browser's role against the storefront API: it keeps
a cart on disk, prices it with the checkout catalog and submits orders,
printing the hosted payment link when the payment method needs one.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.cartPath, "cart", "", "cart file (defaults to STOREFRONT_CLIENT_CART_PATH)")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "storefront API base url (defaults to STOREFRONT_CLIENT_API_URL)")

	cmd.AddCommand(
		newSubmitCmd(opts),
		newQuoteCmd(opts),
		newSettingsCmd(opts),
		newCartCmd(opts),
	)
	return cmd
}

func (o *rootOptions) session() (*session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.APIBaseURL = o.apiURL
	}
	if o.cartPath != "" {
		cfg.CartPath = o.cartPath
	}
	logg := logger.New(logger.Options{
		ServiceName: "checkout-cli",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
		Format:      logger.FormatConsole,
	})
	api, err := checkout.NewAPIClient(*cfg, nil, logg)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}
	return &session{
		cfg:      cfg,
		logg:     logg,
		api:      api,
		settings: settings.NewSessionProvider(api),
		cart:     checkout.NewFileCart(cfg.CartPath),
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
