package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

type outcomeView struct {
	State           checkout.State         `json:"state"`
	Reason          checkout.Reason        `json:"reason,omitempty"`
	Error           *errorView             `json:"error,omitempty"`
	OrderID         string                 `json:"order_id,omitempty"`
	OrderNumber     string                 `json:"order_number,omitempty"`
	Totals          pricing.Breakdown      `json:"totals"`
	Receipt         *checkout.OrderReceipt `json:"receipt,omitempty"`
	PaymentID       string                 `json:"payment_id,omitempty"`
	ConfirmationURL string                 `json:"confirmation_url,omitempty"`
}

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fields  any    `json:"fields,omitempty"`
}

func viewOf(out checkout.Outcome) outcomeView {
	view := outcomeView{
		State:           out.State,
		Reason:          out.Reason,
		OrderID:         out.OrderID,
		OrderNumber:     out.OrderNumber,
		Totals:          out.Totals,
		Receipt:         out.Receipt,
		PaymentID:       out.PaymentID,
		ConfirmationURL: out.ConfirmationURL,
	}
	if out.Err != nil {
		view.Error = errorViewOf(out.Err)
	}
	return view
}

func errorViewOf(err error) *errorView {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		return &errorView{Code: string(pkgerrors.CodeValidation), Message: "checkout form is invalid", Fields: verr.Fields}
	}
	if typed := pkgerrors.As(err); typed != nil {
		return &errorView{Code: string(typed.Code()), Message: typed.Message(), Fields: typed.Details()}
	}
	return &errorView{Code: string(pkgerrors.CodeInternal), Message: err.Error()}
}

func newSubmitCmd(root *rootOptions) *cobra.Command {
	var (
		in    checkout.Input
		promo string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the cart as an order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			orch, err := checkout.NewOrchestrator(s.api, s.settings, s.cart, checkout.Options{
				ReturnURL:    s.cfg.ReturnURL,
				OrderNumbers: checkout.NewOrderNumbers(s.cfg.OrderNumberPrefix),
				Logger:       s.logg,
			})
			if err != nil {
				return err
			}
			if promo != "" {
				if _, err := orch.ApplyPromo(cmd.Context(), promo); err != nil {
					return fmt.Errorf("promo %q: %w", promo, err)
				}
			}

			out, err := orch.Submit(cmd.Context(), in)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), viewOf(out)); err != nil {
				return err
			}
			if out.Failed() {
				return fmt.Errorf("checkout failed: %s", out.Reason)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.Customer.Name, "name", "", "customer name")
	flags.StringVar(&in.Customer.Phone, "phone", "", "customer phone")
	flags.StringVar(&in.Customer.Email, "email", "", "customer email")
	flags.StringVar(&in.DeliveryMethodID, "delivery", "", "delivery method id")
	flags.StringVar(&in.PaymentMethodID, "payment", "", "payment method id")
	flags.StringVar(&in.DeliveryAddress, "address", "", "delivery address")
	flags.StringVar(&in.Notes, "notes", "", "order notes")
	flags.StringVar(&promo, "promo", "", "promo code to apply")
	return cmd
}

func newQuoteCmd(root *rootOptions) *cobra.Command {
	var delivery, promo string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price the cart without submitting it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			orch, err := checkout.NewOrchestrator(s.api, s.settings, s.cart, checkout.Options{
				ReturnURL: s.cfg.ReturnURL,
				Logger:    s.logg,
			})
			if err != nil {
				return err
			}
			if promo != "" {
				if _, err := orch.ApplyPromo(cmd.Context(), promo); err != nil {
					return fmt.Errorf("promo %q: %w", promo, err)
				}
			}
			totals, err := orch.Quote(cmd.Context(), delivery)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), totals)
		},
	}
	cmd.Flags().StringVar(&delivery, "delivery", "", "delivery method id")
	cmd.Flags().StringVar(&promo, "promo", "", "promo code to apply")
	return cmd
}

func newSettingsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show the checkout catalog served by the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			catalog, err := s.settings.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), catalog)
		},
	}
}

func newCartCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect or edit the cart file",
	}

	var line pricing.CartLine
	add := &cobra.Command{
		Use:   "add",
		Short: "Append a line to the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			lines, err := s.cart.Lines(cmd.Context())
			if err != nil {
				return err
			}
			lines = append(lines, line)
			if err := s.cart.Save(lines); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lines)
		},
	}
	add.Flags().StringVar(&line.ProductID, "product", "", "product id")
	add.Flags().StringVar(&line.ProductName, "product-name", "", "product display name")
	add.Flags().StringVar(&line.Size, "size", "", "size label")
	add.Flags().IntVar(&line.Quantity, "qty", 1, "quantity")
	add.Flags().Int64Var(&line.UnitPriceCents, "price", 0, "unit price in cents")
	_ = add.MarkFlagRequired("product")
	_ = add.MarkFlagRequired("price")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			lines, err := s.cart.Lines(cmd.Context())
			if err != nil {
				return err
			}
			if lines == nil {
				lines = []pricing.CartLine{}
			}
			return printJSON(cmd.OutOrStdout(), lines)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.session()
			if err != nil {
				return err
			}
			return s.cart.Clear(cmd.Context())
		},
	}

	cmd.AddCommand(add, show, clearCmd)
	return cmd
}
