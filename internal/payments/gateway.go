// Package payments adapts the external payment rail. The rail only produces
// an opaque payment reference the buyer pays against; settlement itself is
// out of scope and proof of payment is verified manually by moderators.
package payments

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
)

// IPaymentGateway produces payment references for activation payments.
// Invoked once per activation request; its result is stored on the Payment
// and never awaited by any later transition.
type IPaymentGateway interface {
	CreatePaymentReference(ctx context.Context, amount float64, currencyCode, description string) (string, error)
}

// MercadoPagoGateway creates a pix payment on Mercado Pago and uses its ID
// as the reference. Without an access token it runs in mock mode and mints
// local references, which keeps development and CI off the network.
type MercadoPagoGateway struct {
	client   payment.Client
	mockMode bool
}

// NewMercadoPagoGateway builds the gateway. An empty accessToken enables
// mock mode.
func NewMercadoPagoGateway(accessToken string) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		log.Println("MERCADOPAGO_ACCESS_TOKEN not set, payment gateway running in mock mode")
		return &MercadoPagoGateway{mockMode: true}, nil
	}
	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to configure Mercado Pago client: %w", err)
	}
	return &MercadoPagoGateway{client: payment.NewClient(cfg)}, nil
}

func (g *MercadoPagoGateway) CreatePaymentReference(ctx context.Context, amount float64, currencyCode, description string) (string, error) {
	if g.mockMode {
		return "MOCK-" + uuid.NewString(), nil
	}

	request := payment.Request{
		TransactionAmount: amount,
		Description:       description,
		PaymentMethodID:   "pix",
		Payer: &payment.PayerRequest{
			Email: "payments@vitrine.local",
		},
	}

	resource, err := g.client.Create(ctx, request)
	if err != nil {
		return "", fmt.Errorf("failed to create payment on gateway: %w", err)
	}
	return strconv.Itoa(resource.ID), nil
}
