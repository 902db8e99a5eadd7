package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EdukitaHQ/edukita/internal/pkg/env"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// ErrGatewayUnavailable means the gateway could not be reached or answered
// with a server error. Reconciliation stays retryable in that case.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// CheckoutSession is the client-facing handle for a gateway checkout.
type CheckoutSession struct {
	Token       string
	RedirectURL string
}

// GatewayStatus is the provider-neutral view of a transaction's state.
// Status carries one of the Payment status constants.
type GatewayStatus struct {
	TrackingID       string
	Status           string
	StatusCode       string
	ConfirmationCode string
}

// Gateway abstracts the external payment provider. The engine only ever
// creates checkout sessions and re-verifies status server-side; callback
// payloads are never trusted.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, trackingID string, amount float64, finishURL string) (*CheckoutSession, error)
	QueryStatus(ctx context.Context, trackingID string) (*GatewayStatus, error)
}

// MidtransGateway talks to Midtrans: Snap for checkout sessions, CoreAPI
// for status verification.
type MidtransGateway struct {
	snapClient snap.Client
	coreClient coreapi.Client
	finishURL  string
}

// NewMidtransGatewayFromEnv builds a gateway client from MIDTRANS_* env
// configuration. Requests use a bounded HTTP timeout so reconciliation
// never hangs on the gateway.
func NewMidtransGatewayFromEnv() *MidtransGateway {
	serverKey := strings.TrimSpace(env.GetEnv("MIDTRANS_SERVER_KEY", ""))
	environment := midtrans.Sandbox
	if strings.EqualFold(env.GetEnv("MIDTRANS_ENV", "sandbox"), "production") {
		environment = midtrans.Production
	}

	g := &MidtransGateway{
		finishURL: strings.TrimSpace(env.GetEnv("MIDTRANS_FINISH_URL", "")),
	}
	g.snapClient.New(serverKey, environment)
	g.coreClient.New(serverKey, environment)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	g.snapClient.HttpClient = &midtrans.HttpClientImplementation{HttpClient: httpClient}
	g.coreClient.HttpClient = &midtrans.HttpClientImplementation{HttpClient: httpClient}
	return g
}

func (g *MidtransGateway) CreateCheckoutSession(ctx context.Context, trackingID string, amount float64, finishURL string) (*CheckoutSession, error) {
	_ = ctx
	if finishURL == "" {
		finishURL = g.finishURL
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  trackingID,
			GrossAmt: int64(amount),
		},
		Expiry: &snap.ExpiryDetails{
			Unit:     "minute",
			Duration: 30,
		},
		Callbacks: &snap.Callbacks{
			Finish: finishURL,
		},
	}

	resp, err := g.snapClient.CreateTransaction(req)
	if err != nil {
		return nil, gatewayError("create checkout session", err)
	}
	return &CheckoutSession{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *MidtransGateway) QueryStatus(ctx context.Context, trackingID string) (*GatewayStatus, error) {
	_ = ctx
	resp, err := g.coreClient.CheckTransaction(trackingID)
	if err != nil {
		return nil, gatewayError("check transaction", err)
	}

	confirmation := strings.TrimSpace(resp.ApprovalCode)
	if confirmation == "" {
		confirmation = strings.TrimSpace(resp.TransactionID)
	}
	return &GatewayStatus{
		TrackingID:       trackingID,
		Status:           MapGatewayTransactionStatus(resp.TransactionStatus, resp.FraudStatus),
		StatusCode:       resp.StatusCode,
		ConfirmationCode: confirmation,
	}, nil
}

// MapGatewayTransactionStatus converts Midtrans transaction/fraud status
// pairs to internal payment statuses.
func MapGatewayTransactionStatus(transactionStatus, fraudStatus string) string {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return "pending"
		}
		return "completed"
	case "settlement", "success":
		return "completed"
	case "pending", "authorize":
		return "pending"
	case "deny", "expire", "failure":
		return "failed"
	case "cancel":
		return "cancelled"
	default:
		return "pending"
	}
}

func gatewayError(op string, err *midtrans.Error) error {
	if err == nil {
		return nil
	}
	// Anything that is not a definitive client-side rejection is retryable.
	if err.StatusCode == 0 || err.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s: %w: %v", op, ErrGatewayUnavailable, err.Message)
	}
	return fmt.Errorf("%s: status=%d %s", op, err.StatusCode, err.Message)
}
