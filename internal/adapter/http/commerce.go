package http

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/controlplane/internal/app"
)

// WebhookSecretHeader carries the shared secret agreed with the payment gateway.
const WebhookSecretHeader = "X-Webhook-Secret"

const (
	webhookPaymentSucceeded    = "payment_succeeded"
	webhookSubscriptionUpdated = "subscription_updated"
)

type PaymentWebhookInput struct {
	Secret string `header:"X-Webhook-Secret" doc:"Shared secret"`
	Body   struct {
		Type     string `json:"type" enum:"payment_succeeded,subscription_updated"`
		EntityID string `json:"entity_id" minLength:"1" doc:"Order or subscription ID"`
		Status   string `json:"status,omitempty" doc:"Gateway subscription status for subscription_updated"`
	}
}

type PaymentWebhookOutput struct {
	Body TransitionResponse
}

func registerCommerce(api huma.API, svc Services) {
	huma.Register(api, huma.Operation{
		OperationID: "payment-webhook",
		Method:      http.MethodPost,
		Path:        "/api/v1/webhooks/payments",
		Summary:     "Payment gateway notification",
		Description: "payment_succeeded moves orders to paid and subscriptions to active, then publishes order_paid. " +
			"subscription_updated mirrors the gateway's subscription status.",
		Tags: []string{"Commerce"},
	}, func(ctx context.Context, input *PaymentWebhookInput) (*PaymentWebhookOutput, error) {
		if !validSecret(svc.WebhookSecret, input.Secret) {
			return nil, huma.Error401Unauthorized("invalid webhook secret")
		}

		var (
			res app.TransitionResult
			err error
		)
		switch input.Body.Type {
		case webhookPaymentSucceeded:
			res, err = svc.Commerce.ConfirmPayment(ctx, input.Body.EntityID)
		case webhookSubscriptionUpdated:
			res, err = svc.Commerce.SyncSubscription(ctx, input.Body.EntityID, input.Body.Status)
		}
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &PaymentWebhookOutput{Body: toTransitionResponse(res)}, nil
	})
}

// validSecret rejects everything when no secret is configured.
func validSecret(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
