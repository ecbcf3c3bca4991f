package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/jadorel/afrimarket-backend/api/responses"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

const fedapaySignatureHeader = "X-FedaPay-Signature"

// FedaPayWebhookService consumes a verified raw webhook body.
type FedaPayWebhookService interface {
	HandleBody(ctx context.Context, body []byte) error
}

// FedaPayWebhook verifies the gateway signature and forwards the event.
// Once the signature checks out the gateway always gets a 200 back;
// processing failures are logged and retried via gateway redelivery.
func FedaPayWebhook(svc FedaPayWebhookService, signingSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if strings.TrimSpace(signingSecret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret unconfigured"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !validateFedaPaySignature(payload, signingSecret, r.Header.Get(fedapaySignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid webhook signature"))
			return
		}

		if err := svc.HandleBody(ctx, payload); err != nil {
			if logg != nil {
				logg.Error(ctx, "fedapay webhook processing failed", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}
}

func validateFedaPaySignature(payload []byte, secret, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}
