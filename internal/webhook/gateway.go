// Package webhook receives HubSpot change notifications. The HTTP handler
// authenticates and acknowledges synchronously; validation and the CRM
// write-back run afterwards on a Dispatcher.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/email-validator/internal/pkg/httputil"
	"github.com/ignite/email-validator/internal/pkg/logger"
)

// SignatureHeader carries hex(HMAC-SHA256(client secret, raw body)).
const SignatureHeader = "X-HubSpot-Signature"

// MaxBodyBytes caps accepted webhook bodies.
const MaxBodyBytes = 1 << 20

// GatewayConfig controls signature verification.
type GatewayConfig struct {
	ClientSecret string
	// SkipVerification disables signature checks outside production.
	SkipVerification bool
	Environment      string
}

// Gateway is the HTTP entry point for HubSpot webhooks.
type Gateway struct {
	cfg        GatewayConfig
	processor  *Processor
	dispatcher *Dispatcher
}

// NewGateway wires a gateway to its processor and dispatcher.
func NewGateway(cfg GatewayConfig, processor *Processor, dispatcher *Dispatcher) *Gateway {
	if cfg.SkipVerification && !strings.EqualFold(cfg.Environment, "production") {
		logger.Warn("webhook signature verification disabled", "environment", cfg.Environment)
	}
	return &Gateway{cfg: cfg, processor: processor, dispatcher: dispatcher}
}

func (g *Gateway) skipVerification() bool {
	return g.cfg.SkipVerification && !strings.EqualFold(g.cfg.Environment, "production")
}

// Verify checks signature against body. It is exported for tooling that
// needs to validate stored deliveries.
func (g *Gateway) Verify(signature string, body []byte) error {
	if g.skipVerification() {
		return nil
	}
	if g.cfg.ClientSecret == "" {
		return ErrNoSecret
	}
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(g.cfg.ClientSecret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// HandleHubSpot authenticates the delivery, hands it to the dispatcher and
// acknowledges with 200 "Processing" without waiting for the outcome.
func (g *Gateway) HandleHubSpot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httputil.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, "could not read request body")
		return
	}

	if err := g.Verify(r.Header.Get(SignatureHeader), body); err != nil {
		logger.Warn("webhook rejected", "reason", err, "remote_addr", r.RemoteAddr)
		g.processor.metrics.ObserveWebhookEvent("unauthorized")
		httputil.Error(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	err = g.dispatcher.Submit("hubspot-webhook", func(ctx context.Context) error {
		results, err := g.processor.Process(ctx, body)
		logger.Debug("webhook processed", "events", len(results))
		return err
	})
	if err != nil {
		// Non-2xx makes HubSpot redeliver to another instance.
		httputil.Text(w, http.StatusServiceUnavailable, "Shutting down")
		return
	}

	httputil.Text(w, http.StatusOK, "Processing")
}
