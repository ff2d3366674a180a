package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/logfields"
)

const loggerName = "github-event-provider"

// DefMaxPayloadBytes is the max. size of a webhook payload github sends.
const DefMaxPayloadBytes = 25 * 1024 * 1024

const invalidSignatureMsg = "Invalid webhook signature"

// EventHandler processes a webhook event and returns the response for github.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *Event) *Response
}

// Provider receives github-webhook http-requests at a http-server handler,
// validates and converts the requests to Events and passes them to an
// EventHandler.
type Provider struct {
	logging         *zap.Logger
	webhookSecret   []byte
	maxPayloadBytes int64
	handler         EventHandler
}

type option func(*Provider)

func WithPayloadSecret(secret string) option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func WithMaxPayloadBytes(n int64) option {
	return func(p *Provider) {
		p.maxPayloadBytes = n
	}
}

func New(handler EventHandler, opts ...option) *Provider {
	p := Provider{
		handler:         handler,
		maxPayloadBytes: DefMaxPayloadBytes,
	}

	for _, o := range opts {
		o(&p)
	}

	if p.logging == nil {
		p.logging = zap.L().Named(loggerName)
	}

	if len(p.webhookSecret) == 0 {
		p.logging.Warn("no webhook secret configured, signatures of webhook requests are not verified",
			logfields.Event("github_webhook_signature_verification_disabled"),
		)
	}

	return &p
}

// VerifySignature verifies that signature is the HMAC hex digest of payload,
// prefixed with the hash algorithm ("sha256=" or "sha1=").
// payload must be the raw request body.
// The returned error wraps boterr.ErrSignatureInvalid.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if signature == "" {
		return fmt.Errorf("%w: signature header is missing", boterr.ErrSignatureInvalid)
	}

	if err := github.ValidateSignature(signature, payload, secret); err != nil {
		return fmt.Errorf("%w: %w", boterr.ErrSignatureInvalid, err)
	}

	return nil
}

func signatureHeader(req *http.Request) string {
	if sig := req.Header.Get(github.SHA256SignatureHeader); sig != "" {
		return sig
	}

	return req.Header.Get(github.SHA1SignatureHeader)
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logFields := []zap.Field{
		logfields.EventProvider("github"),
		logfields.DeliveryID(deliveryID),
		logfields.WebhookType(hookType),
	}

	logger := p.logging.With(logFields...)
	logger.Debug("received a http request", logfields.Event("github_event_received"))

	if req.Method != http.MethodPost {
		http.Error(resp, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(resp, req.Body, p.maxPayloadBytes))
	if err != nil {
		logger.Info(
			"reading http request body failed",
			logfields.Event("github_http_request_read_failed"),
			zap.Error(err),
		)

		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(resp, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}

		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	if len(p.webhookSecret) > 0 {
		if err := VerifySignature(body, signatureHeader(req), p.webhookSecret); err != nil {
			logger.Warn(
				"received http request with invalid signature",
				logfields.Event("github_http_request_signature_invalid"),
				zap.Error(err),
			)

			p.writeResponse(resp, logger, FailureResponse(http.StatusUnauthorized, invalidSignatureMsg))
			return
		}
	}

	payload, err := payloadFromBody(req.Header.Get("Content-Type"), body)
	if err != nil {
		logger.Info(
			"received invalid http request, extracting payload failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Debug(
		"received http request",
		logfields.Event("github_event_received"),
		zap.ByteString("http_body", payload),
	)

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"ignoring event, parsing failed or type is unsupported",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)

		p.writeResponse(resp, logger, AckResponse())
		return
	}

	action := payloadAction(payload)
	logFields = append(logFields, logfields.Action(action))

	ev := Event{
		DeliveryID: deliveryID,
		Type:       hookType,
		Action:     action,
		JSON:       payload,
		Event:      event,
		LogFields:  logFields,
	}

	// processing an event can take longer than github keeps the
	// connection open, it must not be aborted when the client disconnects
	ctx := context.WithoutCancel(req.Context())

	p.writeResponse(resp, logger, p.handler.HandleEvent(ctx, &ev))
}

func (p *Provider) writeResponse(resp http.ResponseWriter, logger *zap.Logger, r *Response) {
	if r == nil {
		r = AckResponse()
	}

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(r.StatusCode)

	if err := json.NewEncoder(resp).Encode(r); err != nil {
		logger.Info(
			"writing http response failed",
			logfields.Event("github_http_response_write_failed"),
			zap.Error(err),
		)
	}
}

func payloadFromBody(contentType string, body []byte) ([]byte, error) {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	switch strings.TrimSpace(mediaType) {
	case "application/json", "":
		return body, nil

	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parsing form body failed: %w", err)
		}

		return []byte(form.Get("payload")), nil

	default:
		return nil, fmt.Errorf("unsupported content-type: %q", contentType)
	}
}

func payloadAction(payload []byte) string {
	var p struct {
		Action string `json:"action"`
	}

	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}

	return p.Action
}
