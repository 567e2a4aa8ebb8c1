package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// DefaultWebhookHistorySize bounds the in-memory webhook ring.
const DefaultWebhookHistorySize = 1000

// SignatureHeaders are checked in order for an HMAC signature.
var SignatureHeaders = []string{
	"X-Hub-Signature-256",
	"X-Datadog-Signature",
	"X-Slack-Signature",
	"X-PagerDuty-Signature",
	"X-Webhook-Signature",
}

var (
	ErrWebhookRateLimited = errors.New("webhook source rate limited")
	ErrMissingSignature   = errors.New("webhook signature required but missing")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
)

// CanonicalJSON renders a payload in the form signatures are computed
// over. encoding/json writes map keys in sorted order, so a plain
// marshal of the decoded object is already canonical.
func CanonicalJSON(payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

// WebhookVerifier checks payload signatures against per-source secrets.
type WebhookVerifier struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewWebhookVerifier() *WebhookVerifier {
	return &WebhookVerifier{secrets: make(map[string]string)}
}

// SetSecret registers or replaces the secret for a source. An empty
// secret removes it.
func (v *WebhookVerifier) SetSecret(source, secret string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if secret == "" {
		delete(v.secrets, source)
		return
	}
	v.secrets[source] = secret
}

func (v *WebhookVerifier) HasSecret(source string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.secrets[source]
	return ok
}

// Verify checks the request signature for a source. Sources without a
// registered secret pass unverified. Sources with a secret must
// present a matching signature in one of the recognized headers.
func (v *WebhookVerifier) Verify(source string, payload map[string]interface{}, header http.Header) (bool, error) {
	v.mu.RLock()
	secret, required := v.secrets[source]
	v.mu.RUnlock()
	if !required {
		return false, nil
	}

	presented, found := signatureFromHeader(header)
	if !found {
		return false, ErrMissingSignature
	}

	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return false, err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(presented)), []byte(expected)) {
		return false, ErrSignatureMismatch
	}
	return true, nil
}

func signatureFromHeader(header http.Header) (string, bool) {
	for _, name := range SignatureHeaders {
		value := strings.TrimSpace(header.Get(name))
		if value == "" {
			continue
		}
		return strings.TrimPrefix(value, "sha256="), true
	}
	return "", false
}

// WebhookHistory keeps recent webhook events in a bounded ring. When
// the ring fills, the oldest tenth is dropped in one cut.
type WebhookHistory struct {
	mu       sync.RWMutex
	capacity int
	events   []*models.WebhookEvent
}

func NewWebhookHistory(capacity int) *WebhookHistory {
	if capacity <= 0 {
		capacity = DefaultWebhookHistorySize
	}
	return &WebhookHistory{capacity: capacity}
}

func (h *WebhookHistory) Add(event *models.WebhookEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) >= h.capacity {
		drop := h.capacity / 10
		if drop < 1 {
			drop = 1
		}
		h.events = append(h.events[:0], h.events[drop:]...)
	}
	h.events = append(h.events, event)
}

func (h *WebhookHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Recent returns up to n events, newest first.
func (h *WebhookHistory) Recent(n int) []*models.WebhookEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.events) {
		n = len(h.events)
	}
	out := make([]*models.WebhookEvent, 0, n)
	for i := len(h.events) - 1; i >= len(h.events)-n; i-- {
		out = append(out, h.events[i])
	}
	return out
}

// SourceLimiter applies a token-bucket rate per webhook source. A nil
// limiter allows everything.
type SourceLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

func NewSourceLimiter(perSecond float64, burst int) *SourceLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &SourceLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *SourceLimiter) Allow(source string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.buckets[source]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[source] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// WebhookReceiver validates, records and normalizes inbound webhook
// payloads.
type WebhookReceiver struct {
	verifier   *WebhookVerifier
	history    *WebhookHistory
	limiter    *SourceLimiter
	normalizer *Normalizer
	log        logging.Logger
}

func NewWebhookReceiver(verifier *WebhookVerifier, history *WebhookHistory, limiter *SourceLimiter, n *Normalizer, log logging.Logger) *WebhookReceiver {
	if verifier == nil {
		verifier = NewWebhookVerifier()
	}
	if history == nil {
		history = NewWebhookHistory(0)
	}
	if n == nil {
		n = NewNormalizer()
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &WebhookReceiver{
		verifier:   verifier,
		history:    history,
		limiter:    limiter,
		normalizer: n,
		log:        log,
	}
}

func (r *WebhookReceiver) Verifier() *WebhookVerifier { return r.verifier }
func (r *WebhookReceiver) History() *WebhookHistory   { return r.history }

// Receive validates one inbound payload and records it in history.
func (r *WebhookReceiver) Receive(source string, payload map[string]interface{}, header http.Header) (*models.WebhookEvent, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &ValidationError{Reason: "webhook source is required"}
	}
	if payload == nil {
		return nil, &ValidationError{Reason: "webhook payload must be a JSON object"}
	}
	if !r.limiter.Allow(source) {
		return nil, ErrWebhookRateLimited
	}

	verified, err := r.verifier.Verify(source, payload, header)
	if err != nil {
		return nil, err
	}

	event := &models.WebhookEvent{
		ID:         uuid.NewString(),
		Source:     source,
		ReceivedAt: time.Now().UTC(),
		Verified:   verified,
		Payload:    payload,
	}
	r.history.Add(event)
	r.log.Info("webhook received",
		"source", source, "verified", verified, "id", event.ID)
	return event, nil
}

// Normalize converts a stored webhook event into a pipeline event,
// using the source as the service when the payload names none.
func (r *WebhookReceiver) Normalize(event *models.WebhookEvent) (*models.Event, error) {
	record := make(Record, len(event.Payload)+2)
	for k, v := range event.Payload {
		record[k] = v
	}
	if _, ok := record["service"]; !ok {
		record["service"] = event.Source
	}
	if _, ok := record["timestamp"]; !ok {
		record["timestamp"] = event.ReceivedAt
	}
	return r.normalizer.Normalize(record)
}
