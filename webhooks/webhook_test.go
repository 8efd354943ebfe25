package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-router/config"
	"support-router/middleware"
	"support-router/models"
	"support-router/services"
)

type recordingRouter struct {
	mu     sync.Mutex
	events []models.InboundEvent
}

func (r *recordingRouter) HandleEvent(_ context.Context, event models.InboundEvent) models.RoutingResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return models.RoutingResult{}
}

func (r *recordingRouter) received() []models.InboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.InboundEvent(nil), r.events...)
}

// inlinePool runs tasks on the calling goroutine.
type inlinePool struct{}

func (inlinePool) Submit(task func()) { task() }

func testConfig() *config.Config {
	return &config.Config{
		VerifyToken:     "verify-me",
		RateLimitMax:    100,
		RateLimitWindow: 15 * time.Minute,
	}
}

func newTestApp(cfg *config.Config, router EventRouter) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, cfg, router, inlinePool{})
	return app
}

const samplePayload = `{
  "object": "page",
  "entry": [{
    "id": "page-1",
    "time": 1710417600000,
    "messaging": [
      {"sender": {"id": "user-1"}, "recipient": {"id": "page-1"}, "timestamp": 1710417600000,
       "message": {"mid": "m-1", "text": "I need a home theater system"}},
      {"sender": {"id": "page-1"}, "recipient": {"id": "user-1"}, "timestamp": 1710417601000,
       "message": {"mid": "m-2", "text": "Hi!", "is_echo": true, "app_id": 1234567890, "metadata": "support-router:automated"}},
      {"sender": {"id": "user-1"}, "recipient": {"id": "page-1"}, "timestamp": 1710417602000,
       "delivery": {"mids": ["m-2"], "watermark": 1710417602000}},
      {"sender": {"id": "user-1"}, "recipient": {"id": "page-1"}, "timestamp": 1710417603000,
       "message": {"mid": "m-3", "attachments": [{"type": "image", "payload": {"url": "https://example.com/a.png"}}]}},
      {"sender": {"id": "user-1"}, "recipient": {"id": "page-1"}, "timestamp": 1710417604000}
    ]
  }]
}`

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestVerifyWebhook(t *testing.T) {
	app := newTestApp(testConfig(), &recordingRouter{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "12345", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=unsubscribe&hub.verify_token=verify-me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestHandleWebhookEvent(t *testing.T) {
	router := &recordingRouter{}
	app := newTestApp(testConfig(), router)

	resp, err := app.Test(postJSON(samplePayload))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "EVENT_RECEIVED", string(body))

	events := router.received()
	require.Len(t, events, 4)

	assert.Equal(t, models.EventText, events[0].Kind())
	assert.Equal(t, "user-1", events[0].SenderID)
	assert.Equal(t, "page-1", events[0].PageID)
	assert.Equal(t, "m-1", events[0].MessageID)
	assert.Equal(t, time.UnixMilli(1710417600000).UTC(), events[0].Timestamp)

	assert.Equal(t, models.EventEcho, events[1].Kind())
	assert.Equal(t, "1234567890", events[1].EchoAppID)
	assert.Equal(t, "support-router:automated", events[1].EchoMetadata)
	assert.Equal(t, "user-1", events[1].RecipientID)

	assert.Equal(t, models.EventDelivery, events[2].Kind())
	assert.Equal(t, models.EventNonText, events[3].Kind())
}

func TestHandleWebhookEventRejectsOtherObjects(t *testing.T) {
	router := &recordingRouter{}
	app := newTestApp(testConfig(), router)

	resp, err := app.Test(postJSON(`{"object":"instagram","entry":[]}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(postJSON(`{not json`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, router.received())
}

func TestHandleWebhookEventSignature(t *testing.T) {
	cfg := testConfig()
	cfg.AppSecret = "app-secret"
	router := &recordingRouter{}
	app := newTestApp(cfg, router)

	resp, err := app.Test(postJSON(samplePayload))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, router.received())

	req := postJSON(samplePayload)
	req.Header.Set(middleware.SignatureHeader, middleware.Sign([]byte("app-secret"), []byte(samplePayload)))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, router.received(), 4)
}

func TestHandleWebhookEventRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 2
	app := newTestApp(cfg, &recordingRouter{})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(postJSON(`{"object":"page","entry":[]}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(postJSON(`{"object":"page","entry":[]}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

// blockingRouter holds every event until release is closed.
type blockingRouter struct {
	recordingRouter
	release chan struct{}
}

func (r *blockingRouter) HandleEvent(ctx context.Context, event models.InboundEvent) models.RoutingResult {
	<-r.release
	return r.recordingRouter.HandleEvent(ctx, event)
}

func TestHandleWebhookEventAcksWhileWorkersBusy(t *testing.T) {
	pool, err := services.NewWorkerPool(1, 1000)
	require.NoError(t, err)
	defer pool.Shutdown(time.Second)

	router := &blockingRouter{release: make(chan struct{})}
	app := fiber.New()
	RegisterRoutes(app, testConfig(), router, pool)

	for i := 0; i < 3; i++ {
		begin := time.Now()
		resp, err := app.Test(postJSON(samplePayload), 500)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "EVENT_RECEIVED", string(body))
		assert.Less(t, time.Since(begin), 250*time.Millisecond)
	}
	assert.Eventually(t, func() bool { return pool.Running() == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, router.received())

	close(router.release)
	assert.Eventually(t, func() bool { return len(router.received()) == 12 }, 2*time.Second, 10*time.Millisecond)
}
