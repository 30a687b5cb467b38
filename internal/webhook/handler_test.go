package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roomcast/adsync/internal/adbackend"
	"github.com/roomcast/adsync/internal/adsession"
	"github.com/roomcast/adsync/internal/store"
)

type handlerFixture struct {
	router   *gin.Engine
	store    *store.RedisStore
	verifier *Verifier
	mr       *miniredis.Miniredis
}

func setupHandler(t *testing.T, opts ...func(*Handler)) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1770000000, 0)
	verifier := NewVerifier("test-secret", 5*time.Minute)
	verifier.now = func() time.Time { return now }

	st := store.NewRedisStore(client, time.Minute, zap.NewNop())
	guard := NewRedisGuard(client, 5*time.Minute)
	h := NewHandler(verifier, true, guard, st, nil, nil, nil, zap.NewNop())
	for _, opt := range opts {
		opt(h)
	}

	router := gin.New()
	router.POST("/webhooks/ad-events", h.HandleEvent)
	return &handlerFixture{router: router, store: st, verifier: verifier, mr: mr}
}

func (f *handlerFixture) post(t *testing.T, eventType, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	ts := fmt.Sprintf("%d", time.Unix(1770000000, 0).Unix())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ad-events", bytes.NewBufferString(body))
	req.Header.Set(HeaderEventType, eventType)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, f.verifier.Sign(ts, []byte(body)))
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandleEvent_SecretNotConfigured(t *testing.T) {
	f := setupHandler(t, func(h *Handler) { h.secretSet = false })
	w := f.post(t, adsession.TypeSessionStarted, `{"roomId":"r1","sessionId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleEvent_BadSignature(t *testing.T) {
	f := setupHandler(t)
	w := f.post(t, adsession.TypeSessionStarted, `{"roomId":"r1","sessionId":"s1"}`, func(r *http.Request) {
		r.Header.Set(HeaderSignature, "deadbeef")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// No state was created for the room.
	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, adsession.StateStopped, snap.State)
	assert.False(t, f.mr.Exists("roomads:snapshot:r1"))
}

func TestHandleEvent_MissingSignatureHeaders(t *testing.T) {
	f := setupHandler(t)
	w := f.post(t, adsession.TypeSessionStarted, `{"roomId":"r1"}`, func(r *http.Request) {
		r.Header.Del(HeaderSignature)
		r.Header.Del(HeaderTimestamp)
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleEvent_MalformedJSON(t *testing.T) {
	f := setupHandler(t)
	w := f.post(t, adsession.TypeSessionStarted, `{"roomId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_MissingRoomID(t *testing.T) {
	f := setupHandler(t)
	w := f.post(t, adsession.TypeSessionStarted, `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_AdStartedMutatesSnapshot(t *testing.T) {
	f := setupHandler(t)
	body := `{"roomId":"r1","sessionId":"s1","reservationId":"res-1","adId":"ad-1","title":"Spring Sale","imageUrl":"https://cdn.example.com/a.png","durationSec":30,"startedAt":"2026-03-01T12:00:00Z"}`
	w := f.post(t, adsession.TypeAdStarted, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.NotContains(t, resp, "deduped")

	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "res-1", snap.Current.ReservationID)
	assert.Equal(t, adsession.StateRunning, snap.State)
}

func TestHandleEvent_DuplicateDeliverySuppressed(t *testing.T) {
	f := setupHandler(t)
	withKey := func(r *http.Request) { r.Header.Set(HeaderIdempotencyKey, "delivery-42") }

	w := f.post(t, adsession.TypeSessionStarted, `{"roomId":"r1","sessionId":"s1"}`, withKey)
	require.Equal(t, http.StatusOK, w.Code)

	// Same delivery key again: acknowledged, marked deduped, no mutation
	// even though the replayed body differs.
	w = f.post(t, adsession.TypeSessionStopped, `{"roomId":"r1"}`, withKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["deduped"])

	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, adsession.StateRunning, snap.State, "duplicate must not mutate state")
}

func TestHandleEvent_MissingIdempotencyKeyAlwaysProcessed(t *testing.T) {
	f := setupHandler(t)
	for i := 0; i < 2; i++ {
		w := f.post(t, adsession.TypeSessionStarted, `{"roomId":"r1","sessionId":"s1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotContains(t, resp, "deduped")
	}
}

func TestHandleEvent_UnknownEventTypeAccepted(t *testing.T) {
	f := setupHandler(t)
	w := f.post(t, "ad.paused", `{"roomId":"r1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.mr.Exists("roomads:snapshot:r1"), "unknown events do not touch the store")
}

func TestHandleEvent_SessionIdleCallsAdBackend(t *testing.T) {
	called := make(chan string, 1)
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer backendSrv.Close()

	f := setupHandler(t, func(h *Handler) {
		h.backend = adbackend.NewClient(backendSrv.URL, time.Second, zap.NewNop())
	})

	w := f.post(t, adsession.TypeSessionIdle, `{"roomId":"r1","reason":"no inventory"}`)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case path := <-called:
		assert.Equal(t, "/rooms/r1/stop", path)
	case <-time.After(2 * time.Second):
		t.Fatal("ad backend stop call never arrived")
	}

	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, adsession.StateStopped, snap.State)
}

type fakeResolver struct {
	base string
	err  error
}

func (r fakeResolver) ResolveCreativeURL(_ context.Context, key string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.base + "/" + key, nil
}

func TestHandleEvent_ResolvesCreativeImageKey(t *testing.T) {
	f := setupHandler(t, func(h *Handler) {
		h.creatives = fakeResolver{base: "https://creatives.example.com"}
	})
	body := `{"roomId":"r1","reservationId":"res-1","adId":"ad-1","imageKey":"creatives/ad-1.png"}`
	w := f.post(t, adsession.TypeAdStarted, body)
	require.Equal(t, http.StatusOK, w.Code)

	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "https://creatives.example.com/creatives/ad-1.png", snap.Current.ImageURL)
}

func TestHandleEvent_CreativeResolutionFailureStillAirs(t *testing.T) {
	f := setupHandler(t, func(h *Handler) {
		h.creatives = fakeResolver{err: errors.New("presign failed")}
	})
	body := `{"roomId":"r1","reservationId":"res-1","adId":"ad-1","imageKey":"creatives/ad-1.png"}`
	w := f.post(t, adsession.TypeAdStarted, body)
	require.Equal(t, http.StatusOK, w.Code)

	snap, err := f.store.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "ad-1", snap.Current.AdID)
	assert.Empty(t, snap.Current.ImageURL)
}
