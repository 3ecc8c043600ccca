package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticeboard-go/internal/models"
)

func testConfig() Config {
	return Config{
		VAPIDPublicKey:  "test-public",
		VAPIDPrivateKey: "test-private",
		Subscriber:      "mailto:test@example.com",
		TTL:             30,
		AttemptTimeout:  time.Second,
	}
}

// fakeSource is an in-memory subscription store.
type fakeSource struct {
	mu      sync.Mutex
	subs    []models.Subscription
	listErr error
}

func (f *fakeSource) ListAll(ctx context.Context) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Subscription(nil), f.subs...), nil
}

func (f *fakeSource) ListForUsers(ctx context.Context, userIDs []int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	want := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []models.Subscription
	for _, sub := range f.subs {
		if want[sub.UserID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSource) Unregister(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.subs[:0]
	for _, sub := range f.subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	f.subs = kept
	return nil
}

func (f *fakeSource) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, sub := range f.subs {
		out = append(out, sub.Endpoint)
	}
	return out
}

func sub(userID int, endpoint string) models.Subscription {
	return models.Subscription{
		EndpointKey: models.EndpointKey(endpoint),
		UserID:      userID,
		Endpoint:    endpoint,
		P256dh:      "p256dh-" + endpoint,
		Auth:        "auth-" + endpoint,
	}
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestDispatchClassifiesOutcomes(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{
		sub(1, "https://push.example/valid"),
		sub(2, "https://push.example/gone"),
		sub(3, "https://push.example/flaky"),
	}}
	d := NewDispatcher(testConfig(), source)
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		switch s.Endpoint {
		case "https://push.example/valid":
			return response(http.StatusCreated), nil
		case "https://push.example/gone":
			return response(http.StatusGone), nil
		default:
			return nil, errors.New("connection timed out")
		}
	}

	n := models.Notification{ID: "n1", Title: "T", Body: "B", URL: "/x"}
	summary, err := d.Dispatch(context.Background(), n, source.subs)

	require.NoError(t, err, "individual failures must not fail the batch")
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Pruned)
	assert.Equal(t, 1, summary.Transient)

	// Only the gone endpoint is pruned; the flaky one stays.
	assert.ElementsMatch(t,
		[]string{"https://push.example/valid", "https://push.example/flaky"},
		source.endpoints())
}

func TestDispatchNotFoundAlsoPrunes(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{sub(1, "https://push.example/missing")}}
	d := NewDispatcher(testConfig(), source)
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		return response(http.StatusNotFound), nil
	}

	summary, err := d.Dispatch(context.Background(), models.Notification{ID: "n1"}, source.subs)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pruned)
	assert.Empty(t, source.endpoints())
}

func TestDispatchNotConfigured(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{sub(1, "https://push.example/a")}}
	d := NewDispatcher(Config{}, source)
	called := false
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		called = true
		return response(http.StatusCreated), nil
	}

	_, err := d.Dispatch(context.Background(), models.Notification{ID: "n1"}, source.subs)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, called, "no attempt may run without VAPID keys")

	_, err = d.Send(context.Background(), models.Notification{ID: "n1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendTargetsOnlyListedUsers(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{
		sub(1, "https://push.example/u1"),
		sub(3, "https://push.example/u3"),
	}}
	d := NewDispatcher(testConfig(), source)

	var mu sync.Mutex
	var attempted []string
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		mu.Lock()
		attempted = append(attempted, s.Endpoint)
		mu.Unlock()
		return response(http.StatusCreated), nil
	}

	n := models.Notification{ID: "n1", Title: "T", Body: "B", TargetUserIDs: []int{1, 2}}
	summary, err := d.Send(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, []string{"https://push.example/u1"}, attempted)
}

func TestSendBroadcastAttemptsEveryone(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{
		sub(1, "https://push.example/u1"),
		sub(2, "https://push.example/u2a"),
		sub(2, "https://push.example/u2b"),
	}}
	d := NewDispatcher(testConfig(), source)

	var mu sync.Mutex
	var attempted []string
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		mu.Lock()
		attempted = append(attempted, s.Endpoint)
		mu.Unlock()
		return response(http.StatusCreated), nil
	}

	summary, err := d.Send(context.Background(), models.Notification{ID: "n1", Title: "T"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Delivered)
	assert.Len(t, attempted, 3)
}

func TestSendListErrorIsFatal(t *testing.T) {
	source := &fakeSource{listErr: errors.New("database is down")}
	d := NewDispatcher(testConfig(), source)
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		return response(http.StatusCreated), nil
	}

	_, err := d.Send(context.Background(), models.Notification{ID: "n1"})
	assert.ErrorContains(t, err, "failed to list subscriptions")
}

func TestDispatchPayloadOmitsCredentials(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{sub(1, "https://push.example/u1")}}
	d := NewDispatcher(testConfig(), source)

	var captured []byte
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		captured = message
		return response(http.StatusCreated), nil
	}

	n := models.Notification{ID: "n1", Title: "T", Body: "B", URL: "/articles/5", Icon: "/static/icon.png"}
	_, err := d.Dispatch(context.Background(), n, source.subs)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(captured, &got))
	assert.Equal(t, "n1", got["id"])
	assert.Equal(t, "T", got["title"])
	assert.Equal(t, "B", got["body"])
	assert.Equal(t, "/articles/5", got["url"])
	assert.NotContains(t, string(captured), "auth-")
	assert.NotContains(t, string(captured), "p256dh-")
}

func TestDispatchSlowEndpointIsTransient(t *testing.T) {
	source := &fakeSource{subs: []models.Subscription{
		sub(1, "https://push.example/fast"),
		sub(2, "https://push.example/hung"),
	}}
	cfg := testConfig()
	cfg.AttemptTimeout = 20 * time.Millisecond
	d := NewDispatcher(cfg, source)
	d.send = func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		if s.Endpoint == "https://push.example/hung" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return response(http.StatusCreated), nil
	}

	summary, err := d.Dispatch(context.Background(), models.Notification{ID: "n1"}, source.subs)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Transient)
	// Timeouts never prune: the endpoint might just be slow.
	assert.Len(t, source.endpoints(), 2)
}
