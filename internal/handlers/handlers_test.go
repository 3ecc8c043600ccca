package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noticeboard-go/internal/models"
	"noticeboard-go/internal/notify"
)

type fakeNotifications struct {
	recent []models.Notification
}

func (f *fakeNotifications) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	return f.recent, nil
}

type fakeReceipts struct {
	clicked map[string]bool
	deleted map[string]bool
	read    []string
}

func newFakeReceipts() *fakeReceipts {
	return &fakeReceipts{clicked: make(map[string]bool), deleted: make(map[string]bool)}
}

func (f *fakeReceipts) MarkRead(ctx context.Context, userID int, id string) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeReceipts) MarkClicked(ctx context.Context, userID int, id string) error {
	f.clicked[id] = true
	return nil
}

func (f *fakeReceipts) MarkDeleted(ctx context.Context, userID int, id string) error {
	f.deleted[id] = true
	return nil
}

func (f *fakeReceipts) MarkManyRead(ctx context.Context, userID int, ids []string) error {
	f.read = append(f.read, ids...)
	return nil
}

func (f *fakeReceipts) GetReceipts(ctx context.Context, userID int, ids []string) (map[string]models.Receipt, error) {
	return map[string]models.Receipt{}, nil
}

func testHandler(receipts *fakeReceipts) *Handler {
	return &Handler{
		Board:    notify.NewService(&fakeNotifications{}, receipts),
		Sessions: NewSessions("test-secret"),
	}
}

func signIn(t *testing.T, h *Handler, r *http.Request) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	seed := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, h.Sessions.SignIn(rec, seed, models.User{ID: 7, Username: "u7", Role: "user"}))
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	h := testHandler(newFakeReceipts())

	called := false
	next := h.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	next(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestNotificationActionClick(t *testing.T) {
	receipts := newFakeReceipts()
	h := testHandler(receipts)

	r := signIn(t, h, httptest.NewRequest(http.MethodPost, "/api/notifications/n1/click", nil))
	rec := httptest.NewRecorder()
	h.NotificationActionHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, receipts.clicked["n1"])
}

func TestNotificationActionDelete(t *testing.T) {
	receipts := newFakeReceipts()
	h := testHandler(receipts)

	r := signIn(t, h, httptest.NewRequest(http.MethodPost, "/api/notifications/n2/delete", nil))
	rec := httptest.NewRecorder()
	h.NotificationActionHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, receipts.deleted["n2"])
}

func TestNotificationActionUnknown(t *testing.T) {
	h := testHandler(newFakeReceipts())

	r := signIn(t, h, httptest.NewRequest(http.MethodPost, "/api/notifications/n1/archive", nil))
	rec := httptest.NewRecorder()
	h.NotificationActionHandler(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadHandlerBatch(t *testing.T) {
	receipts := newFakeReceipts()
	h := testHandler(receipts)

	body := bytes.NewBufferString(`{"ids":["n1","n2"]}`)
	r := signIn(t, h, httptest.NewRequest(http.MethodPost, "/api/notifications/read", body))
	rec := httptest.NewRecorder()
	h.MarkReadHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"n1", "n2"}, receipts.read)
}

func TestMarkReadHandlerRejectsEmptyBatch(t *testing.T) {
	h := testHandler(newFakeReceipts())

	body := bytes.NewBufferString(`{"ids":[]}`)
	r := signIn(t, h, httptest.NewRequest(http.MethodPost, "/api/notifications/read", body))
	rec := httptest.NewRecorder()
	h.MarkReadHandler(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenHandlerClampsRedirect(t *testing.T) {
	h := testHandler(newFakeReceipts())

	for _, dest := range []string{"//evil.example", "https://evil.example", ""} {
		rec := httptest.NewRecorder()
		h.OpenHandler(rec, httptest.NewRequest(http.MethodGet, "/open?to="+dest, nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	}
}

func TestOpenHandlerRecordsClickWhenSignedIn(t *testing.T) {
	receipts := newFakeReceipts()
	h := testHandler(receipts)

	r := signIn(t, h, httptest.NewRequest(http.MethodGet, "/open?nid=n1&to=%2Farticles%2F5", nil))
	rec := httptest.NewRecorder()
	h.OpenHandler(rec, r)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/articles/5", rec.Header().Get("Location"))
	assert.True(t, receipts.clicked["n1"])
}

func TestValidateSharedSecret(t *testing.T) {
	// No secret configured: validation is skipped entirely.
	t.Setenv("WEBHOOK_SECRET", "")
	r := httptest.NewRequest(http.MethodPost, "/webhook/notify", strings.NewReader("{}"))
	assert.True(t, validateSharedSecret(r))

	t.Setenv("WEBHOOK_SECRET", "topsecret")

	body := `{"title":"T","body":"B"}`
	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write([]byte(body))
	sig := hex.EncodeToString(mac.Sum(nil))

	r = httptest.NewRequest(http.MethodPost, "/webhook/notify", strings.NewReader(body))
	r.Header.Set("X-Noticeboard-Signature", sig)
	assert.True(t, validateSharedSecret(r))

	r = httptest.NewRequest(http.MethodPost, "/webhook/notify", strings.NewReader(body))
	r.Header.Set("X-Noticeboard-Signature", "deadbeef")
	assert.False(t, validateSharedSecret(r))

	r = httptest.NewRequest(http.MethodPost, "/webhook/notify", strings.NewReader(body))
	assert.False(t, validateSharedSecret(r))
}
