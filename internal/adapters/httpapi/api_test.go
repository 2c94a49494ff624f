package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster/internal/blob"
	"roster/internal/core"
	"roster/internal/infra/persistence/memory"
)

type apiHarness struct {
	t       *testing.T
	svc     *core.Service
	handler http.Handler
}

func newHarness(t *testing.T, opts ...core.ServiceOption) *apiHarness {
	t.Helper()
	svc := core.NewInMemoryService(context.Background(), opts...)
	return &apiHarness{t: t, svc: svc, handler: NewRouter(svc)}
}

func (h *apiHarness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) login() {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/session/login", map[string]string{"username": "admin", "password": "pw"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func validBody() map[string]any {
	return map[string]any{"fullName": "X Y", "gender": "Other", "dob": "2000-01-01", "state": "Texas", "isActive": false}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/debug/vars", nil).Code)
}

func TestRosterRoutesRequireSession(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/employees"},
		{http.MethodGet, "/api/v1/employees/summary"},
		{http.MethodGet, "/api/v1/employees/1"},
		{http.MethodPost, "/api/v1/employees"},
		{http.MethodDelete, "/api/v1/employees/1"},
		{http.MethodGet, "/api/v1/employees/print"},
	} {
		rec := h.do(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
	rec := h.do(http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decode[sessionResponse](t, rec).Authenticated)
}

func TestLoginLogoutFlow(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/v1/session/login", map[string]string{"username": "admin", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please enter both username and password", decode[map[string]string](t, rec)["error"])

	h.login()
	rec = h.do(http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[sessionResponse](t, rec)
	require.NotNil(t, session.User)
	assert.Equal(t, "Admin User", session.User.Name)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/api/v1/session/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/employees", nil).Code)
}

func TestListAndFilterEmployees(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/api/v1/employees?gender=Female&status=All", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "Jane Smith", list.Employees[0].FullName)
	assert.Equal(t, "Alice Johnson", list.Employees[1].FullName)

	list = decode[listResponse](t, h.do(http.MethodGet, "/api/v1/employees?search=jo", nil))
	require.Len(t, list.Employees, 2)
	assert.Equal(t, "John Doe", list.Employees[0].FullName)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/employees?status=Retired", nil).Code)

	sum := decode[core.Summary](t, h.do(http.MethodGet, "/api/v1/employees/summary", nil))
	assert.Equal(t, core.Summary{Total: 3, Active: 2, Inactive: 1}, sum)
}

func TestEmployeeCRUD(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodPost, "/api/v1/employees", validBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[mutationResponse](t, rec)
	require.NotNil(t, created.Employee)
	assert.Equal(t, core.MsgEmployeeAdded, created.Notification)
	id := created.Employee.ID

	rec = h.do(http.MethodGet, "/api/v1/employees/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "X Y", decode[core.Employee](t, rec).FullName)

	body := validBody()
	body["fullName"] = "Xavier Y"
	body["isActive"] = true
	rec = h.do(http.MethodPut, "/api/v1/employees/"+id, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[mutationResponse](t, rec)
	assert.Equal(t, core.MsgEmployeeUpdated, updated.Notification)
	assert.Equal(t, id, updated.Employee.ID)
	assert.True(t, updated.Employee.IsActive)

	rec = h.do(http.MethodDelete, "/api/v1/employees/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, core.MsgEmployeeDeleted, rec.Header().Get("X-Notification"))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/employees/"+id, nil).Code)
	assert.Len(t, h.svc.Store().List(), 3)
}

func TestEmployeeErrors(t *testing.T) {
	h := newHarness(t)
	h.login()

	body := validBody()
	body["fullName"] = "Jo"
	body["gender"] = ""
	rec := h.do(http.MethodPost, "/api/v1/employees", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	verr := decode[validationResponse](t, rec)
	assert.Equal(t, "Full Name must be at least 3 characters", verr.Errors["fullName"])
	assert.Equal(t, "Please select a gender", verr.Errors["gender"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPut, "/api/v1/employees/missing", validBody()).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/v1/employees/missing", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/employees", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPrintFormats(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/api/v1/employees/print?status=Inactive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Alice Johnson")
	assert.NotContains(t, rec.Body.String(), "John Doe")

	rec = h.do(http.MethodGet, "/api/v1/employees/print?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="employees.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 4, strings.Count(rec.Body.String(), "\n"))

	rec = h.do(http.MethodGet, "/api/v1/employees/print?format=json&gender=Male", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Employee](t, rec), 1)

	rec = h.do(http.MethodGet, "/api/v1/employees/print?format=yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fullName: Jane Smith")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/employees/print?format=pdf", nil).Code)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartImage(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="avatar.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestImageUploadBlobMode(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	enc, err := core.NewImageEncoder(core.ImageModeBlob, 1024, store)
	require.NoError(t, err)
	h := newHarness(t, core.WithImageEncoder(enc))
	h.login()

	body, ct := multipartImage(t, "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payload := decode[uploadResponse](t, rec).Payload
	key, ok := core.BlobKey(payload)
	require.True(t, ok, payload)

	rec = h.do(http.MethodGet, "/api/v1/images/"+key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/images/profile-images/missing", nil).Code)

	body, ct = multipartImage(t, "text/plain", []byte("hello"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body, ct = multipartImage(t, "image/png", make([]byte, 2048))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func (h *apiHarness) upload(data []byte) string {
	h.t.Helper()
	body, ct := multipartImage(h.t, "image/png", data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[uploadResponse](h.t, rec).Payload
}

func TestImageHeadAndReleaseOnEmployeeChanges(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	enc, err := core.NewImageEncoder(core.ImageModeBlob, 1024, store)
	require.NoError(t, err)
	h := newHarness(t, core.WithImageEncoder(enc))
	h.login()

	first := h.upload(pngBytes)
	firstKey, _ := core.BlobKey(first)
	rec := h.do(http.MethodHead, "/api/v1/images/"+firstKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(len(pngBytes)), rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodHead, "/api/v1/images/profile-images/missing", nil).Code)

	body := validBody()
	body["profileImage"] = first
	rec = h.do(http.MethodPost, "/api/v1/employees", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[mutationResponse](t, rec).Employee.ID

	second := h.upload(pngBytes)
	secondKey, _ := core.BlobKey(second)
	body["profileImage"] = second
	rec = h.do(http.MethodPut, "/api/v1/employees/"+id, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodHead, "/api/v1/images/"+firstKey, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodHead, "/api/v1/images/"+secondKey, nil).Code)

	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/v1/employees/"+id, nil).Code)
	_, err = store.Head(ctx, secondKey)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

// presigningStore reports itself as S3 so image reads redirect.
type presigningStore struct {
	blob.Store
}

func (presigningStore) Driver() blob.Driver { return blob.DriverS3 }

func (presigningStore) PresignURL(_ context.Context, key string, opts blob.SignedURLOptions) (string, error) {
	return "https://bucket.example.test/" + key + "?method=" + opts.Method, nil
}

func TestImageGetRedirectsToSignedURL(t *testing.T) {
	ctx := context.Background()
	mem, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	enc, err := core.NewImageEncoder(core.ImageModeBlob, 1024, presigningStore{Store: mem})
	require.NoError(t, err)
	h := newHarness(t, core.WithImageEncoder(enc))
	h.login()

	key, _ := core.BlobKey(h.upload(pngBytes))
	rec := h.do(http.MethodGet, "/api/v1/images/"+key, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://bucket.example.test/"+key+"?method=GET", rec.Header().Get("Location"))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/images/profile-images/missing", nil).Code)
}

func TestImageUploadDisabled(t *testing.T) {
	h := newHarness(t)
	h.login()
	body, ct := multipartImage(t, "image/png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMetricsHandlerMounted(t *testing.T) {
	svc := core.NewInMemoryService(context.Background())
	handler := NewRouter(svc, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metrics", rec.Body.String())
}

// unreadableStorage fails every employees read and records writes.
type unreadableStorage struct {
	core.DurableStorage
	writes int
}

func (u *unreadableStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "employees" {
		return "", false, errors.New("connection reset")
	}
	return u.DurableStorage.GetItem(ctx, key)
}

func (u *unreadableStorage) SetItem(ctx context.Context, key, value string) error {
	if key == "employees" {
		u.writes++
	}
	return u.DurableStorage.SetItem(ctx, key, value)
}

func TestMutationsUnavailableWhileRosterUnreadable(t *testing.T) {
	ctx := context.Background()
	storage := &unreadableStorage{DurableStorage: memory.NewStore()}
	store := core.NewRecordStore(storage)
	require.Equal(t, core.LoadFromSeedUnreadable, store.Load(ctx))
	svc := core.NewService(store, core.NewSessionGate(storage, nil), core.WithLatency(0))
	h := &apiHarness{t: t, svc: svc, handler: NewRouter(svc)}
	h.login()

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/employees", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodPost, "/api/v1/employees", validBody()).Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodDelete, "/api/v1/employees/1", nil).Code)
	assert.Zero(t, storage.writes)
}
