package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pk55-api/database"
	"pk55-api/metrics"
	"pk55-api/models"
	"pk55-api/services/auth"
	"pk55-api/services/media"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type fakeMedia struct {
	mu      sync.Mutex
	n       int
	objects map[string][]byte
	removed []string
	err     error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: map[string][]byte{}}
}

func (f *fakeMedia) Upload(ctx context.Context, body io.Reader, contentType, filename string) (*media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.n++
	key := fmt.Sprintf("pk55/img-%d.png", f.n)
	f.objects[key] = data
	return &media.Asset{ID: key, URL: "https://cdn.test/" + key}, nil
}

func (f *fakeMedia) RemoveAsset(ctx context.Context, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, assetID)
	f.removed = append(f.removed, assetID)
	return nil
}

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *database.MemoryStore
	media  *fakeMedia
	jwt    *auth.JWTService
	token  string
}

func newTestServer(t *testing.T, allowRegister bool) *testServer {
	t.Helper()

	store := database.NewMemoryStore()
	jwtService := auth.NewJWTService("test-secret", "pk55-api", time.Hour, store)
	fm := newFakeMedia()

	_, err := jwtService.CreateUser(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	resp, err := jwtService.Authenticate(context.Background(), "admin", "hunter2")
	require.NoError(t, err)

	router := NewRouter(RouterDeps{
		Store:          store,
		JWT:            jwtService,
		AllowRegister:  allowRegister,
		Media:          fm,
		Remover:        fm,
		Metrics:        metrics.New(prometheus.NewRegistry()),
		MetricsHandler: http.NotFoundHandler(),
	})

	return &testServer{t: t, router: router, store: store, media: fm, jwt: jwtService, token: resp.Token}
}

func (s *testServer) do(method, path string, body io.Reader, contentType string, authed bool) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	return s.do(method, path, &buf, "application/json", authed)
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// typedMultipartBody sends the image part with an explicit Content-Type.
func typedMultipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) models.APIResponse {
	t.Helper()
	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return models.APIResponse{Status: env.Status, Message: env.Message}
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/", nil, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"PK55 API Server"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/health", nil, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "connected", health.Database)
	assert.Equal(t, "disabled", health.Redis)
	assert.NotEmpty(t, health.Timestamp)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "hunter2"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.AuthResponse
	decodeData(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.User.Username)
	assert.NotEmpty(t, resp.User.ID)

	rec = s.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.doJSON(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"), "application/json", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, false)
		rec := s.doJSON(http.MethodPost, "/api/auth/register", map[string]string{"username": "editor", "password": "pw"}, false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		s := newTestServer(t, true)

		rec := s.doJSON(http.MethodPost, "/api/auth/register", map[string]string{"username": "editor", "password": "pw"}, false)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp models.AuthResponse
		decodeData(t, rec, &resp)
		assert.Equal(t, "editor", resp.User.Username)

		rec = s.doJSON(http.MethodPost, "/api/auth/register", map[string]string{"username": "editor", "password": "pw2"}, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMe(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/api/auth/me", nil, "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/me", nil, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.AuthUser
	decodeData(t, rec, &user)
	assert.Equal(t, "admin", user.Username)
}

func TestGetBanner_CreatesDefaultOnce(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/api/banner", nil, "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var first models.BannerResponse
	decodeData(t, rec, &first)
	assert.Equal(t, models.DefaultBannerHeading, first.Heading)
	assert.Contains(t, []int{50, 70}, first.DiscountPercentage)
	assert.Empty(t, first.ImageURL)

	rec = s.do(http.MethodGet, "/api/banner", nil, "", false)
	var second models.BannerResponse
	decodeData(t, rec, &second)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpdateBanner(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.doJSON(http.MethodPut, "/api/banner", map[string]interface{}{"heading": "Sale"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/banner", map[string]interface{}{"heading": "Sale", "discountPercentage": 30}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var banner models.BannerResponse
	decodeData(t, rec, &banner)
	assert.Equal(t, "Sale", banner.Heading)
	assert.Equal(t, 30, banner.DiscountPercentage)
	assert.Equal(t, models.DefaultBannerDescription, banner.Description)

	rec = s.doJSON(http.MethodPut, "/api/banner", map[string]interface{}{"discountPercentage": 150}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/banner", map[string]interface{}{"date": "01/02/2026"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/banner", map[string]interface{}{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBannerImage(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/api/banner/image", nil, "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, ct := multipartBody(t, "notes.txt", []byte("hello world"), nil)
	rec = s.do(http.MethodPost, "/api/banner/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "bg.png", pngBytes, nil)
	rec = s.do(http.MethodPost, "/api/banner/upload", body, ct, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, ct = multipartBody(t, "bg.png", pngBytes, nil)
	rec = s.do(http.MethodPost, "/api/banner/upload", body, ct, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var banner models.BannerResponse
	decodeData(t, rec, &banner)
	assert.Equal(t, models.BannerImagePath, banner.ImageURL)
	assert.Equal(t, "bg.png", banner.ImageFilename)
	assert.NotContains(t, rec.Body.String(), "iVBOR")

	rec = s.do(http.MethodGet, "/api/banner/image", nil, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t, false)

	body, ct := multipartBody(t, "a.png", pngBytes, map[string]string{"date": "2026-03-01"})
	rec := s.do(http.MethodPost, "/api/images/upload", body, ct, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, ct = multipartBody(t, "a.png", pngBytes, nil)
	rec = s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "a.png", pngBytes, map[string]string{"date": "March 1"})
	rec = s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "", nil, map[string]string{"date": "2026-03-01"})
	rec = s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "a.png", pngBytes, map[string]string{"date": "2026-03-01"})
	rec = s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var image models.Image
	decodeData(t, rec, &image)
	assert.Equal(t, "pk55/img-1.png", image.ID)
	assert.Equal(t, image.ID, image.AssetID)
	assert.Equal(t, "https://cdn.test/pk55/img-1.png", image.ImageURL)
	assert.Equal(t, "2026-03-01", image.Date)
	assert.Equal(t, pngBytes, s.media.objects[image.ID])
}

func TestUploadImage_TooLarge(t *testing.T) {
	s := newTestServer(t, false)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{1}, MaxUploadSize)...)
	body, ct := multipartBody(t, "big.png", big, map[string]string{"date": "2026-03-01"})
	rec := s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, s.media.objects)
}

func TestUploadImage_MediaNotConfigured(t *testing.T) {
	s := newTestServer(t, false)
	s.media.err = media.ErrNotConfigured

	body, ct := multipartBody(t, "a.png", pngBytes, map[string]string{"date": "2026-03-01"})
	rec := s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func (s *testServer) seedImage(id, date string, createdAt time.Time) {
	s.t.Helper()
	require.NoError(s.t, s.store.CreateImage(context.Background(), &models.Image{
		ID: id, AssetID: id, ImageURL: "https://cdn.test/" + id, Date: date, CreatedAt: createdAt,
	}))
	s.media.objects[id] = pngBytes
}

func TestListImages_SortedByDate(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/api/images", nil, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var images []models.Image
	decodeData(t, rec, &images)
	assert.Empty(t, images)

	base := time.Now()
	s.seedImage("pk55/a", "2026-01-01", base)
	s.seedImage("pk55/b", "2026-03-01", base)
	s.seedImage("pk55/c", "2026-02-01", base)

	rec = s.do(http.MethodGet, "/api/images", nil, "", false)
	decodeData(t, rec, &images)
	require.Len(t, images, 3)
	assert.Equal(t, "pk55/b", images[0].ID)
	assert.Equal(t, "pk55/c", images[1].ID)
	assert.Equal(t, "pk55/a", images[2].ID)
}

func TestUpdateImageDate(t *testing.T) {
	s := newTestServer(t, false)
	s.seedImage("pk55/a", "2026-01-01", time.Now())

	rec := s.doJSON(http.MethodPut, "/api/images/pk55/a/update-date", map[string]string{"date": "2026-05-05"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var image models.Image
	decodeData(t, rec, &image)
	assert.Equal(t, "2026-05-05", image.Date)

	rec = s.doJSON(http.MethodPut, "/api/images/pk55%2Fa/update-date", map[string]string{"date": "2026-06-06"}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/images/pk55/a/update-date", map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/images/pk55/missing/update-date", map[string]string{"date": "2026-05-05"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplaceImage(t *testing.T) {
	s := newTestServer(t, false)
	created := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	s.seedImage("pk55/old", "2026-01-01", created)

	body, ct := multipartBody(t, "new.png", pngBytes, nil)
	rec := s.do(http.MethodPut, "/api/images/pk55/missing/replace", body, ct, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, ct = multipartBody(t, "new.png", pngBytes, nil)
	rec = s.do(http.MethodPut, "/api/images/pk55/old/replace", body, ct, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var image models.Image
	decodeData(t, rec, &image)
	assert.Equal(t, "pk55/img-1.png", image.ID)
	assert.Equal(t, "2026-01-01", image.Date)

	stored, err := s.store.FindImage(context.Background(), image.ID)
	require.NoError(t, err)
	assert.True(t, created.Equal(stored.CreatedAt))

	_, err = s.store.FindImage(context.Background(), "pk55/old")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Contains(t, s.media.removed, "pk55/old")
	assert.NotContains(t, s.media.objects, "pk55/old")
}

func TestDeleteImage(t *testing.T) {
	s := newTestServer(t, false)
	s.seedImage("pk55/a", "2026-01-01", time.Now())

	rec := s.do(http.MethodDelete, "/api/images/pk55/a", nil, "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodDelete, "/api/images/pk55/a", nil, "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"pk55/a"}, s.media.removed)

	_, err := s.store.FindImage(context.Background(), "pk55/a")
	assert.ErrorIs(t, err, database.ErrNotFound)

	rec = s.do(http.MethodDelete, "/api/images/pk55/a", nil, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/api/settings", nil, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings map[string]string
	decodeData(t, rec, &settings)
	assert.Equal(t, models.DefaultHeaderText, settings[models.SettingHeaderText])
	assert.Equal(t, models.DefaultSubheaderText, settings[models.SettingSubheaderText])

	rec = s.doJSON(http.MethodPut, "/api/settings", map[string]string{"headerText": "Breaking"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.doJSON(http.MethodPut, "/api/settings", map[string]string{"headerText": "Breaking", "subheaderText": ""}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/settings", nil, "", false)
	settings = nil
	decodeData(t, rec, &settings)
	assert.Equal(t, "Breaking", settings[models.SettingHeaderText])
	assert.Equal(t, models.DefaultSubheaderText, settings[models.SettingSubheaderText])
}

func TestPreflight(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodOptions, "/api/banner", nil, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

var svgBytes = []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)

func TestUpload_RejectsScriptableImages(t *testing.T) {
	s := newTestServer(t, false)

	body, ct := typedMultipartBody(t, "x.svg", "image/svg+xml", svgBytes, nil)
	rec := s.do(http.MethodPost, "/api/banner/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = typedMultipartBody(t, "x.svg", "image/svg+xml", svgBytes, map[string]string{"date": "2026-03-01"})
	rec = s.do(http.MethodPost, "/api/images/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.media.objects)

	// a declared image type does not override the content
	body, ct = typedMultipartBody(t, "x.png", "image/png", []byte("<html><script>1</script></html>"), nil)
	rec = s.do(http.MethodPost, "/api/banner/upload", body, ct, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/banner/image", nil, "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_StoresSniffedType(t *testing.T) {
	s := newTestServer(t, false)

	body, ct := typedMultipartBody(t, "bg.gif", "image/gif", pngBytes, nil)
	rec := s.do(http.MethodPost, "/api/banner/upload", body, ct, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/banner/image", nil, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")
}
