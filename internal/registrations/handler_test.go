package registrations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/internal/models"
)

func newTestRouter(svc *Service, user uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, user)
		c.Set(middleware.ContextUserEmail, "payer@x.com")
	})
	NewHandler(svc, nil).Register(g)
	return r
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerReserveAndSpots(t *testing.T) {
	svc, store, gw := newTestService()
	user := uuid.New()
	r := newTestRouter(svc, user)

	w := send(r, http.MethodPost, "/spots/reserve", map[string]any{
		"spots": []map[string]string{{"name": "Alex", "email": "a@x.com"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"url":"https://checkout.test/cs_test_1"`)
	assert.Equal(t, "payer@x.com", gw.Last().CustomerEmail)

	w = send(r, http.MethodPost, "/spots/reserve", map[string]any{
		"spots": []map[string]string{{"name": "Alex", "email": "bad"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "binding rejects invalid email")

	w = send(r, http.MethodGet, "/spots/has", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_spots":false`)

	reg := store.SeedRegistration(user, models.SpotDetails{Name: "Alex", Email: "a@x.com"})
	w = send(r, http.MethodGet, "/spots/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), reg.Spots[0].ID.String())

	w = send(r, http.MethodPut, "/spots/"+reg.Spots[0].ID.String(), map[string]string{"name": "Alex S", "email": "alex@x.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(r, http.MethodPut, "/spots/nope", map[string]string{"name": "x", "email": "x@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRegistrationFlow(t *testing.T) {
	svc, _, _ := newTestService()
	user := uuid.New()
	r := newTestRouter(svc, user)

	w := send(r, http.MethodPost, "/registrations/free", map[string]any{
		"name": "Alex", "email": "a@x.com", "phone": "555-010-0199", "is_first_year_alumni": true, "preferred_golfers": []string{"Blair"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data models.Registration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = send(r, http.MethodPost, "/registrations/free", map[string]any{
		"name": "Alex", "email": "a@x.com", "phone": "555", "is_first_year_alumni": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "phone too short")

	w = send(r, http.MethodPost, "/registrations/free", map[string]any{
		"name": "Alex", "email": "a2@x.com", "phone": "555-010-0199", "is_first_year_alumni": true,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = send(r, http.MethodDelete, "/registrations/"+created.Data.ID.String()+"/preferred-golfers", map[string]string{"golfer": "blair"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(r, http.MethodGet, "/registrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID.String())

	w = send(r, http.MethodPost, "/registrations/checkout", map[string]any{
		"profile": map[string]any{"name": "Alex", "email": "a@x.com", "phone": "555-010-0199", "is_first_year_alumni": true},
		"registration_id": created.Data.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing due")
}
