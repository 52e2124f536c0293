package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/pkg/apperr"
)

type stubGateway struct {
	sessions map[string]*CheckoutSession
	err      error
}

func (g *stubGateway) CreateSession(context.Context, SessionParams) (*CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) GetSession(_ context.Context, id string) (*CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	return s, nil
}

func sessionRouter(gw Gateway, user uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("", func(c *gin.Context) { c.Set(middleware.ContextUserID, user) })
	NewHandler(gw, nil).Register(g)
	return r
}

func getSession(r http.Handler, id string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/sessions/"+id, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandlerGetSession(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	gw := &stubGateway{sessions: map[string]*CheckoutSession{
		"cs_1": {
			ID: "cs_1", PaymentStatus: PaymentStatusPaid, AmountTotal: 30000, Currency: "usd",
			CustomerEmail: "payer@x.com",
			Metadata:      map[string]string{keyKind: string(KindRegistration), keyUserID: owner.String(), keySpotDetails: "[]"},
		},
	}}

	w, body := getSession(sessionRouter(gw, owner), "cs_1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "cs_1", data["session_id"])
	assert.Equal(t, "paid", data["payment_status"])
	assert.Equal(t, true, data["paid"])
	assert.Equal(t, float64(30000), data["amount_total"])
	assert.Equal(t, "registration", data["kind"])
	assert.NotContains(t, w.Body.String(), "payer@x.com")
	assert.NotContains(t, w.Body.String(), keySpotDetails)

	w, body = getSession(sessionRouter(gw, other), "cs_1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", body["code"])

	w, _ = getSession(sessionRouter(gw, owner), "cs_missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = getSession(sessionRouter(gw, owner), "pi_1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	gw.err = apperr.Upstream("payment provider unavailable", errors.New("dial tcp"))
	w, _ = getSession(sessionRouter(gw, owner), "cs_1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
