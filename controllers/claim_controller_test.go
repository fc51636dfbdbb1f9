package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cppla/perkclaims/middleware"
	"github.com/cppla/perkclaims/models"
	"github.com/cppla/perkclaims/services"
	"github.com/cppla/perkclaims/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockClaimService struct {
	mock.Mock
}

func (m *mockClaimService) Submit(ctx context.Context, userID string, sub services.Submission) (*models.Claim, error) {
	args := m.Called(ctx, userID, sub)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaimService) ListForUser(ctx context.Context, userID string) ([]models.Claim, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).([]models.Claim)
	return c, args.Error(1)
}

func (m *mockClaimService) GetByID(ctx context.Context, claimID uint, requesterID string) (*models.Claim, error) {
	args := m.Called(ctx, claimID, requesterID)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaimService) ListAll(ctx context.Context, q services.ListQuery) (*services.Page, error) {
	args := m.Called(ctx, q)
	p, _ := args.Get(0).(*services.Page)
	return p, args.Error(1)
}

func (m *mockClaimService) SetStatus(ctx context.Context, claimID uint, reviewerID, status string, notes *string) (*models.Claim, error) {
	args := m.Called(ctx, claimID, reviewerID, status, notes)
	c, _ := args.Get(0).(*models.Claim)
	return c, args.Error(1)
}

func (m *mockClaimService) Stats(ctx context.Context) (*services.Stats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*services.Stats)
	return s, args.Error(1)
}

// withIdentity stands in for AuthRequired.
func withIdentity(id services.Identity) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if id.UserID != "" {
			ctx.Set(middleware.ContextIdentityKey, id)
			ctx.Set(utils.ContextUserIDKey, id.UserID)
		}
		ctx.Next()
	}
}

func newClaimEngine(svc ClaimService, id services.Identity) *gin.Engine {
	c := NewClaimController(svc)
	r := gin.New()
	g := r.Group("/api/v1/claims", withIdentity(id))
	g.POST("", c.Submit)
	g.GET("/my-claims", c.MyClaims)
	g.GET("/admin/all", c.ListAll)
	g.GET("/admin/stats", c.Stats)
	g.PATCH("/admin/:claimId/status", c.UpdateStatus)
	g.GET("/:claimId", c.GetClaim)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const validBody = `{
	"perkId": "free-subdomain",
	"projectName": "Cool App",
	"currentStage": "production",
	"problemSolving": "Helps people find parking spots.",
	"targetAudience": "City drivers",
	"uniqueApproach": "Crowdsourced availability data.",
	"techStack": "Go, React",
	"githubUrl": "https://github.com/example/coolapp",
	"teamSize": "2-5",
	"dataSafety": "No personal data is stored.",
	"preferredSubdomain": "CoolApp",
	"agreeToTerms": true
}`

var alice = services.Identity{UserID: "user_1", Username: "alice"}

func TestSubmit_Created(t *testing.T) {
	svc := &mockClaimService{}
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.On("Submit", mock.Anything, "user_1", mock.MatchedBy(func(s services.Submission) bool {
		return s.PreferredSubdomain == "coolapp" && s.TeamSize == "2-5"
	})).Return(&models.Claim{ID: 12, CreatedAt: created, Status: models.ClaimStatusPending}, nil)

	w := doJSON(newClaimEngine(svc, alice), http.MethodPost, "/api/v1/claims", validBody)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(12), data["claimId"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "2024-05-01T10:00:00Z", data["submittedAt"])
	svc.AssertExpectations(t)
}

func TestSubmit_ValidationErrorsListed(t *testing.T) {
	svc := &mockClaimService{}
	w := doJSON(newClaimEngine(svc, alice), http.MethodPost, "/api/v1/claims",
		`{"projectName": "", "githubUrl": "nope", "agreeToTerms": "yes"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, float64(40002), body["code"])
	errs := body["errors"].([]interface{})
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.(map[string]interface{})["field"].(string)] = true
	}
	assert.True(t, fields["projectName"])
	assert.True(t, fields["githubUrl"])
	assert.True(t, fields["agreeToTerms"])
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_MalformedJSON(t *testing.T) {
	w := doJSON(newClaimEngine(&mockClaimService{}, alice), http.MethodPost, "/api/v1/claims", `{"projectName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(40001), decode(t, w)["code"])
}

func TestSubmit_RequiresIdentity(t *testing.T) {
	w := doJSON(newClaimEngine(&mockClaimService{}, services.Identity{}), http.MethodPost, "/api/v1/claims", validBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmit_BusinessConflicts(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    float64
		message string
	}{
		{"pending duplicate", &services.DuplicateClaimError{Existing: models.ClaimStatusPending}, 40010, "you already have a claim for this perk pending review"},
		{"approved duplicate", &services.DuplicateClaimError{Existing: models.ClaimStatusApproved}, 40010, "you already have an approved claim for this perk"},
		{"subdomain", services.ErrSubdomainTaken, 40011, "subdomain is already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockClaimService{}
			svc.On("Submit", mock.Anything, "user_1", mock.Anything).Return(nil, tt.err)

			w := doJSON(newClaimEngine(svc, alice), http.MethodPost, "/api/v1/claims", validBody)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestSubmit_InternalErrorHidesDetail(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("Submit", mock.Anything, "user_1", mock.Anything).Return(nil, errors.New("dial tcp 10.0.0.3:5432: refused"))

	w := doJSON(newClaimEngine(svc, alice), http.MethodPost, "/api/v1/claims", validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestMyClaims_ReturnsSummaries(t *testing.T) {
	svc := &mockClaimService{}
	notes := "ok"
	svc.On("ListForUser", mock.Anything, "user_1").Return([]models.Claim{
		{ID: 2, PerkID: "p", ProjectName: "Second", PreferredSubdomain: "second", Status: models.ClaimStatusApproved, ReviewerNotes: &notes, ProblemSolving: "hidden"},
		{ID: 1, PerkID: "p", ProjectName: "First", PreferredSubdomain: "first", Status: models.ClaimStatusRejected},
	}, nil)

	w := doJSON(newClaimEngine(svc, alice), http.MethodGet, "/api/v1/claims/my-claims", "")
	require.Equal(t, http.StatusOK, w.Code)

	items := decode(t, w)["data"].(map[string]interface{})["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, float64(2), first["id"])
	assert.Equal(t, "ok", first["reviewerNotes"])
	assert.NotContains(t, first, "problemSolving")
}

func TestGetClaim(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("GetByID", mock.Anything, uint(5), "user_1").Return(&models.Claim{ID: 5, UserID: "user_1", Status: models.ClaimStatusPending}, nil)
	svc.On("GetByID", mock.Anything, uint(6), "user_1").Return(nil, services.ErrNotFound)
	r := newClaimEngine(svc, alice)

	w := doJSON(r, http.MethodGet, "/api/v1/claims/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	claim := decode(t, w)["data"].(map[string]interface{})["claim"].(map[string]interface{})
	assert.Equal(t, float64(5), claim["id"])

	w = doJSON(r, http.MethodGet, "/api/v1/claims/6", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(40401), decode(t, w)["code"])

	w = doJSON(r, http.MethodGet, "/api/v1/claims/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAll_PassesQuery(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("ListAll", mock.Anything, services.ListQuery{Status: "pending", Page: 2, Limit: 10}).Return(&services.Page{
		Items:      []models.Claim{{ID: 11}},
		Pagination: services.Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3},
	}, nil)

	w := doJSON(newClaimEngine(svc, alice), http.MethodGet, "/api/v1/claims/admin/all?status=pending&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"page": float64(2), "limit": float64(10), "total": float64(25), "pages": float64(3)}, data["pagination"])
	assert.Len(t, data["items"], 1)
}

func TestListAll_InvalidStatus(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("ListAll", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidStatus)

	w := doJSON(newClaimEngine(svc, alice), http.MethodGet, "/api/v1/claims/admin/all?status=archived&page=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(40012), decode(t, w)["code"])
}

func TestUpdateStatus(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("SetStatus", mock.Anything, uint(3), "user_1", "approved", mock.MatchedBy(func(n *string) bool {
		return n != nil && *n == "looks good"
	})).Return(&models.Claim{ID: 3, UserID: "user_9", Status: models.ClaimStatusApproved}, nil)

	w := doJSON(newClaimEngine(svc, alice), http.MethodPatch, "/api/v1/claims/admin/3/status",
		`{"status":"approved","reviewerNotes":"looks good"}`)
	require.Equal(t, http.StatusOK, w.Code)
	claim := decode(t, w)["data"].(map[string]interface{})["claim"].(map[string]interface{})
	assert.Equal(t, "approved", claim["status"])
}

func TestUpdateStatus_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   float64
	}{
		{"invalid status", services.ErrInvalidStatus, http.StatusBadRequest, 40012},
		{"back to pending", services.ErrInvalidTransition, http.StatusBadRequest, 40013},
		{"missing claim", services.ErrNotFound, http.StatusNotFound, 40401},
		{"subdomain clash on approval", services.ErrSubdomainTaken, http.StatusBadRequest, 40011},
		{"notes too long", &services.ValidationError{Errors: []services.FieldError{{Field: "reviewerNotes", Message: "too long"}}}, http.StatusBadRequest, 40002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockClaimService{}
			svc.On("SetStatus", mock.Anything, uint(3), "user_1", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := doJSON(newClaimEngine(svc, alice), http.MethodPatch, "/api/v1/claims/admin/3/status", `{"status":"x"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestStats(t *testing.T) {
	svc := &mockClaimService{}
	svc.On("Stats", mock.Anything).Return(&services.Stats{Pending: 2, Approved: 1, Total: 3}, nil)

	w := doJSON(newClaimEngine(svc, alice), http.MethodGet, "/api/v1/claims/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":2,"approved":1,"rejected":0,"total":3}`, mustMarshal(t, decode(t, w)["data"]))
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
