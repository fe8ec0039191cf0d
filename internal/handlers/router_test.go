package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-tracker/internal/auth"
	"github.com/justsurfingit/job-tracker/internal/database"
	"github.com/justsurfingit/job-tracker/internal/dtos"
	"github.com/justsurfingit/job-tracker/internal/models"
	"github.com/justsurfingit/job-tracker/internal/services"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RouterSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
	alice  string
	bob    string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	db := database.NewTestDB(s.T())
	s.db = db
	logger := zap.NewNop()

	s.router = NewRouter(RouterDeps{
		Jobs:     services.NewJobService(db, logger),
		Accounts: services.NewAccountService(db, logger).WithHashCost(bcrypt.MinCost),
		LLM:      services.NewLLMService(nil, logger),
		Tokens:   auth.NewTokenManager("router-test-secret", time.Hour, 24*time.Hour),
		Logger:   logger,
	})
	s.alice = s.login("alice")
	s.bob = s.login("bob")
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) login(username string) string {
	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": username, "password": "s3cret-password"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/token", "", gin.H{"username": username, "password": "s3cret-password"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var pair auth.TokenPair
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &pair))
	s.Require().NotEmpty(pair.Access)
	return pair.Access
}

func (s *RouterSuite) createJob(token string, body gin.H) dtos.JobResponse {
	w := s.do(http.MethodPost, "/api/jobs", token, body)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decodeJob(w)
}

func (s *RouterSuite) decodeJob(w *httptest.ResponseRecorder) dtos.JobResponse {
	var job dtos.JobResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &job))
	return job
}

func jobPath(id uint, suffix string) string {
	return fmt.Sprintf("/api/jobs/%d%s", id, suffix)
}

func (s *RouterSuite) TestPing() {
	w := s.do(http.MethodGet, "/api/ping", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *RouterSuite) TestJobsRequireAuthentication() {
	w := s.do(http.MethodGet, "/api/jobs", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"detail":"Authentication credentials were not provided."}`, w.Body.String())
}

func (s *RouterSuite) TestCreateAndRetrieve() {
	created := s.createJob(s.alice, gin.H{
		"company":    "Acme",
		"title":      "Backend Engineer",
		"applied_at": "2024-05-01",
		"note":       "referral",
		"owner":      "bob",
	})
	s.Equal("alice", created.Owner)
	s.Equal(models.StatusApplied, created.Status)
	s.Equal([]models.Status{models.StatusInterview, models.StatusRejected}, created.CanTransitionTo)
	s.Require().NotNil(created.AppliedAt)
	s.Equal("2024-05-01", created.AppliedAt.String())

	w := s.do(http.MethodGet, jobPath(created.ID, ""), s.alice, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	got := s.decodeJob(w)
	s.Equal(created.ID, got.ID)
	s.Equal("Acme", got.Company)
	s.Equal("Backend Engineer", got.Title)
	s.Equal("referral", got.Note)
	s.Equal(created.CanTransitionTo, got.CanTransitionTo)

	var raw map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &raw))
	s.Equal("2024-05-01", raw["applied_at"])
}

func (s *RouterSuite) TestCreateValidation() {
	w := s.do(http.MethodPost, "/api/jobs", s.alice, gin.H{"company": "Acme"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"title":["This field is required."]}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/jobs", s.alice, gin.H{"company": "Acme", "title": "SRE", "status": "ghosted"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"status":["\"ghosted\" is not a valid choice."]}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/jobs", s.alice, gin.H{"company": "Acme", "title": "SRE", "applied_at": "May 1st"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "applied_at")
}

func (s *RouterSuite) TestLifecycleOverHTTP() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "Backend Engineer"})

	w := s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "interview"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	job = s.decodeJob(w)
	s.Equal(models.StatusInterview, job.Status)
	s.Equal([]models.Status{models.StatusOffer, models.StatusRejected}, job.CanTransitionTo)

	w = s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "applied"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"detail":"Invalid status transition: interview -> applied"}`, w.Body.String())

	w = s.do(http.MethodPatch, jobPath(job.ID, ""), s.alice, gin.H{"status": "applied"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"status":["Invalid status transition: interview -> applied"]}`, w.Body.String())

	w = s.do(http.MethodPatch, jobPath(job.ID, ""), s.alice, gin.H{"status": "offer"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	job = s.decodeJob(w)
	s.Equal(models.StatusOffer, job.Status)
	s.Equal([]models.Status{}, job.CanTransitionTo)

	w = s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "rejected"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"detail":"Invalid status transition: offer -> rejected"}`, w.Body.String())

	w = s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "offer"})
	s.Equal(http.StatusOK, w.Code)
	s.Equal(models.StatusOffer, s.decodeJob(w).Status)
}

func (s *RouterSuite) TestTransitionRequiresTarget() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE"})

	w := s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"to_status":["This field is required."]}`, w.Body.String())

	w = s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"to_status":["This field is required."]}`, w.Body.String())

	w = s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "hired"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"to_status":["\"hired\" is not a valid choice."]}`, w.Body.String())
}

func (s *RouterSuite) TestOtherAccountsJobsAreNotFound() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE"})
	notFound := `{"detail":"Not found."}`

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, jobPath(job.ID, ""), nil},
		{http.MethodPut, jobPath(job.ID, ""), gin.H{"company": "Hijack", "title": "SRE"}},
		{http.MethodPatch, jobPath(job.ID, ""), gin.H{"note": "mine now"}},
		{http.MethodPost, jobPath(job.ID, "/transition"), gin.H{"to_status": "rejected"}},
		{http.MethodPost, jobPath(job.ID, "/transition"), gin.H{}},
		{http.MethodDelete, jobPath(job.ID, ""), nil},
	}
	for _, r := range requests {
		w := s.do(r.method, r.path, s.bob, r.body)
		s.Equal(http.StatusNotFound, w.Code, "%s %s", r.method, r.path)
		s.JSONEq(notFound, w.Body.String())
	}

	w := s.do(http.MethodGet, "/api/jobs", s.bob, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())

	w = s.do(http.MethodGet, jobPath(job.ID, ""), s.alice, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	got := s.decodeJob(w)
	s.Equal("Acme", got.Company)
	s.Equal(models.StatusApplied, got.Status)
	s.Equal("", got.Note)
}

func (s *RouterSuite) TestReplaceAndDelete() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE", "applied_at": "2024-05-01", "note": "first"})

	w := s.do(http.MethodPut, jobPath(job.ID, ""), s.alice, gin.H{"company": "Acme Corp", "title": "Senior SRE"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	replaced := s.decodeJob(w)
	s.Equal("Acme Corp", replaced.Company)
	s.Equal("Senior SRE", replaced.Title)
	s.Equal(models.StatusApplied, replaced.Status)

	w = s.do(http.MethodPut, jobPath(job.ID, ""), s.alice, gin.H{"company": "Acme Corp"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, jobPath(job.ID, ""), s.alice, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, jobPath(job.ID, ""), s.alice, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/jobs/abc", s.alice, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestListSearch() {
	s.createJob(s.alice, gin.H{"company": "Acme", "title": "Backend Engineer"})
	s.createJob(s.alice, gin.H{"company": "Globex", "title": "Frontend Developer"})

	w := s.do(http.MethodGet, "/api/jobs?search=globex", s.alice, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var jobs []dtos.JobResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &jobs))
	s.Require().Len(jobs, 1)
	s.Equal("Globex", jobs[0].Company)
}

func (s *RouterSuite) TestExtractWithoutModel() {
	w := s.do(http.MethodPost, "/api/jobs/extract", s.alice, gin.H{"raw_text": "Backend Engineer at Acme"})
	s.Equal(http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodPost, "/api/jobs/extract", s.alice, gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"raw_text":["This field is required."]}`, w.Body.String())
}

func (s *RouterSuite) TestTokenEndpoints() {
	w := s.do(http.MethodPost, "/api/auth/token", "", gin.H{"username": "alice", "password": "wrong-password"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "s3cret-password"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"username":["A user with that username already exists."]}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/token/verify", "", gin.H{"token": s.alice})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/token/verify", "", gin.H{"token": "garbage"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/token/refresh", "", gin.H{"refresh": s.alice})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestBlankTargetIsMissing() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE"})

	for _, body := range []gin.H{{"to_status": ""}, {"to_status": nil}} {
		w := s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, body)
		s.Equal(http.StatusBadRequest, w.Code)
		s.JSONEq(`{"to_status":["This field is required."]}`, w.Body.String())
	}

	w := s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.bob, gin.H{"to_status": ""})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestOtherAccountsBadBodiesAreNotFound() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE"})

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, jobPath(job.ID, ""), gin.H{"company": "x"}},
		{http.MethodPatch, jobPath(job.ID, ""), gin.H{"status": "bogus"}},
		{http.MethodPatch, jobPath(job.ID, ""), gin.H{"applied_at": "yesterday"}},
		{http.MethodPost, jobPath(job.ID, "/transition"), gin.H{"to_status": "hired"}},
	}
	for _, r := range requests {
		w := s.do(r.method, r.path, s.bob, r.body)
		s.Equal(http.StatusNotFound, w.Code, "%s %s", r.method, r.path)
		s.JSONEq(`{"detail":"Not found."}`, w.Body.String())

		w = s.do(r.method, r.path, s.alice, r.body)
		s.Equal(http.StatusBadRequest, w.Code, "%s %s", r.method, r.path)
	}
}

func (s *RouterSuite) TestRepeatedLostRacesAreConflicts() {
	job := s.createJob(s.alice, gin.H{"company": "Acme", "title": "SRE"})

	// every status write finds the row already moved between applied and interview
	database.BeforeUpdate(s.T(), s.db, "jobs", func(tx *gorm.DB) {
		current, err := database.JobStatus(tx, job.ID)
		if err != nil {
			tx.AddError(err)
			return
		}
		next := models.StatusInterview
		if current == string(models.StatusInterview) {
			next = models.StatusApplied
		}
		if err := database.SetJobStatus(tx, job.ID, string(next)); err != nil {
			tx.AddError(err)
		}
	})

	w := s.do(http.MethodPost, jobPath(job.ID, "/transition"), s.alice, gin.H{"to_status": "rejected"})
	s.Equal(http.StatusConflict, w.Code)
	s.JSONEq(`{"detail":"job was modified concurrently, retry the request"}`, w.Body.String())

	w = s.do(http.MethodPatch, jobPath(job.ID, ""), s.alice, gin.H{"note": "still here"})
	s.Equal(http.StatusConflict, w.Code)
}
