package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/praxislearn/assess-backend/internal/middleware"
	"github.com/praxislearn/assess-backend/internal/model"
	"github.com/praxislearn/assess-backend/internal/service"
	"github.com/praxislearn/assess-backend/internal/validator"
	"github.com/rs/zerolog"
)

// gatewayStore is a minimal in-memory backing for HTTP mapping tests. The
// state-machine edge cases live in the service package tests; here we only
// need enough behavior to exercise each status code.
type gatewayStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
	answers  map[uuid.UUID]map[uuid.UUID]*model.AnswerRecord
	results  map[uuid.UUID]*model.Result
	papers   map[uuid.UUID][]model.Question
	limits   map[uuid.UUID]*int
}

func newGatewayStore() *gatewayStore {
	return &gatewayStore{
		sessions: make(map[uuid.UUID]*model.Session),
		answers:  make(map[uuid.UUID]map[uuid.UUID]*model.AnswerRecord),
		results:  make(map[uuid.UUID]*model.Result),
		papers:   make(map[uuid.UUID][]model.Question),
		limits:   make(map[uuid.UUID]*int),
	}
}

func (g *gatewayStore) addPaper(limitSeconds *int, questionCount int) uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	paperID := uuid.New()
	qs := make([]model.Question, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		qs = append(qs, model.Question{
			ID:            uuid.New(),
			PaperID:       paperID,
			QuestionText:  fmt.Sprintf("question %d", i+1),
			Options:       []byte(`{"A":"a","B":"b"}`),
			CorrectOption: "A",
			OrderNum:      i,
		})
	}
	g.papers[paperID] = qs
	g.limits[paperID] = limitSeconds
	return paperID
}

// SessionStore

func (g *gatewayStore) Create(_ context.Context, s *model.Session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.sessions {
		if existing.PaperID == s.PaperID && existing.LearnerID == s.LearnerID {
			return pgx.ErrNoRows
		}
	}
	s.StartedAt = time.Now()
	g.sessions[s.ID] = s
	seed := make(map[uuid.UUID]*model.AnswerRecord, len(s.QuestionIDs))
	for _, qid := range s.QuestionIDs {
		seed[qid] = &model.AnswerRecord{SessionID: s.ID, QuestionID: qid}
	}
	g.answers[s.ID] = seed
	return nil
}

func (g *gatewayStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *s
	return &dup, nil
}

func (g *gatewayStore) GetByPaperAndLearner(_ context.Context, paperID uuid.UUID, learnerID int) (*model.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sessions {
		if s.PaperID == paperID && s.LearnerID == learnerID {
			dup := *s
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (g *gatewayStore) IncrementVersion(_ context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.Version++
	}
	return nil
}

func (g *gatewayStore) Finalize(_ context.Context, sessionID uuid.UUID, version int64, graded []model.AnswerRecord, res *model.Result) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if s.Status != model.SessionStatusInProgress || s.Version != version {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	completedAt := res.FinalizedAt
	s.CompletedAt = &completedAt
	s.Version++
	for i := range graded {
		if rec, ok := g.answers[sessionID][graded[i].QuestionID]; ok {
			rec.IsCorrect = graded[i].IsCorrect
		}
	}
	g.results[sessionID] = res
	return true, nil
}

func (g *gatewayStore) ListExpired(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

// AnswerStore

func (g *gatewayStore) Get(_ context.Context, sessionID, questionID uuid.UUID) (*model.AnswerRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.answers[sessionID][questionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *rec
	return &dup, nil
}

func (g *gatewayStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.AnswerRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var records []model.AnswerRecord
	for _, rec := range g.answers[sessionID] {
		records = append(records, *rec)
	}
	return records, nil
}

// liveAnswer mirrors the SQL mutation guard: writes only reach records of
// IN_PROGRESS sessions. Call with g.mu held.
func (g *gatewayStore) liveAnswer(sessionID, questionID uuid.UUID) (*model.AnswerRecord, bool) {
	if s, ok := g.sessions[sessionID]; !ok || s.Status != model.SessionStatusInProgress {
		return nil, false
	}
	rec, ok := g.answers[sessionID][questionID]
	return rec, ok
}

func (g *gatewayStore) SetSelectedOption(_ context.Context, sessionID, questionID uuid.UUID, option string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.liveAnswer(sessionID, questionID)
	if !ok {
		return pgx.ErrNoRows
	}
	rec.SelectedOptionID = &option
	return nil
}

func (g *gatewayStore) ToggleReview(_ context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.liveAnswer(sessionID, questionID)
	if !ok {
		return false, pgx.ErrNoRows
	}
	rec.MarkedForReview = !rec.MarkedForReview
	return rec.MarkedForReview, nil
}

func (g *gatewayStore) AddTime(_ context.Context, sessionID, questionID uuid.UUID, deltaSeconds int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.liveAnswer(sessionID, questionID)
	if !ok {
		return pgx.ErrNoRows
	}
	rec.TimeSpentSeconds += deltaSeconds
	return nil
}

// ResultStore

func (g *gatewayStore) GetBySession(_ context.Context, sessionID uuid.UUID) (*model.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.results[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return res, nil
}

// PaperSource

func (g *gatewayStore) GetPaper(_ context.Context, paperID uuid.UUID) (*model.Paper, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.papers[paperID]; !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.Paper{ID: paperID, Title: "Paper", TimeLimitSeconds: g.limits[paperID]}, nil
}

func (g *gatewayStore) QuestionIDs(_ context.Context, paperID uuid.UUID) ([]uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []uuid.UUID
	for _, q := range g.papers[paperID] {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

func (g *gatewayStore) LearnerQuestions(_ context.Context, paperID uuid.UUID) ([]model.QuestionForLearner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.QuestionForLearner
	for i := range g.papers[paperID] {
		out = append(out, g.papers[paperID][i].ForLearner())
	}
	return out, nil
}

func (g *gatewayStore) AnswerKey(_ context.Context, paperID uuid.UUID) (map[uuid.UUID]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := make(map[uuid.UUID]string)
	for _, q := range g.papers[paperID] {
		key[q.ID] = q.CorrectOption
	}
	return key, nil
}

// DeadlineTracker

func (g *gatewayStore) Add(context.Context, uuid.UUID, time.Time) error { return nil }
func (g *gatewayStore) Remove(context.Context, uuid.UUID) error         { return nil }
func (g *gatewayStore) Due(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

// ─── Harness ────────────────────────────────────────────────────────

type gatewayEnv struct {
	store  *gatewayStore
	router *gin.Engine
}

// asLearner injects claims the way RequireLearnerJWT would after a valid token.
func asLearner(learnerID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{LearnerID: learnerID})
		c.Next()
	}
}

func newGatewayEnv(learnerID int) *gatewayEnv {
	return newGatewayEnvSharing(newGatewayStore(), learnerID)
}

// newGatewayEnvSharing builds a router over an existing store, so a second
// learner can hit another learner's session.
func newGatewayEnvSharing(store *gatewayStore, learnerID int) *gatewayEnv {
	gin.SetMode(gin.TestMode)
	validator.Setup()

	cfg := &config.Config{DeadlineSkew: 2 * time.Second, AccountTimeCeiling: 300}
	svc := service.NewSessionService(store, store, store, store, store, cfg, zerolog.Nop())
	h := NewSessionHandler(svc)

	r := gin.New()
	sessions := r.Group("/api/v1/sessions", asLearner(learnerID))
	{
		sessions.POST("", h.Start)
		sessions.GET("/:session_id", h.Get)
		sessions.GET("/:session_id/questions", h.Questions)
		sessions.POST("/:session_id/answers", h.RecordAnswer)
		sessions.POST("/:session_id/review", h.ToggleReview)
		sessions.POST("/:session_id/time", h.AccountTime)
		sessions.POST("/:session_id/submit", h.Submit)
		sessions.GET("/:session_id/result", h.Result)
	}

	return &gatewayEnv{store: store, router: r}
}

func (e *gatewayEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *gatewayEnv) startSession(t *testing.T, paperID uuid.UUID) uuid.UUID {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"paper_id": paperID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d, body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data struct {
			Session struct {
				ID uuid.UUID `json:"id"`
			} `json:"session"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return payload.Data.Session.ID
}

func errCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Error == nil {
		t.Fatalf("no error in response: %s", rec.Body.String())
	}
	return payload.Error.Code
}

// ─── Tests ──────────────────────────────────────────────────────────

func intPtrOf(v int) *int { return &v }

func TestStartReturnsCreated(t *testing.T) {
	env := newGatewayEnv(1)
	paperID := env.store.addPaper(intPtrOf(600), 3)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"paper_id": paperID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
}

func TestStartUnknownPaperUnprocessable(t *testing.T) {
	env := newGatewayEnv(1)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", gin.H{"paper_id": uuid.New()})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "CONFIGURATION_ERROR" {
		t.Fatalf("code = %s, want CONFIGURATION_ERROR", code)
	}
}

func TestStartValidation(t *testing.T) {
	env := newGatewayEnv(1)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", gin.H{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %s, want VALIDATION_ERROR", code)
	}
}

func TestGetUnknownSessionNotFound(t *testing.T) {
	env := newGatewayEnv(1)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetMalformedIDBadRequest(t *testing.T) {
	env := newGatewayEnv(1)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "INVALID_ID" {
		t.Fatalf("code = %s, want INVALID_ID", code)
	}
}

func TestOtherLearnersSessionRendersNotFound(t *testing.T) {
	owner := newGatewayEnv(1)
	paperID := owner.store.addPaper(intPtrOf(600), 2)
	sessionID := owner.startSession(t, paperID)

	// Same store, different authenticated learner.
	env2 := newGatewayEnvSharing(owner.store, 2)

	rec := env2.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (no existence leak)", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "NOT_FOUND" {
		t.Fatalf("code = %s, want NOT_FOUND (never FORBIDDEN)", code)
	}
}

func TestAnswerSubmitResultFlow(t *testing.T) {
	env := newGatewayEnv(1)
	paperID := env.store.addPaper(intPtrOf(600), 2)
	sessionID := env.startSession(t, paperID)
	base := "/api/v1/sessions/" + sessionID.String()

	var questions struct {
		Data struct {
			Questions []model.QuestionForLearner `json:"questions"`
		} `json:"data"`
	}
	rec := env.do(t, http.MethodGet, base+"/questions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("questions = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if len(questions.Data.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions.Data.Questions))
	}

	// Result is 404 while in progress.
	rec = env.do(t, http.MethodGet, base+"/result", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("early result = %d, want 404", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "RESULT_NOT_READY" {
		t.Fatalf("code = %s, want RESULT_NOT_READY", code)
	}

	rec = env.do(t, http.MethodPost, base+"/answers", gin.H{
		"question_id":        questions.Data.Questions[0].ID,
		"selected_option_id": "A",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, base+"/review", gin.H{
		"question_id": questions.Data.Questions[1].ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("review = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, base+"/time", gin.H{
		"question_id":   questions.Data.Questions[0].ID,
		"delta_seconds": 30,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("time = %d", rec.Code)
	}

	// Empty-body submit defaults to USER_SUBMIT.
	rec = env.do(t, http.MethodPost, base+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit = %d, body %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		Data struct {
			Result model.Result `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submitted.Data.Result.CorrectCount != 1 || submitted.Data.Result.TotalQuestions != 2 {
		t.Fatalf("result = %d/%d, want 1/2", submitted.Data.Result.CorrectCount, submitted.Data.Result.TotalQuestions)
	}
	if submitted.Data.Result.Reason != model.ReasonUserSubmit {
		t.Fatalf("reason = %s, want USER_SUBMIT", submitted.Data.Result.Reason)
	}

	// Mutation after completion is a state conflict.
	rec = env.do(t, http.MethodPost, base+"/answers", gin.H{
		"question_id":        questions.Data.Questions[1].ID,
		"selected_option_id": "B",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("post-completion answer = %d, want 409", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "INVALID_STATE" {
		t.Fatalf("code = %s, want INVALID_STATE", code)
	}

	// Retried submit returns the same frozen result.
	rec = env.do(t, http.MethodPost, base+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retried submit = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, base+"/result", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result = %d", rec.Code)
	}
}

func TestSubmitRejectsPrivilegedReasons(t *testing.T) {
	env := newGatewayEnv(1)
	paperID := env.store.addPaper(intPtrOf(600), 1)
	sessionID := env.startSession(t, paperID)
	base := "/api/v1/sessions/" + sessionID.String()

	// Only USER_SUBMIT is accepted from the learner route; TIMEOUT and
	// ADMIN_FORCE are assigned server-side.
	for _, reason := range []string{"ADMIN_FORCE", "TIMEOUT", "whatever"} {
		rec := env.do(t, http.MethodPost, base+"/submit", gin.H{"reason": reason})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("submit reason %q = %d, want 400", reason, rec.Code)
		}
		if code := errCodeOf(t, rec); code != "VALIDATION_ERROR" {
			t.Fatalf("submit reason %q code = %s, want VALIDATION_ERROR", reason, code)
		}
	}

	// The rejected requests must not have finalized the session.
	rec := env.do(t, http.MethodPost, base+"/submit", gin.H{"reason": "USER_SUBMIT"})
	if rec.Code != http.StatusOK {
		t.Fatalf("explicit USER_SUBMIT = %d, body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Data struct {
			Result model.Result `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if payload.Data.Result.Reason != model.ReasonUserSubmit {
		t.Fatalf("reason = %s, want USER_SUBMIT", payload.Data.Result.Reason)
	}
}

func TestExpiredMutationReturnsGone(t *testing.T) {
	env := newGatewayEnv(1)
	paperID := env.store.addPaper(intPtrOf(60), 1)
	sessionID := env.startSession(t, paperID)

	// Backdate the session start past the deadline plus skew.
	env.store.mu.Lock()
	env.store.sessions[sessionID].StartedAt = time.Now().Add(-90 * time.Second)
	env.store.mu.Unlock()

	var qid uuid.UUID
	env.store.mu.Lock()
	qid = env.store.sessions[sessionID].QuestionIDs[0]
	env.store.mu.Unlock()

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/answers", gin.H{
		"question_id":        qid,
		"selected_option_id": "A",
	})
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	if code := errCodeOf(t, rec); code != "DEADLINE_EXCEEDED" {
		t.Fatalf("code = %s, want DEADLINE_EXCEEDED", code)
	}

	// The failed call finalized the session; its result is now readable.
	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID.String()+"/result", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result after timeout = %d, want 200", rec.Code)
	}
	var payload struct {
		Data struct {
			Result model.Result `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if payload.Data.Result.Reason != model.ReasonTimeout {
		t.Fatalf("reason = %s, want TIMEOUT", payload.Data.Result.Reason)
	}
}
