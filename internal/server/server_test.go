package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/logging"
	"ragqa/internal/service"
)

type stubAnswerer struct {
	answer    domain.Answer
	err       error
	panicMsg  string
	got       domain.Query
	requestID string
}

func (s *stubAnswerer) Answer(ctx context.Context, q domain.Query) (domain.Answer, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.got = q
	s.requestID = service.RequestID(ctx)
	if s.err != nil {
		return domain.Answer{}, s.err
	}
	if q.Question == "" {
		return domain.Answer{}, &domain.ClientInputError{Message: "missing question"}
	}
	return s.answer, nil
}

func (s *stubAnswerer) IndexSize() int { return 42 }
func (s *stubAnswerer) Model() string  { return "hashing" }

func do(t *testing.T, a Answerer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := New(a, Options{Addr: ":0"}, logging.Discard()).Handler()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuery_Success(t *testing.T) {
	a := &stubAnswerer{answer: domain.Answer{Answer: "Friday", Links: []domain.Link{{URL: "u", Text: "t"}}}}
	for _, path := range []string{"/api/", "/api"} {
		rec := do(t, a, http.MethodPost, path, `{"question":"When?","image":"aGk="}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"answer":"Friday","links":[{"url":"u","text":"t"}]}`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, domain.Query{Question: "When?", Image: "aGk="}, a.got)
		assert.NotEmpty(t, a.requestID)
		assert.Equal(t, a.requestID, rec.Header().Get("X-Request-ID"))
	}
}

func TestQuery_ClientErrors(t *testing.T) {
	a := &stubAnswerer{}

	rec := do(t, a, http.MethodPost, "/api/", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"missing question"}`, rec.Body.String())

	rec = do(t, a, http.MethodPost, "/api/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "invalid JSON")

	rec = do(t, a, http.MethodGet, "/api/", ``)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQuery_UpstreamFailure(t *testing.T) {
	a := &stubAnswerer{err: &domain.UpstreamError{Stage: domain.StageGeneration, Status: 500, Message: "internal"}}
	rec := do(t, a, http.MethodPost, "/api/", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"generation upstream error 500: internal"}`, rec.Body.String())
}

func TestQuery_PanicBecomesJSON500(t *testing.T) {
	rec := do(t, &stubAnswerer{panicMsg: "boom"}, http.MethodPost, "/api/", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "boom")
}

type slowAnswerer struct {
	delay time.Duration
}

func (s slowAnswerer) Answer(ctx context.Context, q domain.Query) (domain.Answer, error) {
	time.Sleep(s.delay)
	return domain.Answer{Answer: "late"}, nil
}

func (s slowAnswerer) IndexSize() int { return 0 }
func (s slowAnswerer) Model() string  { return "hashing" }

func TestQuery_SlowPipelineStillGetsJSONError(t *testing.T) {
	const writeTimeout = 500 * time.Millisecond
	srv := New(slowAnswerer{delay: time.Second}, Options{WriteTimeout: writeTimeout}, logging.Discard())
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.WriteTimeout = writeTimeout
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/", "application/json", strings.NewReader(`{"question":"q"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "deadline exceeded")
}

func TestAnswerBudget(t *testing.T) {
	assert.Equal(t, time.Duration(0), answerBudget(0))
	assert.Equal(t, 400*time.Millisecond, answerBudget(500*time.Millisecond))
	assert.Equal(t, 175*time.Second, answerBudget(180*time.Second))
}

func TestPreflight(t *testing.T) {
	rec := do(t, &stubAnswerer{}, http.MethodOptions, "/api/", ``)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestHealth(t *testing.T) {
	rec := do(t, &stubAnswerer{}, http.MethodGet, "/health", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","records":42,"model":"hashing"}`, rec.Body.String())
}
