package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/cancer-check/internal/auth"
	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/decision"
	"github.com/example/cancer-check/internal/inference"
	"github.com/example/cancer-check/internal/logging"
	"github.com/example/cancer-check/internal/usecase"
)

const testJWTSecret = "test-secret"

type stubAnalyzer struct {
	analysis *usecase.Analysis
	err      error
	requests []usecase.AnalysisRequest
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req usecase.AnalysisRequest) (*usecase.Analysis, error) {
	s.requests = append(s.requests, req)
	return s.analysis, s.err
}

func (s *stubAnalyzer) GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error) {
	return &usecase.MetricsSummary{TotalRequests: int64(len(s.requests))}, nil
}

func newRouter(uc Analyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, uc, auth.NewVerifier(testJWTSecret, "").Middleware())
	return router
}

func positiveAnalysis() *usecase.Analysis {
	result := &classifier.Result{
		Classifications: []inference.Category{{Label: "Cancer", Score: 0.73}},
		InferenceTime:   12 * time.Millisecond,
	}
	return &usecase.Analysis{
		RequestID: "req-1",
		Result:    result,
		Decision:  decision.DefaultPolicy().Evaluate(result, nil, nil),
	}
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	router := newRouter(&stubAnalyzer{})

	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1))
	resp := serveAnalyze(t, router, body, contentType, buildTestToken(t, "user-123"))

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	router := newRouter(&stubAnalyzer{})

	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"))
	resp := serveAnalyze(t, router, body, contentType, buildTestToken(t, "user-123"))

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestAnalyzeRequiresToken(t *testing.T) {
	router := newRouter(&stubAnalyzer{})

	body, contentType := buildMultipartBody(t, "image/png", pngBytes(t))
	resp := serveAnalyze(t, router, body, contentType, "")

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestAnalyzeReturnsFinding(t *testing.T) {
	stub := &stubAnalyzer{analysis: positiveAnalysis()}
	router := newRouter(stub)

	body, contentType := buildMultipartBody(t, "image/png", pngBytes(t))
	resp := serveAnalyze(t, router, body, contentType, buildTestToken(t, "user-123"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Decision        string  `json:"decision"`
		Label           string  `json:"label"`
		Score           float32 `json:"score"`
		InferenceTimeMs int64   `json:"inference_time_ms"`
		Summary         string  `json:"summary"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Decision != "positive" || payload.Label != "Cancer" || payload.Score != 0.73 || payload.InferenceTimeMs != 12 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Summary != "Prediction: Cancer\nConfidence: 73.00%\nInference Time: 12 ms" {
		t.Fatalf("unexpected summary %q", payload.Summary)
	}
	if stub.requests[0].CallerID != "user-123" || stub.requests[0].ImageName != "upload" {
		t.Fatalf("unexpected request %+v", stub.requests[0])
	}
}

func TestAnalyzeMapsClassifierErrors(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{
			err:     logging.NewOperationError("usecase.classify", "req", classifier.ErrModelInitialization),
			status:  http.StatusServiceUnavailable,
			message: "classifier failed to initialize",
		},
		{
			err:     logging.NewOperationError("usecase.classify", "req", &classifier.ImageProcessingError{Err: errors.New("bad header")}),
			status:  http.StatusUnprocessableEntity,
			message: "error processing the image: bad header",
		},
	}
	for _, tc := range cases {
		router := newRouter(&stubAnalyzer{err: tc.err})
		body, contentType := buildMultipartBody(t, "image/png", pngBytes(t))
		resp := serveAnalyze(t, router, body, contentType, buildTestToken(t, "user-123"))

		if resp.Code != tc.status {
			t.Fatalf("expected status %d, got %d", tc.status, resp.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload["error"] != tc.message {
			t.Fatalf("expected %q, got %q", tc.message, payload["error"])
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(&stubAnalyzer{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func serveAnalyze(t *testing.T, router *gin.Engine, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
