package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"posterforge/internal/credits"
	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/jobs"
	"posterforge/internal/middleware"
	"posterforge/internal/posters"
	"posterforge/internal/providers/vision"
	"posterforge/internal/sqlinline"
)

// stubSQL scripts the SQLExecutor surface per query constant.
type stubSQL struct {
	exec     func(query string, args ...any) (pgconn.CommandTag, error)
	queryRow func(query string, args ...any) pgx.Row
	query    func(query string, args ...any) (pgx.Rows, error)
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if s.exec == nil {
		return pgconn.CommandTag{}, nil
	}
	return s.exec(query, args...)
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if s.queryRow == nil {
		return infra.NoRow()
	}
	return s.queryRow(query, args...)
}

func (s *stubSQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	if s.query == nil {
		return nil, fmt.Errorf("unexpected query")
	}
	return s.query(query, args...)
}

// debitRow scripts QTryDebitCredit: remaining >= 0 grants the debit, a
// negative value reports an exhausted balance.
func debitRow(remaining int) func(query string, args ...any) pgx.Row {
	return func(query string, args ...any) pgx.Row {
		if query != sqlinline.QTryDebitCredit {
			return infra.NewSimpleRow(func(...any) error {
				return fmt.Errorf("unexpected query row: %s", query)
			})
		}
		if remaining < 0 {
			return infra.NoRow()
		}
		return infra.NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*int)) = remaining
			return nil
		})
	}
}

func newTestApp(sql *stubSQL) *App {
	logger := zerolog.New(io.Discard)
	return &App{
		Config:  &infra.Config{},
		Logger:  logger,
		Jobs:    jobs.NewStore(sql),
		Ledger:  credits.NewLedger(sql),
		Posters: posters.NewStore(sql),
	}
}

func authedRequest(t *testing.T, method, target, userID string, body any) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

type scriptedVision struct {
	ident vision.Identification
	err   error
	calls int
}

func (s *scriptedVision) Identify(context.Context, []byte, string) (vision.Identification, error) {
	s.calls++
	return s.ident, s.err
}

func fetchFixture(data []byte) func(context.Context, string) ([]byte, string, error) {
	return func(context.Context, string) ([]byte, string, error) {
		return data, "image/jpeg", nil
	}
}

func TestIdentify_ReturnsPlate(t *testing.T) {
	sql := &stubSQL{queryRow: debitRow(4)}
	vis := &scriptedVision{ident: vision.Identification{
		Plate: "AB12 CDE",
		Car:   domain.VehicleIdentity{Make: "Lotus", Model: "Emira", Year: "2023"},
	}}
	app := newTestApp(sql)
	app.Vision = vis
	app.ImageFetcher = fetchFixture([]byte("jpeg-bytes"))

	rr := httptest.NewRecorder()
	app.Identify(rr, authedRequest(t, "POST", "/v1/identify", "user-1", map[string]string{"imageUrl": "https://cdn/photo.jpg"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload identifyResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Plate != "AB12 CDE" {
		t.Fatalf("unexpected plate: %q", payload.Plate)
	}
	if vis.calls != 1 {
		t.Fatalf("expected 1 vision call, got %d", vis.calls)
	}
}

func TestIdentify_UnreadablePhotoIsNotAnError(t *testing.T) {
	sql := &stubSQL{queryRow: debitRow(4)}
	app := newTestApp(sql)
	app.Vision = &scriptedVision{} // empty identification
	app.ImageFetcher = fetchFixture([]byte("jpeg-bytes"))

	rr := httptest.NewRecorder()
	app.Identify(rr, authedRequest(t, "POST", "/v1/identify", "user-1", map[string]string{"imageUrl": "https://cdn/photo.jpg"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload identifyResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != plateNotFoundStatus {
		t.Fatalf("expected %q status, got %q", plateNotFoundStatus, payload.Status)
	}
}

func TestIdentify_ExhaustedCreditBlocksBeforeVision(t *testing.T) {
	sql := &stubSQL{queryRow: debitRow(-1)}
	vis := &scriptedVision{}
	app := newTestApp(sql)
	app.Vision = vis
	app.ImageFetcher = fetchFixture([]byte("jpeg-bytes"))

	rr := httptest.NewRecorder()
	app.Identify(rr, authedRequest(t, "POST", "/v1/identify", "user-1", map[string]string{"imageUrl": "https://cdn/photo.jpg"}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d, want 403", rr.Code)
	}
	if vis.calls != 0 {
		t.Fatalf("vision must not be called on exhausted credit, got %d calls", vis.calls)
	}
}

func TestIdentify_RequiresImageURL(t *testing.T) {
	app := newTestApp(&stubSQL{})
	app.Vision = &scriptedVision{}

	rr := httptest.NewRecorder()
	app.Identify(rr, authedRequest(t, "POST", "/v1/identify", "user-1", map[string]string{}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d, want 400", rr.Code)
	}
}

func TestIdentify_MissingUserContext(t *testing.T) {
	app := newTestApp(&stubSQL{})
	app.Vision = &scriptedVision{}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/identify", bytes.NewReader([]byte(`{"imageUrl":"https://cdn/photo.jpg"}`)))
	app.Identify(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want 401", rr.Code)
	}
}
