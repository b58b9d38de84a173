package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"posterforge/internal/domain"
	"posterforge/internal/sqlinline"
)

func TestListPosters_ReturnsNewestFirst(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []domain.Poster{
		{
			ID:           "poster-2",
			UserID:       "user-1",
			JobID:        "job-2",
			ResultURL:    "https://cdn/posters/user-1/job-2.jpg",
			UserImageURL: "https://cdn/uploads/b.jpg",
			TemplateID:   "classic-black",
			Description:  "Second poster",
			Car:          domain.VehicleIdentity{Make: "BMW", Model: "M2", Year: "2024"},
			CreatedAt:    created,
		},
		{
			ID:        "poster-1",
			UserID:    "user-1",
			JobID:     "job-1",
			ResultURL: "https://cdn/posters/user-1/job-1.jpg",
			CreatedAt: created.Add(-time.Hour),
		},
	}
	sql := &stubSQL{query: func(query string, args ...any) (pgx.Rows, error) {
		if query != sqlinline.QSelectUserPosters {
			return nil, fmt.Errorf("unexpected query: %s", query)
		}
		if len(args) != 1 || args[0] != "user-1" {
			return nil, fmt.Errorf("unexpected args: %v", args)
		}
		return &posterRowsIterator{rows: rows}, nil
	}}
	app := newTestApp(sql)

	rr := httptest.NewRecorder()
	app.ListPosters(rr, authedRequest(t, "GET", "/v1/posters", "user-1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("expected 2 posters, got %d", len(payload.Items))
	}
	if payload.Items[0]["id"] != "poster-2" {
		t.Fatalf("expected newest poster first, got %#v", payload.Items[0]["id"])
	}
	if payload.Items[0]["resultUrl"] != rows[0].ResultURL {
		t.Fatalf("unexpected result url: %#v", payload.Items[0]["resultUrl"])
	}
}

func TestListPosters_EmptyHistory(t *testing.T) {
	sql := &stubSQL{query: func(query string, args ...any) (pgx.Rows, error) {
		return &posterRowsIterator{}, nil
	}}
	app := newTestApp(sql)

	rr := httptest.NewRecorder()
	app.ListPosters(rr, authedRequest(t, "GET", "/v1/posters", "user-1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 0 {
		t.Fatalf("expected empty history, got %d items", len(payload.Items))
	}
}

type posterRowsIterator struct {
	rows []domain.Poster
	idx  int
}

func (p *posterRowsIterator) Next() bool {
	if p.idx >= len(p.rows) {
		return false
	}
	p.idx++
	return true
}

func (p *posterRowsIterator) Scan(dest ...any) error {
	if p.idx == 0 || p.idx > len(p.rows) {
		return pgx.ErrNoRows
	}
	row := p.rows[p.idx-1]
	if len(dest) != 11 {
		return fmt.Errorf("unexpected scan args: %d", len(dest))
	}
	*(dest[0].(*string)) = row.ID
	*(dest[1].(*string)) = row.UserID
	*(dest[2].(*string)) = row.JobID
	*(dest[3].(*string)) = row.ResultURL
	*(dest[4].(*string)) = row.UserImageURL
	*(dest[5].(*string)) = row.TemplateID
	*(dest[6].(*string)) = row.Description
	*(dest[7].(*string)) = row.Car.Make
	*(dest[8].(*string)) = row.Car.Model
	*(dest[9].(*string)) = row.Car.Year
	*(dest[10].(*time.Time)) = row.CreatedAt
	return nil
}

func (p *posterRowsIterator) Err() error { return nil }

func (p *posterRowsIterator) Close() {}

func (p *posterRowsIterator) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (p *posterRowsIterator) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (p *posterRowsIterator) Values() ([]any, error) { return nil, nil }

func (p *posterRowsIterator) RawValues() [][]byte { return nil }

func (p *posterRowsIterator) Conn() *pgx.Conn { return nil }
