package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/parse", strings.NewReader(`{"raw":"علی رضایی ۰۹۱۲۳۴۵۶۷۸۹"}`))
	w := httptest.NewRecorder()
	ParseHandler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		OK   bool          `json:"ok"`
		Data parseResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Phone != "09123456789" {
		t.Fatalf("expected latin phone, got %q", body.Data.Phone)
	}
	if body.Data.Name != "علی رضایی" {
		t.Fatalf("unexpected name %q", body.Data.Name)
	}
	if body.Data.Combined != "علی رضایی_09123456789" {
		t.Fatalf("unexpected combined %q", body.Data.Combined)
	}
}

func TestParseHandlerInvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/parse", strings.NewReader(`{`))
	w := httptest.NewRecorder()
	ParseHandler(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestProvincesHandler(t *testing.T) {
	w := httptest.NewRecorder()
	ProvincesHandler(w, httptest.NewRequest(http.MethodGet, "/api/v1/provinces", nil))

	var body struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 31 {
		t.Fatalf("expected 31 provinces, got %d", len(body.Data))
	}
}
