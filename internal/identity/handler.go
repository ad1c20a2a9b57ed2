package identity

import (
	"encoding/json"
	"net/http"

	"azmoon/internal/app/apiresp"
)

type parseRequest struct {
	Raw string `json:"raw"`
}

type parseResponse struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Combined string `json:"combined"`
}

// ProvincesHandler lists the accepted province names.
func ProvincesHandler(w http.ResponseWriter, r *http.Request) {
	apiresp.WriteOK(w, r, http.StatusOK, Provinces())
}

// ParseHandler splits a free-form "name phone" string so clients can prefill
// the start form.
func ParseHandler(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	name, phone, combined := SplitCombined(req.Raw)
	apiresp.WriteOK(w, r, http.StatusOK, parseResponse{
		Name:     NormalizeName(name),
		Phone:    phone,
		Combined: combined,
	})
}
