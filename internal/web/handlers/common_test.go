package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondErrorKindFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   string
	}{
		{http.StatusBadRequest, "validation_error"},
		{http.StatusNotFound, "not_found"},
		{http.StatusUnprocessableEntity, "detection_error"},
		{http.StatusInternalServerError, "storage_error"},
		{http.StatusBadGateway, "storage_error"},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		respondError(w, tc.status, "boom")
		if w.Code != tc.status {
			t.Errorf("status = %d; want %d", w.Code, tc.status)
		}
		if body := decodeJSON(t, w); body["error_type"] != tc.kind {
			t.Errorf("status %d: error_type = %v; want %s", tc.status, body["error_type"], tc.kind)
		}
	}
}
