package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "плохо") }, http.StatusBadRequest, CodeValidationError},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "нет") }, http.StatusNotFound, CodeNotFound},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "нельзя") }, http.StatusForbidden, CodeForbidden},
		{"too large", func(w http.ResponseWriter) { FileTooLarge(w, "много") }, http.StatusRequestEntityTooLarge, CodeFileTooLarge},
		{"rate limited", func(w http.ResponseWriter) { RateLimited(w, "часто") }, http.StatusTooManyRequests, CodeRateLimited},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "сбой") }, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус: хотели %d, получили %d", tt.wantStatus, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: %q", ct)
			}

			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("ошибка декодирования: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("код: хотели %s, получили %s", tt.wantCode, body.Error.Code)
			}
			if body.Error.Message == "" {
				t.Error("пустое сообщение")
			}
		})
	}
}
