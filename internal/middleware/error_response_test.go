package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finmemory/finmemory/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットで
// レスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	apiErr := &model.APIError{
		Code:     "STORE_NAME_REQUIRED",
		Message:  "店舗名が指定されていません",
		Category: "validation",
		Action:   "店舗名を入力してください。",
	}

	WriteErrorResponse(w, http.StatusBadRequest, apiErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != apiErr.Code {
		t.Errorf("code = %q, want %q", body.Code, apiErr.Code)
	}
	if body.Message != apiErr.Message {
		t.Errorf("message = %q, want %q", body.Message, apiErr.Message)
	}
	if body.Category != apiErr.Category {
		t.Errorf("category = %q, want %q", body.Category, apiErr.Category)
	}
	if body.Action != apiErr.Action {
		t.Errorf("action = %q, want %q", body.Action, apiErr.Action)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want system", body.Category)
	}
}
