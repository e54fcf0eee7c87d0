package httpjson

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
)

func TestWriteSetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, http.StatusCreated, map[string]string{"id": "t1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["id"] != "t1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, platformerrors.New(platformerrors.CodePermissionDenied, "caller may not update this task"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "PERMISSION_DENIED" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Message != "caller may not update this task" {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, platformerrors.New(platformerrors.CodeInternal, "sqlite exploded at /var/db"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "/var/db") {
		t.Fatal("expected internal detail to be withheld from the response")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{not json"))
	var target map[string]any
	err := Decode(req, &target)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !platformerrors.IsCode(err, platformerrors.CodeInvalidBody) {
		t.Fatalf("expected invalid body code, got %q", platformerrors.GetCode(err))
	}
}

func TestDecodeReadsBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"A"}`))
	var target struct {
		Title string `json:"title"`
	}
	if err := Decode(req, &target); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if target.Title != "A" {
		t.Fatalf("expected decoded title, got %q", target.Title)
	}
}
