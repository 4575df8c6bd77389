package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSignatureFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/contracts/demo-003/send", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	sent := decode(t, w)["data"].(map[string]any)
	if sent["status"] != "pending_signature" {
		t.Errorf("Expected pending_signature, got %v", sent["status"])
	}
	if len(env.mailer.sent) != 1 {
		t.Fatalf("Expected 1 signature request email, got %d", len(env.mailer.sent))
	}
	if !strings.Contains(env.mailer.sent[0].HTML, "party=demo-003-a") {
		t.Error("Expected signing link for the party in the email")
	}

	// Certificate is refused before completion.
	if w := env.do(http.MethodGet, "/api/contracts/demo-003/certificate", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for incomplete contract, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/contracts/demo-003/sign", gin.H{
		"partyId": "demo-003-a",
		"name":    "高橋 誠",
		"email":   "Takahashi@Example.net",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	signed := decode(t, w)["data"].(map[string]any)
	if signed["status"] != "completed" {
		t.Errorf("Expected completed, got %v", signed["status"])
	}
	sigs := signed["signatures"].([]any)
	if len(sigs) != 1 {
		t.Fatalf("Expected 1 signature, got %d", len(sigs))
	}
	if hash, _ := sigs[0].(map[string]any)["verificationHash"].(string); len(hash) != 64 {
		t.Errorf("Expected sha256 verification hash, got %q", hash)
	}

	w = env.do(http.MethodGet, "/api/contracts/demo-003/certificate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("Expected PDF body")
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "certificate-demo-003.pdf") {
		t.Errorf("Unexpected Content-Disposition: %s", w.Header().Get("Content-Disposition"))
	}
	if _, ok := env.blobs.objects["documents/demo-003/certificate.pdf"]; !ok {
		t.Error("Expected certificate to be archived")
	}
}

func TestSignRejections(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           any
		expectedStatus int
	}{
		{
			name:           "draft contract",
			path:           "/api/contracts/demo-003/sign",
			body:           gin.H{"partyId": "demo-003-a", "name": "高橋 誠", "email": "takahashi@example.net"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "email mismatch",
			path:           "/api/contracts/demo-001/sign",
			body:           gin.H{"partyId": "demo-001-a", "name": "田中 一郎", "email": "someone@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown party",
			path:           "/api/contracts/demo-001/sign",
			body:           gin.H{"partyId": "nobody", "name": "x", "email": "x@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing fields",
			path:           "/api/contracts/demo-001/sign",
			body:           gin.H{"partyId": "demo-001-a"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown contract",
			path:           "/api/contracts/missing/sign",
			body:           gin.H{"partyId": "a", "name": "x", "email": "x@example.com"},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestSignRecordsClientIP(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/contracts/demo-001/sign",
		strings.NewReader(`{"partyId":"demo-001-a","name":"田中 一郎","email":"tanaka@example.co.jp"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "contract-test/1.0")
	req.RemoteAddr = "203.0.113.7:5000"
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["status"] != "partially_signed" {
		t.Errorf("Expected partially_signed, got %v", data["status"])
	}
	sig := data["signatures"].([]any)[0].(map[string]any)
	if sig["ipAddress"] != "203.0.113.7" {
		t.Errorf("Expected client IP, got %v", sig["ipAddress"])
	}
	if sig["userAgent"] != "contract-test/1.0" {
		t.Errorf("Expected user agent, got %v", sig["userAgent"])
	}
}
