package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/sagemaker"
)

const testExecutionARN = "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/train/execution/abc123"

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		t.Errorf("write response: %v", err)
	}
}

func TestResolveRun_FromEnvironment(t *testing.T) {
	t.Setenv(sagemaker.EnvStoreRunID, "11111111-2222-3333-4444-555555555555")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	runID, err := resolveRun(cli.NewClient(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("unexpected run ID: %s", runID)
	}
}

func TestResolveRun_RegistersScheduledFiring(t *testing.T) {
	t.Setenv(sagemaker.EnvStoreRunID, "")
	t.Setenv(sagemaker.EnvRunID, testExecutionARN)
	t.Setenv(sagemaker.EnvDeploymentID, "9a1f0d2e-0000-0000-0000-000000000001")

	var createBody struct {
		Name              string `json:"name"`
		OrchestratorRunID string `json:"orchestrator_run_id"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/runs/by-name/exec-abc123":
			writeJSON(t, w, http.StatusNotFound, `{"error":{"code":"not_found","message":"pipeline run not found"}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/deployments/9a1f0d2e-0000-0000-0000-000000000001/runs":
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("decode create request: %v", err)
			}
			writeJSON(t, w, http.StatusCreated, `{"data":{"id":"run-1","name":"exec-abc123","status":"RUNNING"}}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			writeJSON(t, w, http.StatusNotFound, `{"error":{"code":"not_found","message":"no route"}}`)
		}
	}))
	defer server.Close()

	runID, err := resolveRun(cli.NewClient(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != "run-1" {
		t.Errorf("unexpected run ID: %s", runID)
	}
	if createBody.Name != "exec-abc123" {
		t.Errorf("unexpected run name in create request: %s", createBody.Name)
	}
	if createBody.OrchestratorRunID != testExecutionARN {
		t.Errorf("create request must carry the execution ARN, got %q", createBody.OrchestratorRunID)
	}
}

func TestResolveRun_ReusesExistingRun(t *testing.T) {
	t.Setenv(sagemaker.EnvStoreRunID, "")
	t.Setenv(sagemaker.EnvRunID, testExecutionARN)
	t.Setenv(sagemaker.EnvDeploymentID, "9a1f0d2e-0000-0000-0000-000000000001")

	posts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		if r.Method == http.MethodGet && r.URL.Path == "/api/v1/runs/by-name/exec-abc123" {
			writeJSON(t, w, http.StatusOK, `{"data":{"id":"run-7","name":"exec-abc123","status":"RUNNING"}}`)
			return
		}
		writeJSON(t, w, http.StatusNotFound, `{"error":{"code":"not_found","message":"no route"}}`)
	}))
	defer server.Close()

	runID, err := resolveRun(cli.NewClient(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != "run-7" {
		t.Errorf("unexpected run ID: %s", runID)
	}
	if posts != 0 {
		t.Errorf("existing run must not be re-created, got %d create calls", posts)
	}
}

func TestResolveRun_NoExecutionContext(t *testing.T) {
	t.Setenv(sagemaker.EnvStoreRunID, "")
	t.Setenv(sagemaker.EnvRunID, "")

	if _, err := resolveRun(cli.NewClient("http://127.0.0.1:0")); err == nil {
		t.Fatal("expected error without run ID or execution ARN in environment")
	}
}
