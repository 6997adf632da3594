package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// DeploymentResponse — deployment из API.
type DeploymentResponse struct {
	ID         string         `json:"id"`
	PipelineID string         `json:"pipeline_id"`
	Version    int            `json:"version"`
	Spec       map[string]any `json:"spec"`
	Schedule   map[string]any `json:"schedule,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID                string            `json:"id"`
	DeploymentID      string            `json:"deployment_id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	OrchestratorRunID string            `json:"orchestrator_run_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	StartedAt         string            `json:"started_at,omitempty"`
	FinishedAt        string            `json:"finished_at,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         string            `json:"created_at"`
}

// StepRunResponse — step run из API.
type StepRunResponse struct {
	ID             string            `json:"id"`
	PipelineRunID  string            `json:"pipeline_run_id"`
	DeploymentID   string            `json:"deployment_id"`
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	CacheKey       string            `json:"cache_key,omitempty"`
	CodeHash       string            `json:"code_hash,omitempty"`
	ModelVersionID string            `json:"model_version_id,omitempty"`
	Inputs         map[string]any    `json:"inputs,omitempty"`
	Outputs        map[string]any    `json:"outputs,omitempty"`
	LogsURI        string            `json:"logs_uri,omitempty"`
	RunMetadata    map[string]string `json:"run_metadata,omitempty"`
	StartedAt      string            `json:"started_at,omitempty"`
	FinishedAt     string            `json:"finished_at,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID           string         `json:"id"`
	DeploymentID string         `json:"deployment_id"`
	Name         string         `json:"name"`
	Spec         map[string]any `json:"spec"`
	Enabled      bool           `json:"enabled"`
	ScheduleARN  string         `json:"schedule_arn,omitempty"`
	NextDueAt    string         `json:"next_due_at,omitempty"`
	LastRunAt    string         `json:"last_run_at,omitempty"`
	LastRunID    string         `json:"last_run_id,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// --- Request types ---

// UpdatePipelineRequest — обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateDeploymentRequest — создание deployment.
type CreateDeploymentRequest struct {
	Spec     json.RawMessage `json:"spec"`
	Schedule json.RawMessage `json:"schedule,omitempty"`
}

// CreateRunRequest — создание run.
// OrchestratorRunID указывает ARN уже идущего выполнения: такой run
// регистрируется сразу в RUNNING (используется entrypoint'ом).
type CreateRunRequest struct {
	Name              string `json:"name,omitempty"`
	OrchestratorRunID string `json:"orchestrator_run_id,omitempty"`
}

// CreateStepRunRequest — регистрация step run.
type CreateStepRunRequest struct {
	PipelineRunID string            `json:"pipeline_run_id"`
	DeploymentID  string            `json:"deployment_id,omitempty"`
	Name          string            `json:"name"`
	Status        string            `json:"status,omitempty"`
	CacheKey      string            `json:"cache_key,omitempty"`
	CodeHash      string            `json:"code_hash,omitempty"`
	Inputs        map[string]string `json:"inputs,omitempty"`
}

// UpdateStepRunRequest — частичное обновление step run.
type UpdateStepRunRequest struct {
	Status      *string             `json:"status,omitempty"`
	LogsURI     *string             `json:"logs_uri,omitempty"`
	Outputs     map[string][]string `json:"outputs,omitempty"`
	RunMetadata map[string]string   `json:"run_metadata,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	DeploymentID string
	Status       string
	Limit        int
}

// ListStepRunsOpts — параметры фильтрации step runs.
type ListStepRunsOpts struct {
	PipelineRunID string
	Name          string
	Status        string
	Model         string
	Limit         int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает все pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline регистрирует новый pipeline.
func (c *Client) CreatePipeline(name string) (*PipelineResponse, error) {
	body := map[string]string{"name": name}
	var pipeline PipelineResponse
	err := c.post("/api/v1/pipelines", body, &pipeline)
	return &pipeline, err
}

// GetPipeline возвращает pipeline по ID или имени.
func (c *Client) GetPipeline(ref string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+ref, &pipeline)
	return &pipeline, err
}

// UpdatePipeline обновляет pipeline.
func (c *Client) UpdatePipeline(id string, req UpdatePipelineRequest) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.put("/api/v1/pipelines/"+id, req, &pipeline)
	return &pipeline, err
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(id string) error {
	return c.delete("/api/v1/pipelines/" + id)
}

// --- Deployments ---

// ListDeployments возвращает deployments pipeline.
func (c *Client) ListDeployments(pipelineRef string) ([]DeploymentResponse, error) {
	var deployments []DeploymentResponse
	err := c.list("/api/v1/pipelines/"+pipelineRef+"/deployments", nil, &deployments)
	return deployments, err
}

// CreateDeployment создаёт deployment для pipeline.
func (c *Client) CreateDeployment(pipelineRef string, req CreateDeploymentRequest) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.post("/api/v1/pipelines/"+pipelineRef+"/deployments", req, &deployment)
	return &deployment, err
}

// GetDeployment возвращает deployment по ID.
func (c *Client) GetDeployment(id string) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.get("/api/v1/deployments/"+id, &deployment)
	return &deployment, err
}

// GetLatestDeployment возвращает последний deployment pipeline.
func (c *Client) GetLatestDeployment(pipelineRef string) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.get("/api/v1/pipelines/"+pipelineRef+"/deployments/latest", &deployment)
	return &deployment, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.DeploymentID != "" {
		params.Set("deployment_id", opts.DeploymentID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun создаёт run для deployment.
func (c *Client) CreateRun(deploymentID string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/deployments/"+deploymentID+"/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// GetRunByName возвращает run по имени.
func (c *Client) GetRunByName(name string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/by-name/"+url.PathEscape(name), &run)
	return &run, err
}

// --- Step runs ---

// ListStepRuns возвращает список step runs с фильтрацией.
func (c *Client) ListStepRuns(opts ListStepRunsOpts) ([]StepRunResponse, error) {
	params := url.Values{}
	if opts.PipelineRunID != "" {
		params.Set("pipeline_run_id", opts.PipelineRunID)
	}
	if opts.Name != "" {
		params.Set("name", opts.Name)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Model != "" {
		params.Set("model", opts.Model)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var stepRuns []StepRunResponse
	err := c.list("/api/v1/step-runs", params, &stepRuns)
	return stepRuns, err
}

// GetStepRun возвращает step run по ID. С hydrate=true ответ
// включает версии артефактов входов и выходов.
func (c *Client) GetStepRun(id string, hydrate bool) (*StepRunResponse, error) {
	path := "/api/v1/step-runs/" + id
	if hydrate {
		path += "?hydrate=true"
	}

	var stepRun StepRunResponse
	err := c.get(path, &stepRun)
	return &stepRun, err
}

// CreateStepRun регистрирует step run.
func (c *Client) CreateStepRun(req CreateStepRunRequest) (*StepRunResponse, error) {
	var stepRun StepRunResponse
	err := c.post("/api/v1/step-runs", req, &stepRun)
	return &stepRun, err
}

// UpdateStepRun выполняет частичное обновление step run.
func (c *Client) UpdateStepRun(id string, req UpdateStepRunRequest) (*StepRunResponse, error) {
	var stepRun StepRunResponse
	err := c.patch("/api/v1/step-runs/"+id, req, &stepRun)
	return &stepRun, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если deploymentID не пустой — фильтрует.
func (c *Client) ListSchedules(deploymentID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if deploymentID != "" {
		params.Set("deployment_id", deploymentID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) patch(path string, body any, result any) error {
	return c.doData(http.MethodPatch, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
