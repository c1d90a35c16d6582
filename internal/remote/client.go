// Package remote is a client for the BOQ tracker HTTP API. Credentials are
// an argument of every call so one client can serve several users.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boqtrack/internal/auth"
	"boqtrack/internal/core"
	"boqtrack/internal/ingest"
	"boqtrack/internal/services"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("boqtrack: http %d", e.StatusCode)
	}
	return fmt.Sprintf("boqtrack: http %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. A nil httpClient
// uses one with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) ListProjects(ctx context.Context, creds auth.Credentials) ([]core.Project, error) {
	var out struct {
		Projects []core.Project `json:"myProjects"`
	}
	if err := c.doJSON(ctx, creds, http.MethodGet, "/projects/lists", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) CreateProject(ctx context.Context, creds auth.Credentials, p core.Project) (core.Project, error) {
	var out struct {
		Project core.Project `json:"project"`
	}
	if err := c.doJSON(ctx, creds, http.MethodPost, "/projects/create", p, &out); err != nil {
		return core.Project{}, err
	}
	return out.Project, nil
}

// ListReports returns the raw transactions of a project.
func (c *Client) ListReports(ctx context.Context, creds auth.Credentials, project string) ([]core.Transaction, error) {
	var out struct {
		Reports []core.Transaction `json:"myReports"`
	}
	body := map[string]string{"projectName": project}
	if err := c.doJSON(ctx, creds, http.MethodPost, "/report/listsByProject", body, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

func (c *Client) ReportSummary(ctx context.Context, creds auth.Credentials, project string) (services.Summary, error) {
	var out services.Summary
	body := map[string]string{"projectName": project}
	if err := c.doJSON(ctx, creds, http.MethodPost, "/report/summaryByProject", body, &out); err != nil {
		return services.Summary{}, err
	}
	return out, nil
}

// ImportBudget stores already ingested BOQ rows as the project budget.
func (c *Client) ImportBudget(ctx context.Context, creds auth.Credentials, project string, progress float64, rows []ingest.BudgetLineRow) (services.ImportResult, error) {
	var out services.ImportResult
	body := map[string]any{
		"projectName": project,
		"progress":    progress,
		"budgetData":  rows,
	}
	if err := c.doJSON(ctx, creds, http.MethodPost, "/budget/importIncomes", body, &out); err != nil {
		return services.ImportResult{}, err
	}
	return out, nil
}

// ImportBudgetFile uploads a BOQ spreadsheet and lets the server ingest it.
func (c *Client) ImportBudgetFile(ctx context.Context, creds auth.Credentials, project string, progress float64, fileName string, file io.Reader) (services.ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("projectName", project)
	_ = mw.WriteField("progress", strconv.FormatFloat(progress, 'f', -1, 64))
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return services.ImportResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return services.ImportResult{}, fmt.Errorf("copy %s: %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return services.ImportResult{}, fmt.Errorf("close multipart: %w", err)
	}

	var out services.ImportResult
	if err := c.do(ctx, creds, http.MethodPost, "/budget/importIncomes", &buf, mw.FormDataContentType(), &out); err != nil {
		return services.ImportResult{}, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, creds auth.Credentials, t core.Transaction) (core.Transaction, error) {
	var out struct {
		Transaction core.Transaction `json:"transaction"`
	}
	if err := c.doJSON(ctx, creds, http.MethodPost, "/transactions/create", t, &out); err != nil {
		return core.Transaction{}, err
	}
	return out.Transaction, nil
}

func (c *Client) doJSON(ctx context.Context, creds auth.Credentials, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, creds, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, creds auth.Credentials, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", creds.Header())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
