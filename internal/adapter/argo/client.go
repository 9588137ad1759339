package argo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/couchcryptid/alertzarr/internal/config"
	"github.com/couchcryptid/alertzarr/internal/domain"
)

const maxLabelLength = 63

// Client submits workflows built from a workflow template to the Argo server API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	namespace  string
	template   string
	token      string
}

// NewClient creates a workflow submission client. ARGO_BASE_URL must be set.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.ArgoBaseURL == "" {
		return nil, errors.New("argo base URL must be provided")
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.WorkflowSubmitTimeout},
		baseURL:    strings.TrimRight(cfg.ArgoBaseURL, "/"),
		namespace:  cfg.ArgoNamespace,
		template:   cfg.ArgoWorkflowTemplate,
		token:      cfg.ArgoToken,
	}, nil
}

// Submission is the subset of the created workflow the caller logs.
type Submission struct {
	Name      string
	Namespace string
}

// Submit creates one workflow for the alert. Any non-2xx response is an error.
func (c *Client) Submit(ctx context.Context, alert domain.Alert) (Submission, error) {
	body, err := c.buildWorkflow(alert)
	if err != nil {
		return Submission{}, err
	}

	url := fmt.Sprintf("%s/api/v1/workflows/%s", c.baseURL, c.namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Submission{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Submission{}, fmt.Errorf("submit workflow: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Submission{}, fmt.Errorf("argo API error: status %d: %s", resp.StatusCode, msg)
	}

	var created struct {
		Metadata struct {
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		} `json:"metadata"`
	}
	// The workflow exists once the API accepted it. An unreadable body only
	// loses the generated name.
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Submission{Namespace: c.namespace}, nil
	}
	sub := Submission{Name: created.Metadata.Name, Namespace: created.Metadata.Namespace}
	if sub.Namespace == "" {
		sub.Namespace = c.namespace
	}
	return sub, nil
}

func (c *Client) buildWorkflow(alert domain.Alert) ([]byte, error) {
	payload, err := json.Marshal(alert.Raw)
	if err != nil {
		return nil, fmt.Errorf("encode alert payload: %w", err)
	}

	wf := workflow{
		Metadata: metadata{
			GenerateName: c.template + "-",
			Labels: map[string]string{
				"alertzarr.io/alert":  labelValue(alert.ID),
				"alertzarr.io/hazard": labelValue(alert.HazardType),
			},
		},
		Spec: spec{
			WorkflowTemplateRef: templateRef{Name: c.template},
			Arguments: arguments{Parameters: []parameter{
				{Name: "alert_id", Value: alert.ID},
				{Name: "hazard", Value: alert.HazardType},
				{Name: "severity", Value: alert.Severity},
				{Name: "alert_payload", Value: string(payload)},
			}},
		},
	}

	data, err := json.Marshal(createRequest{Namespace: c.namespace, Workflow: wf})
	if err != nil {
		return nil, fmt.Errorf("encode workflow: %w", err)
	}
	return data, nil
}

// labelValue fits s into a Kubernetes label value: slug characters only,
// at most 63 long, starting and ending with an alphanumeric.
func labelValue(s string) string {
	v := domain.Slugify(s)
	if len(v) > maxLabelLength {
		v = v[:maxLabelLength]
	}
	v = strings.Trim(v, "._-")
	if v == "" {
		return "artifact"
	}
	return v
}

// Argo workflow submission types.

type createRequest struct {
	Namespace string   `json:"namespace"`
	Workflow  workflow `json:"workflow"`
}

type workflow struct {
	Metadata metadata `json:"metadata"`
	Spec     spec     `json:"spec"`
}

type metadata struct {
	GenerateName string            `json:"generateName"`
	Labels       map[string]string `json:"labels"`
}

type spec struct {
	WorkflowTemplateRef templateRef `json:"workflowTemplateRef"`
	Arguments           arguments   `json:"arguments"`
}

type templateRef struct {
	Name string `json:"name"`
}

type arguments struct {
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
