// Package client provides the API client for interacting with the Parlatext API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/parlatext/parlatext/pkg/api/v1/routes"
	"github.com/parlatext/parlatext/pkg/types"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Upload endpoints
	RequestSignedURL(ctx context.Context, req types.SignedURLRequest) (types.SignedURLResponse, error)

	// Job endpoints
	PrecheckJob(ctx context.Context, req types.PrecheckRequest) (types.PrecheckResponse, error)
	CreateJob(ctx context.Context, req types.SubmitJobRequest) (types.SubmitJobResponse, error)
	ListJobs(ctx context.Context, tokens []string, page, perPage int) (types.ListJobsResponse, error)
	GetJob(ctx context.Context, id, accessToken string) (types.Job, error)
	CancelJob(ctx context.Context, id, accessToken string) error
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	// Resolve the endpoint URL
	fullURL := c.baseURL + endpoint

	// Create a new agent based on the HTTP method
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	// Set common headers
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	// Add body if provided
	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	// Execute the request
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	// Check for non-success status codes
	if statusCode < 200 || statusCode >= 300 {
		// Keep the raw body as the message; callers convert to typed errors
		return &fiber.Error{
			Code:    statusCode,
			Message: string(body),
		}
	}

	// Decode the response body if a target is provided
	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// Health check implementation

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	endpoint := routes.HealthCheckURL()
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return map[string]string{}, err
	}
	return response, nil
}

// Upload methods implementation

// RequestSignedURL asks the issuer for an upload target for one file
func (c *APIClient) RequestSignedURL(ctx context.Context, req types.SignedURLRequest) (types.SignedURLResponse, error) {
	endpoint := routes.SignedURLURL()
	var response types.SignedURLResponse
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, req, &response); err != nil {
		return types.SignedURLResponse{}, err
	}
	return response, nil
}

// Job methods implementation

// PrecheckJob asks whether the server already holds a completed result for a
// content hash.
func (c *APIClient) PrecheckJob(ctx context.Context, req types.PrecheckRequest) (types.PrecheckResponse, error) {
	endpoint := routes.PrecheckJobURL()
	var response types.PrecheckResponse
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, req, &response); err != nil {
		return types.PrecheckResponse{}, err
	}
	return response, nil
}

// CreateJob registers a processing job. Rejections are surfaced as
// *types.SubmissionError carrying the server's detail message when present.
func (c *APIClient) CreateJob(ctx context.Context, req types.SubmitJobRequest) (types.SubmitJobResponse, error) {
	endpoint := routes.CreateJobURL()
	var response types.SubmitJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, endpoint, req, &response); err != nil {
		return types.SubmitJobResponse{}, asSubmissionError(err)
	}
	return response, nil
}

// ListJobs fetches one page of jobs for the given bearer-token set
func (c *APIClient) ListJobs(ctx context.Context, tokens []string, page, perPage int) (types.ListJobsResponse, error) {
	q := url.Values{}
	for _, token := range tokens {
		q.Add("tokens[]", token)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	endpoint := routes.ListJobsURL(q)
	var response types.ListJobsResponse
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return types.ListJobsResponse{}, err
	}
	return response, nil
}

// GetJob fetches a single job, authorized by its access token
func (c *APIClient) GetJob(ctx context.Context, id, accessToken string) (types.Job, error) {
	q := url.Values{}
	q.Set("token", accessToken)

	endpoint := routes.GetJobURL(id, q)
	var response types.Job
	if err := c.executeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return types.Job{}, err
	}
	return response, nil
}

// CancelJob cancels a pending job, authorized by its access token
func (c *APIClient) CancelJob(ctx context.Context, id, accessToken string) error {
	q := url.Values{}
	q.Set("token", accessToken)

	endpoint := routes.CancelJobURL(id, q)
	return c.executeRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// asSubmissionError converts a non-2xx response from the registration
// endpoint into a typed SubmissionError, preserving the server's detail
// message when the body carries one.
func asSubmissionError(err error) error {
	fiberErr, ok := err.(*fiber.Error)
	if !ok {
		return err
	}

	detail := fiberErr.Message
	var envelope types.ErrorResponse
	if jsonErr := json.Unmarshal([]byte(fiberErr.Message), &envelope); jsonErr == nil {
		if envelope.Detail != "" {
			detail = envelope.Detail
		} else if envelope.Error != "" {
			detail = envelope.Error
		}
	}

	return &types.SubmissionError{
		Status: fiberErr.Code,
		Detail: detail,
	}
}

// IsNotFound reports whether an API error is a 404
func IsNotFound(err error) bool {
	fiberErr, ok := err.(*fiber.Error)
	return ok && fiberErr.Code == http.StatusNotFound
}
