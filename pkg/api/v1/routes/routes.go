// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
)

/*

To keep this file organized, routes should be kept in the following order:

1. Smallest scope first (upload routes before job routes).
2. For similar scopes, GET, POST, PUT, DELETE order.
3. Param routes (/:id) go last within a scope.
4. Naming matches the action (GetJob, CancelJob).

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route paths, relative to APIv1Prefix
const (
	// Health check
	healthCheckPath = "/health"

	// Upload routes
	signedURLPath = "/upload/signed-url"

	// Job routes
	jobsPath        = "/jobs"
	jobPrecheckPath = "/jobs/precheck"
	jobByIDPath     = "/jobs/:id"
)

// buildURL resolves a relative route path into a full endpoint path,
// substituting :params and appending query parameters.
func buildURL(path string, params map[string]string, queryParams url.Values) string {
	route := APIv1Prefix + path

	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, url.PathEscape(value))
	}

	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return buildURL(healthCheckPath, nil, nil)
}

// SignedURLURL returns the URL for requesting an upload target
func SignedURLURL() string {
	return buildURL(signedURLPath, nil, nil)
}

// CreateJobURL returns the URL for registering a job
func CreateJobURL() string {
	return buildURL(jobsPath, nil, nil)
}

// PrecheckJobURL returns the URL for the content-hash dedup precheck
func PrecheckJobURL() string {
	return buildURL(jobPrecheckPath, nil, nil)
}

// ListJobsURL returns the URL for listing jobs with query parameters
func ListJobsURL(queryParams url.Values) string {
	return buildURL(jobsPath, nil, queryParams)
}

// GetJobURL returns the URL for fetching a single job by ID
func GetJobURL(id string, queryParams url.Values) string {
	return buildURL(jobByIDPath, map[string]string{"id": id}, queryParams)
}

// CancelJobURL returns the URL for cancelling a job by ID
func CancelJobURL(id string, queryParams url.Values) string {
	return buildURL(jobByIDPath, map[string]string{"id": id}, queryParams)
}
