// Package github is the HTTP client for the GitHub REST API used by the
// collector and integrator stages: diff and file listing reads, review
// and issue comment writes. All calls go through the shared retry and
// error classification machinery in internal/httpx.
package github
