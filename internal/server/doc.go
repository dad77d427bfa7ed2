// Package server implements the HTTP surface of Share Drop: the file
// listing page, login and logout, upload, download and delete, plus the
// health, readiness and metrics endpoints. It wires the routes to the
// files service and wraps them in the request-id, access-log, security
// header and reverse-proxy middleware.
package server
