// Package http implements the HTTP handlers of the condor finder API.
// Handlers stay thin: they parse and validate requests, call the service
// layer and format responses.
//
// # Routes
//
//	GET  /api/v1/condors/search   search with query parameters
//	POST /api/v1/condors/search   search with a JSON body
//	GET  /api/v1/condors/latest   last result for a symbol
//	GET  /api/v1/condors/export   search and download csv, xlsx or json
//	GET  /api/v1/charts/{name}    payoff chart PNG
//	GET  /api/health              liveness summary
//	GET  /api/health/ready        readiness of market data and export
//	GET  /api/health/live         runtime statistics
//	GET  /api/version             build information
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "invalid search parameters: max_delta: must be greater than 0",
//	    "instance": "/api/v1/condors/search",
//	    "error_code": "VALIDATION",
//	    "errors": [{"field": "max_delta", "message": "must be greater than 0"}],
//	    "trace_id": "..."
//	}
package http
