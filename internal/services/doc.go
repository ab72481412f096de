// Package services implements the application layer of the condor finder.
// It sits between the transports (HTTP handlers, the CLI, the scheduler)
// and the engine, so search orchestration lives in one place.
//
// # Search flow
//
// SearchService.Search runs one request end to end:
//
//	1. Attach a trace ID to the context
//	2. Validate the merged parameters before any fetch
//	3. Fetch the option chain from the configured market data source
//	4. Run the engine, retrying once with a relaxed delta limit when empty
//	5. Render charts and export files when configured
//	6. Broadcast the outcome to websocket clients and publish it to NATS
//
// Validation failures are *errors.AppError of type VALIDATION and data
// source failures are of type UPSTREAM. Rendering, export and publication
// failures are logged and never fail the search.
//
// # Available Services
//
//	- SearchService: search orchestration
//	- Scheduler: periodic searches over a watchlist
//	- NATSPublisher: result publication
//	- HealthService: health, readiness and version reporting
//
// # Testing
//
// Services are tested by mocking their collaborators with testify:
//
//	source := new(mockSource)
//	source.On("Chain", mock.Anything, "$SPX", 0, 7).Return(chain, nil)
//	svc := NewSearchService(source, condor.NewFinder(1, logger), logger)
package services
