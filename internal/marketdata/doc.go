// Package marketdata supplies normalized option chains to the condor
// engine. Providers implement Source; Normalize resolves missing Greeks,
// volume and put delta sign once at this boundary so the engine only ever
// sees fixed-shape legs.
//
// Available providers:
//
//	mock     deterministic synthetic chain around a 5300 spot
//	file     broker-style JSON snapshot (callExpDateMap / putExpDateMap)
//	csv      one contract per row, decoded with gocsv
//	tradier  Tradier REST API with rate limiting and retries
//
// FallbackSource tries providers in order and CachedSource keeps chains for
// a short TTL. NewSource assembles both from config.SourceConfig.
package marketdata
