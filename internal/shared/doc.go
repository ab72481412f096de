// Package shared holds helpers used by more than one package of the condor
// finder.
//
// The testutil subpackage provides the fixtures tests share: a fixed
// fixture date, the $SPX chain the search tests run against, a scored
// candidate for export and chart tests, and a buffered slog handler for
// asserting on log output.
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    chain := testutil.SPXChain(7, 14)
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
//
// Nothing here carries business logic.
package shared
