// Package exporter writes ranked iron condor candidates as flat tables.
//
// Every candidate becomes one ResultRow with a column per candidate field.
// Dollar amounts are rounded to the cent with shopspring/decimal. An
// unbounded risk/reward renders as "inf" in CSV and spreadsheets and as
// null in JSON.
//
// Supported formats:
//
//	csv     UTF-8, optional BOM for Excel, marshalled with gocsv
//	xlsx    single "Condors" sheet written with excelize
//	json    indented Document envelope
//	sheets  rows appended to a Google spreadsheet
//
// Files are named ic_opportunities_{symbol}_{YYYYMMDD_HHMMSS}.{ext} and land
// in the configured export directory:
//
//	exp := exporter.NewExporter(paths, cfg.Export, nil, logger)
//	written, err := exp.ExportAll(ctx, result, cfg.Export.Formats)
package exporter
