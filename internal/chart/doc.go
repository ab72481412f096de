// Package chart computes and draws the profit/loss at expiration of iron
// condor candidates. PayoffCurve is pure; Renderer writes PNG files with
// gonum/plot.
package chart
