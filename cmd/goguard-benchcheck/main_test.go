package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/goGuard
BenchmarkLoginRejected-8     	 1000000	      1000 ns/op	     256 B/op	       4 allocs/op
BenchmarkLoginRejected-8     	 1000000	      1200 ns/op	     256 B/op	       4 allocs/op
BenchmarkLoginRejected-8     	 1000000	      1100 ns/op	     256 B/op	       4 allocs/op
BenchmarkLoginLockedOut-8    	 2000000	       500 ns/op	     128 B/op	       2 allocs/op
BenchmarkAllowMemoryStore-8  	 3000000	       300 ns/op	      64 B/op	       1 allocs/op
BenchmarkMetricsInc-8        	100000000	        10 ns/op
BenchmarkUntracked-8         	100000000	        99 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 1200, 1100}, samples["BenchmarkLoginRejected"]["ns/op"])
	assert.Equal(t, []float64{4, 4, 4}, samples["BenchmarkLoginRejected"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkUntracked")
	assert.Equal(t, 1100.0, median(samples["BenchmarkLoginRejected"]["ns/op"]))
}

func TestCompareFlagsRegression(t *testing.T) {
	base, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	slower := strings.Replace(baselineOutput, "       500 ns/op", "       900 ns/op", 1)
	cand, err := parseBenchmarks(strings.NewReader(slower))
	require.NoError(t, err)

	_, failures := compare(base, base, 0.3)
	assert.Empty(t, failures)

	rows, failures := compare(base, cand, 0.3)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "BenchmarkLoginLockedOut ns/op regressed by +80.00%")
	assert.NotEmpty(t, rows)
}

func TestCompareReportsMissingSamples(t *testing.T) {
	base, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	_, failures := compare(base, sampleSet{}, 0.3)
	assert.Len(t, failures, 7)
}

func TestNormalizeBenchmarkName(t *testing.T) {
	assert.Equal(t, "BenchmarkLoginRejected", normalizeBenchmarkName("BenchmarkLoginRejected-16"))
	assert.Equal(t, "BenchmarkLoginRejected", normalizeBenchmarkName("BenchmarkLoginRejected"))
	assert.Equal(t, "BenchmarkX-fast", normalizeBenchmarkName("BenchmarkX-fast"))
}
