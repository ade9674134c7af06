package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_NoCaseCountsNoStackedCases(t *testing.T) {
	raw := payload([]string{testLoc}, []string{"A"}, []string{testDay1},
		median(testLoc, "A", testDay1, SiteFreq, 0.6),
	)

	out, err := Transform(raw, nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, out.StackedCases)

	// An empty, non-nil case set still produces the series shape.
	out, err = Transform(raw, []CaseCount{}, Options{})
	require.NoError(t, err)
	require.NotNil(t, out.StackedCases)
	assert.Empty(t, out.StackedCases[testLoc]["A"])
}

func TestPartitionCases_TruncatesEachShare(t *testing.T) {
	raw := payload([]string{testLoc}, []string{"A", "B", "C"}, []string{testDay1, testDay2},
		median(testLoc, "A", testDay1, SiteFreq, 0.333),
		median(testLoc, "B", testDay1, SiteFreq, 0.333),
		median(testLoc, "C", testDay1, SiteFreq, 0.334),
		median(testLoc, "A", testDay2, SiteFreq, 0.5),
		median(testLoc, "C", testDay2, SiteFreq, 0.5),
	)
	cases := []CaseCount{
		{Location: testLoc, Date: testDay1, Cases: 10},
		{Location: testLoc, Date: testDay2, Cases: 7},
	}

	out, err := Transform(raw, cases, Options{})
	require.NoError(t, err)

	stacked := out.StackedCases[testLoc]
	assert.Equal(t, []StackPoint{
		{Date: testDay1, Variant: "A", Base: 0, Top: 3},
		{Date: testDay2, Variant: "A", Base: 0, Top: 3},
	}, stacked["A"])
	// B has no frequency on day 2 and does not advance the running total.
	assert.Equal(t, []StackPoint{{Date: testDay1, Variant: "B", Base: 3, Top: 6}}, stacked["B"])
	assert.Equal(t, []StackPoint{
		{Date: testDay1, Variant: "C", Base: 6, Top: 9},
		{Date: testDay2, Variant: "C", Base: 3, Top: 6},
	}, stacked["C"])
}

func TestPartitionCases_SkipsDatesWithoutCounts(t *testing.T) {
	raw := payload([]string{testLoc, "Japan"}, []string{"A"}, []string{testDay1, testDay2},
		median(testLoc, "A", testDay1, SiteFreq, 1),
		median(testLoc, "A", testDay2, SiteFreq, 1),
		median("Japan", "A", testDay1, SiteFreq, 1),
	)
	cases := []CaseCount{{Location: testLoc, Date: testDay2, Cases: 42}}

	out, err := Transform(raw, cases, Options{})
	require.NoError(t, err)
	assert.Equal(t, []StackPoint{{Date: testDay2, Variant: "A", Base: 0, Top: 42}}, out.StackedCases[testLoc]["A"])
	assert.Empty(t, out.StackedCases["Japan"]["A"])
}

func TestTransform_MissingCaseCountKeepsFreqAndRt(t *testing.T) {
	variants := []string{"A", "B", "other"}
	var records []RawRecord
	for _, day := range []string{testDay1, testDay2} {
		records = append(records,
			median(testLoc, "A", day, SiteFreq, 0.5),
			median(testLoc, "B", day, SiteFreq, 0.3),
			median(testLoc, "other", day, SiteFreq, 0.2),
			median(testLoc, "A", day, SiteR, 1.1),
			median(testLoc, "B", day, SiteR, 0.9),
			median(testLoc, "other", day, SiteR, 1.0),
		)
	}
	raw := payload([]string{testLoc}, variants, []string{testDay1, testDay2}, records...)
	// Only day 2 has an observed total.
	cases := []CaseCount{{Location: testLoc, Date: testDay2, Cases: 100}}

	out, err := Transform(raw, cases, Options{})
	require.NoError(t, err)

	for _, v := range variants {
		for _, sp := range out.StackedCases[testLoc][v] {
			assert.NotEqual(t, testDay1, sp.Date, "variant %s stacked on a date without cases", v)
		}
		require.Len(t, out.StackedCases[testLoc][v], 1, v)
		assert.Equal(t, testDay2, out.StackedCases[testLoc][v][0].Date)

		day1 := out.Points[testLoc][v][0]
		assert.Equal(t, testDay1, day1.Date)
		assert.True(t, day1.Freq.OK, "freq of %s on %s", v, testDay1)
		assert.True(t, day1.RT.OK, "r_t of %s on %s", v, testDay1)
	}
	assert.Equal(t, SomeFloat(0.5), out.Points[testLoc]["A"][0].Freq)
	assert.Equal(t, SomeFloat(0.9), out.Points[testLoc]["B"][0].RT)
}

func TestPartitionCases_UsesCensoredFrequencies(t *testing.T) {
	raw := payload([]string{testLoc}, []string{"A", "B"}, []string{testDay1},
		median(testLoc, "A", testDay1, SiteFreq, 0.004),
		median(testLoc, "B", testDay1, SiteFreq, 0.5),
	)
	out, err := Transform(raw, []CaseCount{{Location: testLoc, Date: testDay1, Cases: 1000}}, Options{})
	require.NoError(t, err)

	assert.Empty(t, out.StackedCases[testLoc]["A"])
	assert.Equal(t, []StackPoint{{Date: testDay1, Variant: "B", Base: 0, Top: 500}}, out.StackedCases[testLoc]["B"])
}

func TestIndexCaseCounts_SumsRepeatedRows(t *testing.T) {
	idx := IndexCaseCounts([]CaseCount{
		{Location: testLoc, Date: testDay1, Cases: 5},
		{Location: testLoc, Date: testDay1, Cases: 7},
		{Location: "Japan", Date: testDay1, Cases: 1},
	})
	assert.Equal(t, CaseIndex{
		testLoc: {testDay1: 12},
		"Japan": {testDay1: 1},
	}, idx)
}
