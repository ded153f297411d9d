package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullText_SubstringCaseInsensitive(t *testing.T) {
	m, err := New("Invoice", ModeFullText)
	require.NoError(t, err)

	assert.True(t, m.Match("Paid INVOICE #42"))
	assert.True(t, m.Match("reinvoiced"))
	assert.False(t, m.Match("receipt #42"))
}

func TestFullText_EmptyQueryMatchesEverything(t *testing.T) {
	m, err := New("   ", ModeFullText)
	require.NoError(t, err)

	assert.True(t, m.Match("anything"))
	assert.True(t, m.Match(""))
}

func TestFuzzy_AllTermsMustOccur(t *testing.T) {
	m, err := New("quarterly numbers", ModeFuzzy)
	require.NoError(t, err)

	assert.True(t, m.Match("the quarterly report shows numbers"))
	assert.True(t, m.Match("NUMBERS from the Quarterly review"))
	assert.False(t, m.Match("the quarterly report"))
	assert.False(t, m.Match("numbers only"))
}

func TestFuzzy_TermsMatchInAnyOrder(t *testing.T) {
	m, err := New("report annual", ModeFuzzy)
	require.NoError(t, err)

	assert.True(t, m.Match("annual report 2026"))
	assert.True(t, m.Match("report for the annual meeting"))
}

func TestFuzzy_StopwordsIgnored(t *testing.T) {
	m, err := New("the report of the year", ModeFuzzy)
	require.NoError(t, err)

	// Only "report" and "year" carry meaning.
	assert.True(t, m.Match("year-end report"))
	assert.False(t, m.Match("the best of the decade"))
}

func TestFuzzy_AllStopwordQueryStillMeansSomething(t *testing.T) {
	m, err := New("the of", ModeFuzzy)
	require.NoError(t, err)

	assert.True(t, m.Match("the best of times"))
	assert.False(t, m.Match("best times"))
}

func TestFuzzy_RepeatedTermCountsOnce(t *testing.T) {
	m, err := New("report report numbers", ModeFuzzy)
	require.NoError(t, err)

	assert.True(t, m.Match("report with numbers"))
}

func TestFuzzy_PunctuationSplitsTerms(t *testing.T) {
	m, err := New("follow-up, email!", ModeFuzzy)
	require.NoError(t, err)

	assert.True(t, m.Match("send a follow up email"))
}

func TestNew_UnknownModeFails(t *testing.T) {
	_, err := New("x", Mode("regex"))
	assert.Error(t, err)
}
