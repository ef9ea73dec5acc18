package classifier

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwise/persona-service/internal/domain"
)

func newTestClassifier(t *testing.T, personas []domain.BuyerPersona, keywords []domain.JobKeyword) *Classifier {
	t.Helper()
	loader := &fakeLoader{}
	loader.set(personas, keywords)
	return New(NewCache(loader, slog.Default()))
}

func TestClassify(t *testing.T) {
	personas := []domain.BuyerPersona{
		{ID: 1, Name: "Executive", Priority: 1},
		{ID: 2, Name: "dc_marketing", Priority: 2},
		{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
	}
	keywords := []domain.JobKeyword{
		{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
		{ID: 11, Keyword: "Director de Marketing", KeywordNormalized: "director de marketing", BuyerPersonaID: 2},
	}

	tests := []struct {
		name        string
		title       string
		wantPersona int64
		wantDefault bool
		wantMatched []string
	}{
		{
			name:        "exact normalized match",
			title:       "Director de Marketing",
			wantPersona: 2,
			wantDefault: false,
			wantMatched: []string{"Director de Marketing"},
		},
		{
			name:        "uppercase variant matches",
			title:       "DIRECTOR DE MARKETING",
			wantPersona: 2,
			wantDefault: false,
			wantMatched: []string{"Director de Marketing"},
		},
		{
			name:        "accented variant matches",
			title:       "Diréctor de Márketing",
			wantPersona: 2,
			wantDefault: false,
			wantMatched: []string{"Director de Marketing"},
		},
		{
			name:        "substring does not match",
			title:       "Director",
			wantPersona: 9,
			wantDefault: true,
			wantMatched: []string{},
		},
		{
			name:        "superstring does not match",
			title:       "Director de Marketing Digital",
			wantPersona: 9,
			wantDefault: true,
			wantMatched: []string{},
		},
		{
			name:        "empty title falls back to default",
			title:       "",
			wantPersona: 9,
			wantDefault: true,
			wantMatched: []string{},
		},
		{
			name:        "blank title falls back to default",
			title:       "   ",
			wantPersona: 9,
			wantDefault: true,
			wantMatched: []string{},
		},
		{
			name:        "unknown title falls back to default",
			title:       "Underwater Basket Weaver",
			wantPersona: 9,
			wantDefault: true,
			wantMatched: []string{},
		},
	}

	c := newTestClassifier(t, personas, keywords)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Classify(context.Background(), tt.title)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPersona, res.PersonaID)
			assert.Equal(t, tt.wantDefault, res.IsDefault)
			assert.Equal(t, tt.wantMatched, res.MatchedKeywords)
		})
	}
}

func TestClassifyPriorityBreaksTies(t *testing.T) {
	// Two personas both register "ceo"; the lower priority number wins.
	personas := []domain.BuyerPersona{
		{ID: 2, Name: "Founder", Priority: 5},
		{ID: 1, Name: "Executive", Priority: 1},
		{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
	}
	keywords := []domain.JobKeyword{
		{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 2},
		{ID: 11, Keyword: "ceo", KeywordNormalized: "ceo", BuyerPersonaID: 1},
	}

	c := newTestClassifier(t, personas, keywords)

	res, err := c.Classify(context.Background(), "CEO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PersonaID)
	assert.Equal(t, "Executive", res.PersonaName)
	assert.Equal(t, 1, res.PriorityUsed)
}

func TestClassifyDefaultPersonaKeywordMatches(t *testing.T) {
	// Keywords may be registered under the default persona too; a hit
	// there is a real match and the explanation must say so.
	personas := []domain.BuyerPersona{
		{ID: 1, Name: "Executive", Priority: 1},
		{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
	}
	keywords := []domain.JobKeyword{
		{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
		{ID: 13, Keyword: "Intern", KeywordNormalized: "intern", BuyerPersonaID: 9},
	}

	c := newTestClassifier(t, personas, keywords)

	res, err := c.Classify(context.Background(), "Intern")
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.PersonaID)
	assert.True(t, res.IsDefault)
	assert.Equal(t, []string{"Intern"}, res.MatchedKeywords)
	assert.Equal(t, 100, res.PriorityUsed)
}

func TestClassifyEndToEndScenario(t *testing.T) {
	// Keyword "director de marketing" -> persona dc_marketing (priority 2);
	// contact title "Director de Marketing" classifies to it.
	personas := []domain.BuyerPersona{
		{ID: 2, Name: "dc_marketing", Priority: 2},
		{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
	}
	keywords := []domain.JobKeyword{
		{ID: 11, Keyword: "director de marketing", KeywordNormalized: "director de marketing", BuyerPersonaID: 2},
	}

	c := newTestClassifier(t, personas, keywords)

	res, err := c.Classify(context.Background(), "Director de Marketing")
	require.NoError(t, err)

	assert.Equal(t, "dc_marketing", res.PersonaName)
	assert.Equal(t, []string{"director de marketing"}, res.MatchedKeywords)
	assert.Equal(t, 2, res.PriorityUsed)
	assert.Equal(t, "director de marketing", res.NormalizedTitle)
	assert.False(t, res.IsDefault)
}

func TestPersonaID(t *testing.T) {
	personas := []domain.BuyerPersona{
		{ID: 1, Name: "Executive", Priority: 1},
		{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
	}
	keywords := []domain.JobKeyword{
		{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
	}

	c := newTestClassifier(t, personas, keywords)

	id, err := c.PersonaID(context.Background(), "CEO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = c.PersonaID(context.Background(), "nobody knows")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}

func TestClassifyReflectsInvalidation(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(
		[]domain.BuyerPersona{
			{ID: 1, Name: "Executive", Priority: 1},
			{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
		},
		[]domain.JobKeyword{
			{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
		},
	)
	cache := NewCache(loader, slog.Default())
	c := New(cache)

	res, err := c.Classify(context.Background(), "Head of Growth")
	require.NoError(t, err)
	assert.True(t, res.IsDefault)

	loader.set(
		[]domain.BuyerPersona{
			{ID: 1, Name: "Executive", Priority: 1},
			{ID: 9, Name: "Other", Priority: 100, IsDefault: true},
		},
		[]domain.JobKeyword{
			{ID: 10, Keyword: "CEO", KeywordNormalized: "ceo", BuyerPersonaID: 1},
			{ID: 12, Keyword: "Head of Growth", KeywordNormalized: "head of growth", BuyerPersonaID: 1},
		},
	)
	cache.Invalidate()

	res, err = c.Classify(context.Background(), "Head of Growth")
	require.NoError(t, err)
	assert.False(t, res.IsDefault)
	assert.Equal(t, int64(1), res.PersonaID)
}
