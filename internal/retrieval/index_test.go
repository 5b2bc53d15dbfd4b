package retrieval

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nephro-assistant/pkg"
)

const samplePassages = `
{"source": "nephrology.pdf", "page": 12, "chunk_index": 3, "text": "Potassium restriction is advised for patients with advanced chronic kidney disease."}
{"source": "nephrology.pdf", "page": 40, "chunk_index": 1, "text": "Loop diuretics such as furosemide may lower serum potassium."}

{"source": "nephrology.pdf", "page": 77, "chunk_index": 0, "text": "Nephrotic syndrome presents with proteinuria, edema and hypoalbuminemia."}
`

func loadSample(t *testing.T) []pkg.Passage {
	t.Helper()
	passages, err := LoadPassages(strings.NewReader(samplePassages))
	require.NoError(t, err)
	return passages
}

func TestLoadPassages(t *testing.T) {
	passages := loadSample(t)
	require.Len(t, passages, 3)
	assert.Equal(t, 40, passages[1].Page)
	assert.Equal(t, 1, passages[1].ChunkIndex)
	assert.Equal(t, "nephrology.pdf", passages[1].Source)
}

func TestLoadPassages_Errors(t *testing.T) {
	_, err := LoadPassages(strings.NewReader(`{"page": 1, "text": ""}`))
	assert.ErrorContains(t, err, "line 1")

	_, err = LoadPassages(strings.NewReader("\n{oops"))
	assert.ErrorContains(t, err, "line 2")
}

func TestIndex_SearchInMemory(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, loadSample(t)))
	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	hits, err := idx.Search(ctx, "nephrotic syndrome edema", 6)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 77, hits[0].Page)
	assert.Equal(t, 0, hits[0].ChunkIndex)
	assert.Contains(t, hits[0].Text, "proteinuria")
	assert.Equal(t, "nephrology.pdf/77/0", hits[0].ID)

	hits, err = idx.Search(ctx, "potassium", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_SearchMissAndEmpty(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()

	hits, err := idx.Search(ctx, "potassium", 6)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, loadSample(t)))
	hits, err = idx.Search(ctx, "zebra", 6)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "   ", 6)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.bleve")
	ctx := context.Background()

	idx, err := OpenOrCreate(path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, loadSample(t)))
	require.NoError(t, idx.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	hits, err := reopened.Search(ctx, "furosemide", 6)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 40, hits[0].Page)
}
