package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, templates []Template, featured []string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	featuredPath := filepath.Join(dir, "featured.json")

	data, err := json.Marshal(templates)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(catalogPath, data, 0o644))

	fdata, err := json.Marshal(featured)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(featuredPath, fdata, 0o644))

	return catalogPath, featuredPath
}

func sampleTemplates() []Template {
	return []Template{
		{
			ID: "chat-rag", Title: "Chat with your data", Description: "RAG chat over Azure AI Search",
			Task: "Guided Search", Languages: []string{"Python"}, Models: []string{"GPT-4"},
			Databases: []string{"Azure AI Search"}, Collection: "Microsoft",
			GitHubURL: "https://github.com/example/chat-rag",
			StarCount: 500, ForkCount: 90, CreatedAt: "2024-03-01",
		},
		{
			ID: "agent-openai", Title: "Agent starter", Description: "Multi-agent orchestration starter",
			Task: "Agent", Languages: []string{"Python", "TypeScript"}, Models: []string{"GPT-4 Turbo"},
			Collection: "Microsoft", GitHubURL: "https://github.com/example/agent-openai",
			StarCount: 1200, ForkCount: 40, CreatedAt: "2024-06-15",
		},
		{
			ID: "summarizer", Title: "Document summarizer", Description: "Summarize long documents",
			Task: "Completions", Languages: []string{".NET/C#"}, Collection: "Auquan",
			GitHubURL: "https://github.com/example/summarizer",
			StarCount: 80, ForkCount: 200, CreatedAt: "2023-11-20",
		},
	}
}

func TestLoadOverlaysFeatured(t *testing.T) {
	cp, fp := writeCatalog(t, sampleTemplates(), []string{"https://github.com/example/chat-rag"})
	s, err := Load(cp, fp)
	require.NoError(t, err)

	assert.Len(t, s.All(), 3)
	featured := s.Featured()
	require.Len(t, featured, 1)
	assert.Equal(t, "chat-rag", featured[0].ID)
}

func TestLoadMissingCatalogIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope2.json"))
	require.NoError(t, err)
	assert.Empty(t, s.All())
}

func TestFilterDimensions(t *testing.T) {
	cp, fp := writeCatalog(t, sampleTemplates(), nil)
	s, err := Load(cp, fp)
	require.NoError(t, err)

	got := s.Filter(Query{Language: "Python"})
	assert.Len(t, got, 2)

	got = s.Filter(Query{Search: "SUMMARIZE"})
	require.Len(t, got, 1)
	assert.Equal(t, "summarizer", got[0].ID)

	got = s.Filter(Query{Collection: "Microsoft", Task: "Agent"})
	require.Len(t, got, 1)
	assert.Equal(t, "agent-openai", got[0].ID)

	got = s.Filter(Query{Database: "Azure AI Search"})
	require.Len(t, got, 1)
	assert.Equal(t, "chat-rag", got[0].ID)
}

func TestFilterSortOrders(t *testing.T) {
	cp, fp := writeCatalog(t, sampleTemplates(), nil)
	s, err := Load(cp, fp)
	require.NoError(t, err)

	byStars := s.Filter(Query{Sort: SortMostPopular})
	assert.Equal(t, "agent-openai", byStars[0].ID)

	byForks := s.Filter(Query{Sort: SortMostForked})
	assert.Equal(t, "summarizer", byForks[0].ID)

	byDate := s.Filter(Query{Sort: SortMostRecent})
	assert.Equal(t, "agent-openai", byDate[0].ID)
}

func TestOptions(t *testing.T) {
	cp, fp := writeCatalog(t, sampleTemplates(), nil)
	s, err := Load(cp, fp)
	require.NoError(t, err)

	opts := s.Options()
	assert.Equal(t, []string{"Agent", "Completions", "Guided Search"}, opts.Tasks)
	assert.Equal(t, []string{".NET/C#", "Python", "TypeScript"}, opts.Languages)
	assert.Contains(t, opts.Collections, "Auquan")
}

func TestPatternLookup(t *testing.T) {
	assert.Len(t, Patterns(), 5)

	p, ok := PatternByID("routing")
	require.True(t, ok)
	assert.Equal(t, "Request Routing", p.Type)
	assert.NotEmpty(t, p.DefaultScenario)

	_, ok = PatternByID("unknown")
	assert.False(t, ok)
}
