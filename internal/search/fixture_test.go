package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillbase/internal/corpus"
)

func testDocs() []corpus.Document {
	return []corpus.Document{
		{
			ID:          "fastapi-guide/SKILL.md",
			Kind:        corpus.KindSkill,
			Skill:       "fastapi-guide",
			Title:       "FastAPI Guide",
			Description: "Build APIs with FastAPI",
			Body:        "# FastAPI Guide\n",
			Tags:        []string{"fastapi", "fastapi-guide", "web"},
		},
		{
			ID:          "fastapi-guide/references/routing.md",
			Kind:        corpus.KindReference,
			Skill:       "fastapi-guide",
			Title:       "Routing",
			Description: "Declare path operations with decorators.",
			Body:        "# Routing\n\nDeclare path operations with decorators.\n",
			Tags:        []string{"fastapi-guide", "path params", "routing"},
		},
		{
			ID:          "fastapi-guide/references/testing.md",
			Kind:        corpus.KindReference,
			Skill:       "fastapi-guide",
			Title:       "Testing FastAPI",
			Description: "Use TestClient with pytest.",
			Body:        "# Testing FastAPI\n\nUse TestClient with pytest fixtures.\n",
			Tags:        []string{"fastapi-guide", "pytest", "testing"},
		},
		{
			ID:          "sqlmodel-guide/SKILL.md",
			Kind:        corpus.KindSkill,
			Skill:       "sqlmodel-guide",
			Title:       "SQLModel",
			Description: "SQLModel tables and sessions",
			Body:        "# SQLModel\n\nDefine tables and open a session per request.\n",
			Tags:        []string{"database", "orm", "sqlmodel-guide"},
		},
		{
			ID:          "sqlmodel-guide/references/sessions.md",
			Kind:        corpus.KindReference,
			Skill:       "sqlmodel-guide",
			Title:       "Sessions",
			Description: "Open one session per request.",
			Body:        "# Sessions\n\nOpen one session per request with a database engine.\n",
			Tags:        []string{"database", "sessions", "sqlmodel-guide"},
		},
	}
}

func newTestRouter(t *testing.T) (*corpus.Store, *Router) {
	t.Helper()
	store, err := corpus.NewStore(testDocs())
	require.NoError(t, err)
	ix, err := NewTopicIndex(store)
	require.NoError(t, err)
	return store, NewRouter(store, ix)
}

func resultIDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}
