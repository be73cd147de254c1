package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fastapiSkill = `---
name: fastapi-guide
description: Build FastAPI services step by step
tags: [fastapi, web, python]
---

# FastAPI Guide

Teach users how to build APIs with FastAPI.

## Reference files

| Topic | File | Covers |
|-------|------|--------|
| Routing | [routing.md](references/routing.md) | path params, query params |
| Testing | [testing.md](./references/testing.md#setup) | pytest, TestClient |

## Assets

- [Hello world](assets/hello-world/main.py) - minimal app
- [Docs](https://fastapi.tiangolo.com) - upstream documentation
- [Escape](../other/SKILL.md) - outside the skill
`

const routingRef = `# Routing

Declare path operations with decorators.
`

const testingRef = `---
keywords: fixtures, coverage
---
# Testing FastAPI

Use TestClient with pytest.
`

const sqlmodelSkill = `---
name: sqlmodel-guide
description: SQLModel tables and sessions
keywords: database, orm
---

# SQLModel

- [Sessions](references/sessions.md): session lifecycle; dependency injection
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// writeCorpus lays out a small two-skill corpus and returns its root.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "fastapi-guide/SKILL.md", fastapiSkill)
	writeFile(t, root, "fastapi-guide/references/routing.md", routingRef)
	writeFile(t, root, "fastapi-guide/references/testing.md", testingRef)
	writeFile(t, root, "fastapi-guide/references/notes.txt", "not markdown")
	writeFile(t, root, "fastapi-guide/assets/hello-world/main.py", "from fastapi import FastAPI\n\napp = FastAPI()\n")
	writeFile(t, root, "fastapi-guide/assets/logo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	writeFile(t, root, "fastapi-guide/assets/cache/__pycache__/main.cpython-312.pyc", "\x00\x01")
	writeFile(t, root, "sqlmodel-guide/SKILL.md", sqlmodelSkill)
	writeFile(t, root, "sqlmodel-guide/references/sessions.md", "# Sessions\n\nOpen one session per request.\n")
	writeFile(t, root, "not-a-skill/README.md", "# nothing here\n")
	return root
}
