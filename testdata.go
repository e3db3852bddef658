package main

// Shared document fixtures for tests.

const sampleMarkdown = `# Migration Plan

Generated: 2026-08-29

## Steps

- inventory the schemas
- dry-run against staging

` + "```sql\nSELECT 1;\n```" + `
`

const sampleSnapshot = `{
  "generated_at": "2026-08-28T14:30:00Z",
  "totals": {"rows": 1842, "errors": 0}
}`

const snapshotNoDate = `{"totals": {"rows": 12}}`
