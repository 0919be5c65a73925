package outline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readme = `# Rawview

Intro paragraph.

## Getting ` + "`started`" + `

- install
- configure
- run

### Options

| Key | Default |
| --- | ------- |
| addr | :8080 |
| log_level | info |

1. one
2. two
`

func TestExtractBytes(t *testing.T) {
	o := ExtractBytes([]byte(readme))

	assert.Equal(t, "Rawview", o.Title)

	require.Len(t, o.Headings, 3)
	assert.Equal(t, Heading{Level: 1, Text: "Rawview", ID: "rawview", CharStart: 0, CharEnd: o.Headings[1].CharStart}, o.Headings[0])
	assert.Equal(t, 2, o.Headings[1].Level)
	assert.Equal(t, "Getting started", o.Headings[1].Text)
	assert.Equal(t, strings.Index(readme, "## Getting"), o.Headings[1].CharStart)
	assert.Equal(t, "options", o.Headings[2].ID)
	assert.Equal(t, len(readme), o.Headings[2].CharEnd)

	require.Len(t, o.Tables, 1)
	assert.Equal(t, []string{"Key", "Default"}, o.Tables[0].Headers)
	assert.Equal(t, 2, o.Tables[0].RowCount)

	require.Len(t, o.Lists, 2)
	assert.Equal(t, List{Type: "unordered", Items: []string{"install", "configure", "run"}, ItemCount: 3}, o.Lists[0])
	assert.Equal(t, "ordered", o.Lists[1].Type)
	assert.Equal(t, 2, o.Lists[1].ItemCount)
}

func TestExtractBytes_TitleIsFirstLevelOne(t *testing.T) {
	o := ExtractBytes([]byte("## Preface\n\n# Real Title\n\n# Second\n"))
	assert.Equal(t, "Real Title", o.Title)
	assert.Len(t, o.Headings, 3)
}

func TestExtractBytes_NoTitle(t *testing.T) {
	o := ExtractBytes([]byte("just text\n"))
	assert.Empty(t, o.Title)
	assert.Empty(t, o.Headings)
}

func TestExtractBytes_ListItemLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("- item\n")
	}
	o := ExtractBytes([]byte(b.String()))
	require.Len(t, o.Lists, 1)
	assert.Len(t, o.Lists[0].Items, maxListItems)
	assert.Equal(t, 12, o.Lists[0].ItemCount)
}

func TestExtractBytes_Empty(t *testing.T) {
	o := ExtractBytes(nil)
	assert.Equal(t, &Outline{}, o)
}
