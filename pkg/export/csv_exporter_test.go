package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"Name", "City"},
		Rows: []map[string]string{
			{"Name": "Aziz Karimov", "City": "Ташкент"},
			{"Name": "Nodira"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	body := string(out)
	require.True(t, strings.HasPrefix(body, "\uFEFF"))
	lines := strings.Split(strings.TrimRight(strings.TrimPrefix(body, "\uFEFF"), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,City", lines[0])
	assert.Equal(t, "Aziz Karimov,Ташкент", lines[1])
	assert.Equal(t, "Nodira,", lines[2])
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
