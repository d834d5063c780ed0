package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML(t *testing.T) {
	out, err := HTML("## Sécurité\n\n- **Contrôle** annuel\n- ~~jamais~~\n\nligne un\nligne deux")
	require.NoError(t, err)
	assert.Contains(t, out, "<h2>Sécurité</h2>")
	assert.Contains(t, out, "<strong>Contrôle</strong>")
	assert.Contains(t, out, "<del>jamais</del>")
	assert.Contains(t, out, "ligne un<br>")
	assert.NotContains(t, out, "\n\n\n")
}

func TestHTML_Table(t *testing.T) {
	out, err := HTML("| Mois | Volume |\n|---|---|\n| Jan | 10 |")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>Jan</td>")
}

func TestHTML_RawHTMLOmitted(t *testing.T) {
	out, err := HTML("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestPage(t *testing.T) {
	out, err := Page("Réponse <1>", "*ok*")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Réponse &lt;1&gt;</title>")
	assert.Contains(t, out, "<em>ok</em>")
}
