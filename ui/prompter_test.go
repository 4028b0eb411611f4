package ui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ganderhq/gander/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickOne(t *testing.T) {
	var out bytes.Buffer
	p := ui.NewPrompterWith(strings.NewReader("2\n"), &out)

	index, ok, err := p.PickOne("Select a game:", []string{"Alpha", "Beta"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Contains(t, out.String(), "1) Alpha")
	assert.Contains(t, out.String(), "2) Beta")
}

func TestPickOneEmptyLineDeclines(t *testing.T) {
	p := ui.NewPrompterWith(strings.NewReader("\n"), &bytes.Buffer{})
	_, ok, err := p.PickOne("Select:", []string{"Alpha"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPickOneReasksOnGarbage(t *testing.T) {
	p := ui.NewPrompterWith(strings.NewReader("zero\n9\n1\n"), &bytes.Buffer{})
	index, ok, err := p.PickOne("Select:", []string{"Alpha", "Beta"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, index)
}

func TestPickMany(t *testing.T) {
	p := ui.NewPrompterWith(strings.NewReader("1, 3, 1\n"), &bytes.Buffer{})
	picked, err := p.PickMany("Select extras:", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, picked, "duplicates collapse, order kept")

	p = ui.NewPrompterWith(strings.NewReader("all\n"), &bytes.Buffer{})
	picked, err = p.PickMany("Select extras:", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, picked)
}

func TestConfirmDefaults(t *testing.T) {
	p := ui.NewPrompterWith(strings.NewReader("\n"), &bytes.Buffer{})
	yes, err := p.Confirm("Continue?", true)
	require.NoError(t, err)
	assert.True(t, yes)

	p = ui.NewPrompterWith(strings.NewReader("n\n"), &bytes.Buffer{})
	yes, err = p.Confirm("Continue?", true)
	require.NoError(t, err)
	assert.False(t, yes)
}
