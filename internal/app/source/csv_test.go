package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSVPreservesOrderAndContext(t *testing.T) {
	input := `email,first_name,company,unsubscribe_url
ada@x.com,Ada,Initech,https://example.com/u/1
bob@x.com,Bob,Globex,
carol@x.com,Carol,Hooli,https://example.com/u/3
`
	recipients, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recipients, 3)

	assert.Equal(t, "ada@x.com", recipients[0].Email())
	assert.Equal(t, "bob@x.com", recipients[1].Email())
	assert.Equal(t, "carol@x.com", recipients[2].Email())

	assert.Equal(t, "Initech", recipients[0]["company"])
	assert.Equal(t, "https://example.com/u/1", recipients[0].UnsubscribeURL())
	assert.Empty(t, recipients[1].UnsubscribeURL())
}

func TestLoadCSVRequiresEmailColumn(t *testing.T) {
	input := "first_name,company\nAda,Initech\n"

	_, err := LoadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"email"`)
}

func TestLoadCSVRequiresFirstNameColumn(t *testing.T) {
	input := "email,company\nada@x.com,Initech\n"

	_, err := LoadCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"first_name"`)
}

func TestLoadCSVEmptyFile(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	recipients, err := LoadCSV(strings.NewReader("email,first_name\n"))
	require.NoError(t, err)
	assert.Empty(t, recipients)
}
