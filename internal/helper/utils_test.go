package helper

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)

	_, err = uuid.Parse(a)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestPrettyPrint(t *testing.T) {
	out := captureStdout(t, func() {
		PrettyPrint(map[string]int{"chunks": 3})
	})
	assert.Contains(t, out, `"chunks": 3`)
}

func TestPrettyPrintSkipsUnmarshalableValue(t *testing.T) {
	out := captureStdout(t, func() {
		PrettyPrint(make(chan int))
	})
	assert.Empty(t, strings.TrimSpace(out))
}
