package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsCSV = `Product Id,Name,Image 1,Image 2,Image 3
1001,Round,https://cdn.example.com/1001/a.jpg,https://cdn.example.com/1001/b.jpg,
1002,No images,,,
1003,Aviator, https://cdn.example.com/1003/a.jpg ,,https://cdn.example.com/1003/c.jpg
1004,Short row,https://cdn.example.com/1004/a.jpg
`

func TestLoad(t *testing.T) {
	products, err := Load(strings.NewReader(productsCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, []measurement.Product{
		{ID: "1001", ImageURLs: []string{"https://cdn.example.com/1001/a.jpg", "https://cdn.example.com/1001/b.jpg"}},
		{ID: "1003", ImageURLs: []string{"https://cdn.example.com/1003/a.jpg", "https://cdn.example.com/1003/c.jpg"}},
		{ID: "1004", ImageURLs: []string{"https://cdn.example.com/1004/a.jpg"}},
	}, products)
}

func TestLoad_Limit(t *testing.T) {
	products, err := Load(strings.NewReader(productsCSV), 2)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "1003", products[1].ID)
}

func TestLoad_ByteOrderMark(t *testing.T) {
	products, err := Load(strings.NewReader("\ufeffProduct Id,Image\nX,https://cdn.example.com/x.jpg\n"), 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "X", products[0].ID)
}

func TestLoad_MissingIDColumn(t *testing.T) {
	_, err := Load(strings.NewReader("Id,Image 1\n1,https://cdn.example.com/a.jpg\n"), 0)
	assert.ErrorContains(t, err, `missing "Product Id" column`)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(strings.NewReader(""), 0)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(productsCSV), 0o644))

	products, err := LoadFile(path, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "1001", products[0].ID)

	_, err = LoadFile(filepath.Join(dir, "products.xlsx"), 0)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
