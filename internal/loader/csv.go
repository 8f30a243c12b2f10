package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/rs/zerolog/log"
)

const (
	ProductIDColumn   = "Product Id"
	ImageColumnPrefix = "Image"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// LoadFile reads products from a CSV file. See Load.
func LoadFile(path string, limit int) ([]measurement.Product, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return nil, fmt.Errorf("%w: %q, only .csv is supported", ErrUnsupportedFormat, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return Load(f, limit)
}

// Load reads products from CSV with a "Product Id" column and any number of
// columns whose header starts with "Image". Empty image cells are skipped and
// rows without any image are dropped. limit <= 0 means no limit.
func Load(r io.Reader, limit int) ([]measurement.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idCol := -1
	var imageCols []int
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case name == ProductIDColumn:
			idCol = i
		case strings.HasPrefix(name, ImageColumnPrefix):
			imageCols = append(imageCols, i)
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing %q column", ProductIDColumn)
	}

	var products []measurement.Product
	for line := 2; limit <= 0 || len(products) < limit; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		id := cell(row, idCol)
		var urls []string
		for _, c := range imageCols {
			if u := cell(row, c); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			log.Debug().Int("line", line).Str("productId", id).Msg("skipping row without images")
			continue
		}
		products = append(products, measurement.Product{ID: id, ImageURLs: urls})
	}

	return products, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
