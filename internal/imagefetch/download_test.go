package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 139, G: 69, B: 19, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownload(t *testing.T) {
	pngData := makePNG(t, 4, 3)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/frame.jpg":
			// Mislabelled on purpose: the bytes are a PNG.
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(pngData)
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/page.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("<html><body>Not here</body></html>"))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	d := NewDownloader()

	img, err := d.Download(context.Background(), ts.URL+"/frame.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.Equal(t, pngData, img.Data)
	assert.Equal(t, ts.URL+"/frame.jpg", img.URL)

	_, err = d.Download(context.Background(), ts.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = d.Download(context.Background(), ts.URL+"/page.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAnImage))
}

func TestDownload_SizeLimit(t *testing.T) {
	pngData := makePNG(t, 64, 64)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked.png" {
			// Flushing before writing the body hides Content-Length.
			w.(http.Flusher).Flush()
		}
		w.Write(pngData)
	}))
	defer ts.Close()

	d := NewDownloader().WithMaxSize(int64(len(pngData) - 1))

	_, err := d.Download(context.Background(), ts.URL+"/frame.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image too large")

	_, err = d.Download(context.Background(), ts.URL+"/chunked.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image too large")
}

func TestDownload_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	d := NewDownloader().WithTimeout(50 * time.Millisecond)
	_, err := d.Download(context.Background(), ts.URL+"/slow.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSniff_UnregisteredImageFormat(t *testing.T) {
	// BMP signature followed by a truncated header; DecodeConfig fails but the
	// content sniffer still recognizes an image.
	data := []byte("BM\x00\x00")
	img, err := Sniff(data)
	require.NoError(t, err)
	assert.Equal(t, "image/bmp", img.MIMEType)
}
