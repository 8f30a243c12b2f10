package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultDownloadTimeout is the default timeout for image downloads
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// ErrNotAnImage is returned when the downloaded bytes do not decode as any
// supported image format.
var ErrNotAnImage = errors.New("downloaded content is not an image")

// Image is a downloaded image with its sniffed MIME type and pixel size.
type Image struct {
	URL      string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Downloader fetches image bytes for the vision provider.
type Downloader struct {
	client  *resty.Client
	timeout time.Duration
	maxSize int64
}

// NewDownloader creates a new Downloader with default settings.
func NewDownloader() *Downloader {
	return &Downloader{
		client:  resty.New().SetHeader("Accept", "image/*"),
		timeout: DefaultDownloadTimeout,
		maxSize: DefaultMaxImageSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (d *Downloader) WithTimeout(timeout time.Duration) *Downloader {
	d.timeout = timeout
	return d
}

// WithMaxSize sets a custom maximum file size.
func (d *Downloader) WithMaxSize(maxSize int64) *Downloader {
	d.maxSize = maxSize
	return d
}

// Download fetches an image and determines its real format from the bytes.
// It respects context cancellation and enforces size limits.
func (d *Downloader) Download(ctx context.Context, imageURL string) (*Image, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.R().
		SetContext(reqCtx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode())
	}

	if resp.RawResponse != nil && resp.RawResponse.ContentLength > d.maxSize {
		return nil, fmt.Errorf("image too large: %d bytes exceeds limit of %d bytes", resp.RawResponse.ContentLength, d.maxSize)
	}

	// LimitReader enforces the limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("image too large: exceeds limit of %d bytes", d.maxSize)
	}

	img, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	img.URL = imageURL

	log.Debug().
		Str("url", imageURL).
		Str("mimeType", img.MIMEType).
		Int("bytes", len(data)).
		Int("width", img.Width).
		Int("height", img.Height).
		Msg("image downloaded")

	return img, nil
}

// Sniff decodes the image header to find the actual format, ignoring what
// the server claimed.
func Sniff(data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Formats without a registered decoder (avif, heic) still reach the
		// provider when the signature says image.
		if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
			return &Image{Data: data, MIMEType: detected}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return &Image{
		Data:     data,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
