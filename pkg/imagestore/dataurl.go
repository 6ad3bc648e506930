// Package imagestore decodes rendered images and saves them to disk or to an
// S3-compatible bucket.
package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDataURL is returned for strings that are not data URLs.
var ErrInvalidDataURL = errors.New("invalid data url")

// DataURL is a decoded "data:" URL.
type DataURL struct {
	MediaType string
	Data      []byte
}

// DecodeDataURL parses s as an RFC 2397 data URL. Both base64 and
// percent-encoded payloads are accepted; the media type defaults to
// text/plain as in the RFC.
func DecodeDataURL(s string) (*DataURL, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
	}

	isBase64 := false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		meta = m
		isBase64 = true
	}

	mediaType := meta
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding.
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
			}
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
		data = []byte(unescaped)
	}

	return &DataURL{MediaType: strings.ToLower(mediaType), Data: data}, nil
}

// Extension returns the file extension for the media type, ".bin" if unknown.
func (d *DataURL) Extension() string {
	switch d.MediaType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
