package report

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeImage decodes a client-supplied image payload. The payload is either
// a bare base64 string or a data URL of the form
// "data:image/png;base64,iVBOR...". It returns the raw bytes and the media
// type from the header (defaulting to image/jpeg when no header is present).
func DecodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", fmt.Errorf("report: empty image payload")
	}

	contentType := "image/jpeg"
	encoded := payload

	if i := strings.IndexByte(payload, ','); i >= 0 {
		header := payload[:i]
		encoded = payload[i+1:]
		if ct := mediaTypeFromHeader(header); ct != "" {
			contentType = ct
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("report: decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("report: image payload decoded to zero bytes")
	}
	return data, contentType, nil
}

// mediaTypeFromHeader extracts the media type from a data URL header like
// "data:image/png;base64". Returns "" when the header carries none.
func mediaTypeFromHeader(header string) string {
	header = strings.TrimPrefix(header, "data:")
	if i := strings.IndexByte(header, ';'); i >= 0 {
		header = header[:i]
	}
	if strings.HasPrefix(header, "image/") {
		return header
	}
	return ""
}

// extensionFor maps a media type to a file extension for stored artifacts.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
