package generation

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/uniedit/imagegen/internal/model"
)

// imagePayload is the success body returned by the provider.
type imagePayload struct {
	Image *string `json:"image"`
}

// MimeTypeFor returns the content type for an output format.
func MimeTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Decode converts a raw provider response into an artifact.
//
// A non-200 status yields a provider error. A 200 response without a valid
// base64 "image" field yields a decode error. An empty image string is a
// zero-length artifact.
func Decode(raw *model.RawProviderResponse, format string, public bool) (*model.Artifact, error) {
	if raw == nil {
		return nil, NewDecodeError("empty provider response", nil, nil)
	}
	if raw.StatusCode != http.StatusOK {
		return nil, NewProviderError(raw)
	}

	var payload imagePayload
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		return nil, NewDecodeError("malformed response body", raw, err)
	}
	if payload.Image == nil {
		return nil, NewDecodeError("response has no image field", raw, nil)
	}

	data, err := base64.StdEncoding.DecodeString(*payload.Image)
	if err != nil {
		return nil, NewDecodeError("malformed base64 image", raw, err)
	}
	if data == nil {
		data = []byte{}
	}

	return &model.Artifact{
		Data:     data,
		MimeType: MimeTypeFor(format),
		Public:   public,
	}, nil
}
