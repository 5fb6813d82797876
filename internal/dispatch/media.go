package dispatch

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/MrEthical07/goWA/client"
)

const defaultFileName = "file"

// MediaInput is a media source as received from a caller: either raw bytes
// (an uploaded file) or a base64 payload that must come with its file name
// and mime type.
type MediaInput struct {
	Data     []byte
	Base64   string
	FileName string
	MimeType string
}

// Media builds the client media record. Raw bytes win over base64.
func (in MediaInput) Media() (client.Media, error) {
	if len(in.Data) > 0 {
		mime := strings.TrimSpace(in.MimeType)
		if mime == "" {
			mime = http.DetectContentType(in.Data)
		}
		name := strings.TrimSpace(in.FileName)
		if name == "" {
			name = defaultFileName
		}
		return client.Media{Data: in.Data, MimeType: mime, FileName: name}, nil
	}

	payload := strings.TrimSpace(in.Base64)
	if payload == "" {
		return client.Media{}, invalid("media is required: upload a file or provide a base64 payload")
	}
	if strings.TrimSpace(in.FileName) == "" || strings.TrimSpace(in.MimeType) == "" {
		return client.Media{}, invalid("file name and mime type are required with a base64 payload")
	}
	// Accept data URLs as produced by browsers.
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ";base64,"); i >= 0 {
			payload = payload[i+len(";base64,"):]
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return client.Media{}, invalid("base64 payload is malformed")
	}
	if len(data) == 0 {
		return client.Media{}, invalid("media payload is empty")
	}
	return client.Media{
		Data:     data,
		MimeType: strings.TrimSpace(in.MimeType),
		FileName: strings.TrimSpace(in.FileName),
	}, nil
}
