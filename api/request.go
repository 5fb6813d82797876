package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// flexString accepts a JSON string or number. Phone numbers arrive both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.New("expected a string or a number")
		}
		*f = flexString(n.String())
		return nil
	}
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type sendRequest struct {
	SessionID string     `json:"sessionId"`
	Phone     flexString `json:"phone"`
	Message   string     `json:"message"`
}

type sendFileRequest struct {
	SessionID  string     `json:"sessionId"`
	Phone      flexString `json:"phone"`
	Message    string     `json:"message"`
	FileBase64 string     `json:"fileBase64"`
	FileName   string     `json:"fileName"`
	MimeType   string     `json:"mimeType"`
}

type sendMultipleRequest struct {
	SessionID string       `json:"sessionId"`
	Phones    []flexString `json:"phones"`
	Message   string       `json:"message"`
}

// decodeJSON reads one JSON object from r into dst. On failure the response
// has been written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
