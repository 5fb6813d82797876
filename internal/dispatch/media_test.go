package dispatch

import (
	"errors"
	"testing"
)

func TestMediaInputRawBytes(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	m, err := MediaInput{Data: png}.Media()
	if err != nil {
		t.Fatalf("media: %v", err)
	}
	if m.MimeType != "image/png" || m.FileName != defaultFileName {
		t.Fatalf("unexpected defaults: %+v", m)
	}

	m, err = MediaInput{Data: png, FileName: "a.png", MimeType: "image/x-custom", Base64: "ignored"}.Media()
	if err != nil || m.FileName != "a.png" || m.MimeType != "image/x-custom" || string(m.Data) != string(png) {
		t.Fatalf("explicit fields must win: %+v %v", m, err)
	}
}

func TestMediaInputBase64(t *testing.T) {
	tests := []struct {
		name    string
		in      MediaInput
		want    string
		wantErr bool
	}{
		{name: "plain", in: MediaInput{Base64: "aGVsbG8=", FileName: "h.txt", MimeType: "text/plain"}, want: "hello"},
		{name: "data url", in: MediaInput{Base64: "data:text/plain;base64,aGVsbG8=", FileName: "h.txt", MimeType: "text/plain"}, want: "hello"},
		{name: "missing name", in: MediaInput{Base64: "aGVsbG8=", MimeType: "text/plain"}, wantErr: true},
		{name: "missing mime", in: MediaInput{Base64: "aGVsbG8=", FileName: "h.txt"}, wantErr: true},
		{name: "malformed", in: MediaInput{Base64: "not base64!", FileName: "h.txt", MimeType: "text/plain"}, wantErr: true},
		{name: "nothing", in: MediaInput{}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := tc.in.Media()
			if tc.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %v", err)
				}
				return
			}
			if err != nil || string(m.Data) != tc.want {
				t.Fatalf("got %q %v", m.Data, err)
			}
		})
	}
}
