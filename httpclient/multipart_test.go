package httpclient

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

func TestMultipartBody_Encode(t *testing.T) {
	body := &MultipartBody{
		Fields: map[string]string{"language": "es", "model": "small"},
		Files: []FileField{{
			FieldName:   "audio",
			FileName:    "answer.wav",
			ContentType: "audio/wav",
			Data:        []byte("RIFFdata"),
		}},
	}

	r, ct, err := body.encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("bad content type: %s", ct)
	}

	mr := multipart.NewReader(r, params["boundary"])
	form, err := mr.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	if got := form.Value["language"]; len(got) != 1 || got[0] != "es" {
		t.Errorf("language field: %v", got)
	}
	files := form.File["audio"]
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Filename != "answer.wav" {
		t.Errorf("filename: %s", files[0].Filename)
	}
	if got := files[0].Header.Get("Content-Type"); got != "audio/wav" {
		t.Errorf("part content type: %s", got)
	}
	f, _ := files[0].Open()
	data, _ := io.ReadAll(f)
	f.Close()
	if !bytes.Equal(data, []byte("RIFFdata")) {
		t.Errorf("file data: %q", data)
	}
}

func TestMultipartBody_ReaderFile(t *testing.T) {
	body := &MultipartBody{
		Files: []FileField{{
			FieldName: "audio",
			FileName:  "raw.bin",
			Reader:    strings.NewReader("streamed"),
		}},
	}

	r, ct, err := body.encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, params, _ := mime.ParseMediaType(ct)
	mr := multipart.NewReader(r, params["boundary"])
	form, err := mr.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	f, _ := form.File["audio"][0].Open()
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "streamed" {
		t.Errorf("file data: %q", data)
	}
}

func TestEscapeQuotes(t *testing.T) {
	if got := escapeQuotes(`he said "hi"\`); got != `he said \"hi\"\\` {
		t.Errorf("escapeQuotes: %q", got)
	}
}
