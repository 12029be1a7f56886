package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"sort"

	"github.com/pkg/errors"
)

// Payload is a replayable request body. The bytes are kept so the original request can be
// sent a second time after a refresh.
type Payload struct {
	data        []byte
	contentType string // set only for multipart; it carries the boundary
}

// JSONBody encodes v as the request body. The transport's default JSON content type applies.
func JSONBody(v any) (*Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "[JSONBody] encode")
	}
	return &Payload{data: data}, nil
}

// RawBody wraps pre-encoded bytes.
func RawBody(data []byte) *Payload {
	return &Payload{data: data}
}

// MultipartForm encodes fields as multipart/form-data. Fields are written in key order so
// the encoding is stable.
func MultipartForm(fields map[string]string) (*Payload, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, errors.Wrapf(err, "[MultipartForm] write field %s", k)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "[MultipartForm] close writer")
	}
	return &Payload{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

// IsMultipart reports whether the payload is a multipart form.
func (p *Payload) IsMultipart() bool {
	return p != nil && p.contentType != ""
}

// Bytes returns the encoded body.
func (p *Payload) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.data
}

func (p *Payload) reader() io.Reader {
	if p == nil {
		return nil
	}
	return bytes.NewReader(p.data)
}
