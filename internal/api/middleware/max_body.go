package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/formbricks/feedback-insights/internal/api/response"
)

// DefaultMaxBodyBytes bounds create requests: a 20k-character body plus title and source.
const DefaultMaxBodyBytes int64 = 256 << 10

// RequestBodyTooLargeRecorder counts requests rejected for exceeding the body limit.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// MaxBody limits request bodies of POST/PUT/PATCH to maxBytes and answers 413 when a handler
// read past the limit, whatever the handler itself tried to write. recorder may be nil.
// maxBytes <= 0 disables the limit.
func MaxBody(maxBytes int64, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mayHaveBody(r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, maxBytes)}
			r.Body = body

			buf := &bufferedResponse{header: w.Header()}
			next.ServeHTTP(buf, r)

			if body.exceeded {
				if recorder != nil {
					recorder.RecordRequestBodyTooLarge(r.Context())
				}

				response.RespondError(w, http.StatusRequestEntityTooLarge,
					"Request Entity Too Large", "request body exceeds maximum allowed size")

				return
			}

			buf.writeTo(w)
		})
	}
}

func mayHaveBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// limitedBody remembers whether the reader hit the size limit.
type limitedBody struct {
	io.ReadCloser

	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		b.exceeded = true
	}

	return n, err //nolint:wrapcheck // io.EOF must stay unwrapped for decoders
}

// bufferedResponse holds the handler's response until the body limit outcome is known.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}

	return b.body.Write(p) //nolint:wrapcheck // bytes.Buffer never fails
}

func (b *bufferedResponse) writeTo(w http.ResponseWriter) {
	if b.status != 0 {
		w.WriteHeader(b.status)
	}

	_, _ = b.body.WriteTo(w)
}
