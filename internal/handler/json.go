package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeError(e *jx.Encoder, status int, msg string) {
	e.Field("code", func(e *jx.Encoder) { e.Int(status) })
	e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
}

// writeError writes {"code":status,"message":msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { encodeError(e, status, msg) })
	})
}

// internalError logs err and answers 500. A request abandoned by the client
// is only logged at debug level.
func internalError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	lg := zctx.From(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		lg.Debug("Request cancelled", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	lg.Error("Request failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeBody reads a JSON object from the request body, calling field for
// each key. Unknown keys must be skipped by field. Anything but whitespace
// after the object is rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty body")
	}
	d := jx.DecodeBytes(body)
	if err := d.Obj(field); err != nil {
		return errors.Wrap(err, "decode body")
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after object")
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
