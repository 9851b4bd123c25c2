package api

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const maxSessionNameBytes = 1024

var errNoFile = errors.New("no file uploaded")

type uploadedFile struct {
	path     string
	origName string
}

// upload accepts a multipart form with a "file" part and an optional
// "sessionName" field. The file is spooled to upload_dir first, so the
// fields may arrive in any order. The spool file is removed before the
// response is written, on every path.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data", err.Error())
		return
	}

	var (
		file        *uploadedFile
		sessionName string
	)
	defer func() {
		if file != nil {
			if err := os.Remove(file.path); err != nil && !os.IsNotExist(err) {
				level.Warn(h.logger).Log("msg", "remove upload spool file", "path", file.path, "err", err)
			}
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.fail(w, r, errors.Wrap(err, "read multipart body"))
			return
		}
		switch part.FormName() {
		case "file":
			if file != nil {
				_ = part.Close()
				writeError(w, http.StatusBadRequest, "only one file per upload", "")
				return
			}
			if !isCSV(part) {
				_ = part.Close()
				writeError(w, http.StatusBadRequest, "only CSV files are supported", part.FileName())
				return
			}
			f, err := h.spool(part)
			// Recorded before checking err so the deferred cleanup sees partial files.
			file = f
			if err != nil {
				h.fail(w, r, err)
				return
			}
		case "sessionName":
			b, err := io.ReadAll(io.LimitReader(part, maxSessionNameBytes))
			if err != nil {
				h.fail(w, r, errors.Wrap(err, "read sessionName"))
				return
			}
			sessionName = strings.TrimSpace(string(b))
		}
		_ = part.Close()
	}
	if file == nil {
		writeError(w, http.StatusBadRequest, errNoFile.Error(), "")
		return
	}

	level.Info(h.logger).Log("msg", "upload received", "file", file.origName, "session_name", sessionName)
	f, err := os.Open(file.path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.pipeline.Ingest(r.Context(), f, file.origName, sessionName)
	_ = f.Close()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, "file uploaded and parsed", res)
}

func (h *Handler) spool(part *multipart.Part) (*uploadedFile, error) {
	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	p := filepath.Join(h.cfg.UploadDir, "upload-"+uuid.NewString()+".csv")
	out, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "create upload spool file")
	}
	uf := &uploadedFile{path: p, origName: filepath.Base(part.FileName())}
	_, copyErr := io.Copy(out, part)
	closeErr := out.Close()
	if copyErr != nil {
		return uf, copyErr
	}
	if closeErr != nil {
		return uf, errors.Wrap(closeErr, "close upload spool file")
	}
	return uf, nil
}

func isCSV(part *multipart.Part) bool {
	if strings.EqualFold(filepath.Ext(part.FileName()), ".csv") {
		return true
	}
	mt, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	return err == nil && mt == "text/csv"
}

func (h *Handler) logErr(r *http.Request, err error) {
	level.Error(h.logger).Log("msg", "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
}
