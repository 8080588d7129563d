// Package handlers implements the HTTP endpoints of the editing API:
// session lifecycle, document upload, page organization, history, and
// export download.
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdfpage/editkit/editor"
	"github.com/pdfpage/editkit/element"
	"github.com/pdfpage/editkit/export"
	"github.com/pdfpage/editkit/internal/session"
	"github.com/pdfpage/editkit/observability"
)

// MaxUploadSize caps incoming documents at 50 MB.
const MaxUploadSize = 50 << 20

// API holds the handler dependencies.
type API struct {
	Sessions *session.Manager
	Log      observability.Logger
}

// New returns an API backed by sessions.
func New(sessions *session.Manager, log observability.Logger) *API {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &API{Sessions: sessions, Log: log}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// session loads the session from the URL and reports it to the client
// when missing.
func (a *API) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, ok := a.Sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// requireDocument ensures the session has an uploaded document.
func requireDocument(w http.ResponseWriter, s *session.Session) bool {
	if s.Editor == nil {
		writeError(w, http.StatusConflict, "no document uploaded")
		return false
	}
	return true
}

// CreateSession starts an empty editing session.
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.Sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": s.ID})
}

// UploadDocument accepts a multipart "pdf" file, validates it with
// pdfcpu, and opens an editor session over it.
func (a *API) UploadDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing pdf form file")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		writeError(w, http.StatusBadRequest, "uploaded file is not a PDF")
		return
	}
	if err := api.Validate(bytes.NewReader(data), model.NewDefaultConfiguration()); err != nil {
		a.Log.Warn("upload failed validation", observability.Error("err", err))
		writeError(w, http.StatusUnprocessableEntity, "PDF failed validation")
		return
	}

	ed, err := editor.Open(data, editor.Options{Logger: a.Log})
	if err != nil {
		a.Log.Warn("upload failed to open", observability.Error("err", err))
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("cannot open document: %v", err))
		return
	}

	s.Mutex.Lock()
	s.Editor = ed
	s.Filename = filepath.Base(header.Filename)
	s.Mutex.Unlock()

	a.Log.Info("document uploaded",
		observability.String("session", s.ID),
		observability.String("filename", s.Filename),
		observability.Int("pages", ed.Document().PageCount()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":  s.Filename,
		"pageCount": ed.Document().PageCount(),
	})
}

type pageInfo struct {
	DisplayIndex int     `json:"displayIndex"`
	SourceIndex  int     `json:"sourceIndex"`
	Rotation     int     `json:"rotation"`
	Deleted      bool    `json:"deleted"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
}

// ListPages returns all pages in display order, deleted ones included
// so the client can offer restore.
func (a *API) ListPages(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	descs := s.Editor.Pages().All()
	pages := make([]pageInfo, 0, len(descs))
	for _, d := range descs {
		info := pageInfo{
			DisplayIndex: d.DisplayIndex,
			SourceIndex:  d.SourceIndex,
			Rotation:     d.Rotation,
			Deleted:      d.Deleted,
		}
		if size, err := s.Editor.Document().PageSize(d.SourceIndex); err == nil {
			info.Width = size.Width
			info.Height = size.Height
		}
		pages = append(pages, info)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pages": pages})
}

// ReorderPages moves a page from one display position to another.
func (a *API) ReorderPages(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid reorder request")
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	if err := s.Editor.ReorderPages(req.From, req.To); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RotatePage applies a rotation delta to the page at the display index
// in the URL.
func (a *API) RotatePage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index")
		return
	}
	var req struct {
		Degrees int `json:"degrees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rotate request")
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	if err := s.Editor.RotatePage(index, req.Degrees); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ToggleDeletePage flips the deleted flag on the page at the display
// index in the URL.
func (a *API) ToggleDeletePage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index")
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	if err := s.Editor.ToggleDeletePage(index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Undo reverts the latest committed edit.
func (a *API) Undo(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"undone": s.Editor.Undo()})
}

// Redo reapplies the latest undone edit.
func (a *API) Redo(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"redone": s.Editor.Redo()})
}

// Export assembles the edited document and streams it back as a PDF
// download. An optional watermark query parameter stamps every page.
func (a *API) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	opts := export.Options{Flatten: r.URL.Query().Get("flatten") == "true"}
	if text := r.URL.Query().Get("watermark"); text != "" {
		opts.Watermark = &export.Watermark{Text: text}
	}
	data, err := s.Editor.Export(r.Context(), opts)
	if err != nil {
		a.Log.Error("export failed",
			observability.String("session", s.ID),
			observability.Error("err", err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	name := strings.TrimSuffix(s.Filename, filepath.Ext(s.Filename))
	if name == "" {
		name = "document"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-edited.pdf"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// ListElements returns the session's elements for the requested page.
func (a *API) ListElements(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index")
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	desc, err := s.Editor.Pages().At(index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	els := s.Editor.Elements().ForPage(desc.SourceIndex)
	writeJSON(w, http.StatusOK, map[string]interface{}{"elements": els})
}

// AddElement inserts a new element on the requested page and returns
// its id.
func (a *API) AddElement(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page index")
		return
	}
	var spec element.Element
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid element")
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	desc, err := s.Editor.Pages().At(index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spec.PageIndex = desc.SourceIndex
	id := s.Editor.Elements().Add(spec)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteElement removes an element by id. Idempotent.
func (a *API) DeleteElement(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if !requireDocument(w, s) {
		return
	}
	s.Editor.Elements().Remove(chi.URLParam(r, "elementID"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Diagnostics reports which optional external tools are installed.
// The editor itself needs none of them; the probe mirrors what support
// tooling expects to find on a conversion host.
func (a *API) Diagnostics(w http.ResponseWriter, r *http.Request) {
	tools := map[string]bool{}
	for _, name := range []string{"gs", "qpdf", "tesseract"} {
		_, err := exec.LookPath(name)
		tools[name] = err == nil
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools":    tools,
		"sessions": a.Sessions.Len(),
	})
}
