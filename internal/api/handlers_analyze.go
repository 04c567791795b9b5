package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsift/internal/collection"
	"github.com/dgallion1/docsift/internal/layout"
	"github.com/dgallion1/docsift/internal/pipeline"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// requestError carries the status code a handler should answer with.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// handleAnalyze is the combined form endpoint: service=structure takes
// exactly one file, service=persona takes files plus persona and jobTask.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if rerr := s.parseMultipart(w, r); rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}
	defer r.MultipartForm.RemoveAll()

	service := r.FormValue("service")
	files := r.MultipartForm.File["files"]
	if service == "" || len(files) == 0 {
		jsonError(w, "service type and files are required", http.StatusBadRequest)
		return
	}

	switch service {
	case "structure":
		if len(files) != 1 {
			jsonError(w, "structure analysis requires exactly one file", http.StatusBadRequest)
			return
		}
		inputs, rerr := s.readFiles(files)
		if rerr != nil {
			jsonError(w, rerr.msg, rerr.status)
			return
		}
		writeJSON(w, http.StatusOK, s.service.Structure(inputs[0]))

	case "persona":
		persona, task := r.FormValue("persona"), r.FormValue("jobTask")
		if persona == "" || task == "" {
			jsonError(w, "persona and jobTask are required for this service", http.StatusBadRequest)
			return
		}
		inputs, rerr := s.readFiles(files)
		if rerr != nil {
			jsonError(w, rerr.msg, rerr.status)
			return
		}
		s.runPersona(w, r, pipeline.PersonaRequest{Documents: inputs, Persona: persona, JobToBeDone: task})

	default:
		jsonError(w, "invalid service type specified", http.StatusBadRequest)
	}
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	if rerr := s.parseMultipart(w, r); rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		jsonError(w, "exactly one file is required", http.StatusBadRequest)
		return
	}
	inputs, rerr := s.readFiles(files)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Structure(inputs[0]))
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	req, rerr := s.personaRequest(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}
	s.runPersona(w, r, req)
}

func (s *Server) runPersona(w http.ResponseWriter, r *http.Request, req pipeline.PersonaRequest) {
	res, err := s.service.Persona(r.Context(), req)
	if err != nil {
		jsonError(w, "analysis aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writePersona(w, r, res)
}

// writePersona answers with JSON, or with a workbook when format=xlsx.
func (s *Server) writePersona(w http.ResponseWriter, r *http.Request, res *pipeline.PersonaResult) {
	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, res)
		return
	}
	data, err := s.exporter.PersonaXLSX(res)
	if err != nil {
		jsonError(w, "export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="persona.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// personaRequest reads either a JSON collection with inline documents or a
// multipart form with files, persona and job fields.
func (s *Server) personaRequest(w http.ResponseWriter, r *http.Request) (pipeline.PersonaRequest, *requestError) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return s.jsonPersonaRequest(w, r)
	}

	if rerr := s.parseMultipart(w, r); rerr != nil {
		return pipeline.PersonaRequest{}, rerr
	}
	defer r.MultipartForm.RemoveAll()

	persona, job := r.FormValue("persona"), r.FormValue("job")
	if persona == "" || job == "" {
		return pipeline.PersonaRequest{}, badRequest("persona and job are required")
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return pipeline.PersonaRequest{}, badRequest("at least one file is required")
	}
	inputs, rerr := s.readFiles(files)
	if rerr != nil {
		return pipeline.PersonaRequest{}, rerr
	}
	return pipeline.PersonaRequest{Documents: inputs, Persona: persona, JobToBeDone: job}, nil
}

func (s *Server) jsonPersonaRequest(w http.ResponseWriter, r *http.Request) (pipeline.PersonaRequest, *requestError) {
	limit := s.cfg.MaxUploadBytes * int64(s.cfg.MaxFilesPerRequest) * 2
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return pipeline.PersonaRequest{}, &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
	}
	c, err := collection.Parse(body)
	if err != nil {
		return pipeline.PersonaRequest{}, badRequest("%s", err)
	}
	if !c.Inline() {
		return pipeline.PersonaRequest{}, badRequest("every document needs base64 content")
	}
	if len(c.Documents) > s.cfg.MaxFilesPerRequest {
		return pipeline.PersonaRequest{}, badRequest("too many documents (max %d)", s.cfg.MaxFilesPerRequest)
	}
	for i := range c.Documents {
		d := &c.Documents[i]
		d.Filename = sanitizeFilename(d.Filename)
		if !layout.IsSupportedExtension(d.Filename) {
			return pipeline.PersonaRequest{}, badRequest("unsupported file type: %s", filepath.Ext(d.Filename))
		}
		if int64(len(d.Content)) > s.cfg.MaxUploadBytes {
			return pipeline.PersonaRequest{}, &requestError{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("%s exceeds max size (%d bytes)", d.Filename, s.cfg.MaxUploadBytes),
			}
		}
	}
	return c.Request(""), nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) *requestError {
	// Extra 1MB per request for form overhead.
	limit := s.cfg.MaxUploadBytes*int64(s.cfg.MaxFilesPerRequest) + 1024*1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return badRequest("invalid multipart form: %s", err)
	}
	return nil
}

// readFiles loads uploaded files into memory, rejecting unsupported types
// and oversized files.
func (s *Server) readFiles(files []*multipart.FileHeader) ([]pipeline.Input, *requestError) {
	if len(files) > s.cfg.MaxFilesPerRequest {
		return nil, badRequest("too many files (max %d)", s.cfg.MaxFilesPerRequest)
	}
	inputs := make([]pipeline.Input, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !layout.IsSupportedExtension(filename) {
			return nil, badRequest("unsupported file type: %s", filepath.Ext(filename))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, &requestError{status: http.StatusInternalServerError, msg: "failed to open file"}
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, &requestError{status: http.StatusInternalServerError, msg: "failed to read file"}
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			return nil, &requestError{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes),
			}
		}
		inputs = append(inputs, pipeline.Input{Name: filename, Data: data})
	}
	return inputs, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
