package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/jobs"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/pipeline"
	"github.com/sells-group/cadastre-cli/internal/store"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

// Accepted upload content types.
const (
	contentTypeCSV   = "text/csv"
	contentTypeExcel = "application/vnd.ms-excel"
	contentTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// downloadName is the attachment name of every result download.
const downloadName = "donnees_cadastre.csv"

type uploadResponse struct {
	Message  string   `json:"message"`
	Filename string   `json:"filename"`
	FilePath string   `json:"filePath"`
	Columns  []string `json:"columns"`
}

type taskResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// separatorParam reads the delimiter under its historical misspelling
// first, then the correct spelling.
func separatorParam(get func(string) string) string {
	if v := get("seperator"); v != "" {
		return v
	}
	return get("separator")
}

func acceptedContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch mediaType {
	case contentTypeCSV, contentTypeExcel, contentTypeXLSX:
		return true
	}
	return false
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("handler", "uploadfile"))

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close() //nolint:errcheck

	if !acceptedContentType(header.Header.Get("Content-Type")) {
		writeMessage(w, http.StatusNotAcceptable, "csv file required")
		return
	}

	delim, err := tabular.ParseDelimiter(separatorParam(r.FormValue))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unable to read file")
		return
	}

	content, err := tabular.Normalize(raw, delim)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	columns, err := tabular.ReadHeader(bytes.NewReader(content), delim)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(columns) < 2 {
		writeMessage(w, http.StatusBadRequest, "atleast two columns required")
		return
	}

	name := pipeline.ArtifactName(s.opts.Folder, pipeline.InputSuffix)
	if err := s.files.Write(r.Context(), name, content); err != nil {
		log.Error("server: store upload", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "unable to store file")
		return
	}

	log.Info("file successfully uploaded",
		zap.String("file", name),
		zap.String("original", header.Filename),
		zap.Int("columns", len(columns)),
	)
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "file uploaded",
		Filename: path.Base(name),
		FilePath: name,
		Columns:  columns,
	})
}

func (s *Server) handleGetParcelles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filename := q.Get("filename")
	if filename == "" {
		writeMessage(w, http.StatusBadRequest, "filename is required")
		return
	}

	req := model.JobRequest{
		InputFilename: path.Join(s.opts.Folder, path.Base(filename)),
		LatColumn:     q.Get("latcolname"),
		LonColumn:     q.Get("lgtcolname"),
		Delimiter:     separatorParam(q.Get),
	}

	job, err := s.jobs.Submit(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, taskResponse{Message: "task started", TaskID: job.ID})
	case pipeline.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		zap.L().Error("server: submit job", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "unable to start task")
	}
}

// lookupJob writes a 404 or 500 and returns nil when the job is unavailable.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) *model.Job {
	id := chi.URLParam(r, "taskID")
	job, err := s.jobs.Status(r.Context(), id)
	if store.IsNotFound(err) {
		writeMessage(w, http.StatusNotFound, "task not found")
		return nil
	}
	if err != nil {
		zap.L().Error("server: job status", zap.String("job_id", id), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "unable to read task")
		return nil
	}
	return job
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}

	switch {
	case !job.Status.Done():
		writeMessage(w, http.StatusOK, "file not ready yet")
		return
	case job.Status == model.JobStatusFailure:
		zap.L().Error("server: download of failed job", zap.String("job_id", job.ID), zap.String("error", job.Error))
		writeMessage(w, http.StatusOK, "process terminated with error")
		return
	}

	if job.Result == nil {
		writeMessage(w, http.StatusNotFound, "error")
		return
	}
	data, err := s.files.Read(r.Context(), job.Result.OutputFilename)
	if err != nil || len(data) == 0 {
		if err != nil && !filestore.IsNotFound(err) {
			zap.L().Error("server: read result", zap.String("job_id", job.ID), zap.Error(err))
		}
		writeMessage(w, http.StatusNotFound, "error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("server: write download", zap.Error(err))
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	if !job.Status.Done() {
		writeMessage(w, http.StatusConflict, "file not ready yet")
		return
	}

	names := []string{job.Request.InputFilename}
	if job.Result != nil {
		names = append(names, job.Result.OutputFilename)
	}
	for _, name := range names {
		if err := s.files.Delete(r.Context(), name); err != nil && !filestore.IsNotFound(err) {
			zap.L().Error("server: delete file", zap.String("file", name), zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "something went wrong")
			return
		}
	}
	writeMessage(w, http.StatusOK, "files are deleted")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, job)
}
