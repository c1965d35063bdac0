package api

import (
	"fmt"
	"net/http"

	"github.com/dgallion1/docrevise/internal/docmodel"
	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/report"
)

// handleCompare diffs two uploaded documents. The response is the change
// list by default; format=grouped groups it by page and format=docx returns
// the marked revised document.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "json", "grouped", "docx":
	default:
		jsonError(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var docs [2]*docmodel.Document
	for i, field := range []string{"original", "revised"} {
		_, data, ok := s.readUpload(w, r, field)
		if !ok {
			return
		}
		d, err := docmodel.Parse(data)
		if err != nil {
			jsonError(w, fmt.Sprintf("%s: %v", field, err), http.StatusBadRequest)
			return
		}
		docs[i] = d
	}

	cmp, err := pipeline.Compare(docs[0], docs[1], s.opts.Compare, s.log)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch format {
	case "docx":
		data, err := cmp.Marked.Bytes()
		if err != nil {
			jsonError(w, "failed to render comparison", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", docxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="comparacao.docx"`)
		w.Write(data)
	case "grouped":
		writeJSON(w, http.StatusOK, report.GroupByPage(cmp.Changes))
	default:
		writeJSON(w, http.StatusOK, report.NewComparison(cmp.Changes))
	}
}
