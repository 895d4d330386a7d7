package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daniela/compliance-reviewer/internal/review"
	"github.com/daniela/compliance-reviewer/internal/server/middleware"
	"github.com/daniela/compliance-reviewer/internal/store"
)

// maxUploadBytes caps document uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListQuestions returns the full audit checklist.
func (s *Server) handleListQuestions(w http.ResponseWriter, _ *http.Request) {
	numbers := s.registry.Numbers()
	questions := make([]interface{}, 0, len(numbers))
	for _, n := range numbers {
		if q, ok := s.registry.Get(n); ok {
			questions = append(questions, q)
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// handleGetQuestion returns one checklist question.
func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid question number")
		return
	}
	q, ok := s.registry.Get(number)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "question not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, q)
}

// handleUploadDocument accepts a multipart document upload, spools it to a
// temp file, and runs the review. The temp file is removed on every exit
// path.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("subject_id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	questionNumber, err := strconv.Atoi(r.FormValue("question_number"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid question_number")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "missing document file")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		s.errorResponse(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := tmp.Close(); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	result, err := s.reviewService.CheckDocumentFile(r.Context(), review.FileCheckRequest{
		SubjectID:      subjectID,
		QuestionNumber: questionNumber,
		Path:           tmp.Name(),
		DeclaredName:   header.Filename,
		LanguageHint:   r.FormValue("language"),
		Explanation:    r.FormValue("explanation"),
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// checkTextRequest is the JSON body for reviews of already-extracted text.
type checkTextRequest struct {
	QuestionNumber int    `json:"question_number"`
	DocumentText   string `json:"document_text"`
	Explanation    string `json:"explanation,omitempty"`
}

// handleCheckText runs the review on text supplied directly in the request.
func (s *Server) handleCheckText(w http.ResponseWriter, r *http.Request) {
	var req checkTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.reviewService.CheckDocument(r.Context(), review.CheckRequest{
		SubjectID:      r.PathValue("subject_id"),
		QuestionNumber: req.QuestionNumber,
		DocumentText:   req.DocumentText,
		Explanation:    req.Explanation,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// handleSetIdentity registers or replaces the company name for a subject.
func (s *Server) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyName string `json:"company_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subjectID := r.PathValue("subject_id")
	if err := s.reviewService.SetIdentity(r.Context(), subjectID, req.CompanyName); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	ident, err := s.reviewService.Identity(r.Context(), subjectID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, ident)
}

// handleGetIdentity returns the registered company name.
func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	ident, err := s.reviewService.Identity(r.Context(), r.PathValue("subject_id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ident == nil {
		s.errorResponse(w, http.StatusNotFound, "no identity registered")
		return
	}
	s.jsonResponse(w, http.StatusOK, ident)
}

// handleListVerdicts returns all verdicts for a subject.
func (s *Server) handleListVerdicts(w http.ResponseWriter, r *http.Request) {
	verdicts, err := s.reviewService.Verdicts(r.Context(), r.PathValue("subject_id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{"verdicts": verdicts})
}

// handleSession returns the recomputed session score. ?narrative=true adds
// an LLM-authored prose summary.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	withNarrative := r.URL.Query().Get("narrative") == "true"
	score, err := s.reviewService.SummarizeSession(r.Context(), r.PathValue("subject_id"), withNarrative)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, score)
}

// disagreementRequest is the JSON body for disputes and missing-document
// justifications.
type disagreementRequest struct {
	QuestionNumber int    `json:"question_number"`
	Requirement    string `json:"requirement"`
	Reason         string `json:"reason"`
	Evidence       string `json:"evidence,omitempty"`
}

func (s *Server) handleDisagreement(w http.ResponseWriter, r *http.Request) {
	s.handleAssessment(w, r, s.reviewService.RecordDisagreement)
}

func (s *Server) handleMissingJustification(w http.ResponseWriter, r *http.Request) {
	s.handleAssessment(w, r, s.reviewService.RecordMissingJustification)
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request, record func(ctx context.Context, req review.DisagreementRequest) (*store.DisagreementEntry, error)) {
	var req disagreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := record(r.Context(), review.DisagreementRequest{
		SubjectID:      r.PathValue("subject_id"),
		QuestionNumber: req.QuestionNumber,
		Requirement:    req.Requirement,
		Reason:         req.Reason,
		Evidence:       req.Evidence,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, entry)
}

// handleListDisagreements returns a subject's dispute records.
func (s *Server) handleListDisagreements(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reviewService.Disagreements(r.Context(), r.PathValue("subject_id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{"disagreements": entries})
}

// overrideRequest is the JSON body for a manual verdict override.
type overrideRequest struct {
	QuestionNumber int    `json:"question_number"`
	Band           string `json:"band"`
	Comment        string `json:"comment"`
}

// handleOverride replaces a verdict with an auditor-chosen band. Requires
// an authenticated auditor.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	auditorID, err := middleware.GetAuditorID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.reviewService.RecordManualOverride(r.Context(), review.OverrideRequest{
		SubjectID:      r.PathValue("subject_id"),
		QuestionNumber: req.QuestionNumber,
		Band:           req.Band,
		Comment:        req.Comment,
		AuditorID:      auditorID.String(),
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, entry)
}

// handleListOverrides returns the override audit trail for one question.
func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid question number")
		return
	}

	entries, err := s.reviewService.Overrides(r.Context(), r.PathValue("subject_id"), number)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{"overrides": entries})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
