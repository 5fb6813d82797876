package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	goWA "github.com/MrEthical07/goWA"
	"github.com/MrEthical07/goWA/middleware"
)

// allowSession writes 403 and returns false when the caller's token does
// not cover id.
func allowSession(w http.ResponseWriter, r *http.Request, id string) bool {
	if middleware.SessionAllowed(r.Context(), id) {
		return true
	}
	writeError(w, http.StatusForbidden, "session not permitted for this token")
	return false
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing parameter: sessionId")
		return
	}
	if !allowSession(w, r, req.SessionID) {
		return
	}

	st, err := s.engine.CreateSession(r.Context(), req.SessionID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": st,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeJSON(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing parameter: sessionId")
		return
	}
	if !allowSession(w, r, req.SessionID) {
		return
	}

	if err := s.engine.RemoveSession(r.Context(), req.SessionID); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.ListSessions()
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		if middleware.SessionAllowed(r.Context(), id) {
			visible = append(visible, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": visible})
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	if !allowSession(w, r, id) {
		return
	}

	url, err := s.engine.ChallengeImage(r.Context(), id)
	switch {
	case errors.Is(err, goWA.ErrAlreadyAuthenticated):
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "message": "already authenticated"})
	case err != nil:
		s.writeEngineError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"qr": url})
	}
}

type statusResponse struct {
	SessionID     string            `json:"sessionId"`
	State         goWA.SessionState `json:"state"`
	Authenticated bool              `json:"authenticated"`
	Connection    goWA.ConnState    `json:"connection"`
	Message       string            `json:"message"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	if !allowSession(w, r, id) {
		return
	}

	st, err := s.engine.SessionStatus(id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	// The connection report is informational; authentication comes from
	// the local state machine only.
	conn, err := s.engine.ConnectionState(r.Context(), id)
	if err != nil {
		s.logger.Debug("connection state unavailable", "session_id", id, "error", err)
	}

	msg := "not authenticated"
	if st.Authenticated {
		msg = "authenticated"
	}
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:     id,
		State:         st.State,
		Authenticated: st.Authenticated,
		Connection:    conn,
		Message:       msg,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if req.SessionID == "" || req.Phone == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing parameters: sessionId, phone, message")
		return
	}
	if !allowSession(w, r, req.SessionID) {
		return
	}

	res, err := s.engine.SendText(r.Context(), req.SessionID, string(req.Phone), req.Message)
	s.writeSendResult(w, r, res, err)
}

func (s *Server) handleSendFile(w http.ResponseWriter, r *http.Request) {
	var (
		req sendFileRequest
		in  goWA.MediaInput
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
		if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		req = sendFileRequest{
			SessionID:  r.FormValue("sessionId"),
			Phone:      flexString(r.FormValue("phone")),
			Message:    r.FormValue("message"),
			FileBase64: r.FormValue("fileBase64"),
			FileName:   r.FormValue("fileName"),
			MimeType:   r.FormValue("mimeType"),
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			data, readErr := io.ReadAll(file)
			_ = file.Close()
			if readErr != nil {
				writeError(w, http.StatusBadRequest, "could not read uploaded file")
				return
			}
			in = goWA.MediaInput{
				Data:     data,
				FileName: header.Filename,
				MimeType: header.Header.Get("Content-Type"),
			}
		}
	} else if !decodeJSON(w, r, s.opts.MaxUploadBytes, &req) {
		return
	}

	if in.Data == nil {
		in = goWA.MediaInput{
			Base64:   req.FileBase64,
			FileName: req.FileName,
			MimeType: req.MimeType,
		}
	}
	if req.SessionID == "" || req.Phone == "" || (in.Data == nil && strings.TrimSpace(in.Base64) == "") {
		writeError(w, http.StatusBadRequest, "missing parameters: sessionId, phone, file (form-data) or fileBase64")
		return
	}
	if !allowSession(w, r, req.SessionID) {
		return
	}

	res, err := s.engine.SendMedia(r.Context(), req.SessionID, string(req.Phone), in, req.Message)
	s.writeSendResult(w, r, res, err)
}

func (s *Server) handleSendMultiple(w http.ResponseWriter, r *http.Request) {
	var req sendMultipleRequest
	if !decodeJSON(w, r, s.opts.MaxBodyBytes, &req) {
		return
	}
	if req.SessionID == "" || len(req.Phones) == 0 || req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing parameters: sessionId, phones (array), message")
		return
	}
	if !allowSession(w, r, req.SessionID) {
		return
	}

	phones := make([]string, len(req.Phones))
	for i, p := range req.Phones {
		phones[i] = string(p)
	}
	results, err := s.engine.SendBroadcast(r.Context(), req.SessionID, phones, req.Message)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// writeSendResult renders a single-recipient send. A failed send keeps the
// result in the body next to the error.
func (s *Server) writeSendResult(w http.ResponseWriter, r *http.Request, res goWA.SendResult, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
	case errors.Is(err, goWA.ErrSendFailed):
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   res.Error,
			"result":  res,
		})
	default:
		s.writeEngineError(w, r, err)
	}
}
