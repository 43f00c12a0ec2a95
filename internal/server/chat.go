package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type        string `json:"type"` // "upload", "select", "open", "ask", "summarize", "reset" or "files"
	Filename    string `json:"filename,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Content     string `json:"content,omitempty"`
	Data        []byte `json:"data,omitempty"` // base64 in JSON
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type         string                  `json:"type"` // "answer", "uploaded", "conversation", "files", "selected" or "error"
	Content      string                  `json:"content,omitempty"`
	Fingerprint  fingerprint.Fingerprint `json:"fingerprint,omitempty"`
	Reply        *rag.Reply              `json:"reply,omitempty"`
	Results      []uploadResult          `json:"results,omitempty"`
	Files        []rag.File              `json:"files,omitempty"`
	Conversation *rag.ConversationView   `json:"conversation,omitempty"`
}

// handleChat runs one interactive session over a websocket. The session's
// uploads and current document live only as long as the connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxUploadBytes * 2)

	sess := rag.NewSession(username(r))
	s.logger.Debug("chat session started", "username", sess.Username)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "invalid message format")
			continue
		}
		s.send(conn, s.dispatch(r, sess, req))
	}
}

func (s *Server) dispatch(r *http.Request, sess *rag.Session, req chatRequest) chatResponse {
	ctx := r.Context()
	switch req.Type {
	case "upload":
		if req.Filename == "" {
			return errorResponse("filename is required")
		}
		results := s.rag.UploadAll(ctx, sess, []rag.Upload{{Filename: req.Filename, Data: req.Data}})
		resp := chatResponse{Type: "uploaded", Files: sess.Files()}
		for i := range results {
			res := &results[i]
			out := uploadResult{IngestResult: res, Status: http.StatusOK}
			if res.Err != nil {
				out.Status = statusFor(res.Err)
				out.Error = res.Err.Error()
			}
			resp.Results = append(resp.Results, out)
		}
		resp.Fingerprint, _ = sess.Current()
		return resp

	case "select":
		if req.Filename != "" {
			if !sess.SelectFile(req.Filename) {
				return errorResponse("no uploaded file named " + req.Filename)
			}
		} else {
			fp, err := fingerprint.Parse(req.Fingerprint)
			if err != nil {
				return errorResponse(err.Error())
			}
			if _, ok := s.rag.Cache().Get(fp); !ok {
				return errorResponse(rag.ErrNoDocument.Error())
			}
			sess.Select(fp)
		}
		fp, _ := sess.Current()
		return chatResponse{Type: "selected", Fingerprint: fp}

	case "open":
		fp, err := fingerprint.Parse(req.Fingerprint)
		if err != nil {
			return errorResponse(err.Error())
		}
		view, err := s.rag.OpenConversation(ctx, sess, fp)
		if err != nil {
			return errorResponse(err.Error())
		}
		return chatResponse{Type: "conversation", Fingerprint: fp, Conversation: view}

	case "ask":
		reply, err := s.rag.AskSession(ctx, sess, req.Content)
		return answerResponse(reply, err)

	case "summarize":
		reply, err := s.rag.SummarizeSession(ctx, sess)
		return answerResponse(reply, err)

	case "reset":
		sess.Reset()
		return chatResponse{Type: "selected"}

	case "files":
		fp, _ := sess.Current()
		return chatResponse{Type: "files", Files: sess.Files(), Fingerprint: fp}

	default:
		return errorResponse("unknown message type: " + req.Type)
	}
}

// answerResponse renders a reply. The no-document case is an answer, not
// an error, matching what the user sees in the chat.
func answerResponse(reply *rag.Reply, err error) chatResponse {
	if errors.Is(err, rag.ErrNoDocument) {
		return chatResponse{Type: "answer", Content: err.Error()}
	}
	if err != nil {
		return errorResponse(err.Error())
	}
	resp := chatResponse{Type: "answer", Content: reply.Answer, Reply: reply}
	if reply.Turn != nil {
		resp.Fingerprint = reply.Turn.Fingerprint
	}
	return resp
}

func errorResponse(msg string) chatResponse {
	return chatResponse{Type: "error", Content: msg}
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	s.send(conn, errorResponse(message))
}
