package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsMessage is the control envelope of the pull protocol.
type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// chapterParams reads the document ID and chapter index from the route.
func chapterParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "chapter index must be an integer", http.StatusBadRequest)
		return "", 0, false
	}
	return chi.URLParam(r, "docID"), index, true
}

// languagePreference prefers ?lang= over Accept-Language.
func languagePreference(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return r.Header.Get("Accept-Language")
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	docID, index, ok := chapterParams(w, r)
	if !ok {
		return
	}
	ch, err := s.deps.Narrator.ChapterText(r.Context(), docID, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"index":       ch.Index,
		"title":       ch.Title,
		"resolved":    ch.Resolved,
		"text":        ch.Text,
	})
}

func (s *Server) handleChapterMarkup(w http.ResponseWriter, r *http.Request) {
	docID, index, ok := chapterParams(w, r)
	if !ok {
		return
	}
	markup, err := s.deps.Narrator.ChapterMarkup(r.Context(), docID, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, markup)
}

// handleChapterAudio streams a chapter as WAV, one flushed chunk at a time.
func (s *Server) handleChapterAudio(w http.ResponseWriter, r *http.Request) {
	docID, index, ok := chapterParams(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	audio, err := s.deps.Narrator.ChapterAudio(ctx, docID, index, languagePreference(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	log := s.log.With("doc_id", docID, "chapter", index, "voice", audio.Voice.Name)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Voice", audio.Voice.Name)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for chunk, err := range audio.Stream.All() {
		if err != nil {
			// Status already sent: abort the connection.
			log.Error("audio stream failed", "error", err, "offset", audio.Stream.Offset())
			panic(http.ErrAbortHandler)
		}
		if _, err := w.Write(chunk); err != nil {
			log.Debug("client went away", "error", err)
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.Debug("flush failed", "error", err)
			return
		}
		if ctx.Err() != nil {
			log.Debug("client cancelled audio stream", "offset", audio.Stream.Offset())
			return
		}
	}
}

// handleChapterAudioWS delivers a chapter over WebSocket. The client sends
// {"type":"pull"} for each chunk; the server answers with one binary frame,
// {"type":"end"} once drained, or a single {"type":"error"} if the stream
// fails.
func (s *Server) handleChapterAudioWS(w http.ResponseWriter, r *http.Request) {
	docID, index, ok := chapterParams(w, r)
	if !ok {
		return
	}
	audio, err := s.deps.Narrator.ChapterAudio(r.Context(), docID, index, languagePreference(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, http.Header{"X-Voice": []string{audio.Voice.Name}})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := s.log.With("doc_id", docID, "chapter", index, "voice", audio.Voice.Name)
	conn.SetReadLimit(512)
	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if msg.Type != "pull" {
			err = conn.WriteJSON(wsMessage{Type: "error", Message: "unknown message type: " + msg.Type})
		} else {
			err = s.deliver(conn, audio.Stream.Next)
		}
		if err != nil {
			log.Debug("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) deliver(conn *websocket.Conn, next func() ([]byte, error)) error {
	chunk, err := next()
	switch {
	case err == io.EOF:
		return conn.WriteJSON(wsMessage{Type: "end"})
	case err != nil:
		s.log.Error("audio stream failed", "error", err)
		return conn.WriteJSON(wsMessage{Type: "error", Message: err.Error()})
	default:
		return conn.WriteMessage(websocket.BinaryMessage, chunk)
	}
}
