package server

import (
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/lowrenn/inkroom/internal/errors"
	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// maxBodyBytes bounds request bodies well above the largest valid document.
const maxBodyBytes = 64 * 1024

// NewHandler builds the room HTTP routes on top of a service.
func NewHandler(service *Service) http.Handler {
	h := &handler{service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/rp.json", h.createRoom)
	mux.HandleFunc("/api/challenge.json", h.challenge)
	mux.HandleFunc("/api/rp/", h.room)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
	})
	return mux
}

type handler struct {
	service *Service
}

func (h *handler) createRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
		return
	}
	raw, err := decodeBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	code, err := h.service.CreateRoom(r.Context(), raw, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"rpCode": code})
}

func (h *handler) challenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
		return
	}
	challenge, err := h.service.IssueChallenge()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret": challenge.Secret,
		"hash":   challenge.Hash,
	})
}

// room dispatches every /api/rp/{code}... route. The room code resolves to a
// namespace before any sub-route runs, so an unknown code is NOT_FOUND no
// matter the path below it.
func (h *handler) room(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rp/")
	segments := strings.Split(rest, "/")

	code := segments[0]
	if !domain.ValidRoomCode(code) {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
		return
	}
	namespace, err := h.service.ResolveRoom(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case len(segments) == 1:
		if r.Method != http.MethodGet {
			break
		}
		h.roomView(w, r, namespace)
		return
	case len(segments) == 2 && segments[1] == "updates":
		if r.Method != http.MethodGet {
			break
		}
		h.roomUpdates(w, r, namespace)
		return
	case len(segments) == 2 && segments[1] == "ws":
		if r.Method != http.MethodGet {
			break
		}
		websocket.Handler(func(conn *websocket.Conn) {
			serveWS(conn, h.service, namespace)
		}).ServeHTTP(w, r)
		return
	case len(segments) == 2 && segments[1] == "download.txt":
		if r.Method != http.MethodGet {
			break
		}
		h.roomDownload(w, r, namespace)
		return
	case len(segments) == 3 && segments[1] == "page":
		if r.Method != http.MethodGet {
			break
		}
		h.roomPage(w, r, namespace, segments[2])
		return
	case len(segments) == 2:
		if r.Method != http.MethodPost {
			break
		}
		h.roomAppend(w, r, namespace, segments[1])
		return
	case len(segments) == 3:
		if r.Method != http.MethodPut {
			break
		}
		h.roomUpdate(w, r, namespace, segments[1], segments[2])
		return
	}
	writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
}

func (h *handler) roomView(w http.ResponseWriter, r *http.Request, namespace string) {
	view, err := h.service.View(r.Context(), namespace)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":       view.Title,
		"desc":        view.Desc,
		"msgs":        payloads(view.Msgs),
		"charas":      payloads(view.Charas),
		"lastEventId": view.LastEventID,
	})
}

func (h *handler) roomPage(w http.ResponseWriter, r *http.Request, namespace, pageParam string) {
	page, err := strconv.Atoi(pageParam)
	if err != nil {
		writeError(w, errors.New(errors.CodeBadInput, "page number must be a positive integer"))
		return
	}
	result, err := h.service.Page(r.Context(), namespace, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":     result.Title,
		"desc":      result.Desc,
		"msgs":      payloads(result.Msgs),
		"charas":    payloads(result.Charas),
		"pageCount": result.PageCount,
	})
}

func (h *handler) roomDownload(w http.ResponseWriter, r *http.Request, namespace string) {
	includeOOC := r.URL.Query().Has("includeOOC")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.txt"`)
	if err := h.service.WriteTranscript(r.Context(), namespace, includeOOC, w); err != nil {
		// Headers are already sent; the stream just stops.
		log.Printf("transcript export aborted: %v", err)
	}
}

func (h *handler) roomUpdates(w http.ResponseWriter, r *http.Request, namespace string) {
	sink, err := newSSESink(w)
	if err != nil {
		// Nothing has been written yet, so a regular error response is
		// still possible.
		writeError(w, err)
		return
	}
	// Subscribe before the first byte leaves, so a client that has seen
	// the opening keepalive never misses a subsequent write.
	sub := h.service.Subscribe(namespace)
	if err := sink.start(); err != nil {
		// The status line is out; all that is left is to stop.
		sub.Cancel()
		log.Printf("sse stream aborted: %v", err)
		return
	}
	_ = streamEvents(r.Context(), sub, sink)
}

func (h *handler) roomAppend(w http.ResponseWriter, r *http.Request, namespace, collection string) {
	if !domain.ValidCollectionToken(collection) {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
		return
	}
	raw, err := decodeBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.service.Append(r.Context(), namespace, collection, raw, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"_id": doc.ID})
}

func (h *handler) roomUpdate(w http.ResponseWriter, r *http.Request, namespace, collection, docID string) {
	if !domain.ValidCollectionToken(collection) {
		writeError(w, errors.New(errors.CodeUnknownRequest, "unknown request"))
		return
	}
	raw, err := decodeBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	secret, _ := raw["secret"].(string)
	delete(raw, "secret")

	if _, err := h.service.Update(r.Context(), namespace, collection, docID, raw, secret, r.RemoteAddr); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var raw map[string]any
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.CodeBadInput, "request body must be a JSON object", err)
	}
	return raw, nil
}

func payloads(docs []domain.Document) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Payload())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		log.Printf("request failed: %v", err)
	}

	message := "internal error"
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		message = coded.Message
	}
	writeJSON(w, code.HTTPStatus(), map[string]any{
		"code":  string(code),
		"error": message,
	})
}
