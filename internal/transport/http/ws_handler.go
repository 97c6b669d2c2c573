package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
)

type WSHandler struct {
	service  *app.StudyService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.StudyService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// answerPayload accepts the value as a JSON string or number.
type answerPayload struct {
	Value json.RawMessage `json:"value"`
}

func (p answerPayload) text() string {
	var s string
	if json.Unmarshal(p.Value, &s) == nil {
		return s
	}
	return string(p.Value)
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	Snapshot     app.Snapshot `json:"snapshot"`
	RemoteOnline bool         `json:"remoteOnline"`
}

// ServeWS upgrades the request and runs one participant session over it.
// Closing the socket ends the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session := h.service.Begin(ctx)
	id := session.ID()
	log := h.log.With(zap.String("participant_id", id))
	defer h.service.Leave(ctx, id)

	updates, cancel, err := h.service.Subscribe(ctx, id)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	initial := <-updates

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwardDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	fallbacks := session.Fallbacks()
	go func() {
		defer close(forwardDone)
		for {
			var msg outboundMessage[any]
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "state", Payload: snap}
			case notice, ok := <-fallbacks:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "fallback", Payload: notice}
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		Snapshot:     initial,
		RemoteOnline: h.service.RemoteOnline(),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, id, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-forwardDone
	close(send)
	<-writerDone
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

const (
	errUnsupported = protocolError("unsupported message type")
	errBadPayload  = protocolError("invalid payload")
)

// dispatch applies one inbound message. Resulting state reaches the client
// through the subscription; refused transitions produce no error.
func (h *WSHandler) dispatch(r *http.Request, id string, msg inboundMessage) error {
	ctx := r.Context()
	var err error
	switch msg.Type {
	case "setDemographics":
		var demo domain.Demographics
		if json.Unmarshal(msg.Payload, &demo) != nil {
			return errBadPayload
		}
		_, err = h.service.SetDemographics(ctx, id, demo)
	case "startTask":
		_, err = h.service.StartTask(ctx, id)
	case "answer":
		var payload answerPayload
		if json.Unmarshal(msg.Payload, &payload) != nil {
			return errBadPayload
		}
		_, err = h.service.SubmitAnswer(ctx, id, payload.text())
	case "resumeBreak":
		_, err = h.service.ResumeFromBreak(ctx, id)
	case "showFeedback":
		_, err = h.service.ShowFeedback(ctx, id)
	case "startDistraction":
		_, err = h.service.StartDistraction(ctx, id)
	case "finishDistraction":
		_, err = h.service.FinishDistraction(ctx, id)
	case "setMotivation":
		var m domain.Motivation
		if json.Unmarshal(msg.Payload, &m) != nil {
			return errBadPayload
		}
		_, err = h.service.SetMotivation(ctx, id, m)
	case "finish":
		_, err = h.service.Finish(ctx, id)
	default:
		return errUnsupported
	}
	return err
}
