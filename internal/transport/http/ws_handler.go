package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-attempt-engine/internal/attempt"
	"quiz-attempt-engine/internal/domain"
)

// AttemptTracker marks live attempts for operational visibility. Optional and
// best-effort; a nil tracker disables it.
type AttemptTracker interface {
	MarkActive(ctx context.Context, quizID, studentID, attemptID string)
	Clear(ctx context.Context, quizID, studentID string)
}

// WSHandler exposes one attempt session per websocket connection.
type WSHandler struct {
	engine   *attempt.Engine
	tracker  AttemptTracker
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *attempt.Engine, tracker AttemptTracker) *WSHandler {
	return &WSHandler{
		engine:  engine,
		tracker: tracker,
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

type answerPayload struct {
	QuestionID string `json:"questionId"`
	ChoiceID   string `json:"choiceId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type quizPayload struct {
	Quiz      domain.Quiz       `json:"quiz"`
	Questions []domain.Question `json:"questions"`
	Preview   bool              `json:"preview"`
}

type historyPayload struct {
	AttemptsUsed int  `json:"attemptsUsed"`
	MaxAttempts  int  `json:"maxAttempts"`
	LastScore    *int `json:"lastScore,omitempty"`
	CanStart     bool `json:"canStart"`
}

type startedPayload struct {
	AttemptNumber int        `json:"attemptNumber"`
	StartedAt     time.Time  `json:"startedAt"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

type answeredPayload struct {
	QuestionID string   `json:"questionId"`
	Selected   []string `json:"selected"`
}

type countdownPayload struct {
	RemainingSec int `json:"remainingSec"`
}

type submittedPayload struct {
	AttemptNumber int  `json:"attemptNumber"`
	Score         int  `json:"score"`
	MaxScore      int  `json:"maxScore"`
	DurationSec   int  `json:"durationSec"`
	AutoSubmitted bool `json:"autoSubmitted"`
	Saved         bool `json:"saved"`
}

// ServeWS upgrades the request and drives a single attempt session over it.
// Identity is supplied by the caller: studentId plus a role tag; teachers get
// a read-only preview that never creates attempts.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	role := domain.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = domain.RoleStudent
	}
	if quizID == "" || (studentID == "" && role != domain.RoleTeacher) {
		http.Error(w, "missing quizId or studentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.engine.Open(r.Context(), quizID, studentID, role)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	events := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev := <-events:
				select {
				case send <- ev:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	obs := attempt.Observers{
		OnTick: func(remaining time.Duration) {
			msg := outboundMessage[any]{Type: "countdown", Payload: countdownPayload{RemainingSec: int(remaining / time.Second)}}
			// ticks are droppable; a fresh one follows in a second
			select {
			case events <- msg:
			default:
			}
		},
		OnAutoSubmit: func(res attempt.Result, err error) {
			for _, msg := range h.submitMessages(session, res, err) {
				select {
				case events <- msg:
				case <-closeSignals:
					return
				}
			}
			h.clearTracker(quizID, studentID)
		},
	}

	send <- outboundMessage[any]{Type: "quiz", Payload: quizPayload{
		Quiz:      session.Quiz(),
		Questions: session.Questions(),
		Preview:   session.Preview(),
	}}
	if !session.Preview() {
		send <- h.historyMessage(session)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(r.Context(), session, inbound, obs, quizID, studentID) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, session *attempt.Session, inbound inboundMessage, obs attempt.Observers, quizID, studentID string) []outboundMessage[any] {
	switch inbound.Type {
	case "start":
		if err := session.Start(ctx, obs); err != nil {
			return errMessages(err)
		}
		payload := startedPayload{
			AttemptNumber: session.AttemptNumber(),
			StartedAt:     session.StartedAt(),
		}
		if deadline, ok := session.Deadline(); ok {
			payload.Deadline = &deadline
		}
		h.markTracker(quizID, studentID, session.AttemptID())
		return []outboundMessage[any]{
			{Type: "started", Payload: payload},
			h.historyMessage(session),
		}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}}
		}
		selected, err := session.Answer(payload.QuestionID, payload.ChoiceID)
		if err != nil {
			return errMessages(err)
		}
		return []outboundMessage[any]{{Type: "answered", Payload: answeredPayload{QuestionID: payload.QuestionID, Selected: selected}}}

	case "submit":
		res, err := session.Submit(ctx, false)
		if errors.Is(err, domain.ErrAlreadySubmitted) || errors.Is(err, domain.ErrNotInProgress) {
			return errMessages(err)
		}
		h.clearTracker(quizID, studentID)
		return h.submitMessages(session, res, err)

	case "cancel":
		if err := session.Cancel(ctx); err != nil {
			return errMessages(err)
		}
		h.clearTracker(quizID, studentID)
		return []outboundMessage[any]{
			{Type: "cancelled", Payload: struct{}{}},
			h.historyMessage(session),
		}

	case "sync":
		// visibility-change resync: remaining time derived fresh from the deadline
		remaining, ok := session.Remaining()
		if !ok {
			return nil
		}
		return []outboundMessage[any]{{Type: "countdown", Payload: countdownPayload{RemainingSec: int(remaining / time.Second)}}}

	case "review":
		if review, ok := session.Review(); ok {
			return []outboundMessage[any]{{Type: "review", Payload: review}}
		}
		review, err := session.LastReview()
		if err != nil {
			return errMessages(err)
		}
		return []outboundMessage[any]{{Type: "review", Payload: review}}

	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}}
	}
}

// submitMessages builds the outbound sequence for a finalized attempt. A
// finalize-write failure still reports the submitted result, flagged unsaved.
func (h *WSHandler) submitMessages(session *attempt.Session, res attempt.Result, err error) []outboundMessage[any] {
	msgs := []outboundMessage[any]{
		{Type: "submitted", Payload: submittedPayload{
			AttemptNumber: res.Attempt.AttemptNumber,
			Score:         res.Attempt.Score,
			MaxScore:      res.Review.MaxScore,
			DurationSec:   res.Attempt.DurationSec,
			AutoSubmitted: res.Review.AutoSubmitted,
			Saved:         err == nil,
		}},
		{Type: "review", Payload: res.Review},
		h.historyMessage(session),
	}
	if err != nil {
		msgs = append(msgs, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "your result may not be saved: " + err.Error()}})
	}
	return msgs
}

func (h *WSHandler) historyMessage(session *attempt.Session) outboundMessage[any] {
	hist := session.History()
	payload := historyPayload{
		AttemptsUsed: hist.AttemptsUsed(),
		MaxAttempts:  session.Quiz().MaxAttempts,
		CanStart:     session.CanStart(),
	}
	if score, ok := hist.LastScore(); ok {
		payload.LastScore = &score
	}
	return outboundMessage[any]{Type: "history", Payload: payload}
}

func (h *WSHandler) markTracker(quizID, studentID, attemptID string) {
	if h.tracker == nil {
		return
	}
	h.tracker.MarkActive(context.Background(), quizID, studentID, attemptID)
}

func (h *WSHandler) clearTracker(quizID, studentID string) {
	if h.tracker == nil {
		return
	}
	h.tracker.Clear(context.Background(), quizID, studentID)
}

func errMessages(err error) []outboundMessage[any] {
	return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: err.Error()}}}
}
