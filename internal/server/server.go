package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"notitrade/internal/exception"
	"notitrade/internal/metrics"
	"notitrade/internal/models"
	"notitrade/internal/signal"
)

const maxBodySize = 1 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, sig models.TradeSignal) (*models.QueuedMessage, error)
}

type AuditStore interface {
	SaveNotification(ctx context.Context, n *models.RawNotification) error
}

type Server struct {
	dispatcher Dispatcher
	audit      AuditStore
	now        func() time.Time
	log        logrus.FieldLogger
}

func New(dispatcher Dispatcher, audit AuditStore, log logrus.FieldLogger) *Server {
	return &Server{
		dispatcher: dispatcher,
		audit:      audit,
		now:        time.Now,
		log:        log.WithField("component", "ingress"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/receive_notification", s.ReceiveNotification)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

type response struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Audit     string `json:"audit"`
}

// ReceiveNotification handles one vendor SMS webhook. Trade dispatch and audit
// persistence are attempted independently; the response succeeds only once
// the audit write is confirmed.
func (s *Server) ReceiveNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, response{Status: "error", Error: "method not allowed", Audit: "skipped"})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.log.WithError(err).Warn("failed to read notification body")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "unreadable body", Audit: "skipped"})
		return
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		s.log.WithError(err).WithField("body", string(raw)).Warn("notification body is not a JSON object")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "body must be a JSON object", Audit: "skipped"})
		return
	}

	n := &models.RawNotification{
		Content:    stringField(fields, "content"),
		Sender:     sender(fields),
		Fields:     fields,
		Body:       raw,
		ReceivedAt: s.now().UTC(),
	}
	log := s.log.WithFields(logrus.Fields{"content": n.Content, "sender": n.Sender})

	msg, tradeErr := s.trade(r.Context(), n)
	auditErr := s.persist(r.Context(), n)

	resp := response{Status: "ok", Audit: "saved"}
	code := http.StatusOK
	if msg != nil {
		resp.MessageID = msg.ID
	}

	if tradeErr != nil {
		resp.Status = "rejected"
		resp.Error = tradeErr.Error()
		code = tradeStatus(tradeErr)
		log.WithError(tradeErr).Warn("notification not dispatched")
	}
	if auditErr != nil {
		resp.Status = "error"
		resp.Audit = "failed"
		if resp.Error == "" {
			resp.Error = "audit persistence failed"
		}
		code = http.StatusInternalServerError
		log.WithError(auditErr).Error("notification not persisted")
	}

	writeJSON(w, code, resp)
}

func (s *Server) trade(ctx context.Context, n *models.RawNotification) (*models.QueuedMessage, error) {
	if n.Content == "" {
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		return nil, exception.ErrEmptyContent
	}

	sig, err := signal.Parse(n.Content)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}

	msg, err := s.dispatcher.Dispatch(ctx, sig)
	if err != nil {
		if errors.Is(err, exception.ErrUnsupportedInstrument) {
			metrics.NotificationsTotal.WithLabelValues("unsupported").Inc()
		} else {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	metrics.NotificationsTotal.WithLabelValues("accepted").Inc()
	return msg, nil
}

func (s *Server) persist(ctx context.Context, n *models.RawNotification) error {
	if err := s.audit.SaveNotification(ctx, n); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

func tradeStatus(err error) int {
	switch {
	case errors.Is(err, exception.ErrMalformedNotification), errors.Is(err, exception.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, exception.ErrUnsupportedInstrument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func stringField(fields map[string]interface{}, key string) string {
	v, _ := fields[key].(string)
	return v
}

func sender(fields map[string]interface{}) string {
	for _, key := range []string{"sender", "from"} {
		if v := stringField(fields, key); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
