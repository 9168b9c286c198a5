package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notitrade/internal/dispatch"
	"notitrade/internal/models"
	"notitrade/internal/queue"
	"notitrade/internal/signal"
)

type fakeDispatcher struct {
	signals []models.TradeSignal
	err     error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, sig models.TradeSignal) (*models.QueuedMessage, error) {
	d.signals = append(d.signals, sig)
	if d.err != nil {
		return nil, d.err
	}
	return &models.QueuedMessage{ID: "msg-1"}, nil
}

type fakeAudit struct {
	saved []*models.RawNotification
	err   error
}

func (a *fakeAudit) SaveNotification(_ context.Context, n *models.RawNotification) error {
	a.saved = append(a.saved, n)
	return a.err
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receive_notification", strings.NewReader(body)))

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestReceiveNotificationAccepted(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	d, a := &fakeDispatcher{}, &fakeAudit{}
	h := New(d, a, log).Routes()

	body := `{"content":"「TrendBot」「做多」「1.23」「XRP/USDT」","from":"10690","extra":{"k":1}}`
	rec, resp := post(t, h, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "msg-1", resp.MessageID)
	assert.Equal(t, "saved", resp.Audit)

	require.Len(t, d.signals, 1)
	assert.Equal(t, models.TradeSignal{Strategy: "TrendBot", Action: models.ActionOpenLong, Price: "1.23", RawSymbol: "XRP/USDT"}, d.signals[0])

	require.Len(t, a.saved, 1)
	assert.Equal(t, body, string(a.saved[0].Body))
	assert.Equal(t, "10690", a.saved[0].Sender)
	assert.Equal(t, map[string]interface{}{"k": float64(1)}, a.saved[0].Fields["extra"])
}

func TestReceiveNotificationMalformedStillAudited(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	d, a := &fakeDispatcher{}, &fakeAudit{}
	h := New(d, a, log).Routes()

	rec, resp := post(t, h, `{"content":"「TrendBot」「做多」"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rejected", resp.Status)
	assert.Empty(t, d.signals, "malformed input must not reach the dispatcher")
	assert.Len(t, a.saved, 1)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["content"] == "「TrendBot」「做多」" {
			found = true
		}
	}
	assert.True(t, found, "rejection must be logged with the raw content")
}

func TestReceiveNotificationStatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		dispatchErr error
		auditErr    error
		code        int
		audit       string
	}{
		{"missing content", `{"from":"10690"}`, nil, nil, http.StatusBadRequest, "saved"},
		{"unsupported instrument", `{"content":"「X」「做多」「1」「DOGE/USDT」"}`, &signal.MappingError{RawSymbol: "DOGE/USDT"}, nil, http.StatusUnprocessableEntity, "saved"},
		{"enqueue failure", `{"content":"「X」「做多」「1」「XRP/USDT」"}`, errors.New("redis down"), nil, http.StatusBadGateway, "saved"},
		{"audit failure", `{"content":"「X」「做多」「1」「XRP/USDT」"}`, nil, errors.New("mysql down"), http.StatusInternalServerError, "failed"},
		{"both fail", `{"content":"「X」「做多」「1」「XRP/USDT」"}`, errors.New("redis down"), errors.New("mysql down"), http.StatusInternalServerError, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := logtest.NewNullLogger()
			d, a := &fakeDispatcher{err: tt.dispatchErr}, &fakeAudit{err: tt.auditErr}

			rec, resp := post(t, New(d, a, log).Routes(), tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.audit, resp.Audit)
			assert.Len(t, a.saved, 1, "audit is attempted regardless of dispatch outcome")
		})
	}
}

func TestReceiveNotificationRejectsNonJSON(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	d, a := &fakeDispatcher{}, &fakeAudit{}

	rec, _ := post(t, New(d, a, log).Routes(), `content=hello`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.signals)
	assert.Empty(t, a.saved)
}

func TestReceiveNotificationMethodNotAllowed(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	rec := httptest.NewRecorder()
	New(&fakeDispatcher{}, &fakeAudit{}, log).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receive_notification", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	rec := httptest.NewRecorder()
	New(&fakeDispatcher{}, &fakeAudit{}, log).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotificationReachesQueueWithinDelay(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := queue.NewRedisQueue(client, queue.Options{Name: "trades"}, log)
	producer := dispatch.NewProducer(signal.NewDefaultMapper(), q, 50*time.Millisecond, log)

	before := time.Now()
	rec, resp := post(t, New(producer, &fakeAudit{}, log).Routes(), `{"content":"「X」「做多」「0.50」「XRP/USDT」"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	scored := client.ZRangeWithScores(ctx, "trades:delayed", 0, -1).Val()
	require.Len(t, scored, 1)
	due := time.UnixMilli(int64(scored[0].Score))
	assert.False(t, due.Before(before.Add(50*time.Millisecond).Truncate(time.Millisecond)))

	var got []queue.Delivery
	require.Eventually(t, func() bool {
		_, err := q.ProcessDue(ctx, func(_ context.Context, d queue.Delivery) error {
			got = append(got, d)
			return nil
		})
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, resp.MessageID, got[0].ID)
	var msg models.QueuedMessage
	require.NoError(t, json.Unmarshal(got[0].Body, &msg))
	assert.Equal(t, models.OrderIntent{Exchange: "huobi", Side: "buy-market", ContractSymbol: "xrplsusdt"}, msg.Intent)
}
