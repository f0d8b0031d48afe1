package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/weeklytasks/api/chat"
	"github.com/fastygo/weeklytasks/domain"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository/bolt"
	"github.com/fastygo/weeklytasks/usecase"
	registrationUC "github.com/fastygo/weeklytasks/usecase/registration"
	statsUC "github.com/fastygo/weeklytasks/usecase/stats"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

type handlers struct {
	tasks        *TaskHandler
	stats        *StatsHandler
	chat         *ChatHandler
	registration *RegistrationHandler
}

func newHandlers(t *testing.T) *handlers {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2025, 7, 23, 9, 0, 0, 0, time.UTC)
	clock := weekclock.New(weekclock.DefaultOffset, weekclock.WithNow(func() time.Time { return now }))
	retrier := usecase.NewRetrier(1, time.Millisecond, nil)
	adapter := httpcontext.NewAdapter(time.Second)

	taskRepo := bolt.NewTaskRepository(store)
	tasks := taskUC.New(taskRepo, bolt.NewMembershipRepository(store), clock, retrier, taskUC.DefaultConfig(), nil)
	stats := statsUC.New(taskRepo, bolt.NewStatsRepository(store), clock, retrier, 0, nil)
	registration := registrationUC.New(bolt.NewUserRepository(store), bolt.NewChatRepository(store), bolt.NewMembershipRepository(store), retrier, nil)

	return &handlers{
		tasks:        NewTaskHandler(tasks, adapter, nil),
		stats:        NewStatsHandler(stats, tasks, adapter, nil),
		chat:         NewChatHandler(chat.NewBot(registration, tasks, stats, nil, nil), adapter, nil),
		registration: NewRegistrationHandler(registration, adapter, nil),
	}
}

func (h *handlers) join(t *testing.T, userID, chatID string) {
	t.Helper()
	status, _ := call(t, h.registration.Register, userID, `{"chat_id":"`+chatID+`","display_name":"`+userID+`"}`, nil)
	require.Equal(t, http.StatusOK, status)
}

func call(t *testing.T, handler fasthttp.RequestHandler, userID, body string, params map[string]string) (int, envelope) {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	if userID != "" {
		ctx.Request.Header.Set(httpcontext.UserIDHeader, userID)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	handler(ctx)

	var env envelope
	if raw := ctx.Response.Body(); len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return ctx.Response.StatusCode(), env
}

func TestTaskHandler_CreateListAndLimit(t *testing.T) {
	h := newHandlers(t)
	h.join(t, "alice", "c1")
	chatParam := map[string]string{"chat": "c1"}

	status, env := call(t, h.tasks.Create, "alice", `{"description":"write report"}`, chatParam)
	require.Equal(t, http.StatusCreated, status)
	var created domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "write report", created.Description)
	assert.Equal(t, weekclock.Week{Number: 30, Year: 2025}, created.Week)

	for i := 0; i < 4; i++ {
		status, _ = call(t, h.tasks.Create, "alice", `{"description":"more"}`, chatParam)
		require.Equal(t, http.StatusCreated, status)
	}
	status, env = call(t, h.tasks.Create, "alice", `{"description":"sixth"}`, chatParam)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(domain.ErrCodeLimitExceeded), env.Code)
	assert.Equal(t, domain.ErrTaskLimitExceeded.Message, env.Error)

	status, env = call(t, h.tasks.ListCurrent, "alice", "", chatParam)
	require.Equal(t, http.StatusOK, status)
	var items []domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 5)
	assert.Contains(t, string(env.Meta), `"total":5`)
	assert.Contains(t, string(env.Meta), `"week":30`)
}

func TestTaskHandler_RejectsBadInput(t *testing.T) {
	h := newHandlers(t)
	chatParam := map[string]string{"chat": "c1"}

	status, _ := call(t, h.tasks.Create, "", `{"description":"x"}`, chatParam)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := call(t, h.tasks.Create, "alice", `not json`, chatParam)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrInvalidPayload.Message, env.Error)

	status, env = call(t, h.tasks.Create, "alice", `{"description":"   "}`, chatParam)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, domain.ErrEmptyDescription.Message, env.Error)

	status, _ = call(t, h.tasks.ListWeek, "alice", "", map[string]string{"chat": "c1", "year": "2021", "week": "53"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTaskHandler_StatusTransitionsAndOwnership(t *testing.T) {
	h := newHandlers(t)
	h.join(t, "alice", "c1")

	_, env := call(t, h.tasks.Create, "alice", `{"description":"ship it"}`, map[string]string{"chat": "c1"})
	var created domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &created))
	idParam := map[string]string{"id": created.ID}

	status, _ := call(t, h.tasks.UpdateStatus, "bob", `{"status":"completed"}`, idParam)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, h.tasks.UpdateStatus, "alice", `{"status":"bogus"}`, idParam)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, h.tasks.UpdateStatus, "alice", `{"status":"done"}`, idParam)
	require.Equal(t, http.StatusOK, status)
	var updated domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, domain.TaskCompleted, updated.Status)

	status, env = call(t, h.tasks.UpdateStatus, "alice", `{"status":"canceled"}`, idParam)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, domain.ErrTaskClosed.Message, env.Error)

	status, _ = call(t, h.tasks.Delete, "bob", "", idParam)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, h.tasks.Delete, "alice", "", idParam)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, h.tasks.Get, "alice", "", idParam)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskHandler_RequiresActiveMembership(t *testing.T) {
	h := newHandlers(t)
	chatParam := map[string]string{"chat": "c-other"}

	status, env := call(t, h.tasks.Create, "stranger", `{"description":"sneak in"}`, chatParam)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.ErrNotChatMember.Message, env.Error)

	status, env = call(t, h.tasks.Eligibility, "stranger", "", chatParam)
	require.Equal(t, http.StatusOK, status)
	var eligibility taskUC.Eligibility
	require.NoError(t, json.Unmarshal(env.Data, &eligibility))
	assert.False(t, eligibility.CanCreate)
	assert.Equal(t, domain.ErrNotChatMember.Message, eligibility.Reason)

	h.join(t, "stranger", "c-other")
	status, _ = call(t, h.tasks.Create, "stranger", `{"description":"now allowed"}`, chatParam)
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(t, h.registration.Leave, "stranger", "", chatParam)
	require.Equal(t, http.StatusNoContent, status)
	status, env = call(t, h.tasks.Create, "stranger", `{"description":"after leaving"}`, chatParam)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(domain.ErrCodeNotFound), env.Code)

	status, env = call(t, h.tasks.ListCurrent, "stranger", "", chatParam)
	require.Equal(t, http.StatusOK, status)
	var items []domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)
}

func TestStatsHandler_MissingSnapshotAndSummary(t *testing.T) {
	h := newHandlers(t)
	h.join(t, "alice", "c1")
	chatParam := map[string]string{"chat": "c1"}

	status, env := call(t, h.stats.Get, "alice", "", chatParam)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, domain.ErrStatNotFound.Message, env.Error)

	call(t, h.tasks.Create, "alice", `{"description":"one"}`, chatParam)

	status, env = call(t, h.stats.Summary, "alice", "", chatParam)
	require.Equal(t, http.StatusOK, status)
	var summary domain.WeeklyStat
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Total)
}

func TestChatHandler_Event(t *testing.T) {
	h := newHandlers(t)

	status, env := call(t, h.chat.Event, "", `{"user_id":"alice","chat_id":"c1","text":"/add_task buy milk"}`, nil)
	require.Equal(t, http.StatusOK, status)
	var reply chat.Reply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Contains(t, reply.Text, "Task added: buy milk")

	status, _ = call(t, h.chat.Event, "", `{"chat_id":"c1","text":"/start"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrInvalidWeek, http.StatusBadRequest},
		{domain.ErrTaskNotFound, http.StatusNotFound},
		{domain.ErrTaskLimitExceeded, http.StatusUnprocessableEntity},
		{domain.ErrTaskClosed, http.StatusConflict},
		{domain.WrapError(domain.ErrCodeUnavailable, domain.ErrStoreUnavailable.Message, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
