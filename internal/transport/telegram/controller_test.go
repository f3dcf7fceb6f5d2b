package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/data/session"
	"github.com/KotFed0t/ttwo_investment_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/ttwo_investment_bot/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

const testChatID int64 = 1

type MockInvestmentService struct {
	mock.Mock
}

func (m *MockInvestmentService) RegUser(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockInvestmentService) Submit(ctx context.Context, form model.InvestmentForm) (model.SubmitResult, error) {
	args := m.Called(ctx, form)
	return args.Get(0).(model.SubmitResult), args.Error(1)
}

func (m *MockInvestmentService) Investments(ctx context.Context) (model.InvestmentsPage, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.InvestmentsPage), args.Error(1)
}

func (m *MockInvestmentService) LedgerPath(ctx context.Context) (string, bool, error) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1), args.Error(2)
}

// memSession keeps drafts in memory with the same take semantics as redis GETDEL.
type memSession struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func newMemSession() *memSession {
	return &memSession{sessions: make(map[string]model.Session)}
}

func (s *memSession) GetSession(_ context.Context, key string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chatSession, ok := s.sessions[key]
	if !ok {
		return model.Session{}, session.ErrNotFound
	}
	return chatSession, nil
}

func (s *memSession) SetSession(_ context.Context, key string, chatSession model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = chatSession
	return nil
}

func (s *memSession) TakeSession(_ context.Context, key string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chatSession, ok := s.sessions[key]
	if !ok {
		return model.Session{}, session.ErrNotFound
	}
	delete(s.sessions, key)
	return chatSession, nil
}

func (s *memSession) DeleteSession(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *memSession) get(key string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chatSession, ok := s.sessions[key]
	return chatSession, ok
}

type sentMessage struct {
	method string
	text   string
}

// fakeTelegram answers every bot api call with a plain message and records what was sent.
type fakeTelegram struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeTelegram) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTelegram) texts(method string) []string {
	var res []string
	for _, m := range f.messages() {
		if m.method == method {
			res = append(res, m.text)
		}
	}
	return res
}

func newTestBot(t *testing.T) (*tele.Bot, *fakeTelegram) {
	t.Helper()

	fake := &fakeTelegram{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		fake.mu.Lock()
		fake.sent = append(fake.sent, sentMessage{method: path.Base(r.URL.Path), text: payload.Text})
		fake.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":1,"type":"private"}}}`)
	}))
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{Offline: true, URL: srv.URL, Token: "test-token"})
	require.NoError(t, err)

	return b, fake
}

func textCtx(b *tele.Bot, text string) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   text,
		Chat:   &tele.Chat{ID: testChatID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: testChatID},
	}})
}

func callbackCtx(b *tele.Bot, unique string) tele.Context {
	return b.NewContext(tele.Update{Callback: &tele.Callback{
		ID:      "callback",
		Data:    "\f" + unique,
		Sender:  &tele.User{ID: testChatID},
		Message: &tele.Message{ID: 10, Chat: &tele.Chat{ID: testChatID, Type: tele.ChatPrivate}},
	}})
}

func chatKeyOf() string { return fmt.Sprint(testChatID) }

func confirmedDraft() model.Session {
	return model.Session{Action: model.ExpectingSubmit, Name: "Alice", Amount: decimal.RequireFromString("1000")}
}

func savedResult() model.SubmitResult {
	return model.SubmitResult{
		Record: model.InvestmentRecord{
			Timestamp: "2025-10-01 09:15:30",
			Name:      "Alice",
			Amount:    decimal.RequireFromString("1000"),
			Price:     decimal.RequireFromString("150.1234"),
			Shares:    decimal.RequireFromString("6.661187"),
		},
		FetchedPrice: decimal.RequireFromString("150.1234"),
		ExactShares:  decimal.RequireFromString("6.66118673"),
	}
}

func TestFormFlow_NameAmountSubmit(t *testing.T) {
	b, fake := newTestBot(t)
	sessions := newMemSession()
	svc := new(MockInvestmentService)
	ctrl := NewController(svc, sessions)

	svc.On("Submit", mock.Anything, model.InvestmentForm{Name: "Alice", Amount: decimal.RequireFromString("1000")}).
		Return(savedResult(), nil).Once()
	svc.On("Investments", mock.Anything).Return(model.InvestmentsPage{Ticker: "TTWO"}, nil).Once()

	require.NoError(t, ctrl.InitInvestment(textCtx(b, "/invest")))
	draft, ok := sessions.get(chatKeyOf())
	require.True(t, ok)
	assert.Equal(t, model.ExpectingInvestorName, draft.Action)

	require.NoError(t, ctrl.ProcessInvestorName(textCtx(b, "  Alice  ")))
	draft, _ = sessions.get(chatKeyOf())
	assert.Equal(t, model.ExpectingAmount, draft.Action)
	assert.Equal(t, "Alice", draft.Name)

	require.NoError(t, ctrl.ProcessAmount(textCtx(b, "1,000")))
	draft, _ = sessions.get(chatKeyOf())
	assert.Equal(t, model.ExpectingSubmit, draft.Action)
	assert.Equal(t, "1000", draft.Amount.String())

	require.NoError(t, ctrl.SubmitInvestment(callbackCtx(b, tgCallback.SubmitInvestment)))

	_, ok = sessions.get(chatKeyOf())
	assert.False(t, ok, "draft must be gone after a successful submit")

	sent := fake.texts("sendMessage")
	require.Len(t, sent, 4)
	assert.Equal(t, askNameMsg, sent[0])
	assert.Equal(t, askAmountMsg, sent[1])
	assert.Contains(t, sent[2], "Investor: Alice")
	assert.Equal(t, telebotConverter.NoInvestmentsMsg, sent[3])

	edited := fake.texts("editMessageText")
	require.Len(t, edited, 1)
	assert.Contains(t, edited[0], "Saved! 6.6612 TTWO shares can be purchased at $150.12")

	svc.AssertExpectations(t)
}

func TestProcessAmount_InvalidKeepsStep(t *testing.T) {
	b, fake := newTestBot(t)
	sessions := newMemSession()
	ctrl := NewController(new(MockInvestmentService), sessions)

	require.NoError(t, sessions.SetSession(context.Background(), chatKeyOf(), model.Session{Action: model.ExpectingAmount, Name: "Alice"}))

	require.NoError(t, ctrl.ProcessAmount(textCtx(b, "-5")))

	draft, _ := sessions.get(chatKeyOf())
	assert.Equal(t, model.ExpectingAmount, draft.Action)
	assert.Equal(t, []string{invalidAmountMsg}, fake.texts("sendMessage"))
}

func TestSubmitInvestment_FailuresKeepDraft(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "validation", err: fmt.Errorf("%w: amount must be positive", service.ErrValidation), wantMsg: "⚠️ " + invalidInputMsg},
		{name: "price", err: fmt.Errorf("%w: timeout", service.ErrPriceUnavailable), wantMsg: "❌ Error fetching TTWO stock price, please try again later."},
		{name: "storage", err: fmt.Errorf("%w: disk full", service.ErrStorage), wantMsg: internalErrMsg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, fake := newTestBot(t)
			sessions := newMemSession()
			svc := new(MockInvestmentService)
			ctrl := NewController(svc, sessions)

			require.NoError(t, sessions.SetSession(context.Background(), chatKeyOf(), confirmedDraft()))
			svc.On("Submit", mock.Anything, mock.Anything).Return(model.SubmitResult{}, tt.err).Once()

			require.NoError(t, ctrl.SubmitInvestment(callbackCtx(b, tgCallback.SubmitInvestment)))

			assert.Equal(t, []string{tt.wantMsg}, fake.texts("sendMessage"))
			draft, ok := sessions.get(chatKeyOf())
			require.True(t, ok, "draft must survive a failed submit")
			assert.Equal(t, confirmedDraft().Action, draft.Action)
			assert.Equal(t, "Alice", draft.Name)
			svc.AssertNotCalled(t, "Investments", mock.Anything)
		})
	}
}

func TestSubmitInvestment_WithoutDraft(t *testing.T) {
	b, fake := newTestBot(t)
	svc := new(MockInvestmentService)
	ctrl := NewController(svc, newMemSession())

	require.NoError(t, ctrl.SubmitInvestment(callbackCtx(b, tgCallback.SubmitInvestment)))

	assert.Equal(t, []string{noFormMsg}, fake.texts("sendMessage"))
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmitInvestment_UnfinishedFormIsRestored(t *testing.T) {
	b, fake := newTestBot(t)
	sessions := newMemSession()
	svc := new(MockInvestmentService)
	ctrl := NewController(svc, sessions)

	require.NoError(t, sessions.SetSession(context.Background(), chatKeyOf(), model.Session{Action: model.ExpectingAmount, Name: "Bob"}))

	require.NoError(t, ctrl.SubmitInvestment(callbackCtx(b, tgCallback.SubmitInvestment)))

	assert.Equal(t, []string{noFormMsg}, fake.texts("sendMessage"))
	draft, ok := sessions.get(chatKeyOf())
	require.True(t, ok)
	assert.Equal(t, model.ExpectingAmount, draft.Action)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmitInvestment_DoubleTapRecordsOnce(t *testing.T) {
	b, fake := newTestBot(t)
	sessions := newMemSession()
	svc := new(MockInvestmentService)
	ctrl := NewController(svc, sessions)

	require.NoError(t, sessions.SetSession(context.Background(), chatKeyOf(), confirmedDraft()))
	svc.On("Submit", mock.Anything, mock.Anything).After(50*time.Millisecond).Return(savedResult(), nil)
	svc.On("Investments", mock.Anything).Return(model.InvestmentsPage{Ticker: "TTWO"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ctrl.SubmitInvestment(callbackCtx(b, tgCallback.SubmitInvestment)))
		}()
	}
	wg.Wait()

	svc.AssertNumberOfCalls(t, "Submit", 1)
	assert.Contains(t, fake.texts("sendMessage"), noFormMsg)
	assert.Len(t, fake.texts("editMessageText"), 1)
}

func TestCancelInvestment(t *testing.T) {
	b, fake := newTestBot(t)
	sessions := newMemSession()
	ctrl := NewController(new(MockInvestmentService), sessions)

	require.NoError(t, sessions.SetSession(context.Background(), chatKeyOf(), confirmedDraft()))

	require.NoError(t, ctrl.CancelInvestment(callbackCtx(b, tgCallback.CancelInvestment)))

	_, ok := sessions.get(chatKeyOf())
	assert.False(t, ok)
	assert.Equal(t, []string{cancelledMsg}, fake.texts("editMessageText"))
}

func TestSendLedger_NoInvestments(t *testing.T) {
	b, fake := newTestBot(t)
	svc := new(MockInvestmentService)
	ctrl := NewController(svc, newMemSession())

	svc.On("LedgerPath", mock.Anything).Return("", false, nil).Once()

	require.NoError(t, ctrl.SendLedger(textCtx(b, "/ledger")))

	assert.Equal(t, []string{telebotConverter.NoInvestmentsMsg}, fake.texts("sendMessage"))
	svc.AssertExpectations(t)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1000", want: "1000"},
		{in: " 250.50 ", want: "250.5"},
		{in: "1,000.25", want: "1000.25"},
		{in: "$500", want: "500"},
		{in: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-10", "12e"} {
		t.Run(in, func(t *testing.T) {
			_, err := parseAmount(in)
			assert.Error(t, err)
		})
	}
}
