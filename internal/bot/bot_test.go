package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/raine/visual-measurement/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adminId = int64(1)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *botApiMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

type processorMock struct {
	mock.Mock
}

func (m *processorMock) Process(ctx context.Context, productID string, urls []string) *measurement.ProductMeasurement {
	args := m.Called(productID, urls)
	return args.Get(0).(*measurement.ProductMeasurement)
}

func makeMessage(userId int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(userId, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func makeUpdate(userId int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: userId},
			Chat:      &tgbotapi.Chat{ID: userId},
			Text:      text,
		},
	}
}

func setupBot(t *testing.T) (*Bot, *botApiMock, *processorMock, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tg := new(botApiMock)
	processor := new(processorMock)
	return NewBot(tg, store, processor, adminId), tg, processor, store
}

func TestHandleUpdate_NonWhitelistedUser(t *testing.T) {
	bot, tg, processor, _ := setupBot(t)
	userId := int64(99999)

	tg.On("Send", makeMessage(userId, formatReplyText(MsgNotAllowed, userId))).Return(tgbotapi.Message{}, nil).Once()

	bot.HandleUpdate(context.Background(), makeUpdate(userId, "/measure P-1 https://cdn.example.com/images/a.jpg"))

	tg.AssertExpectations(t)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHandleUpdate_IgnoresNonMessageUpdates(t *testing.T) {
	bot, tg, _, _ := setupBot(t)
	bot.HandleUpdate(context.Background(), tgbotapi.Update{})
	tg.AssertNotCalled(t, "Send", mock.Anything)
}

func TestHandleUpdate_Start(t *testing.T) {
	bot, tg, _, _ := setupBot(t)

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgStart))).Return(tgbotapi.Message{}, nil).Once()

	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/start"))

	tg.AssertExpectations(t)
}

func TestHandleUpdate_MeasureUsage(t *testing.T) {
	bot, tg, processor, _ := setupBot(t)

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgMeasureUsage))).Return(tgbotapi.Message{}, nil).Once()

	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/measure P-1"))

	tg.AssertExpectations(t)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHandleUpdate_MeasureByWhitelistedUser(t *testing.T) {
	bot, tg, processor, store := setupBot(t)
	userId := int64(42)
	require.NoError(t, store.AddAllowedUser(userId, adminId))

	urls := []string{"https://cdn.example.com/images/a.jpg", "https://cdn.example.com/images/b.jpg"}
	processor.On("Process", "P_1", urls).Return(&measurement.ProductMeasurement{
		ProductID:        "P_1",
		Status:           measurement.StatusSuccess,
		VisualDimensions: measurement.ZeroDimensions(),
		ImagesAnalyzed:   2,
		ImageValidation:  measurement.ImageValidation{TotalProvided: 2, ValidCount: 2},
	}).Once()

	tg.On("Send", makeMessage(userId, formatReplyText(MsgMeasureStarted, `P\_1`, 2))).Return(tgbotapi.Message{}, nil).Once()
	tg.On("Request", tgbotapi.NewChatAction(userId, tgbotapi.ChatTyping)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()
	tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return strings.Contains(msg.Text, `✅ *P\_1*: success`) && strings.Contains(msg.Text, "Images analyzed: 2/2")
	})).Return(tgbotapi.Message{}, nil).Once()

	bot.HandleUpdate(context.Background(), makeUpdate(userId, "/measure P_1\nhttps://cdn.example.com/images/a.jpg https://cdn.example.com/images/b.jpg"))

	tg.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestHandleUpdate_MeasureAlreadyRunning(t *testing.T) {
	bot, tg, processor, _ := setupBot(t)
	require.True(t, bot.acquire(adminId))

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgMeasureInProgress))).Return(tgbotapi.Message{}, nil).Once()

	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/measure P-1 https://cdn.example.com/images/a.jpg"))

	tg.AssertExpectations(t)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)

	bot.release(adminId)
	assert.True(t, bot.acquire(adminId))
}

func TestHandleUpdate_AdminCommands(t *testing.T) {
	bot, tg, _, store := setupBot(t)

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgUserAllowed, int64(42)))).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/allow 42"))

	allowed, err := store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.True(t, allowed)

	tg.On("Send", mock.MatchedBy(func(msg tgbotapi.MessageConfig) bool {
		return strings.HasPrefix(msg.Text, "*Allowed users:*") && strings.Contains(msg.Text, "`42`")
	})).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/users"))

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgUserDenied, int64(42)))).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/deny 42"))

	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgNoAllowedUsers))).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/users"))

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgInvalidUserID))).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/allow abc"))

	tg.On("Send", makeMessage(adminId, formatReplyText(MsgAllowUsage))).Return(tgbotapi.Message{}, nil).Once()
	bot.HandleUpdate(context.Background(), makeUpdate(adminId, "/allow"))

	tg.AssertExpectations(t)
}

func TestHandleUpdate_AdminCommandsRefusedForUsers(t *testing.T) {
	bot, tg, _, store := setupBot(t)
	userId := int64(42)
	require.NoError(t, store.AddAllowedUser(userId, adminId))

	tg.On("Send", makeMessage(userId, formatReplyText(MsgAdminOnly))).Return(tgbotapi.Message{}, nil).Times(3)

	bot.HandleUpdate(context.Background(), makeUpdate(userId, "/allow 7"))
	bot.HandleUpdate(context.Background(), makeUpdate(userId, "/deny 42"))
	bot.HandleUpdate(context.Background(), makeUpdate(userId, "/users"))

	tg.AssertExpectations(t)
	allowed, err := store.IsUserAllowed(7)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRegisterCommands(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Request", mock.MatchedBy(func(c tgbotapi.SetMyCommandsConfig) bool {
		return len(c.Commands) == len(botCommands) && c.Commands[0].Command == "measure"
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	RegisterCommands(tg)

	tg.AssertExpectations(t)
}

func TestParseCommand(t *testing.T) {
	command, args := parseCommand("/measure@measure_bot  P-1\nhttps://a.example.com/x.jpg ")
	assert.Equal(t, "/measure", command)
	assert.Equal(t, []string{"P-1", "https://a.example.com/x.jpg"}, args)

	command, args = parseCommand("")
	assert.Equal(t, "", command)
	assert.Empty(t, args)
}
