package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/relay"
	"healthtech/api/internal/store"
)

const (
	StartText    = "Send me a photo of a prescription or blood report and I will summarize the medications, dosages and precautions."
	WorkingText  = "Analyzing..."
	BusyText     = "Still working on your previous image, please wait."
	UnknownText  = "Unknown command. Send /start for help."
	maxReplyLen  = 3900
	errorPrefix  = "An error occurred: "
	downloadWait = 60 * time.Second
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Router answers chat messages. Each chat has at most one analysis running.
type Router struct {
	Bot   Bot
	Relay *relay.Relay

	httpc *http.Client
	busy  sync.Map // chat id -> struct{}
	wg    sync.WaitGroup
}

func NewRouter(bot Bot, r *relay.Relay) *Router {
	return &Router{
		Bot:   bot,
		Relay: r,
		httpc: &http.Client{Timeout: downloadWait},
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.handleCommand(cid, msg.Command())
		return
	}

	fileID, name, mimeType, ok := pickImage(msg)
	if !ok {
		r.send(cid, StartText)
		return
	}
	if _, running := r.busy.LoadOrStore(cid, struct{}{}); running {
		r.send(cid, BusyText)
		return
	}
	r.send(cid, WorkingText)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Delete(cid)
		r.analyze(ctx, cid, fileID, name, mimeType)
	}()
}

// Wait blocks until every started analysis has replied.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) handleCommand(cid int64, cmd string) {
	switch cmd {
	case "start", "help":
		r.send(cid, StartText)
	default:
		r.send(cid, UnknownText)
	}
}

// pickImage returns the largest photo size, or an image sent as a document.
func pickImage(msg *tgbotapi.Message) (fileID, name, mimeType string, ok bool) {
	if n := len(msg.Photo); n > 0 {
		return msg.Photo[n-1].FileID, "", "image/jpeg", true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(d.MimeType, "image/") {
		return d.FileID, d.FileName, d.MimeType, true
	}
	return "", "", "", false
}

func (r *Router) analyze(ctx context.Context, cid int64, fileID, name, mimeType string) {
	req := relay.Request{
		Source:    store.SourceTelegram,
		RequestID: uuid.NewString(),
	}
	logger := log.With().
		Str("request_id", req.RequestID).
		Int64("chat_id", cid).
		Logger()
	ctx = logger.WithContext(ctx)

	img, err := r.fetch(ctx, fileID, name, mimeType)
	if err != nil {
		r.Relay.Fail(ctx, req, err)
		r.send(cid, errorPrefix+relay.Message(err))
		return
	}
	req.Image = img

	text, err := r.Relay.Analyze(ctx, req)
	if err != nil {
		r.send(cid, errorPrefix+relay.Message(err))
		return
	}
	r.send(cid, truncate(analysis.CleanText(text), maxReplyLen))
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
