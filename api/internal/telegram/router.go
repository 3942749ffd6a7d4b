package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"plant-doctor/api/internal/apperr"
	"plant-doctor/api/internal/plant/flow"
	"plant-doctor/api/internal/util"
)

// maxMessage keeps replies under Telegram's 4096 character limit.
const maxMessage = 3900

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot   Sender
	Flows *flow.Flows
	Log   *zap.Logger

	// Fetch downloads a Telegram file; defaults to an HTTP GET.
	Fetch func(ctx context.Context, url string) ([]byte, error)

	chats chatState
}

func NewRouter(bot Sender, flows *flow.Flows, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{Bot: bot, Flows: flows, Log: log, Fetch: download}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptPhoto(ctx, msg.Chat.ID, ph.FileID, "", msg.Caption)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Document.FileID, msg.Document.MimeType, msg.Caption)
	default:
		r.send(msg.Chat.ID, "Send me a photo of the plant. Add a caption to describe what you see.")
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	arg := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "diseases":
		r.sendMarkdown(cid, formatDiseases(r.Flows.Catalog().Diseases()))
	case "disease":
		if arg == "" {
			r.send(cid, "Usage: /disease <slug>. See /diseases for the list.")
			return
		}
		d, err := r.Flows.Catalog().DiseaseBySlug(arg)
		if err != nil {
			r.SendError(cid, err)
			return
		}
		r.sendMarkdown(cid, formatDisease(d))
	case "summary":
		if arg == "" {
			r.send(cid, "Usage: /summary <slug>")
			return
		}
		flows, err := r.flowsFor(cid)
		if err != nil {
			r.SendError(cid, err)
			return
		}
		d, res, err := flows.SummarizeDiseaseBySlug(ctx, arg)
		if err != nil {
			r.SendError(cid, err)
			return
		}
		r.sendMarkdown(cid, formatSummary(d.Name, res.Summary))
	case "history":
		r.sendMarkdown(cid, formatHistory(r.Flows.Catalog().History()))
	case "engine":
		r.handleEngineCommand(cid, arg)
	default:
		r.send(cid, "Unknown command. Try /help.")
	}
}

// handleEngineCommand switches the engine used for this chat.
//
//	/engine
//	/engine gemini
//	/engine gpt
func (r *Router) handleEngineCommand(chatID int64, arg string) {
	names := r.Flows.Engines().Names()
	if arg == "" {
		cur := r.currentEngine(chatID)
		m := tgbotapi.NewMessage(chatID, "Current engine: "+cur+"\nAvailable: "+strings.Join(names, " | "))
		m.ReplyMarkup = makeEngineKeyboard(names)
		r.sendChattable(m)
		return
	}
	r.switchEngine(chatID, strings.ToLower(arg))
}

func (r *Router) switchEngine(chatID int64, name string) {
	m, err := r.Flows.Engines().GetEngine(name)
	if err != nil {
		r.send(chatID, "Unknown engine. Available: "+strings.Join(r.Flows.Engines().Names(), " | "))
		return
	}
	r.chats.setEngine(chatID, m.Name())
	r.send(chatID, fmt.Sprintf("OK, using %s (%s).", m.Name(), m.GetModel()))
}

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil {
		return
	}
	if name, ok := strings.CutPrefix(cb.Data, engineCallbackPrefix); ok {
		edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		r.sendChattable(edit)
		r.switchEngine(cb.Message.Chat.ID, name)
	}
}

func (r *Router) acceptPhoto(ctx context.Context, chatID int64, fileID, mime, caption string) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(chatID, fmt.Errorf("get file: %w", err))
		return
	}
	img, err := r.Fetch(ctx, url)
	if err != nil {
		r.SendError(chatID, fmt.Errorf("download: %w", err))
		return
	}
	flows, err := r.flowsFor(chatID)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, "Photo received, diagnosing...")

	mime = util.PickMIME(mime, "", img)
	res, err := flows.Diagnose(ctx, diagnosisRequest(util.MakeDataURL(mime, img), caption))
	if err != nil {
		r.Log.Warn("diagnose failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.SendError(chatID, err)
		return
	}
	r.sendMarkdown(chatID, formatDiagnosis(res))
}

func (r *Router) flowsFor(chatID int64) (*flow.Flows, error) {
	name := r.chats.engine(chatID)
	if name == "" {
		return r.Flows, nil
	}
	return r.Flows.Using(name)
}

func (r *Router) currentEngine(chatID int64) string {
	if name := r.chats.engine(chatID); name != "" {
		return name
	}
	return r.Flows.Engine().Name()
}

func (r *Router) send(chatID int64, text string) {
	r.sendChattable(tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessage)))
}

func (r *Router) sendMarkdown(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessage))
	m.ParseMode = tgbotapi.ModeMarkdown
	r.sendChattable(m)
}

func (r *Router) sendChattable(c tgbotapi.Chattable) {
	if _, err := r.Bot.Send(c); err != nil {
		r.Log.Warn("telegram send failed", zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, errorText(err))
}

func errorText(err error) string {
	var ae *apperr.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to answer. Please try again."
	case errors.As(err, &ae) && ae.Code == apperr.CodeInvalidInput:
		return "Invalid input: " + ae.Message
	case errors.As(err, &ae) && ae.Code == apperr.CodeNotFound:
		return ae.Message + ". See /diseases for the list."
	case errors.As(err, &ae) && ae.Code == apperr.CodeModelOutput:
		return ae.Message
	case errors.As(err, &ae) && ae.Code == apperr.CodeModelInvocation:
		return "The AI model is unavailable right now. Please try again."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
