package telegram

import (
	"context"
	"io"
	"time"

	tele "gopkg.in/telebot.v3"

	"turnitinbot/internal/intake"
	"turnitinbot/internal/logger"
	"turnitinbot/internal/models"
)

const (
	pollTimeout    = 10 * time.Second
	handlerTimeout = 2 * time.Minute
	maxDownload    = 20 << 20 // Telegram bot API download cap
)

// Bot bridges Telegram updates to the intake service and delivers worker
// replies back to users.
type Bot struct {
	bot *tele.Bot
	svc *intake.Service
	log *logger.Logger

	initialKeyboard *tele.ReplyMarkup
	regionKeyboard  *tele.ReplyMarkup
	yesNoKeyboard   *tele.ReplyMarkup
}

func NewBot(token string, svc *intake.Service, log *logger.Logger) (*Bot, error) {
	if log == nil {
		log = logger.NewNop()
	}
	inner, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{bot: inner, svc: svc, log: log}
	b.buildKeyboards()

	inner.Handle("/start", b.onText)
	inner.Handle("/help", b.onText)
	inner.Handle(tele.OnText, b.onText)
	inner.Handle(tele.OnDocument, b.onDocument)
	return b, nil
}

// Start begins long polling and blocks until Stop is called.
func (b *Bot) Start() {
	b.log.Info("telegram bot starting")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

func (b *Bot) buildKeyboards() {
	initial := &tele.ReplyMarkup{ResizeKeyboard: true}
	initial.Reply(initial.Row(initial.Text("/start"), initial.Text("/help")))
	b.initialKeyboard = initial

	region := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	region.Reply(region.Row(region.Text("\U0001F30D Turnitin Intl")))
	b.regionKeyboard = region

	yesNo := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	yesNo.Reply(yesNo.Row(yesNo.Text("YES"), yesNo.Text("NO")))
	b.yesNoKeyboard = yesNo
}

func (b *Bot) onText(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	resp, err := b.svc.OnText(ctx, c.Sender().ID, c.Text())
	if err != nil {
		b.log.Error("text handler failed", "user_id", c.Sender().ID, "error", err)
	}
	return b.send(c, resp)
}

func (b *Bot) onDocument(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	doc := c.Message().Document
	data, err := b.download(doc)
	if err != nil {
		b.log.Error("document download failed",
			"user_id", c.Sender().ID, "file", doc.FileName, "error", err)
		return c.Send("Error processing the document. Please try again later.")
	}

	resp, err := b.svc.OnDocument(ctx, intake.Document{
		UserID:   c.Sender().ID,
		FileName: doc.FileName,
		MimeType: doc.MIME,
		Data:     data,
	})
	if err != nil {
		b.log.Info("document rejected", "user_id", c.Sender().ID, "error", err)
	}
	return b.send(c, resp)
}

func (b *Bot) download(doc *tele.Document) ([]byte, error) {
	rc, err := b.bot.File(&doc.File)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxDownload))
}

func (b *Bot) send(c tele.Context, resp intake.Response) error {
	if resp.Reply.Text != "" {
		if err := c.Send(resp.Reply.Text, b.markup(resp.Keyboard)); err != nil {
			return err
		}
	}
	if resp.Reply.AttachmentPath != "" {
		attachment := &tele.Document{
			File:     tele.FromDisk(resp.Reply.AttachmentPath),
			FileName: resp.Reply.AttachmentName,
			Caption:  resp.Reply.Caption,
		}
		return c.Send(attachment)
	}
	return nil
}

func (b *Bot) markup(k intake.Keyboard) *tele.ReplyMarkup {
	switch k {
	case intake.KeyboardInitial:
		return b.initialKeyboard
	case intake.KeyboardRegion:
		return b.regionKeyboard
	case intake.KeyboardYesNo:
		return b.yesNoKeyboard
	default:
		return &tele.ReplyMarkup{RemoveKeyboard: true}
	}
}

// SendReply delivers an asynchronous message, used by the plagiarism check
// worker once a report settles.
func (b *Bot) SendReply(userID int64, reply models.Reply) error {
	recipient := tele.ChatID(userID)
	if reply.Text != "" {
		if _, err := b.bot.Send(recipient, reply.Text); err != nil {
			return err
		}
	}
	if reply.AttachmentPath != "" {
		attachment := &tele.Document{
			File:     tele.FromDisk(reply.AttachmentPath),
			FileName: reply.AttachmentName,
			Caption:  reply.Caption,
		}
		if _, err := b.bot.Send(recipient, attachment); err != nil {
			return err
		}
	}
	return nil
}
