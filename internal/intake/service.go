// Package intake receives inbound bot events, consults the conversation
// flow, and on an accepted upload drives the document pipeline: store,
// count, and hand off to the plagiarism check queue.
package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"turnitinbot/internal/flow"
	"turnitinbot/internal/logger"
	"turnitinbot/internal/models"
	"turnitinbot/internal/storage"
	"turnitinbot/internal/wordcount"
)

// ErrBadSequence is returned when a document arrives before the user
// finished the prompt sequence.
var ErrBadSequence = errors.New("conversation sequence not completed")

// Keyboard tells the transport which reply keyboard to attach.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardInitial
	KeyboardRegion
	KeyboardYesNo
)

// Response is what the bot should send back for one inbound event.
type Response struct {
	Reply    models.Reply
	Keyboard Keyboard
}

// Document is one inbound upload event from the transport.
type Document struct {
	UserID   int64
	FileName string
	MimeType string
	Data     []byte
}

// DocumentSaver persists accepted uploads.
type DocumentSaver interface {
	Save(ctx context.Context, userID int64, raw []byte, originalName, mimeType string) (*models.StoredDocument, error)
}

// WordCounter reports the number of words in a stored document.
type WordCounter interface {
	Count(path, declaredType string) (int, error)
}

// CheckRequest asks for a plagiarism check of a stored document.
type CheckRequest struct {
	UserID     int64
	DocumentID int64
	Path       string
}

// CheckQueue accepts check requests for asynchronous processing. Enqueue
// must not block; a full queue returns an error.
type CheckQueue interface {
	Enqueue(req CheckRequest) error
}

// Service is the intake orchestrator. It never mutates conversation state
// on document events; only text inputs move the flow.
type Service struct {
	flows      *flow.Tracker
	docs       DocumentSaver
	counter    WordCounter
	checks     CheckQueue // nil disables the check handoff entirely
	resultPath string     // operator-provided result file sent back after intake
	log        *logger.Logger
}

func NewService(flows *flow.Tracker, docs DocumentSaver, counter WordCounter, checks CheckQueue, resultPath string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		flows:      flows,
		docs:       docs,
		counter:    counter,
		checks:     checks,
		resultPath: resultPath,
		log:        log,
	}
}

// OnText feeds one text input through the conversation flow and returns the
// prompt or guidance to reply with.
func (s *Service) OnText(ctx context.Context, userID int64, text string) (Response, error) {
	res, err := s.flows.Advance(ctx, userID, text)
	if err != nil {
		s.log.Error("advance conversation failed", "user_id", userID, "error", err)
		return Response{Reply: models.Reply{Text: msgProcessingError}}, err
	}
	return s.promptResponse(res), nil
}

// OnDocument runs the document pipeline for one upload. Every failure is
// converted into a user-facing reply; the returned error is informational
// for the caller's logging only.
func (s *Service) OnDocument(ctx context.Context, doc Document) (Response, error) {
	eventID := uuid.NewString()
	log := s.log.With("event_id", eventID, "user_id", doc.UserID, "file", doc.FileName)

	sess, err := s.flows.Peek(ctx, doc.UserID)
	if err != nil {
		log.Error("load session failed", "error", err)
		return Response{Reply: models.Reply{Text: msgProcessingError}}, err
	}
	if sess.State != flow.StateReady {
		log.Info("document rejected before sequence completed", "state", sess.State)
		return Response{Reply: models.Reply{Text: msgUploadSequence}}, ErrBadSequence
	}

	stored, err := s.docs.Save(ctx, doc.UserID, doc.Data, doc.FileName, doc.MimeType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrInvalidName):
			log.Info("document rejected", "mime", doc.MimeType, "error", err)
			return Response{Reply: models.Reply{Text: msgUnsupportedType}}, err
		default:
			log.Error("save document failed", "error", err)
			return Response{Reply: models.Reply{Text: msgProcessingError}}, err
		}
	}
	log.Info("document stored", "document_id", stored.ID, "size", stored.SizeBytes)

	wordLine := ""
	count, err := s.counter.Count(stored.StoredPath, stored.MimeType)
	switch {
	case err == nil:
		wordLine = fmt.Sprintf("Word count: %d", count)
	case errors.Is(err, wordcount.ErrUnsupportedType):
		wordLine = "Word count: unavailable for this file type"
	default:
		log.Warn("word count failed", "document_id", stored.ID, "error", err)
		wordLine = fmt.Sprintf("Word count: unavailable (%s)", stored.OriginalName)
	}

	resp := s.summaryResponse(stored, wordLine)

	if s.checks != nil {
		req := CheckRequest{UserID: doc.UserID, DocumentID: stored.ID, Path: stored.StoredPath}
		if err := s.checks.Enqueue(req); err != nil {
			log.Warn("enqueue plagiarism check failed", "document_id", stored.ID, "error", err)
			resp.Reply.Text += "\nFailed to check the document: " + err.Error()
		} else {
			log.Info("plagiarism check queued", "document_id", stored.ID)
		}
	}
	return resp, nil
}

func (s *Service) promptResponse(res flow.Result) Response {
	switch res.Prompt {
	case flow.PromptRegion:
		return Response{Reply: models.Reply{Text: msgRegionPrompt}, Keyboard: KeyboardRegion}
	case flow.PromptBibliography:
		return Response{Reply: models.Reply{Text: msgBibliographyPrompt}, Keyboard: KeyboardYesNo}
	case flow.PromptQuotes:
		return Response{Reply: models.Reply{Text: msgQuotesPrompt}, Keyboard: KeyboardYesNo}
	case flow.PromptReady:
		return Response{Reply: models.Reply{Text: readyMessage(res.Session)}}
	case flow.PromptHelp:
		return Response{Reply: models.Reply{Text: msgHelp}, Keyboard: KeyboardInitial}
	default:
		return Response{Reply: models.Reply{Text: msgSequenceGuidance}, Keyboard: KeyboardInitial}
	}
}

func (s *Service) summaryResponse(stored *models.StoredDocument, wordLine string) Response {
	text := fmt.Sprintf("#Submitted\n#Turnitin Intl\nDocument ID: %d\nFile name: %s\n%s",
		stored.ID, filepath.Base(stored.StoredPath), wordLine)

	resp := Response{}
	if s.resultPath != "" {
		if _, err := os.Stat(s.resultPath); err == nil {
			text += "\nFile available ⬇️"
			resp.Reply.AttachmentPath = s.resultPath
			resp.Reply.AttachmentName = fmt.Sprintf("%d_response.pdf", stored.ID)
			resp.Reply.Caption = fmt.Sprintf("Here is the document you requested with ID %d.", stored.ID)
		} else {
			text += "\nThe document to send back is not available ❌"
		}
	}
	resp.Reply.Text = text
	return resp
}
