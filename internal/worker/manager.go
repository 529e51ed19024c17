package worker

import (
	"context"
	"time"

	"turnitinbot/internal/intake"
	"turnitinbot/internal/logger"
	"turnitinbot/internal/models"
)

// Checker is the vendor client surface the manager needs.
type Checker interface {
	Submit(ctx context.Context, path string) (string, error)
	WaitForReport(ctx context.Context, submissionID string) (string, error)
}

// SubmissionLog records check lifecycles durably.
type SubmissionLog interface {
	Create(ctx context.Context, documentID, userID int64, vendorID string) (*models.Submission, error)
	MarkReady(ctx context.Context, id int64, reportURL string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Replier delivers follow-up messages back to the user.
type Replier interface {
	SendReply(userID int64, reply models.Reply) error
}

const defaultCheckTimeout = 10 * time.Minute

// Manager executes plagiarism checks handed over by the dispatcher. Each
// check blocks only the worker goroutine running it; other users' jobs keep
// flowing through the rest of the pool.
type Manager struct {
	checker Checker
	subs    SubmissionLog
	cache   *StatusCache
	replier Replier
	timeout time.Duration
	log     *logger.Logger
}

func NewManager(checker Checker, subs SubmissionLog, cache *StatusCache, replier Replier, timeout time.Duration, log *logger.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		checker: checker,
		subs:    subs,
		cache:   cache,
		replier: replier,
		timeout: timeout,
		log:     log,
	}
}

// SetReplier installs the transport after construction. The bot depends on
// the intake service, which depends on the dispatcher, so the reply path is
// wired last, before any job is enqueued.
func (m *Manager) SetReplier(r Replier) {
	m.replier = r
}

func (m *Manager) handleCheck(req *intake.CheckRequest) {
	if req == nil {
		return
	}
	log := m.log.With("user_id", req.UserID, "document_id", req.DocumentID)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	vendorID, err := m.checker.Submit(ctx, req.Path)
	if err != nil {
		log.Warn("vendor upload failed", "error", err)
		m.reply(req.UserID, "Failed to check the document: "+err.Error())
		return
	}
	log.Info("document submitted to vendor", "vendor_id", vendorID)

	sub, err := m.subs.Create(ctx, req.DocumentID, req.UserID, vendorID)
	if err != nil {
		// The vendor already has the document; keep going and report,
		// the durable record is just missing.
		log.Error("record submission failed", "vendor_id", vendorID, "error", err)
	} else {
		m.cache.Store(ctx, sub)
	}

	reportURL, err := m.checker.WaitForReport(ctx, vendorID)
	if err != nil {
		log.Warn("report not available", "vendor_id", vendorID, "error", err)
		if sub != nil {
			if ferr := m.subs.MarkFailed(ctx, sub.ID, err.Error()); ferr != nil {
				log.Error("mark submission failed", "submission_id", sub.ID, "error", ferr)
			} else {
				sub.Status = models.SubmissionFailed
				sub.Error = err.Error()
				m.cache.Store(ctx, sub)
			}
		}
		m.reply(req.UserID, "Failed to check the document: "+err.Error())
		return
	}

	log.Info("report ready", "vendor_id", vendorID, "report_url", reportURL)
	if sub != nil {
		if err := m.subs.MarkReady(ctx, sub.ID, reportURL); err != nil {
			log.Error("mark submission ready", "submission_id", sub.ID, "error", err)
		} else {
			sub.Status = models.SubmissionReady
			sub.ReportURL = reportURL
			m.cache.Store(ctx, sub)
		}
	}
	m.reply(req.UserID, "Turnitin Report URL: "+reportURL)
}

func (m *Manager) reply(userID int64, text string) {
	if m.replier == nil {
		return
	}
	if err := m.replier.SendReply(userID, models.Reply{Text: text}); err != nil {
		m.log.Error("send reply failed", "user_id", userID, "error", err)
	}
}
