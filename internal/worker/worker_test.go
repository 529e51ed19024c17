package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"turnitinbot/internal/intake"
	"turnitinbot/internal/logger"
	"turnitinbot/internal/models"
)

type fakeChecker struct {
	mu        sync.Mutex
	submitted []string
	submitErr error
	reportURL string
	reportErr error
	gate      chan struct{} // when set, first Submit blocks until closed
	gated     bool
}

func (f *fakeChecker) Submit(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, path)
	block := f.gate != nil && !f.gated
	if block {
		f.gated = true
	}
	f.mu.Unlock()
	if block {
		<-f.gate
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "vendor-1", nil
}

func (f *fakeChecker) WaitForReport(ctx context.Context, submissionID string) (string, error) {
	if f.reportErr != nil {
		return "", f.reportErr
	}
	return f.reportURL, nil
}

func (f *fakeChecker) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.submitted))
	copy(out, f.submitted)
	return out
}

type fakeSubLog struct {
	mu      sync.Mutex
	nextID  int64
	created []*models.Submission
	ready   map[int64]string
	failed  map[int64]string
}

func newFakeSubLog() *fakeSubLog {
	return &fakeSubLog{ready: make(map[int64]string), failed: make(map[int64]string)}
}

func (f *fakeSubLog) Create(ctx context.Context, documentID, userID int64, vendorID string) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &models.Submission{
		ID:         f.nextID,
		DocumentID: documentID,
		UserID:     userID,
		VendorID:   vendorID,
		Status:     models.SubmissionPending,
	}
	f.created = append(f.created, sub)
	return sub, nil
}

func (f *fakeSubLog) MarkReady(ctx context.Context, id int64, reportURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready[id] = reportURL
	return nil
}

func (f *fakeSubLog) MarkFailed(ctx context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	return nil
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []models.Reply
	users   []int64
}

func (f *fakeReplier) SendReply(userID int64, reply models.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	f.replies = append(f.replies, reply)
	return nil
}

func (f *fakeReplier) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.replies))
	for i, r := range f.replies {
		out[i] = r.Text
	}
	return out
}

func TestManagerReportsReadyCheck(t *testing.T) {
	checker := &fakeChecker{reportURL: "https://reports.example/r/42"}
	subs := newFakeSubLog()
	replier := &fakeReplier{}
	m := NewManager(checker, subs, nil, replier, time.Minute, logger.NewNop())

	m.handleCheck(&intake.CheckRequest{UserID: 7, DocumentID: 3, Path: "/tmp/3_essay.docx"})

	if got := checker.paths(); len(got) != 1 || got[0] != "/tmp/3_essay.docx" {
		t.Fatalf("unexpected submits: %v", got)
	}
	if len(subs.created) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs.created))
	}
	if url := subs.ready[subs.created[0].ID]; url != "https://reports.example/r/42" {
		t.Fatalf("submission not marked ready: %v", subs.ready)
	}
	texts := replier.texts()
	if len(texts) != 1 || texts[0] != "Turnitin Report URL: https://reports.example/r/42" {
		t.Fatalf("unexpected replies: %v", texts)
	}
	if replier.users[0] != 7 {
		t.Fatalf("reply went to user %d", replier.users[0])
	}
}

func TestManagerReportsUploadFailure(t *testing.T) {
	checker := &fakeChecker{submitErr: errors.New("upload rejected: status 401")}
	subs := newFakeSubLog()
	replier := &fakeReplier{}
	m := NewManager(checker, subs, nil, replier, time.Minute, logger.NewNop())

	m.handleCheck(&intake.CheckRequest{UserID: 7, DocumentID: 3, Path: "/tmp/doc"})

	if len(subs.created) != 0 {
		t.Fatalf("no submission should be recorded on upload failure")
	}
	texts := replier.texts()
	if len(texts) != 1 || texts[0] != "Failed to check the document: upload rejected: status 401" {
		t.Fatalf("unexpected replies: %v", texts)
	}
}

func TestManagerMarksFailedWhenReportUnavailable(t *testing.T) {
	checker := &fakeChecker{reportErr: errors.New("report polling exhausted")}
	subs := newFakeSubLog()
	replier := &fakeReplier{}
	m := NewManager(checker, subs, nil, replier, time.Minute, logger.NewNop())

	m.handleCheck(&intake.CheckRequest{UserID: 9, DocumentID: 4, Path: "/tmp/doc"})

	if len(subs.created) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs.created))
	}
	if reason := subs.failed[subs.created[0].ID]; reason != "report polling exhausted" {
		t.Fatalf("submission not marked failed: %v", subs.failed)
	}
	texts := replier.texts()
	if len(texts) != 1 || texts[0] != "Failed to check the document: report polling exhausted" {
		t.Fatalf("unexpected replies: %v", texts)
	}
}

// workerCount reports running workers.
func (p *jobChannelPool) workerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func TestDispatcherWarmsUpMinWorkers(t *testing.T) {
	m := NewManager(&fakeChecker{}, newFakeSubLog(), nil, &fakeReplier{}, time.Minute, logger.NewNop())
	d := NewDispatcher(DispatcherConfig{MinWorkers: 3, MaxWorkers: 5, QueueSize: 4}, m)

	if got := d.pool.workerCount(); got != 3 {
		t.Fatalf("expected 3 warm workers, got %d", got)
	}
}

func bareDispatcher() *Dispatcher {
	return &Dispatcher{
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
	}
}

func check(userID, docID int64) Job {
	return Job{Type: Check, Check: &intake.CheckRequest{UserID: userID, DocumentID: docID}}
}

func TestPopNextRotatesUsers(t *testing.T) {
	d := bareDispatcher()

	// User 1 piles up three jobs, user 2 arrives with one in between.
	d.enqueueJob(check(1, 101))
	d.enqueueJob(check(1, 102))
	d.enqueueJob(check(2, 201))
	d.enqueueJob(check(1, 103))

	var order []int64
	for {
		job, ok := d.popNext()
		if !ok {
			break
		}
		order = append(order, job.Check.DocumentID)
	}
	want := []int64{101, 201, 102, 103}
	if len(order) != len(want) {
		t.Fatalf("popped %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("popped %v, want %v", order, want)
		}
	}
	if len(d.queues) != 0 || d.ready.Len() != 0 {
		t.Fatalf("dispatcher state not drained: %d queues, %d ready", len(d.queues), d.ready.Len())
	}
}

func TestPopNextKeepsPerUserOrder(t *testing.T) {
	d := bareDispatcher()
	d.enqueueJob(check(5, 1))
	d.enqueueJob(check(5, 2))
	d.enqueueJob(check(5, 3))

	var order []int64
	for {
		job, ok := d.popNext()
		if !ok {
			break
		}
		order = append(order, job.Check.DocumentID)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("jobs for one user must stay FIFO, got %v", order)
	}
}

func TestDispatcherBusyWhenQueueFull(t *testing.T) {
	checker := &fakeChecker{gate: make(chan struct{}), reportURL: "https://reports.example/r/1"}
	m := NewManager(checker, newFakeSubLog(), nil, &fakeReplier{}, time.Minute, logger.NewNop())
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, m)

	sawBusy := false
	for i := 0; i < 20; i++ {
		if err := d.Enqueue(intake.CheckRequest{UserID: 1, DocumentID: int64(i)}); errors.Is(err, ErrDispatcherBusy) {
			sawBusy = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(checker.gate)
	if !sawBusy {
		t.Fatalf("expected ErrDispatcherBusy with a single blocked worker")
	}
}

func TestDispatcherCancelUserDropsPending(t *testing.T) {
	d := bareDispatcher()
	d.enqueueJob(check(1, 101))
	d.enqueueJob(check(2, 201))
	d.enqueueJob(check(1, 102))

	d.CancelUser(1)

	job, ok := d.popNext()
	if !ok || job.Check.UserID != 2 {
		t.Fatalf("expected only user 2's job to survive, got %+v ok=%v", job, ok)
	}
	if _, ok := d.popNext(); ok {
		t.Fatalf("cancelled user's jobs still pending")
	}
}
