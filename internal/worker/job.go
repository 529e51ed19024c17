package worker

import "turnitinbot/internal/intake"

// JobType discriminates what a worker should do with a Job.
type JobType int

const (
	// Check runs one plagiarism check end to end: submit, poll, reply.
	Check JobType = iota
	// Stop retires the receiving worker.
	Stop
)

type Job struct {
	Type  JobType
	Check *intake.CheckRequest
}

func (job Job) userID() int64 {
	switch job.Type {
	case Check:
		if job.Check != nil {
			return job.Check.UserID
		}
	}
	return 0
}
