package worker

// Worker pulls jobs off its channel and runs them through the manager.
type Worker struct {
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
	quit       chan struct{}
}

func NewWorker(pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
		quit:       make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			select {
			case job := <-w.jobChannel:
				switch job.Type {
				case Check:
					w.manager.handleCheck(job.Check)
					w.pool.Release(w.jobChannel)
				case Stop:
					w.pool.retire(w.jobChannel)
					return
				}
			case <-w.quit:
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}

func (w *Worker) Stop() {
	close(w.quit)
}
