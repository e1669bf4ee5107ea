package runner

import "sync"

type Job func()

// RunPool executes jobs with at most maxWorkers concurrently and waits
// for all of them. Jobs record their own outcomes; the pool only bounds
// parallelism.
func RunPool(maxWorkers int, jobs []Job) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxWorkers)

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			j()
		}(job)
	}
	wg.Wait()
}
