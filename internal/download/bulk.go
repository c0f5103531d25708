package download

import (
	"context"
	"fmt"
	"sync"
)

// DefaultConcurrency is the bulk worker pool size when none is given.
const DefaultConcurrency = 4

// URLResolver resolves a direct download URL for a (project, file) pair.
// cfapi.Client satisfies this interface.
type URLResolver interface {
	DownloadURL(ctx context.Context, projectID, fileID int) (string, error)
}

// Task is one independent bulk download. Either URL is set directly, or
// ProjectID/FileID identify a file whose URL is resolved through Resolver.
type Task struct {
	URL    string
	Folder string
	Spec   FetchSpec

	ProjectID int
	FileID    int
	Resolver  URLResolver
}

// FetchBulk executes tasks concurrently over a bounded worker pool and
// returns one Result per task in completion order, not submission order.
// onDone, when non-nil, is invoked once per finished task from the
// collecting goroutine.
func (m *Manager) FetchBulk(ctx context.Context, tasks []Task, concurrency int, onDone func(Result)) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	jobs := make(chan Task)
	resultCh := make(chan Result)

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				resultCh <- m.runTask(ctx, task)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(tasks))
	for res := range resultCh {
		results = append(results, res)
		if onDone != nil {
			onDone(res)
		}
	}
	return results
}

func (m *Manager) runTask(ctx context.Context, task Task) Result {
	url := task.URL
	if url == "" {
		if task.Resolver == nil {
			return Result{Err: fmt.Errorf("download: task has neither URL nor resolver")}
		}
		resolved, err := task.Resolver.DownloadURL(ctx, task.ProjectID, task.FileID)
		if err != nil {
			return Result{Err: fmt.Errorf("resolve download URL for %d/%d: %w", task.ProjectID, task.FileID, err)}
		}
		url = resolved
	}
	return m.FetchURL(ctx, url, task.Folder, task.Spec)
}
