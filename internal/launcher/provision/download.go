package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
)

const (
	MaxWorkers = 8
	MinWorkers = 2
)

// job is one file fetched during the download phase. name is unique per
// cycle; component is what errors are attributed to.
type job struct {
	name      string
	component string
	url       string
	dest      string
}

// downloadAll fetches every job concurrently and returns once all of them
// signaled the barrier. The first failure cancels the remaining transfers.
func (p *Provisioner) downloadAll(ctx context.Context, jobs []job) error {
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.name)
	}
	barrier := NewBarrier(names)
	if barrier.Complete() {
		return nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan job, len(jobs))

	workerCount := p.workerCount(len(jobs))
	log.Debug().Int("jobs", len(jobs)).Int("workers", workerCount).Msg("starting downloads")

	for i := 0; i < workerCount; i++ {
		go p.worker(fetchCtx, cancel, queue, barrier)
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	// Workers always signal, so waiting without ctx cannot hang once the
	// transfers observe fetchCtx.
	return barrier.Wait(context.WithoutCancel(ctx))
}

func (p *Provisioner) workerCount(jobs int) int {
	n := p.cfg.MaxWorkers
	if n <= 0 {
		n = runtime.NumCPU()
		if n < MinWorkers {
			n = MinWorkers
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
	}
	if n > jobs {
		n = jobs
	}
	return n
}

func (p *Provisioner) worker(ctx context.Context, cancel context.CancelFunc, queue <-chan job, barrier *Barrier) {
	for j := range queue {
		err := ctx.Err()
		if err == nil {
			err = p.fetch(ctx, j)
		}
		if err != nil && !errors.IsProvisioning(err) {
			err = errors.DownloadFailed(j.component, err)
		}
		if err == nil {
			log.Debug().Str("file", j.name).Msg("download finished")
		}
		// signal before cancelling so the real failure is the one kept
		barrier.Signal(j.name, err)
		if err != nil {
			cancel()
		}
	}
}

func (p *Provisioner) fetch(ctx context.Context, j job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return errors.DownloadFailed(j.component, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.DownloadFailed(j.component, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return errors.DownloadFailed(j.component, fmt.Errorf("GET %s: unexpected status %s", j.url, resp.Status))
	}

	if err := os.MkdirAll(filepath.Dir(j.dest), 0o755); err != nil {
		return errors.UnpackFailed(j.component, err)
	}
	// dest may be a hard link into the live install; write beside it and
	// rename so the shared inode is never truncated.
	part := j.dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return errors.UnpackFailed(j.component, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(part)
		return errors.DownloadFailed(j.component, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return errors.UnpackFailed(j.component, err)
	}
	if err := os.Rename(part, j.dest); err != nil {
		os.Remove(part)
		return errors.UnpackFailed(j.component, err)
	}
	return nil
}
