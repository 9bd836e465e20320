/*
Package workers sizes and runs the scanner's worker pools.

Worker counts come from GOMAXPROCS, which Go sets from the container CPU
limit, rather than runtime.NumCPU, which reports host CPUs:

	albums := workers.ForIO(16, cfg.AlbumWorkers)
	media := workers.ForCPU(8, cfg.MediaWorkers)

A positive override (SCAN_ALBUM_WORKERS, SCAN_MEDIA_WORKERS) replaces the
computed value but is still capped by the limit.

Pool is a weighted semaphore shared across albums. Each album scan opens a
Group on it, submits one task per photo, and waits for only its own tasks:

	g := pool.Group()
	for _, p := range photos {
	    if err := g.Go(ctx, func() { process(p) }); err != nil {
	        break
	    }
	}
	g.Wait()
*/
package workers
