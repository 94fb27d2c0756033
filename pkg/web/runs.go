package web

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-gazewarp/pkg/pipeline"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
	"github.com/teslashibe/go-gazewarp/pkg/store"
)

// RunEvent is broadcast on the run's topic as a warp progresses.
type RunEvent struct {
	Run    string          `json:"run"`
	Status store.RunStatus `json:"status"`
	Event  *pipeline.Event `json:"event,omitempty"`
	Files  []string        `json:"files,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// handleWarp checks the session has every input, records a run and
// starts it in the background. The response is 202 with the run id.
func (s *Server) handleWarp(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if sess.VideoPath == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session has no video")
	}

	files := pipeline.Files{
		Video:     sess.VideoPath,
		Gaze:      filepath.Join(sess.Dir, gazeFile),
		Segments:  filepath.Join(sess.Dir, normSegments),
		Reference: filepath.Join(sess.Dir, tagsFile),
		OutputDir: filepath.Join(sess.Dir, outputDir),
	}
	for _, p := range []string{files.Gaze, files.Segments, files.Reference} {
		if _, err := os.Stat(p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "missing input "+filepath.Base(p))
		}
	}
	segs, err := segment.Load(files.Segments)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	total := 0
	for _, seg := range segs {
		total += seg.Len()
	}

	run, err := s.store.CreateRun(c.UserContext(), sess.ID, total)
	if err != nil {
		return err
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.execute(s.ctx, run.ID, files)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": run.ID, "frames_total": total})
}

// execute runs one warp to completion, mirroring progress into the store
// and the hub.
func (s *Server) execute(ctx context.Context, runID string, files pipeline.Files) {
	log := s.logger.With("run", runID)
	sentinels := 0

	paths, _, err := s.WarpFiles(ctx, files,
		pipeline.WithWorkers(s.cfg.Workers),
		pipeline.WithLogger(log),
		pipeline.WithNotify(func(e pipeline.Event) {
			if e.Progress != nil {
				sentinels += e.Progress.Sentinels
				if err := s.store.UpdateRunProgress(ctx, runID, e.Progress.Done, sentinels); err != nil {
					log.Warn("progress not recorded", "error", err)
				}
			}
			s.hub.BroadcastJSON(runID, RunEvent{Run: runID, Status: store.RunRunning, Event: &e})
		}))

	// The run is finalized even when ctx was cancelled.
	if ferr := s.store.FinishRun(context.Background(), runID, err); ferr != nil {
		log.Error("finish run", "error", ferr)
	}

	ev := RunEvent{Run: runID, Status: store.RunDone}
	if err != nil {
		ev.Status, ev.Error = store.RunFailed, err.Error()
	} else {
		for _, p := range paths {
			ev.Files = append(ev.Files, filepath.Base(p))
		}
		log.Info("run finished", "files", len(paths), "sentinels", sentinels)
	}
	s.hub.BroadcastJSON(runID, ev)
}
