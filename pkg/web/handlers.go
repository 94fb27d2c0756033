package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/gaze"
	"github.com/teslashibe/go-gazewarp/pkg/pipeline"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
	"github.com/teslashibe/go-gazewarp/pkg/store"
	"github.com/teslashibe/go-gazewarp/pkg/vision"
)

// File names inside a session folder.
const (
	gazeFile       = "gaze.npy"
	rawSegments    = "segments.json"
	normSegments   = "segments_25fps.json"
	tagsFile       = "tags.json"
	calibImageFile = "calibration.jpg"
	previewFile    = "warped_frame.jpg"
	outputDir      = "output"
)

func (s *Server) session(c *fiber.Ctx) (*store.Session, error) {
	return s.store.GetSession(c.UserContext(), c.Params("id"))
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	id := uuid.NewString()
	dir := filepath.Join(s.sessionsDir(), id)
	if err := os.MkdirAll(filepath.Join(dir, outputDir), 0o755); err != nil {
		return err
	}
	sess, err := s.store.CreateSession(c.UserContext(), id, dir)
	if err != nil {
		os.RemoveAll(dir)
		return err
	}
	s.logger.Info("session created", "session", sess.ID)
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

// handleUpload stores a multipart "file" under the session folder.
// kind is one of video, gaze, segments, tags; JSON and .npy inputs are
// parsed before the response so bad files are rejected early.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file")
	}

	kind := c.Params("kind")
	var dst string
	switch kind {
	case "video":
		dst = filepath.Join(sess.Dir, "video"+strings.ToLower(filepath.Ext(fh.Filename)))
	case "gaze":
		dst = filepath.Join(sess.Dir, gazeFile)
	case "segments":
		dst = filepath.Join(sess.Dir, normSegments)
	case "tags":
		dst = filepath.Join(sess.Dir, tagsFile)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown upload kind "+strconv.Quote(kind))
	}
	if err := c.SaveFile(fh, dst); err != nil {
		return err
	}

	resp := fiber.Map{"kind": kind, "path": filepath.Base(dst)}
	switch kind {
	case "video":
		if err := s.recordVideo(c, sess, dst); err != nil {
			return err
		}
	case "gaze":
		samples, err := gaze.LoadNPY(dst)
		if err != nil {
			os.Remove(dst)
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		resp["samples"] = len(samples)
		resp["missing"] = samples.Missing()
	case "segments":
		segs, err := segment.Load(dst)
		if err != nil {
			os.Remove(dst)
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := s.store.ReplaceSegments(c.UserContext(), sess.ID, true, segs); err != nil {
			return err
		}
		resp["segments"] = len(segs)
	case "tags":
		ref, err := calibration.Load(dst)
		if err != nil {
			os.Remove(dst)
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		resp["tags"] = len(ref.Tags)
	}
	return c.JSON(resp)
}

func (s *Server) recordVideo(c *fiber.Ctx, sess *store.Session, path string) error {
	fps, frames, err := s.Probe(path)
	if err != nil {
		os.Remove(path)
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.store.UpdateVideo(c.UserContext(), sess.ID, path, fps, frames); err != nil {
		return err
	}
	sess.VideoPath, sess.FPS, sess.FrameCount = path, fps, frames
	return nil
}

// DetectResponse is returned by detect_segments.
type DetectResponse struct {
	FPS        float64  `json:"fps"`
	Frames     int      `json:"frames"`
	Truncated  bool     `json:"truncated"`
	Starts     []int    `json:"starts"`
	Ends       []int    `json:"ends"`
	Labels     []string `json:"labels"`
	Issues     []string `json:"issues,omitempty"`
	PlotBase64 string   `json:"plot_base64,omitempty"`
}

// handleDetectSegments accepts an optional "video" file plus light, head
// and media condition codes.
func (s *Server) handleDetectSegments(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	light, head, media := c.FormValue("light"), c.FormValue("head"), c.FormValue("media")
	if _, err := segment.Labels(light, head, media); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if fh, err := c.FormFile("video"); err == nil {
		dst := filepath.Join(sess.Dir, "video"+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := c.SaveFile(fh, dst); err != nil {
			return err
		}
		if err := s.recordVideo(c, sess, dst); err != nil {
			return err
		}
	}
	if sess.VideoPath == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session has no video")
	}

	d, err := s.Detect(sess.VideoPath, light, head, media,
		pipeline.WithMaxGap(s.cfg.MaxGap),
		pipeline.WithLogger(s.logger.With("session", sess.ID)),
		pipeline.WithNotify(func(e pipeline.Event) {
			s.hub.BroadcastJSON(sess.ID, e)
		}))
	if err != nil {
		if errors.Is(err, vision.ErrOpenVideo) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	segs := d.Segments()
	if err := segment.Save(filepath.Join(sess.Dir, rawSegments), segs); err != nil {
		return err
	}
	if err := s.store.ReplaceSegments(c.UserContext(), sess.ID, false, segs); err != nil {
		return err
	}

	resp := DetectResponse{
		FPS:       d.FPS,
		Frames:    d.Frames,
		Truncated: d.Truncated,
		Starts:    d.Extraction.Starts,
		Ends:      d.Extraction.Ends,
		Labels:    d.Extraction.Labels,
	}
	if d.Issues != nil {
		resp.Issues = strings.Split(d.Issues.Error(), "\n")
	}
	if len(d.Plot) > 0 {
		resp.PlotBase64 = base64.StdEncoding.EncodeToString(d.Plot)
	}
	return c.JSON(resp)
}

// SubmitSegmentsRequest carries operator-corrected boundaries.
type SubmitSegmentsRequest struct {
	Starts []int    `json:"starts"`
	Ends   []int    `json:"ends"`
	Labels []string `json:"labels"`
	FPS    float64  `json:"fps"`
}

func (s *Server) handleSubmitSegments(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req SubmitSegmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if req.FPS == 0 {
		req.FPS = sess.FPS
	}

	raw, err := segment.FromBoundaries(req.Starts, req.Ends, req.Labels)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	norm, err := segment.Normalize(raw, req.FPS)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := segment.Save(filepath.Join(sess.Dir, normSegments), norm); err != nil {
		return err
	}
	if err := s.store.ReplaceSegments(c.UserContext(), sess.ID, true, norm); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"file": normSegments, "segments": norm})
}

// handleFrameConfig accepts an "image" file, a JSON "points" list of
// {x, y} (4 corners, optionally 4 marker points) and an optional
// "display_width" the points were clicked at.
func (s *Server) handleFrameConfig(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing image")
	}

	var points []fiducial.Point
	if err := json.Unmarshal([]byte(c.FormValue("points")), &points); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid points")
	}
	if len(points) != 4 && len(points) != 8 {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("need 4 or 8 points, got %d", len(points)))
	}

	fc := vision.DefaultFrameConfig()
	if dw := c.FormValue("display_width"); dw != "" {
		w, err := strconv.ParseFloat(dw, 64)
		if err != nil || w <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid display_width")
		}
		fc.DisplayWidth = w
	}

	imagePath := filepath.Join(sess.Dir, calibImageFile)
	if err := c.SaveFile(fh, imagePath); err != nil {
		return err
	}

	ref, markers, err := s.Calibrate(pipeline.CalibrationFiles{
		Image:     imagePath,
		Reference: filepath.Join(sess.Dir, tagsFile),
		Preview:   filepath.Join(sess.Dir, previewFile),
	}, points, fc)
	if err != nil {
		if errors.Is(err, vision.ErrNoTags) || errors.Is(err, vision.ErrCorners) || errors.Is(err, vision.ErrImage) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"tags": ref, "markers": markers})
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	run, err := s.store.GetRun(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(run)
}

func (s *Server) handleResult(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	name := filepath.Base(c.Params("file"))
	if name != c.Params("file") || filepath.Ext(name) != ".npy" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid result name")
	}
	path := filepath.Join(sess.Dir, outputDir, name)
	if _, err := os.Stat(path); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "no such result")
	}
	return c.SendFile(path)
}
