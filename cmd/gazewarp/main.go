// gazewarp - Marker-driven video segmentation and gaze warping
// Splits an eye-tracking recording into labelled epochs and reprojects
// per-frame gaze into a fixed screen reference frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/teslashibe/go-gazewarp/internal/config"
	glog "github.com/teslashibe/go-gazewarp/internal/log"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/gaze"
	"github.com/teslashibe/go-gazewarp/pkg/pipeline"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
	"github.com/teslashibe/go-gazewarp/pkg/store"
	"github.com/teslashibe/go-gazewarp/pkg/vision"
	"github.com/teslashibe/go-gazewarp/pkg/web"
)

const usage = `usage: gazewarp <command> [flags]

commands:
  segments   detect labelled epochs in a scene video
  normalize  snap epochs to their canonical lengths
  calibrate  build a reference frame from a still image
  warp       reproject gaze into the reference frame
  serve      run the HTTP API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	env := config.Load()
	glog.Init(env.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "segments":
		err = runSegments(env, args)
	case "normalize":
		err = runNormalize(args)
	case "calibrate":
		err = runCalibrate(args)
	case "warp":
		err = runWarp(ctx, env, args)
	case "serve":
		err = runServe(ctx, env, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %s: %v", cmd, err)
	}
}

func runSegments(env config.Env, args []string) error {
	fs := flag.NewFlagSet("segments", flag.ExitOnError)
	video := fs.String("video", "", "Scene video path")
	light := fs.String("light", "", codeHelp("Light", segment.LightCodes))
	head := fs.String("head", "", codeHelp("Head", segment.HeadCodes))
	media := fs.String("media", "", codeHelp("Media", segment.MediaCodes))
	maxGap := fs.Int("max-gap", env.MaxGap, "Bridge absence runs up to this many frames")
	out := fs.String("out", "segments.json", "Output segments JSON")
	plot := fs.String("plot", "", "Write the presence plot PNG here")
	fs.Parse(args)

	if *video == "" {
		return errors.New("-video is required")
	}

	det, err := pipeline.DetectSegmentsFile(*video, *light, *head, *media,
		pipeline.WithMaxGap(*maxGap),
		pipeline.WithPlot(*plot != ""),
		pipeline.WithLogger(glog.L()),
	)
	if err != nil {
		return err
	}

	fmt.Printf("🎬 %d frames at %.2f fps\n", det.Frames, det.FPS)
	if det.Truncated {
		fmt.Println("⚠️  video ended before the declared frame count")
	}
	if det.Issues != nil {
		fmt.Printf("⚠️  %v\n", det.Issues)
	}

	segs := det.Segments()
	for _, s := range segs {
		fmt.Printf("   %s\n", s)
	}
	if err := segment.Save(*out, segs); err != nil {
		return err
	}
	fmt.Printf("✅ %d segments written to %s\n", len(segs), *out)

	if *plot != "" && len(det.Plot) > 0 {
		if err := os.WriteFile(*plot, det.Plot, 0o644); err != nil {
			return err
		}
		fmt.Printf("📈 plot written to %s\n", *plot)
	}
	return nil
}

func runNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	in := fs.String("in", "segments.json", "Input segments JSON")
	out := fs.String("out", "segments_25fps.json", "Output segments JSON")
	fps := fs.Float64("fps", 0, "Video frame rate (probed from -video when zero)")
	video := fs.String("video", "", "Scene video used to probe the frame rate")
	fs.Parse(args)

	rate := *fps
	if rate <= 0 {
		if *video == "" {
			return errors.New("-fps or -video is required")
		}
		r, _, err := pipeline.ProbeVideo(*video)
		if err != nil {
			return err
		}
		rate = r
	}

	segs, err := segment.Load(*in)
	if err != nil {
		return err
	}
	norm, err := segment.Normalize(segs, rate)
	if err != nil {
		return err
	}
	if err := segment.Save(*out, norm); err != nil {
		return err
	}
	fmt.Printf("✅ %d segments normalized at %.2f fps to %s\n", len(norm), rate, *out)
	return nil
}

func runCalibrate(args []string) error {
	fc := vision.DefaultFrameConfig()

	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	image := fs.String("image", "", "Still frame showing the screen")
	points := fs.String("points", "", "Screen corners as x1,y1,...,x4,y4 (optionally 4 more marker points)")
	out := fs.String("out", "tags.json", "Output reference JSON")
	preview := fs.String("preview", "", "Write the rectified frame here")
	fs.IntVar(&fc.Boundary, "boundary", fc.Boundary, "Padding around the screen in reference pixels")
	fs.IntVar(&fc.ScreenWidth, "screen-width", fc.ScreenWidth, "Screen width in pixels")
	fs.IntVar(&fc.ScreenHeight, "screen-height", fc.ScreenHeight, "Screen height in pixels")
	fs.Float64Var(&fc.DisplayWidth, "display-width", fc.DisplayWidth, "Width the points were clicked at (0 = image pixels)")
	fs.Parse(args)

	if *image == "" {
		return errors.New("-image is required")
	}
	pts, err := parsePoints(*points)
	if err != nil {
		return err
	}

	ref, markers, err := pipeline.CalibrateFile(pipeline.CalibrationFiles{
		Image:     *image,
		Reference: *out,
		Preview:   *preview,
	}, pts, fc)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d tags written to %s\n", len(ref.Tags), *out)
	for i, m := range markers {
		fmt.Printf("   marker %d → (%.1f, %.1f)\n", i+1, m.X, m.Y)
	}
	return nil
}

func runWarp(ctx context.Context, env config.Env, args []string) error {
	fs := flag.NewFlagSet("warp", flag.ExitOnError)
	video := fs.String("video", "", "Scene video path")
	gazePath := fs.String("gaze", "", "Gaze samples (.npy, N x 2)")
	segs := fs.String("segments", "segments_25fps.json", "Segments JSON")
	ref := fs.String("reference", "tags.json", "Reference JSON")
	out := fs.String("out", env.OutputDir(), "Output directory")
	workers := fs.Int("workers", env.Workers, "Concurrent shards per segment")
	fs.Parse(args)

	if *video == "" || *gazePath == "" {
		return errors.New("-video and -gaze are required")
	}

	paths, results, err := pipeline.WarpFiles(ctx, pipeline.Files{
		Video:     *video,
		Gaze:      *gazePath,
		Segments:  *segs,
		Reference: *ref,
		OutputDir: *out,
	},
		pipeline.WithWorkers(*workers),
		pipeline.WithLogger(glog.L()),
		pipeline.WithNotify(func(e pipeline.Event) {
			if e.Progress != nil {
				fmt.Println(progressLine(*e.Progress))
			}
		}),
	)
	if err != nil {
		return err
	}

	for i, r := range results {
		fmt.Printf("   %s → %s\n", r.Segment.Label, paths[i])
	}
	fmt.Printf("✅ %d segments warped into %s\n", len(results), *out)
	return nil
}

func runServe(ctx context.Context, env config.Env, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", env.Port, "HTTP port")
	dbPath := fs.String("db", env.DBPath, "SQLite database path")
	fs.Parse(args)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		return err
	}
	st, err := store.Open(*dbPath, glog.L())
	if err != nil {
		return err
	}
	defer st.Close()

	srv := web.NewServer(web.Config{
		Port:        *port,
		SessionsDir: env.SessionsDir(),
		Workers:     env.Workers,
		MaxGap:      env.MaxGap,
		Logger:      glog.L(),
	}, st)

	fmt.Printf("🚀 gazewarp listening on :%s (data in %s)\n", *port, env.DataDir)
	return srv.Start(ctx)
}

// codeHelp lists the accepted condition codes, e.g. "Light condition codes (A=On, B=Off, C=Dim)".
func codeHelp(kind string, table map[rune]string) string {
	codes := make([]rune, 0, len(table))
	for c := range table {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%c=%s", c, table[c])
	}
	return fmt.Sprintf("%s condition codes (%s)", kind, strings.Join(parts, ", "))
}

func progressLine(p gaze.Progress) string {
	return fmt.Sprintf("   [%d/%d] %s: %d frames, %d lost (%d/%d)",
		p.Segment, p.Segments, p.Label, p.Frames, p.Sentinels, p.Done, p.Total)
}

// parsePoints reads "x1,y1,x2,y2,..." into points.
func parsePoints(s string) ([]fiducial.Point, error) {
	fields := strings.Split(s, ",")
	if s == "" || len(fields)%2 != 0 {
		return nil, fmt.Errorf("points: want x,y pairs, got %q", s)
	}
	pts := make([]fiducial.Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("points: %w", err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("points: %w", err)
		}
		pts = append(pts, fiducial.Point{X: x, Y: y})
	}
	return pts, nil
}
