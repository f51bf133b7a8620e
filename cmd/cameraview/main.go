// Command cameraview lists capture devices, takes snapshots, records clips
// and serves a live preview over websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/pion/cameraview"
	"github.com/pion/cameraview/internal/config"
	"github.com/pion/cameraview/internal/logging"
	"github.com/pion/cameraview/pkg/barcode"
	"github.com/pion/cameraview/pkg/ext/wsview"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/prop"
	"github.com/pion/cameraview/pkg/record"

	_ "github.com/pion/cameraview/pkg/codec/vpx"
	_ "github.com/pion/cameraview/pkg/driver/camera"
	_ "github.com/pion/cameraview/pkg/driver/microphone"
	_ "github.com/pion/cameraview/pkg/driver/screen"
)

var logger = logging.NewLogger("cameraview/cmd")

const usage = `usage: cameraview [-config file] <command> [flags]

commands:
  devices   list cameras and microphones
  snapshot  save one still image
  record    record a clip with audio
  serve     stream the preview to websocket clients
`

func main() {
	fs := flag.NewFlagSet("cameraview", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default ~/.config/cameraview/config.json)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "devices":
		err = runDevices(cfg)
	case "snapshot":
		err = runSnapshot(ctx, cfg, args)
	case "record":
		err = runRecord(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cfg, args)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.Load(path)
}

func newView(cfg *config.AppConfig, opts ...cameraview.Option) (*cameraview.View, error) {
	timeout, err := cfg.OpenTimeoutDuration()
	if err != nil {
		return nil, err
	}
	base := []cameraview.Option{
		cameraview.WithOpenTimeout(timeout),
		cameraview.WithPreviewFormat(prop.Video{
			Width:     cfg.Preview.Width,
			Height:    cfg.Preview.Height,
			FrameRate: cfg.Preview.FrameRate,
		}),
		cameraview.WithRecordParams(record.Params{
			VideoCodec: cfg.Record.VideoCodec,
			AudioCodec: cfg.Record.AudioCodec,
			BitRate:    cfg.Record.BitRate,
			FrameRate:  float32(cfg.Record.FrameRate),
		}),
	}
	return cameraview.New(append(base, opts...)...), nil
}

// pickCamera returns id, or the configured camera, or the first one found.
func pickCamera(v *cameraview.View, cfg *config.AppConfig, id string) string {
	if id != "" {
		return id
	}
	if cfg.CameraID != "" {
		return cfg.CameraID
	}
	if cams := v.Cameras(); len(cams) > 0 {
		return cams[0].ID
	}
	return ""
}

func failed(op string, r cameraview.Result) error {
	return fmt.Errorf("%s: %s", op, r)
}

func runDevices(cfg *config.AppConfig) error {
	v, err := newView(cfg)
	if err != nil {
		return err
	}
	defer v.Dispose()

	fmt.Println("cameras:")
	for _, c := range v.Cameras() {
		fmt.Printf("  %s\t%s\t%s\tzoom %.1f-%.1f\tflash %t\torientation %d\n",
			c.ID, c.Name, c.Position, c.MinZoom, c.MaxZoom, c.HasFlashUnit, c.SensorOrientation)
	}
	fmt.Println("microphones:")
	for _, m := range v.Microphones() {
		fmt.Printf("  %s\t%s\n", m.ID, m.Name)
	}
	return nil
}

func runSnapshot(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	cameraID := fs.String("camera", "", "camera id")
	formatName := fs.String("format", "jpeg", "jpeg, png, bmp or tiff")
	out := fs.String("o", "", "output file (default <uuid>.<format>)")
	zoom := fs.Float64("zoom", 0, "zoom factor")
	mirror := fs.Bool("mirror", false, "mirror horizontally")
	wait := fs.Duration("wait", 2*time.Second, "how long to wait for the first frame")
	fs.Parse(args)

	format, err := cameraview.ParseImageFormat(*formatName)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = uuid.NewString() + format.Ext()
	}

	v, err := newView(cfg)
	if err != nil {
		return err
	}
	defer v.Dispose()

	v.SetZoom(*zoom)
	v.SetMirrored(*mirror)
	if r := v.StartPreview(ctx, pickCamera(v, cfg, *cameraID)); r != cameraview.Success {
		return failed("start preview", r)
	}

	deadline := time.Now().Add(*wait)
	for {
		data, err := v.TakeSnapshot(format)
		switch {
		case err == nil:
			if err := os.WriteFile(path, data, 0644); err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		case !errors.Is(err, cameraview.ErrNoFrame):
			return err
		case time.Now().After(deadline):
			return fmt.Errorf("no frame within %v", *wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func runRecord(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	cameraID := fs.String("camera", "", "camera id")
	micID := fs.String("mic", "", "microphone id (default the first one)")
	out := fs.String("o", "", "output file (default <uuid>.ivf in the record directory)")
	duration := fs.Duration("d", 5*time.Second, "clip length; 0 records until interrupted")
	fs.Parse(args)

	v, err := newView(cfg)
	if err != nil {
		return err
	}
	defer v.Dispose()

	mic := *micID
	if mics := v.Microphones(); mic == "" && len(mics) > 0 {
		mic = mics[0].ID
	}
	path := *out
	if path == "" {
		ext := ".ivf"
		if strings.EqualFold(cfg.Record.VideoCodec, webrtc.MimeTypeH264) {
			ext = ".h264"
		}
		if err := os.MkdirAll(cfg.Record.Directory, 0755); err != nil {
			return err
		}
		path = filepath.Join(cfg.Record.Directory, uuid.NewString()+ext)
	}

	if r := v.StartRecording(ctx, pickCamera(v, cfg, *cameraID), mic, path); r != cameraview.Success {
		return failed("start recording", r)
	}
	logger.Infof("recording to %s", path)

	var timer <-chan time.Time
	if *duration > 0 {
		timer = time.After(*duration)
	}
	select {
	case <-ctx.Done():
	case <-timer:
	}

	v.Stop()
	fmt.Println(path)
	return nil
}

func runServe(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cameraID := fs.String("camera", "", "camera id")
	addr := fs.String("addr", cfg.Server.Address, "listen address")
	qr := fs.Bool("qr", cfg.Barcode.Enabled, "decode QR codes in the preview")
	snapshots := fs.String("snapshots", "", "directory for automatic snapshots")
	fps := fs.Float64("fps", 0, "limit the preview frame rate")
	width := fs.Int("width", 0, "scale the preview to this width")
	rotate := fs.Int("rotate", 0, "extra clockwise rotation in degrees")
	fs.Parse(args)

	surface := wsview.New(wsview.WithQuality(cfg.Server.Quality))
	opts := []cameraview.Option{
		cameraview.WithSurface(surface),
		cameraview.WithVideoTransformers(
			video.Throttle(float32(*fps)),
			video.Scale(*width, 0, video.ScalerApproxBiLinear),
			video.OrientFunc(func() (int, bool) { return *rotate, false }),
		),
	}

	if *qr {
		opts = append(opts, cameraview.WithBarcodeDetection(cfg.Barcode.Divider, barcode.QR{}))
	}
	interval, err := cfg.AutoSnapshotDuration()
	if err != nil {
		return err
	}
	if *snapshots != "" && interval > 0 {
		opts = append(opts, cameraview.WithAutoSnapshot(interval, cameraview.JPEG))
	}
	opts = append(opts, cameraview.WithHandler(cameraview.Handler{
		BarcodeDetected: func(results []barcode.Result) {
			for _, r := range results {
				logger.Infof("%s: %s", r.Format, r.Text)
			}
		},
		SnapshotReady: func(data []byte, _ image.Image) {
			path := filepath.Join(*snapshots, uuid.NewString()+cameraview.JPEG.Ext())
			if err := os.WriteFile(path, data, 0644); err != nil {
				logger.Errorf("failed to save snapshot: %v", err)
			}
		},
	}))

	v, err := newView(cfg, opts...)
	if err != nil {
		return err
	}
	defer v.Dispose()

	if r := v.StartPreview(ctx, pickCamera(v, cfg, *cameraID)); r != cameraview.Success {
		return failed("start preview", r)
	}

	l, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	return surface.Serve(ctx, l)
}
