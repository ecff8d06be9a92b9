package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/kamay/internal/audio"
	"github.com/rbright/kamay/internal/capture"
	"github.com/rbright/kamay/internal/cli"
	"github.com/rbright/kamay/internal/config"
	"github.com/rbright/kamay/internal/feedback"
	"github.com/rbright/kamay/internal/ipc"
	"github.com/rbright/kamay/internal/lesson"
	"github.com/rbright/kamay/internal/metrics"
	"github.com/rbright/kamay/internal/practice"
	"github.com/rbright/kamay/internal/recognize"
	"github.com/rbright/kamay/internal/report"
	"github.com/rbright/kamay/internal/snapshot"
	"github.com/rbright/kamay/internal/speech"
)

// plan is what a practice command resolves to before any device is touched.
type plan struct {
	mode     practice.Mode
	items    []practice.Item
	lessonID string
}

// rig is the capture and recognition stack for one mode.
type rig struct {
	device     practice.Device
	encoder    practice.Encoder
	recognizer recognize.Recognizer
	route      recognize.Route
	// hotplug is the device node watched for removal, if any.
	hotplug string
	close   func()
}

func (r Runner) commandPractice(ctx context.Context, cfg config.Config, args cli.PracticeArgs, logger *slog.Logger) int {
	socketPath := ipc.RuntimeSocketPath()
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	language := args.Language
	if language == "" {
		language = cfg.Language
	}
	store, err := lesson.Open(ctx, language)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	p, err := resolvePlan(ctx, store, args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	rg, err := buildRig(ctx, cfg, store, p.mode, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rg.close()

	m := metrics.New()
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	var metricsDone chan error
	if cfg.Metrics.Listen != "" {
		srv, err := m.Listen(cfg.Metrics.Listen, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: metrics listener: %v\n", err)
			return 1
		}
		logger.Info("metrics listening", "addr", srv.Addr())
		metricsDone = make(chan error, 1)
		go func() { metricsDone <- srv.Serve(serverCtx) }()
	}

	dumper, err := snapshot.NewDumper(cfg.Debug.Dir, cfg.Debug.FrameDump, cfg.Debug.AudioDump)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: debug dump: %v\n", err)
		return 1
	}

	opts := practice.Options{
		SessionID:    uuid.NewString(),
		LessonID:     p.lessonID,
		Mode:         p.mode,
		Route:        rg.route,
		Interval:     interval(cfg.Practice, p.mode),
		AdvanceDelay: millis(cfg.Practice.AdvanceDelayMS),
		ErrorDisplay: millis(cfg.Practice.ErrorDisplayMS),
		XPPerItem:    cfg.Practice.XPPerItem,
	}
	if p.lessonID != "" {
		opts.SubLessonID = lesson.PracticeSubLessonID(p.lessonID)
	}

	ctrl, err := practice.NewController(opts, practice.Deps{
		Device:     rg.device,
		Encoder:    rg.encoder,
		Recognizer: m.Instrument(p.mode, rg.recognizer),
		Reporter:   store,
		Feedback:   feedback.New(cfg.Feedback, r.Stdout, logger),
		Observer:   m,
		Dumper:     dumper,
		Logger:     logger.With("session", opts.SessionID),
	}, p.items)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if cfg.Camera.Hotplug && rg.hotplug != "" {
		monitor := capture.NewHotplugMonitor(logger, func(device string) {
			ctrl.DeviceLost(&capture.DeviceError{
				Kind:   capture.DeviceNotFound,
				Media:  capture.Camera,
				Device: device,
				Err:    errors.New("device removed"),
			})
		}, rg.hotplug)
		if err := monitor.Start(serverCtx); err != nil {
			logger.Warn("hotplug monitor unavailable", "error", err)
		}
		defer monitor.Stop()
	}

	ipcDone := make(chan error, 1)
	go func() {
		ipcDone <- ipc.Serve(serverCtx, listener, ctrl)
	}()

	logger.Info("practice start",
		"mode", p.mode,
		"lesson", p.lessonID,
		"items", len(p.items),
		"socket", socketPath,
	)

	result := ctrl.Run(ctx)
	serverCancel()
	serverErr := <-ipcDone
	if metricsDone != nil {
		if err := <-metricsDone; err != nil {
			logger.Warn("metrics server failed", "error", err)
		}
	}

	logSessionResult(logger, result)
	fmt.Fprint(r.Stdout, report.Session(result, ctrl.Snapshot()))

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	return 0
}

// resolvePlan picks the items and mode for args. A lesson brings its own
// mode unless one was given on the command line.
func resolvePlan(ctx context.Context, store *lesson.Store, args cli.PracticeArgs) (plan, error) {
	if args.Lesson != "" {
		l, err := store.Lesson(ctx, args.Lesson)
		if err != nil {
			return plan{}, err
		}
		mode := args.Mode
		if mode == "" {
			if mode, err = practice.ParseMode(l.Mode); err != nil {
				return plan{}, fmt.Errorf("lesson %s: %w", l.ID, err)
			}
		}
		items := lesson.ItemsFromLesson(l)
		if len(items) == 0 {
			return plan{}, fmt.Errorf("lesson %s has no signs to practice", l.ID)
		}
		return plan{mode: mode, items: items, lessonID: l.ID}, nil
	}

	mode := args.Mode
	if mode == "" {
		mode = practice.ModeStatic
	}
	var items []practice.Item
	if mode == practice.ModeStatic {
		items = lesson.ItemsFromText(args.Text)
	} else {
		items = lesson.ItemsFromWords(args.Text)
	}
	if len(items) == 0 {
		return plan{}, fmt.Errorf("nothing to practice in %q", args.Text)
	}
	return plan{mode: mode, items: items}, nil
}

func buildRig(ctx context.Context, cfg config.Config, store *lesson.Store, mode practice.Mode, logger *slog.Logger) (rig, error) {
	if mode == practice.ModeSpeech {
		return speechRig(ctx, cfg, store, logger)
	}

	opened := capture.OpenCamera(cfg.Camera, logger)
	enc := snapshot.NewFrameEncoder(opened.Source, snapshot.FrameOptions{
		MaxEdge:         cfg.Camera.MaxEdge,
		Quality:         cfg.Camera.JPEGQuality,
		MinPayloadChars: cfg.Camera.MinPayloadChars,
	})
	rg := rig{
		device:     opened.Source,
		encoder:    practice.EncoderFunc(enc.CaptureFrame),
		recognizer: recognize.NewHTTPClient(millis(cfg.Recognizer.TimeoutMS), cfg.Recognizer.NoSignalLabels, nil),
		route:      recognize.Route{Endpoint: cfg.Recognizer.Endpoint},
		hotplug:    opened.Device,
		close:      func() {},
	}
	if mode == practice.ModeSequence {
		phrase, err := store.PhraseLanguage(ctx)
		if err != nil {
			return rig{}, err
		}
		rg.route = recognize.Route{
			Endpoint: cfg.Recognizer.SequenceEndpoint,
			Language: phrase,
			ClientID: uuid.NewString(),
		}
	}
	return rg, nil
}

func speechRig(ctx context.Context, cfg config.Config, store *lesson.Store, logger *slog.Logger) (rig, error) {
	hint, err := store.SpeechLanguage(ctx)
	if err != nil {
		return rig{}, err
	}
	client, err := speech.Dial(ctx, speech.Config{
		Endpoint:    cfg.Speech.GRPC,
		DialTimeout: millis(cfg.Speech.DialTimeoutMS),
		Timeout:     millis(cfg.Speech.TimeoutMS),
	})
	if err != nil {
		return rig{}, fmt.Errorf("speech engine unavailable: %w", err)
	}

	src := audio.NewSource(audio.SourceOptions{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		LockDir:  cfg.Camera.LockDir,
		Logger:   logger,
	})
	enc := snapshot.NewClipEncoder(src, snapshot.ClipOptions{
		MaxClip:    millis(cfg.Audio.MaxClipMS),
		SilenceRMS: cfg.Audio.SilenceRMS,
	})
	return rig{
		device:     src,
		encoder:    practice.EncoderFunc(enc.CaptureClip),
		recognizer: recognize.NewSpeechRecognizer(client),
		route:      recognize.Route{Language: hint},
		close:      func() { _ = client.Close() },
	}, nil
}

func interval(cfg config.PracticeConfig, mode practice.Mode) time.Duration {
	switch mode {
	case practice.ModeSequence:
		return millis(cfg.SequenceIntervalMS)
	case practice.ModeSpeech:
		return millis(cfg.SpeechIntervalMS)
	default:
		return millis(cfg.StaticIntervalMS)
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func logSessionResult(logger *slog.Logger, result practice.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session", result.SessionID,
		"state", result.State,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"correct", result.Correct,
		"total", result.Total,
		"progress", result.Progress,
		"xp", result.XP,
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
