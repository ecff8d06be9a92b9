package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Language: "asl",
		Recognizer: RecognizerConfig{
			Endpoint:         "http://127.0.0.1:8000/predict",
			SequenceEndpoint: "http://127.0.0.1:5008/predict",
			HealthPath:       "/health",
			TimeoutMS:        3000,
			NoSignalLabels:   []string{"No hand detected", "Waiting for hands..."},
		},
		Speech: SpeechConfig{
			GRPC:          "127.0.0.1:50051",
			DialTimeoutMS: 2000,
			TimeoutMS:     10000,
		},
		Camera: CameraConfig{
			Source:          "mjpeg",
			URL:             "http://127.0.0.1:8080/stream",
			Device:          0,
			DevicePath:      "/dev/video0",
			MaxEdge:         0,
			JPEGQuality:     80,
			MinPayloadChars: 1000,
			Hotplug:         true,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			MaxClipMS:  5000,
			SilenceRMS: 120,
		},
		Practice: PracticeConfig{
			StaticIntervalMS:   1000,
			SequenceIntervalMS: 250,
			SpeechIntervalMS:   500,
			AdvanceDelayMS:     1000,
			ErrorDisplayMS:     2500,
			XPPerItem:          10,
		},
		Feedback: FeedbackConfig{
			Backend:        "console",
			DesktopAppName: "kamay",
			Color:          "auto",
		},
		Log:   LogConfig{Level: "info"},
		Debug: DebugConfig{},
	}
}
