package config

const (
	defaultWorkDir               = "~/.local/share/scoreframe/work"
	defaultLogDir                = "~/.local/share/scoreframe/logs"
	defaultBind                  = "127.0.0.1:8732"
	defaultMaxUploadBytes        = 5 << 20
	defaultRequestTimeoutSeconds = 120
	defaultFrameRate             = 30
	defaultCanvasWidth           = 1280
	defaultCanvasHeight          = 720
	defaultTailSeconds           = 1.0
	defaultCodec                 = "libx264"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Limits: Limits{
			MaxUploadBytes:        defaultMaxUploadBytes,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Render: Render{
			FrameRate:    defaultFrameRate,
			CanvasWidth:  defaultCanvasWidth,
			CanvasHeight: defaultCanvasHeight,
			TailSeconds:  defaultTailSeconds,
		},
		Encode: Encode{
			Codec:  defaultCodec,
			Verify: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
