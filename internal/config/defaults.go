package config

const (
	defaultLogDir              = "~/.local/share/scadrec/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultPollIntervalSeconds = 5
	defaultOpenSCADBinary      = "openscad"
	defaultOpenSCADArgs        = "-q --autocenter --colorscheme='Starnight'"
	defaultRenderTimeout       = 300
	defaultGIFEncoder          = EncoderBuiltin
	defaultFFmpegBinary        = "ffmpeg"
	defaultFrameDelayMS        = 100
	defaultFinalDelayMS        = 5000
)

// Supported GIF encoders.
const (
	EncoderBuiltin = "builtin"
	EncoderFFmpeg  = "ffmpeg"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Record: Record{
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Render: Render{
			OpenSCADBinary: defaultOpenSCADBinary,
			OpenSCADArgs:   defaultOpenSCADArgs,
			TimeoutSeconds: defaultRenderTimeout,
		},
		GIF: GIF{
			Encoder:      defaultGIFEncoder,
			FFmpegBinary: defaultFFmpegBinary,
			FrameDelayMS: defaultFrameDelayMS,
			FinalDelayMS: defaultFinalDelayMS,
			Optimize:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
