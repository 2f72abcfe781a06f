package emitter

import (
	"fmt"
	"log/slog"

	"pinfe/internal/config"
	"pinfe/internal/focus"
)

// Open creates the injector selected by cfg.Method.
func Open(cfg config.OutputConfig, logger *slog.Logger) (Output, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Method {
	case config.MethodX11:
		return OpenX11()
	case config.MethodClipboard:
		u, err := OpenUinput()
		if err != nil {
			return nil, err
		}
		var poller FocusPoller
		if cfg.Paste == config.PasteAuto {
			detector, err := focus.NewDetector()
			if err != nil {
				logger.Warn("focus detection unavailable, pasting with ctrl+v", "err", err)
			} else {
				poller = detector
			}
		}
		return NewClipboardEmitter(u, cfg.Paste, poller), nil
	case config.MethodUinput, "":
		return OpenUinput()
	default:
		return nil, fmt.Errorf("unknown output method %q", cfg.Method)
	}
}
