package monitor

import "go.uber.org/zap"

// Logger is a thin alias so call sites read like the teacher's plain
// log.Printf/log.Fatalf, while every message actually goes through
// structured zap fields underneath (protomaps-go-pmtiles's pmtiles/
// server.go and loop.go both log through zap for exactly this reason:
// a library embedded in someone else's service shouldn't own stdlib's
// global logger).
type Logger = zap.SugaredLogger

// NewLogger builds a production zap logger and returns its sugared form.
func NewLogger(verbose bool) (*Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
