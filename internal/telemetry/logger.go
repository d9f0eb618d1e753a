package telemetry

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"
)

// Init configures the global zerolog logger. Console-pretty in dev mode,
// JSON otherwise, matching the teacher's console-vs-JSON switch in main.go.
func Init(debug bool, pretty bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// ServiceLogger wraps zerolog with a per-DI-service debug whitelist, so a
// noisy service's Info/Error logs can be silenced without touching its
// call sites.
type ServiceLogger struct {
	svc container.IInstance

	debug        bool
	whiteListSvc map[string]map[string]struct{}
}

func NewServiceLogger(svc container.IInstance) *ServiceLogger {
	return &ServiceLogger{svc: svc, debug: false, whiteListSvc: make(map[string]map[string]struct{})}
}

func (l *ServiceLogger) SetDebugMode(debug bool) {
	l.debug = debug
}

func (l *ServiceLogger) EnableLogForServices(svc []string) {
	for _, s := range svc {
		l.whiteListSvc[s] = make(map[string]struct{})
	}
}

func (l *ServiceLogger) enabled(method string) bool {
	if !l.debug {
		return false
	}
	methods, ok := l.whiteListSvc[l.svc.ID()]
	if !ok {
		return false
	}
	if len(methods) == 0 {
		return true
	}
	_, ok = methods[method]
	return ok
}

func (l *ServiceLogger) Info(msg string, method string) {
	if l.enabled(method) {
		log.Info().Str("service", l.svc.ID()).Str("method", method).Msg(msg)
	}
}

func (l *ServiceLogger) Error(err error, msg string, method string) {
	if l.enabled(method) {
		log.Error().Str("service", l.svc.ID()).Str("method", method).Err(err).Msg(msg)
	}
}
