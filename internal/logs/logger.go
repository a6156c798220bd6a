package logs

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the application-wide logger (configured by Init).
// It starts as a plain stdout logger so packages and tests can log before Init.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.AddHook(redactHook{})
	return l
}

// Options controls logger initialisation.
type Options struct {
	Level  string // trace|debug|info|warning|error|fatal
	Format string // text|json
	File   string // log file prefix; empty means stdout only
}

// Init configures the global logger.
func Init(opts Options) {
	l := newLogger()

	switch opts.Level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	case "fatal":
		l.SetLevel(logrus.FatalLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if opts.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.File != "" {
		currentTime := time.Now().Format("2006-01-02_15-04-05")
		logFileName := fmt.Sprintf("%s_%s.log", opts.File, currentTime)
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			l.Fatalf("failed to open log file %s: %v", logFileName, err)
		}
		l.SetOutput(io.MultiWriter(file, os.Stdout))
	} else {
		l.SetOutput(os.Stdout)
	}

	Logger = l
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}

// FromRequest returns an entry carrying the request id, method and path.
// The id is read from the request header, which middleware.RequestID always sets.
func FromRequest(r *http.Request) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"reqid":  r.Header.Get("X-Request-Id"),
		"method": r.Method,
		"uri":    r.URL.Path,
	})
}

// sensitive field names are matched case-insensitively after removing '_' and '-'.
var sensitive = map[string]bool{
	"ssn": true, "password": true, "caqhpassword": true, "nppespassword": true,
	"token": true, "apikey": true, "sessionsecret": true, "secretkey": true,
}

// redactHook replaces the value of sensitive fields before any formatter sees them.
type redactHook struct{}

func (redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (redactHook) Fire(e *logrus.Entry) error {
	for k := range e.Data {
		if sensitive[strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(k))] {
			e.Data[k] = "[redacted]"
		}
	}
	return nil
}
