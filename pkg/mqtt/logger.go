package mqtt

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// pahoLogger adapts a logr.Logger to the Println/Printf logger that
// autopaho and paho use for their internal tracing. Trace output goes to
// V(1); error output is logged as errors.
type pahoLogger struct {
	logger logr.Logger
	errors bool
}

func (l pahoLogger) Println(v ...any) {
	l.log(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.log(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l pahoLogger) log(msg string) {
	if l.errors {
		l.logger.Error(nil, msg)
		return
	}
	l.logger.V(1).Info(msg)
}
