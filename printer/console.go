package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mgutz/ansi"

	"github.com/projecteru2/barge/types"
)

var palette = []string{"cyan+b", "green+b", "yellow+b", "magenta+b", "blue+b", "white+b"}

// Console prints service events as "[service] message", one colour per service
type Console struct {
	sync.Mutex
	w       io.Writer
	plain   bool
	colours map[string]func(string) string
	errorFn func(string) string
}

// NewConsole makes a console sink, plain disables colours
func NewConsole(w io.Writer, plain bool) *Console {
	return &Console{
		w:       w,
		plain:   plain,
		colours: map[string]func(string) string{},
		errorFn: ansi.ColorFunc("red+b"),
	}
}

// OnServiceEvent writes one event
func (c *Console) OnServiceEvent(service string, ev types.ServiceEvent) {
	if ev.Kind == types.EventProgress {
		return
	}
	c.Lock()
	defer c.Unlock()
	prefix := "[" + service + "]"
	message := strings.TrimRight(ev.Message, "\r\n")
	if !c.plain {
		colour, ok := c.colours[service]
		if !ok {
			colour = ansi.ColorFunc(palette[len(c.colours)%len(palette)])
			c.colours[service] = colour
		}
		prefix = colour(prefix)
		if ev.Kind == types.EventError {
			message = c.errorFn(message)
		}
	}
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(c.w, "%s %s\n", prefix, line)
	}
}
