package calcium

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
)

type streamResult struct {
	logs   string
	digest string
	size   int64
}

type streamAux struct {
	ID     string `json:"ID"`
	Digest string `json:"Digest"`
	Size   int64  `json:"Size"`
}

// processImageStream relays a build, pull or push stream of one service to the sink
func processImageStream(ctx context.Context, service string, body io.Reader, sink types.ProgressSink) (*streamResult, error) {
	logger := log.WithFunc("calcium.processImageStream").WithField("service", service)
	result := &streamResult{}
	logs := strings.Builder{}
	defer func() {
		result.logs = logs.String()
	}()

	decoder := json.NewDecoder(body)
	for {
		message := &enginetypes.ImageMessage{}
		if err := decoder.Decode(message); err != nil {
			if err == io.EOF {
				return result, nil
			}
			if ctx.Err() != nil {
				return result, errors.WithStack(ctx.Err())
			}
			logger.Error(ctx, err, "failed to decode image stream")
			return result, errors.WithStack(err)
		}

		switch {
		case message.Error != "":
			sink.OnServiceEvent(service, types.ServiceEvent{Kind: types.EventError, Message: message.Error})
			logs.WriteString(message.Error + "\n")
			return result, errors.Newf("%s", message.Error)
		case message.Stream != "":
			logs.WriteString(message.Stream)
			for _, line := range strings.Split(strings.TrimRight(message.Stream, "\r\n"), "\n") {
				if line = strings.TrimRight(line, "\r"); line != "" {
					sink.OnServiceEvent(service, types.ServiceEvent{Kind: types.EventLog, Message: line})
				}
			}
		case len(message.Aux) > 0:
			aux := &streamAux{}
			if err := json.Unmarshal(message.Aux, aux); err != nil {
				logger.Warnf(ctx, "bad aux message %s", message.Aux)
				continue
			}
			if aux.Digest != "" {
				result.digest, result.size = aux.Digest, aux.Size
			}
		case message.Status != "":
			if message.ID == "" && message.Progress == "" {
				sink.OnServiceEvent(service, types.ServiceEvent{Kind: types.EventStatus, Message: message.Status})
				continue
			}
			sink.OnServiceEvent(service, types.ServiceEvent{Kind: types.EventProgress, Message: strings.TrimSpace(fmt.Sprintf("%s: %s %s", message.ID, message.Status, message.Progress))})
		}
	}
}
