package http

import (
	"strings"

	"github.com/fwojciec/lunarys"
	lunarysjson "github.com/fwojciec/lunarys/json"
	"github.com/sirupsen/logrus"
)

const dataPrefix = "data:"

// Classify extracts the events carried by one frame's data lines. Other
// SSE fields and comments are ignored. A payload that fails to decode is
// logged and dropped without affecting the rest of the frame.
func Classify(frame string, logger logrus.FieldLogger) []lunarys.StreamEvent {
	var evts []lunarys.StreamEvent
	for _, line := range strings.Split(frame, "\n") {
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		evt, err := lunarysjson.UnmarshalStreamEvent([]byte(payload))
		if err != nil {
			logger.WithError(err).WithField("payload", payload).Warn("dropping malformed stream payload")
			continue
		}
		evts = append(evts, evt)
	}
	return evts
}
