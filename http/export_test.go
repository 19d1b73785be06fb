package http

import (
	"context"
	"io"

	"github.com/fwojciec/lunarys"
	"github.com/sirupsen/logrus"
)

// NewStream exports newStream for testing.
func NewStream(ctx context.Context, body io.ReadCloser, logger logrus.FieldLogger) lunarys.Stream {
	return newStream(ctx, body, logger)
}
