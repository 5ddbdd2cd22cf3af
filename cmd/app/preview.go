package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"facewatch/internal/metrics"
	"facewatch/internal/preview"
)

// startPreview serves the live preview and the pipeline metrics on addr
// until ctx ends.
func startPreview(ctx context.Context, addr string, m *metrics.Pipeline) (*preview.Server, error) {
	server := preview.NewServer(addr, m.Registry(), logger)
	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

func logPreviewSummary(server *preview.Server) {
	presented, dropped := server.Stats()
	logger.WithFields(logrus.Fields{
		"presented": presented,
		"dropped":   dropped,
		"clients":   server.ClientCount(),
	}).Info("Preview summary")
}
