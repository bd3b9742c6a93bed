package certify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/orchestrator"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/serviceiface"
	"ExpenseCertify/internal/store"
)

var (
	_ orchestrator.Repository = (*store.Store)(nil)
	_ Store                   = (*store.Store)(nil)
	_ Engine                  = (*orchestrator.Engine)(nil)
	_ Reloader                = (*refdata.Cache)(nil)
)

const defaultPort = "6143"

type CertifyService struct {
	config  map[string]interface{}
	handler *Handler
	server  *http.Server
}

func NewCertifyService(cfg map[string]interface{}, engine Engine, st Store, refs refdata.Source, reload Reloader) serviceiface.Service {
	return &CertifyService{config: cfg, handler: NewHandler(engine, st, refs, reload)}
}

func (s *CertifyService) Name() string {
	return "certify"
}

func (s *CertifyService) Start() error {
	port := serviceiface.StringOption(s.config, "port", defaultPort)
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(s.handler),
		ReadHeaderTimeout: 10 * time.Second,
		// uploads of large exports run the whole pipeline inside the request
		WriteTimeout: serviceiface.DurationOption(s.config, "write_timeout", 10*time.Minute),
	}
	if serviceiface.StringOption(s.config, "preload_reference", "true") == "true" {
		if _, err := s.handler.refs.Bundle(); err != nil {
			logger.Component("certify").WithError(err).Warn("reference data not loaded at startup")
		}
	}
	go func() {
		logger.Component("certify").WithField("port", port).Info("certify service started")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Component("certify").WithError(err).Error("certify server failed")
		}
	}()
	return nil
}

func (s *CertifyService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
