package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/serviceiface"
)

type GatewayService struct {
	config map[string]interface{}
	server *http.Server
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := serviceiface.StringOption(s.config, "port", config.Load().HTTPPort)
	certify := serviceiface.StringOption(s.config, "certify_url", "http://localhost:6143")

	mux, err := NewGateway(map[string]string{"/certify/": certify})
	if err != nil {
		return fmt.Errorf("gateway routes: %w", err)
	}
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Component("gateway").WithField("port", port).Info("API gateway started")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Component("gateway").WithError(err).Error("gateway server failed")
		}
	}()
	return nil
}

func (s *GatewayService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
