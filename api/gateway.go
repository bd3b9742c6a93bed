package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/sirupsen/logrus"

	"ExpenseCertify/api/constants"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/pkg/loadbalancer"
)

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

// actorFromBody peeks at a JSON body for the acting user and restores it.
func actorFromBody(r *http.Request) string {
	if r.Body == nil || !strings.HasPrefix(r.Header.Get(constants.ContentType), constants.ContentTypeJSON) {
		return ""
	}
	bodyBytes, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if err != nil || len(bodyBytes) == 0 {
		return ""
	}
	var bodyMap map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &bodyMap); err != nil {
		return ""
	}
	for _, key := range []string{"reviewer", "by", "user_name"} {
		if v, ok := bodyMap[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// createReverseProxy returns a reverse proxy handler for a comma-separated
// list of backends, picked round robin per request.
func createReverseProxy(targets string) (http.HandlerFunc, error) {
	lb, err := loadbalancer.NewLoadBalancer(loadbalancer.Split(targets))
	if err != nil {
		return nil, err
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(lb.GetNextServer())
			pr.SetXForwarded()
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Component("gateway").WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"client": extractClientIP(r),
		})
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if actor := actorFromBody(r); actor != "" {
				log = log.WithField("actor", actor)
			}
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		proxy.ServeHTTP(rw, r)
		log = log.WithFields(logrus.Fields{"backends": lb.Len(), "status": rw.statusCode})
		if rw.statusCode >= 400 {
			log.WithField("body", strings.TrimSpace(rw.body.String())).Warn("proxied request failed")
			return
		}
		log.Info("proxied request")
	}, nil
}

// responseWriter wraps http.ResponseWriter to capture status code and, for
// failures, the response body
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode >= 400 && rw.body.Len() < 4096 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

// NewGateway routes path prefixes to backend services.
func NewGateway(routes map[string]string) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	for prefix, target := range routes {
		h, err := createReverseProxy(target)
		if err != nil {
			return nil, err
		}
		mux.HandleFunc(prefix, h)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		RespondWithResult(w, true, "")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Component("gateway").WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"client": r.RemoteAddr,
		}).Warn("route not found")
		RespondWithError(w, http.StatusNotFound, constants.ErrRouteNotFound)
	})
	return mux, nil
}
