package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcuoli/go-nameresolve/internal/logger"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

// Resolver is the part of nameresolve.Resolver the API serves.
type Resolver interface {
	InternalResolveName(ctx context.Context, name string, nameType nameresolve.NameType, site string, order []string) ([]nameresolve.Service, error)
	GetSortedDCList(ctx context.Context, domain, site string, adsOnly bool) ([]nameresolve.Service, error)
	GetKDCList(ctx context.Context, realm, site string) ([]nameresolve.Service, error)
	NodeStatus(ctx context.Context, addr netip.Addr) (*nameresolve.HostStatus, error)
	Order() []string
}

// NewRouter creates the chi router.
//
// Routes:
//   - GET /health - Liveness check
//   - GET /v1/resolve/{name}?type=&order=&site= - Name lookup
//   - GET /v1/dclist/{domain}?site=&ads_only=&kdc= - Domain controller list
//   - GET /v1/status/{addr} - Node status
//   - GET /metrics - Prometheus metrics, when gatherer is not nil
func NewRouter(res Resolver, gatherer prometheus.Gatherer, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	h := &handler{res: res}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"version": nameresolve.Version})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/resolve/{name}", h.resolve)
		r.Get("/dclist/{domain}", h.dcList)
		r.Get("/status/{addr}", h.status)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type handler struct {
	res Resolver
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	nameType := nameresolve.NameServer
	if t := q.Get("type"); t != "" {
		var err error
		if nameType, err = nameresolve.ParseNameType(t); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	order := h.res.Order()
	if o, ok := q["order"]; ok {
		order = nameresolve.ParseOrder(o[0])
	}

	list, err := h.res.InternalResolveName(r.Context(), name, nameType, q.Get("site"), order)
	if err != nil {
		writeError(w, errorStatus(err), fmt.Errorf("resolve %s#%s: %w", name, nameType, err))
		return
	}
	writeOK(w, ResolveResult{Name: name, Type: nameType.String(), Addrs: Addresses(list)})
}

func (h *handler) dcList(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	q := r.URL.Query()
	site := q.Get("site")

	adsOnly, err := queryBool(q.Get("ads_only"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("ads_only: %w", err))
		return
	}
	kdc, err := queryBool(q.Get("kdc"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("kdc: %w", err))
		return
	}

	var list []nameresolve.Service
	if kdc {
		list, err = h.res.GetKDCList(r.Context(), domain, site)
	} else {
		list, err = h.res.GetSortedDCList(r.Context(), domain, site, adsOnly)
	}
	if err != nil {
		writeError(w, errorStatus(err), fmt.Errorf("DC list for %s: %w", domain, err))
		return
	}
	writeOK(w, DCListResult{Domain: domain, Site: site, Servers: Addresses(list)})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	addr, err := netip.ParseAddr(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hs, err := h.res.NodeStatus(r.Context(), addr)
	if err != nil {
		writeError(w, errorStatus(err), fmt.Errorf("node status of %s: %w", addr, err))
		return
	}
	writeOK(w, NewStatusResult(hs))
}

func queryBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(start),
		}
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
