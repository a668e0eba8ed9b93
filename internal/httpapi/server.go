// Package httpapi is the coordinator's wire layer: plain JSON-over-HTTP
// request/response bodies, one endpoint per Trade Orchestrator operation,
// with errors mapped through internal/apierr to the protocol's fixed
// status-code contract (400 validation, 404/409/429 protocol-state, 500
// internal, 204 for an empty offer fetch).
//
// Grounded on the teacher's internal/rpc/server.go (ServeMux route
// registration, structured request logging via pkg/logging; its CORS
// middleware is not carried over), narrowed from JSON-RPC 2.0 envelopes
// to flat REST bodies since this protocol's wire contract is plain
// JSON-over-HTTP rather than JSON-RPC.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/orchestrator"
	"github.com/taptrade/coordinatord/pkg/logging"
)

// requestIDHeader carries the per-request correlation ID generated for
// every inbound request, echoed back so a trader's client can tie a
// response to the line it produced in the coordinator's logs.
const requestIDHeader = "X-Request-Id"

// fetchOffersRateLimit bounds how often /fetch-available-offers, the only
// unauthenticated endpoint, may be called per second per coordinator
// process.
const fetchOffersRateLimit = 5

// fetchOffersRateBurst is the token bucket's burst allowance above the
// steady rate, absorbing a client's initial page-load fetch.
const fetchOffersRateBurst = 10

// Server serves the coordinator's HTTP wire protocol over the Trade
// Orchestrator.
type Server struct {
	orch *orchestrator.Orchestrator
	log  *logging.Logger

	fetchOffersLimiter *rate.Limiter

	server   *http.Server
	listener net.Listener
}

// New constructs a Server delegating every request to orch.
func New(orch *orchestrator.Orchestrator) *Server {
	return &Server{
		orch:               orch,
		log:                logging.GetDefault().Component("httpapi"),
		fetchOffersLimiter: rate.NewLimiter(rate.Limit(fetchOffersRateLimit), fetchOffersRateBurst),
	}
}

// Start binds addr and begins serving in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("POST /create-offer", s.handle(s.createOffer))
	mux.HandleFunc("POST /submit-maker-bond", s.handle(s.submitMakerBond))
	mux.HandleFunc("POST /fetch-available-offers", s.rateLimited(s.fetchOffersLimiter, s.handle(s.fetchAvailableOffers)))
	mux.HandleFunc("POST /submit-taker-bond", s.handle(s.submitTakerBond))
	mux.HandleFunc("POST /poll-taken-as-maker", s.handle(s.pollTakenAsMaker))
	mux.HandleFunc("POST /submit-signed-escrow", s.handle(s.submitSignedEscrow))
	mux.HandleFunc("POST /poll-escrow-confirmed", s.handle(s.pollEscrowConfirmed))
	mux.HandleFunc("POST /signal-obligations", s.handle(s.signalObligations))
	mux.HandleFunc("POST /poll-payout", s.handle(s.pollPayout))
	mux.HandleFunc("POST /submit-partial-signature", s.handle(s.submitPartialSignature))

	s.server = &http.Server{
		Handler:      withRequestID(logRequests(s.log, mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", "error", err)
		}
	}()

	s.log.Info("http api started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// apiFunc decodes a request body, calls the orchestrator, and returns a
// value to be JSON-encoded (or nil for a 204) plus any error.
type apiFunc func(ctx context.Context, body json.RawMessage) (any, error)

func (s *Server) handle(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
				writeErr(w, apierr.NewValidation("MalformedJSON", "request body is not valid JSON"))
				return
			}
		}

		result, err := fn(r.Context(), raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		if result == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.NewInternal("Unclassified", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error_code":    apiErr.Code,
		"error_message": apiErr.Message,
	})
}

func decode[T any](body json.RawMessage) (T, error) {
	var v T
	if len(body) == 0 {
		return v, apierr.NewValidation("MissingBody", "request body is required")
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, apierr.NewValidation("MalformedJSON", "request body does not match the expected schema")
	}
	return v, nil
}

func logRequests(log *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug("http request", "method", r.Method, "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()))
		next.ServeHTTP(w, r)
	})
}

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// withRequestID stamps every inbound request with a fresh correlation ID,
// echoed in the response header and threaded through the request's
// context so downstream logging can tie a line back to the request that
// produced it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// rateLimited rejects a request with RateLimited (429) once the given
// limiter's token bucket is exhausted, before it reaches next.
func (s *Server) rateLimited(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeErr(w, apierr.NewProtocolState("RateLimited", "too many requests, slow down"))
			return
		}
		next(w, r)
	}
}
