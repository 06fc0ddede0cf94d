package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
)

// SentryMiddleware traces each request as a Sentry transaction and reports
// panics before re-raising them. The transaction is named after the matched
// chi route, so "GET /documents/{id}" groups every document. Without a
// configured client the transaction is a no-op.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		tx := startRequestTransaction(r)
		defer tx.Finish()
		r = r.WithContext(sentry.SetHubOnContext(tx.Context(), hub))

		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetRequest(r)
			if id := GetRequestID(r.Context()); id != "" {
				scope.SetTag("request_id", id)
				tx.SetTag("request_id", id)
			}
		})

		defer func() {
			if v := recover(); v != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), v)
				panic(v)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		finishRequestTransaction(tx, hub, r, rec.status)
	})
}

func startRequestTransaction(r *http.Request) *sentry.Span {
	opts := []sentry.SpanOption{
		sentry.WithOpName("http.server"),
		sentry.WithTransactionSource(sentry.SourceURL),
	}
	if trace := r.Header.Get("sentry-trace"); trace != "" {
		opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
	}
	return sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, opts...)
}

// finishRequestTransaction runs after the handler, once chi has filled in the
// route pattern and URL parameters.
func finishRequestTransaction(tx *sentry.Span, hub *sentry.Hub, r *http.Request, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	tx.Status = httpStatusToSpanStatus(status)
	tx.SetData("http.response.status_code", status)

	if route := routePattern(r); route != r.URL.Path {
		tx.Name = r.Method + " " + route
		tx.Source = sentry.SourceRoute
	}
	if documentID := chi.URLParam(r, "id"); documentID != "" {
		tx.SetTag("document_id", documentID)
	}
	if clientID := clientIDOf(r); clientID != "" {
		hub.Scope().SetTag("client_id", clientID)
		tx.SetTag("client_id", clientID)
	}
}

var spanStatusByHTTP = map[int]sentry.SpanStatus{
	http.StatusBadRequest:            sentry.SpanStatusInvalidArgument,
	http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
	http.StatusNotFound:              sentry.SpanStatusNotFound,
	http.StatusConflict:              sentry.SpanStatusAlreadyExists,
	http.StatusRequestEntityTooLarge: sentry.SpanStatusOutOfRange,
	http.StatusUnsupportedMediaType:  sentry.SpanStatusUnimplemented,
	http.StatusUnprocessableEntity:   sentry.SpanStatusFailedPrecondition,
	http.StatusTooManyRequests:       sentry.SpanStatusResourceExhausted,
	499:                              sentry.SpanStatusCanceled,
	http.StatusBadGateway:            sentry.SpanStatusUnavailable,
	http.StatusServiceUnavailable:    sentry.SpanStatusUnavailable,
	http.StatusGatewayTimeout:        sentry.SpanStatusDeadlineExceeded,
}

func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	if s, ok := spanStatusByHTTP[status]; ok {
		return s
	}
	switch {
	case status >= 200 && status < 400:
		return sentry.SpanStatusOK
	case status >= 400 && status < 500:
		return sentry.SpanStatusInvalidArgument
	case status >= 500:
		return sentry.SpanStatusInternalError
	default:
		return sentry.SpanStatusUnknown
	}
}
