package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	convey.Convey("Given error statuses", t, func() {
		cases := []struct {
			status   int
			class    string
			severity string
		}{
			{http.StatusBadRequest, "client_error", "medium"},
			{http.StatusNotFound, "not_found", "medium"},
			{http.StatusConflict, "capacity", "low"},
			{http.StatusInternalServerError, "server_error", "high"},
			{http.StatusServiceUnavailable, "unavailable", "high"},
		}
		for _, c := range cases {
			class, severity := classify(c.status)
			convey.So(class, convey.ShouldEqual, c.class)
			convey.So(severity, convey.ShouldEqual, c.severity)
		}
	})
}

func TestMetricsMiddleware(t *testing.T) {
	convey.Convey("Given a wrapped handler", t, func() {
		convey.Convey("The handler's status and body pass through", func() {
			h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte("full"))
			}, "test")
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, "/actions", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusConflict)
			convey.So(rec.Body.String(), convey.ShouldEqual, "full")
		})

		convey.Convey("A handler that only writes a body is a 200", func() {
			h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}, "test")
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}
