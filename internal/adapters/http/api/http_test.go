package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/dayflow/internal/adapters/http/api"
	service "github.com/okian/dayflow/internal/app"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/forecast"
	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

// failingDeps returns the configured error from every call.
type failingDeps struct {
	err error
}

func (f *failingDeps) Categories() []activity.Category { return nil }

func (f *failingDeps) Forecast(context.Context, string, []activity.Category, int) ([]forecast.Forecast, error) {
	return nil, f.err
}

func (f *failingDeps) Sample(context.Context, int, activity.Category) (activity.Category, error) {
	return 0, f.err
}

func (f *failingDeps) Probabilities(context.Context, int, activity.Category) ([]float64, error) {
	return nil, f.err
}

func startedService(t *testing.T) *service.Service {
	t.Helper()
	l, err := blocks.NewLayout(360)
	if err != nil {
		t.Fatal(err)
	}
	c, err := transition.Build(l, transition.NewSliceSource([]blocks.Array{
		{activity.Sleeping, activity.Work, activity.Work, activity.Sleeping},
	}))
	if err != nil {
		t.Fatal(err)
	}
	svc := service.New(
		service.WithModel(transition.NewModel(c)),
		service.WithSeed(3),
		service.WithForecastCount(4),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given an API server over a started service", t, func() {
		svc := startedService(t)
		server := api.NewServer(svc, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		Convey("When checking health", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("When reading stats", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("When scraping metrics", func() {
			w := serve(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When listing categories", func() {
			w := serve(mux, http.MethodGet, "/categories", "")
			var out []struct {
				Code  int    `json:"code"`
				Label string `json:"label"`
			}
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out, ShouldHaveLength, activity.Count-1)
			So(out[0].Code, ShouldEqual, 0)
			So(out[0].Label, ShouldEqual, activity.Sleeping.Label())
		})

		Convey("When forecasting from a sleeping first block", func() {
			w := serve(mux, http.MethodPost, "/forecast", `{"partial":[0],"count":3}`)
			var out struct {
				ID        string `json:"id"`
				Forecasts []struct {
					Initial    []struct{ Code int } `json:"initial"`
					Prediction []struct{ Code int } `json:"prediction"`
					Confidence float64              `json:"confidence"`
				} `json:"forecasts"`
			}

			Convey("Then the single deterministic trajectory is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
				So(out.ID, ShouldNotBeEmpty)
				So(out.Forecasts, ShouldHaveLength, 1)
				So(out.Forecasts[0].Initial, ShouldHaveLength, 1)
				So(out.Forecasts[0].Prediction, ShouldHaveLength, 3)
				So(out.Forecasts[0].Prediction[0].Code, ShouldEqual, int(activity.Work))
				So(out.Forecasts[0].Confidence, ShouldEqual, 1)
			})
		})

		Convey("When the forecast payload is malformed", func() {
			So(serve(mux, http.MethodPost, "/forecast", `{"partial":`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/forecast", `{"bogus":1}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/forecast", `{"partial":[21]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/forecast", `{"partial":[-1]}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the partial day is longer than a day", func() {
			w := serve(mux, http.MethodPost, "/forecast", `{"partial":[0,0,0,0,0]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When more forecasts are requested than the service allows", func() {
			w := serve(mux, http.MethodPost, "/forecast", `{"partial":[0],"count":10001}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, forecast.ErrInvalidCount.Error())

			w = serve(mux, http.MethodPost, "/forecast", `{"count":4611686018427387904}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown strategy is requested", func() {
			w := serve(mux, http.MethodPost, "/forecast", `{"strategy":"oracle"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When forecasting with GET", func() {
			So(serve(mux, http.MethodGet, "/forecast", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When sampling a step", func() {
			w := serve(mux, http.MethodGet, "/sample?block=0&from=0", "")
			var out struct {
				Next          struct{ Code int }     `json:"next"`
				From          struct{ Label string } `json:"from"`
				Probabilities []float64              `json:"probabilities"`
			}
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			So(out.Next.Code, ShouldEqual, int(activity.Work))
			So(out.Probabilities, ShouldHaveLength, activity.Count)
			So(out.From.Label, ShouldEqual, activity.Sleeping.Label())
		})

		Convey("When sampling with bad parameters", func() {
			So(serve(mux, http.MethodGet, "/sample?block=x&from=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/sample?block=0&from=300", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/sample?block=0&from=42", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodGet, "/sample?block=9&from=0", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given dependencies that always fail", t, func() {
		deps := &failingDeps{}
		mux := http.NewServeMux()
		api.NewServer(deps, &mockStatsProvider{}).Register(context.Background(), mux)

		Convey("When the service has not started", func() {
			deps.err = service.ErrNotStarted
			So(serve(mux, http.MethodPost, "/forecast", `{}`).Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the count is rejected", func() {
			deps.err = forecast.ErrInvalidCount
			So(serve(mux, http.MethodPost, "/forecast", `{"count":-1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unexpected error occurs", func() {
			deps.err = errors.New("disk on fire")
			w := serve(mux, http.MethodGet, "/sample?block=0&from=0", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "internal_error")
		})
	})
}
