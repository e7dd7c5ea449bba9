package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/storage"
	"github.com/papercomputeco/difyvoice/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/difyvoice/pkg/utils/test"
)

// brokenDriver fails every query.
type brokenDriver struct {
	storage.Driver
}

var errBroken = errors.New("database is locked")

func (brokenDriver) Get(context.Context, string) (*llm.CompletionMetrics, error) {
	return nil, errBroken
}

func (brokenDriver) List(context.Context, storage.ListOptions) ([]*llm.CompletionMetrics, error) {
	return nil, errBroken
}

func (brokenDriver) Stats(context.Context, string) (*storage.Stats, error) {
	return nil, errBroken
}

func doRequest(s *Server, target string) (int, []byte) {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, body
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		server = NewServer(Config{ListenAddr: ":0"}, driver, nil)
	})

	put := func(m *llm.CompletionMetrics) {
		_, err := driver.Put(ctx, m)
		Expect(err).NotTo(HaveOccurred())
	}

	It("answers ping", func() {
		status, body := doRequest(server, "/ping")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("GET /v1/metrics", func() {
		It("returns an empty list", func() {
			status, body := doRequest(server, "/v1/metrics")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"count":0,"metrics":[]}`))
		})

		It("lists records newest first, filtered by label", func() {
			first := testutils.NewTestMetrics("dify")
			second := testutils.NewTestMetrics("dify")
			put(first)
			put(testutils.NewTestMetrics("other"))
			put(second)

			status, body := doRequest(server, "/v1/metrics?label=dify")
			Expect(status).To(Equal(http.StatusOK))

			var resp ListMetricsResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Metrics[0].RequestID).To(Equal(second.RequestID))
			Expect(resp.Metrics[1].RequestID).To(Equal(first.RequestID))
		})

		It("honours the limit", func() {
			for range 3 {
				put(testutils.NewTestMetrics("dify"))
			}

			_, body := doRequest(server, "/v1/metrics?limit=2")
			var resp ListMetricsResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Metrics).To(HaveLen(2))
		})

		DescribeTable("rejects bad limits",
			func(limit string) {
				status, body := doRequest(server, "/v1/metrics?limit="+limit)
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(body).To(MatchJSON(`{"error":"limit must be between 1 and 1000"}`))
			},
			Entry("not a number", "many"),
			Entry("zero", "0"),
			Entry("too large", "1001"),
		)
	})

	Describe("GET /v1/metrics/:request_id", func() {
		It("returns the stored record", func() {
			m := testutils.NewFailedTestMetrics("dify", "dify API request failed with status 500")
			put(m)

			status, body := doRequest(server, "/v1/metrics/"+m.RequestID)
			Expect(status).To(Equal(http.StatusOK))

			var got llm.CompletionMetrics
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got).To(Equal(*m))
		})

		It("returns 404 for an unknown request ID", func() {
			status, body := doRequest(server, "/v1/metrics/missing")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(body).To(MatchJSON(`{"error":"metrics record not found"}`))
		})
	})

	Describe("GET /v1/metrics/stats", func() {
		It("aggregates records", func() {
			put(testutils.NewTestMetrics("dify"))
			put(testutils.NewFailedTestMetrics("dify", "boom"))

			status, body := doRequest(server, "/v1/metrics/stats?label=dify")
			Expect(status).To(Equal(http.StatusOK))

			var stats storage.Stats
			Expect(json.Unmarshal(body, &stats)).To(Succeed())
			Expect(stats.Count).To(Equal(2))
			Expect(stats.ErrorCount).To(Equal(1))
		})
	})

	Context("when storage fails", func() {
		BeforeEach(func() {
			server = NewServer(Config{}, brokenDriver{}, nil)
		})

		It("returns 500 from every metrics route", func() {
			for _, target := range []string{"/v1/metrics", "/v1/metrics/stats", "/v1/metrics/abc"} {
				status, _ := doRequest(server, target)
				Expect(status).To(Equal(http.StatusInternalServerError), target)
			}
		})
	})
})
