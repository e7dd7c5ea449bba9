package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/storage"
)

// DescribeDriver registers the behaviour every storage.Driver must have.
// newDriver is called before each spec; the driver is closed afterwards.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a record", func() {
			m := NewTestMetrics("dify")
			m.Cancelled = true

			inserted, err := driver.Put(ctx, m)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, m.RequestID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*got).To(Equal(*m))
		})

		It("is idempotent on request ID", func() {
			m := NewTestMetrics("dify")

			_, err := driver.Put(ctx, m)
			Expect(err).NotTo(HaveOccurred())

			dup := *m
			dup.Error = "changed"
			inserted, err := driver.Put(ctx, &dup)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			got, err := driver.Get(ctx, m.RequestID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Error).To(BeEmpty())
		})

		It("rejects nil records", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilRecord))
		})

		It("returns NotFoundError for unknown IDs", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{RequestID: "missing"}))
		})
	})

	Describe("List", func() {
		var first, second, third string

		BeforeEach(func() {
			for i, label := range []string{"dify", "other", "dify"} {
				m := NewTestMetrics(label)
				_, err := driver.Put(ctx, m)
				Expect(err).NotTo(HaveOccurred())
				switch i {
				case 0:
					first = m.RequestID
				case 1:
					second = m.RequestID
				case 2:
					third = m.RequestID
				}
				// Keep insertion times distinct for drivers with coarse clocks.
				time.Sleep(2 * time.Millisecond)
			}
		})

		It("returns records newest first", func() {
			records, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].RequestID).To(Equal(third))
			Expect(records[1].RequestID).To(Equal(second))
			Expect(records[2].RequestID).To(Equal(first))
		})

		It("filters by label", func() {
			records, err := driver.List(ctx, storage.ListOptions{Label: "dify"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			for _, r := range records {
				Expect(r.Label).To(Equal("dify"))
			}
		})

		It("applies the limit", func() {
			records, err := driver.List(ctx, storage.ListOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].RequestID).To(Equal(third))
		})
	})

	Describe("Stats", func() {
		It("returns zeros for an empty store", func() {
			stats, err := driver.Stats(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(*stats).To(Equal(storage.Stats{}))
		})

		It("aggregates records", func() {
			ok := NewTestMetrics("dify")
			failed := NewFailedTestMetrics("dify", "dify API request failed with status 500")
			cancelled := NewTestMetrics("dify")
			cancelled.Cancelled = true
			other := NewTestMetrics("other")

			for _, m := range []*llm.CompletionMetrics{ok, failed, cancelled, other} {
				_, err := driver.Put(ctx, m)
				Expect(err).NotTo(HaveOccurred())
			}

			stats, err := driver.Stats(ctx, "dify")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Count).To(Equal(3))
			Expect(stats.ErrorCount).To(Equal(1))
			Expect(stats.CancelledCount).To(Equal(1))
			Expect(stats.TotalTokens).To(Equal(ok.TotalTokens + failed.TotalTokens + cancelled.TotalTokens))
			Expect(stats.AvgDuration).To(BeNumerically("~", 0.5, 1e-9))
			Expect(stats.AvgTTFT).To(BeNumerically("~", 0.1, 1e-9))
			Expect(stats.AvgTokensPerSecond).To(BeNumerically("~", 12, 1e-9))

			all, err := driver.Stats(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all.Count).To(Equal(4))
		})
	})
}
