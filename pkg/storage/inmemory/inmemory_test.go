package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/storage"
	"github.com/papercomputeco/difyvoice/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/difyvoice/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("returns copies that callers cannot mutate", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()
		m := testutils.NewTestMetrics("dify")

		_, err := driver.Put(ctx, m)
		Expect(err).NotTo(HaveOccurred())
		m.Label = "mutated"

		got, err := driver.Get(ctx, m.RequestID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Label).To(Equal("dify"))

		got.Label = "mutated again"
		again, err := driver.Get(ctx, m.RequestID)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Label).To(Equal("dify"))
	})
})
