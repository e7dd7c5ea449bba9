package sqlstore_test

import (
	"database/sql"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/storage/sqlstore"
)

var _ = Describe("Store", func() {
	Describe("rebind", func() {
		It("numbers placeholders for postgres", func() {
			s := sqlstore.New(&sql.DB{}, sqlstore.Postgres)
			Expect(s.Rebind("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?")).
				To(Equal("SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3"))
		})

		It("leaves sqlite placeholders alone", func() {
			s := sqlstore.New(&sql.DB{}, sqlstore.SQLite)
			Expect(s.Rebind("SELECT ? , ?")).To(Equal("SELECT ? , ?"))
		})
	})
})
