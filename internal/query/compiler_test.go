package query_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/plan"
	"github.com/creibaud/sqlmorpher/internal/query"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

func usersPlan(joinType string) *plan.Plan {
	p, err := plan.Build("users", []config.JoinSpec{
		{Table: "profiles", OnClause: "users.id = profiles.user_id", Type: joinType},
	})
	Expect(err).NotTo(HaveOccurred())
	return p
}

func usersMapping() config.ColumnMapping {
	return config.NewColumnMapping(
		config.ColumnPair{Source: "users.id", Target: "id"},
		config.ColumnPair{Source: "users.username", Target: "username"},
		config.ColumnPair{Source: "profiles.phone", Target: "phone"},
	)
}

var _ = Describe("Compile", func() {
	It("should emit joins in declaration order with aliased columns", func() {
		q, err := query.Compile(usersPlan("LEFT"), usersMapping(), db.DialectSQLite)
		Expect(err).NotTo(HaveOccurred())

		stmt, args, err := q.SelectSQL(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(BeEmpty())
		Expect(stmt).To(Equal(
			"SELECT users.id AS id, users.username AS username, profiles.phone AS phone " +
				"FROM users LEFT JOIN profiles ON users.id = profiles.user_id"))
	})

	It("should order and bound paged statements", func() {
		q, err := query.Compile(usersPlan("LEFT"), usersMapping(), db.DialectSQLite)
		Expect(err).NotTo(HaveOccurred())

		stmt, _, err := q.SelectSQL(2, 100)
		Expect(err).NotTo(HaveOccurred())
		// the first mapped column leads, the rest break ties
		Expect(stmt).To(ContainSubstring("ORDER BY id, username, phone"))
		Expect(stmt).To(ContainSubstring("LIMIT 100"))
		Expect(stmt).To(ContainSubstring("OFFSET 200"))
	})

	It("should page with OFFSET/FETCH on mssql", func() {
		q, err := query.Compile(usersPlan("LEFT"), usersMapping(), db.DialectMSSQL)
		Expect(err).NotTo(HaveOccurred())

		stmt, _, err := q.SelectSQL(1, 50)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt).To(ContainSubstring("ORDER BY id, username, phone"))
		Expect(stmt).To(ContainSubstring("OFFSET 50 ROWS FETCH NEXT 50 ROWS ONLY"))
		Expect(stmt).NotTo(ContainSubstring("LIMIT"))
	})

	It("should render FULL joins for dialects that support them", func() {
		q, err := query.Compile(usersPlan("FULL"), usersMapping(), db.DialectPostgres)
		Expect(err).NotTo(HaveOccurred())

		stmt, _, err := q.SelectSQL(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt).To(ContainSubstring("FULL JOIN profiles ON users.id = profiles.user_id"))
	})

	// Given a FULL join requested against an engine without FULL JOIN
	// Then compilation fails fast, before any statement is issued
	It("should reject FULL joins on mysql and sqlite", func() {
		for _, dialect := range []db.Dialect{db.DialectMySQL, db.DialectSQLite} {
			_, err := query.Compile(usersPlan("FULL"), usersMapping(), dialect)
			Expect(err).To(HaveOccurred())
			Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindUnsupportedJoinType))
		}
	})

	It("should reject unqualified source columns", func() {
		mapping := config.NewColumnMapping(config.ColumnPair{Source: "id", Target: "id"})

		_, err := query.Compile(usersPlan("LEFT"), mapping, db.DialectSQLite)

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindInvalidColumnReference))
	})

	It("should reject source columns referencing a table outside the plan", func() {
		mapping := config.NewColumnMapping(
			config.ColumnPair{Source: "orders.id", Target: "id"},
		)

		_, err := query.Compile(usersPlan("LEFT"), mapping, db.DialectSQLite)

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindInvalidColumnReference))
	})

	It("should reject duplicate target columns", func() {
		mapping := config.NewColumnMapping(
			config.ColumnPair{Source: "users.id", Target: "id"},
			config.ColumnPair{Source: "users.username", Target: "id"},
		)

		_, err := query.Compile(usersPlan("LEFT"), mapping, db.DialectSQLite)

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindInvalidColumnReference))
	})

	It("should reject an empty column mapping", func() {
		_, err := query.Compile(usersPlan("LEFT"), config.NewColumnMapping(), db.DialectSQLite)

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindInvalidColumnReference))
	})

	It("should not order unpaginated statements", func() {
		q, err := query.Compile(usersPlan("LEFT"), usersMapping(), db.DialectSQLite)
		Expect(err).NotTo(HaveOccurred())

		stmt, _, err := q.SelectSQL(0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt).NotTo(ContainSubstring("ORDER BY"))
	})
})
