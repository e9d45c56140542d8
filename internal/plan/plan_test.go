package plan_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/plan"
	srvErrors "github.com/creibaud/sqlmorpher/pkg/errors"
)

var _ = Describe("Build", func() {
	// Given a chain of joins where each on_clause only references tables
	// already in the graph
	// When the plan is built
	// Then the join order matches declaration order
	It("should preserve declaration order for a valid join graph", func() {
		joins := []config.JoinSpec{
			{Table: "profiles", OnClause: "users.id = profiles.user_id", Type: "LEFT"},
			{Table: "countries", OnClause: "profiles.country_id = countries.id", Type: "INNER"},
			{Table: "regions", OnClause: "countries.region_id = regions.id"},
		}

		p, err := plan.Build("users", joins)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Root).To(Equal("users"))
		Expect(p.Joins).To(HaveLen(3))
		Expect(p.Joins[0].Table).To(Equal("profiles"))
		Expect(p.Joins[0].Type).To(Equal(plan.JoinLeft))
		Expect(p.Joins[1].Table).To(Equal("countries"))
		Expect(p.Joins[2].Table).To(Equal("regions"))
		// empty type defaults to INNER
		Expect(p.Joins[2].Type).To(Equal(plan.JoinInner))
	})

	It("should track every joined table plus the root", func() {
		p, err := plan.Build("users", []config.JoinSpec{
			{Table: "profiles", OnClause: "users.id = profiles.user_id"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Has("users")).To(BeTrue())
		Expect(p.Has("profiles")).To(BeTrue())
		Expect(p.Has("countries")).To(BeFalse())
	})

	// Given a join whose on_clause references a table that is neither the
	// root nor previously joined
	// Then the build fails with BrokenJoinGraph before any query is issued
	It("should reject an on_clause referencing an undeclared table", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "profiles", OnClause: "orders.id = profiles.order_id"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindBrokenJoinGraph))
	})

	It("should reject joins declared before their dependencies", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "countries", OnClause: "profiles.country_id = countries.id"},
			{Table: "profiles", OnClause: "users.id = profiles.user_id"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindBrokenJoinGraph))
	})

	It("should reject a table joined twice", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "profiles", OnClause: "users.id = profiles.user_id"},
			{Table: "profiles", OnClause: "users.id = profiles.user_id"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindDuplicateJoinTarget))
	})

	It("should reject joining the root table again", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "users", OnClause: "users.id = users.parent_id"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindDuplicateJoinTarget))
	})

	It("should reject an on_clause with no qualified column reference", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "profiles", OnClause: "1 = 1"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindBrokenJoinGraph))
	})

	It("should reject a join without a table or on_clause", func() {
		_, err := plan.Build("users", []config.JoinSpec{{Table: "profiles"}})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindBrokenJoinGraph))
	})

	It("should reject an unknown join type", func() {
		_, err := plan.Build("users", []config.JoinSpec{
			{Table: "profiles", OnClause: "users.id = profiles.user_id", Type: "CROSS"},
		})

		Expect(err).To(HaveOccurred())
		Expect(srvErrors.ConfigKind(err)).To(Equal(srvErrors.KindUnsupportedJoinType))
	})
})

var _ = Describe("ParseJoinType", func() {
	It("should normalize case and outer variants", func() {
		Expect(plan.ParseJoinType("left")).To(Equal(plan.JoinLeft))
		Expect(plan.ParseJoinType("LEFT OUTER")).To(Equal(plan.JoinLeft))
		Expect(plan.ParseJoinType("full")).To(Equal(plan.JoinFull))
		Expect(plan.ParseJoinType("")).To(Equal(plan.JoinInner))
	})
})
