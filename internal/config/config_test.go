package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creibaud/sqlmorpher/internal/config"
)

const sampleConfig = `
databases:
  source:
    type: postgres
    host: legacy.internal
    port: 5432
    user: reader
    password_env_var: SOURCE_DB_PASSWORD
    database: legacy
  target:
    type: sqlite
    path: /var/lib/morpher/target.sqlite

migrations:
  - name: users_to_comptes
    root_table: users
    target_table: comptes
    joins:
      - table: profiles
        on_clause: users.id = profiles.user_id
        type: LEFT
    column_mapping:
      users.id: id
      users.username: login
      profiles.phone: telephone
    transform_function: normalize_phone
  - name: plain_copy
    root_table: countries
    target_table: pays
    column_mapping:
      countries.id: id
      countries.name: nom
`

var _ = Describe("Parse", func() {
	It("should decode databases and migrations", func() {
		cfg, err := config.Parse([]byte(sampleConfig))
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Databases.Source.Type).To(Equal("postgres"))
		Expect(cfg.Databases.Source.PasswordEnvVar).To(Equal("SOURCE_DB_PASSWORD"))
		Expect(cfg.Databases.Target.Path).To(Equal("/var/lib/morpher/target.sqlite"))

		Expect(cfg.Migrations).To(HaveLen(2))
		m := cfg.Migrations[0]
		Expect(m.Name).To(Equal("users_to_comptes"))
		Expect(m.Joins).To(HaveLen(1))
		Expect(m.Joins[0].OnClause).To(Equal("users.id = profiles.user_id"))
		Expect(m.TransformFunction).To(Equal("normalize_phone"))
	})

	// The document order of column_mapping defines the target column order
	// for inserts, so it must survive YAML decoding
	It("should preserve column_mapping document order", func() {
		cfg, err := config.Parse([]byte(sampleConfig))
		Expect(err).NotTo(HaveOccurred())

		m := cfg.Migrations[0]
		Expect(m.Columns.Pairs()).To(Equal([]config.ColumnPair{
			{Source: "users.id", Target: "id"},
			{Source: "users.username", Target: "login"},
			{Source: "profiles.phone", Target: "telephone"},
		}))
		Expect(m.Columns.TargetColumns()).To(Equal(
			[]string{"id", "login", "telephone"}))
	})

	It("should reject a migration without a column mapping", func() {
		_, err := config.Parse([]byte(`
databases:
  source: {type: sqlite}
  target: {type: sqlite}
migrations:
  - name: empty
    root_table: users
    target_table: comptes
`))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("column_mapping"))
	})

	It("should reject duplicate migration names", func() {
		_, err := config.Parse([]byte(`
databases:
  source: {type: sqlite}
  target: {type: sqlite}
migrations:
  - name: twice
    root_table: users
    target_table: a
    column_mapping: {users.id: id}
  - name: twice
    root_table: users
    target_table: b
    column_mapping: {users.id: id}
`))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("duplicate migration name"))
	})

	It("should reject a missing database section", func() {
		_, err := config.Parse([]byte(`
databases:
  source: {type: sqlite}
migrations: []
`))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("target database"))
	})

	It("should reject an invalid write mode", func() {
		_, err := config.Parse([]byte(`
databases:
  source: {type: sqlite}
  target: {type: sqlite}
migrations:
  - name: bad_mode
    root_table: users
    target_table: comptes
    write_mode: replace
    column_mapping: {users.id: id}
`))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("write mode"))
	})
})

var _ = Describe("DefaultOptions", func() {
	It("should fill every knob", func() {
		opts := config.DefaultOptions()
		Expect(opts.PageSize).To(Equal(uint64(500)))
		Expect(opts.BatchSize).To(Equal(250))
		Expect(opts.RetryDelay).To(Equal(500 * time.Millisecond))
		Expect(opts.QueueDepth).To(Equal(2))
		Expect(opts.MaxErrorRate).To(Equal(1.0))
	})

	It("should validate knob ranges", func() {
		opts := config.DefaultOptions()
		Expect(opts.Validate()).To(Succeed())

		opts.MaxErrorRate = 1.5
		Expect(opts.Validate()).NotTo(Succeed())

		opts = config.DefaultOptions()
		opts.BatchSize = 0
		Expect(opts.Validate()).NotTo(Succeed())
	})
})
