package sql

import "embed"

// Migrations holds the schema migrations, applied in filename order.
//
//go:embed migrations
var Migrations embed.FS

//go:embed queries/select_services.sql
var SelectServices string

//go:embed queries/select_bundles.sql
var SelectBundles string

//go:embed queries/select_conditions.sql
var SelectConditions string

//go:embed queries/select_tables.sql
var SelectTables string
