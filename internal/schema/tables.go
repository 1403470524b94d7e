package schema

// Foods holds one row per food code. Rows are upserted by food_code.
var Foods = Table{
	Name:       "foods",
	PrimaryKey: "food_id",
	Columns: []Column{
		{Name: "food_id", Type: ColIdentity},
		{Name: "food_code", Type: ColText, Size: 64, NotNull: true, Unique: true},
		{Name: "food_name", Type: ColText, Size: 255, NotNull: true, Default: "''"},
		{Name: "category", Type: ColText, Size: 255, NotNull: true, Default: "''"},
		{Name: "serving_size", Type: ColNumeric, NotNull: true, Default: "0"},
		{Name: "unit", Type: ColText, Size: 8, NotNull: true, Default: "'g'"},
		{Name: "calories", Type: ColNumeric, NotNull: true, Default: "0"},
		{Name: "protein", Type: ColNumeric, NotNull: true, Default: "0"},
		{Name: "fat", Type: ColNumeric, NotNull: true, Default: "0"},
		{Name: "carbohydrate", Type: ColNumeric, NotNull: true, Default: "0"},
		{Name: "created_at", Type: ColTimestamp, NotNull: true, AutoTime: true},
		{Name: "updated_at", Type: ColTimestamp, NotNull: true, AutoTime: true},
	},
}

// IngestRuns records every accepted run id with its outcome.
var IngestRuns = Table{
	Name:       "ingest_runs",
	PrimaryKey: "run_id",
	Columns: []Column{
		{Name: "run_id", Type: ColText, Size: 128},
		{Name: "status", Type: ColText, Size: 16, NotNull: true},
		{Name: "chunks_committed", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "records_committed", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "records_read", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "rows_degraded", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "tokens_degraded", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "bytes_read", Type: ColInt, NotNull: true, Default: "0"},
		{Name: "error", Type: ColText},
		{Name: "started_at", Type: ColTimestamp, NotNull: true},
		{Name: "finished_at", Type: ColTimestamp},
	},
}
