package types

// CoverageProgress is the orchestrator checkpoint, persisted after every
// leaf so a crash loses at most one leaf's partial work.
type CoverageProgress struct {
	ID        string         `bson:"_id" json:"id"`
	Offset    int            `bson:"offset" json:"offset"`
	Stage     int            `bson:"stage" json:"stage"`
	Cooldowns map[string]int `bson:"cooldowns" json:"cooldowns"`
	UpdatedAt int64          `bson:"updated_at" json:"updated_at"`
}

// BackfillProgress is the retry worker checkpoint, persisted after every batch
type BackfillProgress struct {
	ID       string         `bson:"_id" json:"id"`
	Platform Platform       `bson:"platform" json:"platform"`
	Offset   int            `bson:"offset" json:"offset"`
	Good     int            `bson:"good" json:"good"`
	Partial  int            `bson:"partial" json:"partial"`
	Bad      int            `bson:"bad" json:"bad"`
	Errors   int            `bson:"errors" json:"errors"`
	Skipped  int            `bson:"skipped" json:"skipped"`
	Attempts map[string]int `bson:"attempts" json:"attempts"`
}

// SearchSnapshot is the durable tier of the aggregation cache: an ordered
// list of listing urls for one query identity, valid until max-age
type SearchSnapshot struct {
	ID        string   `bson:"_id" json:"id"`
	Platform  Platform `bson:"platform" json:"platform"`
	Query     string   `bson:"query" json:"query"`
	URLs      []string `bson:"urls" json:"urls"`
	Timestamp int64    `bson:"ts" json:"ts"`
}
