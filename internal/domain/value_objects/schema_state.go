package valueobjects

// SchemaState is a point-in-time view of the target database produced by a
// persistence handle. It is consumed once and discarded.
type SchemaState struct {
	DatabaseExists    bool
	Versioned         bool
	CurrentVersion    uint
	Dirty             bool
	Pending           []MigrationID
	SourceFingerprint string
}

func (s SchemaState) HasPending() bool {
	return len(s.Pending) > 0
}

func (s SchemaState) PendingIDs() []string {
	ids := make([]string, 0, len(s.Pending))
	for _, migration := range s.Pending {
		ids = append(ids, migration.String())
	}

	return ids
}
