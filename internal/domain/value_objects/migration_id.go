package valueobjects

import (
	"fmt"
	"strconv"
	"strings"
)

type MigrationID struct {
	Version uint
	Name    string
}

func NewMigrationID(version uint, name string) MigrationID {
	return MigrationID{Version: version, Name: strings.TrimSpace(name)}
}

// ParseMigrationID accepts the "0003_create_payments" form produced by String.
func ParseMigrationID(raw string) (MigrationID, error) {
	versionPart, name, _ := strings.Cut(strings.TrimSpace(raw), "_")
	version, err := strconv.ParseUint(versionPart, 10, 64)
	if err != nil {
		return MigrationID{}, fmt.Errorf("invalid migration id %q: %w", raw, err)
	}

	return NewMigrationID(uint(version), name), nil
}

func (m MigrationID) String() string {
	if m.Name == "" {
		return fmt.Sprintf("%04d", m.Version)
	}

	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}
