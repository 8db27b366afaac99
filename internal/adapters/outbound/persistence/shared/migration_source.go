package shared

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/crypto/blake2b"

	valueobjects "ledgerdesk/internal/domain/value_objects"
)

// MigrationCatalog is the ordered list of up migrations found in a source
// together with a blake2b-256 fingerprint of their contents.
type MigrationCatalog struct {
	Migrations  []valueobjects.MigrationID
	Fingerprint string
}

func OpenMigrationSource(fsys fs.FS, dir string) (source.Driver, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source %s: %w", dir, err)
	}

	return src, nil
}

func LoadMigrationCatalog(fsys fs.FS, dir string) (MigrationCatalog, error) {
	src, err := OpenMigrationSource(fsys, dir)
	if err != nil {
		return MigrationCatalog{}, err
	}
	defer src.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return MigrationCatalog{}, fmt.Errorf("init migration fingerprint: %w", err)
	}

	catalog := MigrationCatalog{}
	version, err := src.First()
	for {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			return MigrationCatalog{}, fmt.Errorf("list migrations: %w", err)
		}

		migration, found, readErr := readUpMigration(src, version, hasher)
		if readErr != nil {
			return MigrationCatalog{}, readErr
		}
		if found {
			catalog.Migrations = append(catalog.Migrations, migration)
		}

		version, err = src.Next(version)
	}

	catalog.Fingerprint = hex.EncodeToString(hasher.Sum(nil))
	return catalog, nil
}

// Pending returns the migrations newer than current. A nil current means the
// database has never been migrated.
func (c MigrationCatalog) Pending(current *uint) []valueobjects.MigrationID {
	pending := make([]valueobjects.MigrationID, 0, len(c.Migrations))
	for _, migration := range c.Migrations {
		if current == nil || migration.Version > *current {
			pending = append(pending, migration)
		}
	}

	return pending
}

func readUpMigration(src source.Driver, version uint, hasher io.Writer) (valueobjects.MigrationID, bool, error) {
	body, identifier, err := src.ReadUp(version)
	if errors.Is(err, fs.ErrNotExist) {
		return valueobjects.MigrationID{}, false, nil
	}
	if err != nil {
		return valueobjects.MigrationID{}, false, fmt.Errorf("read migration %d: %w", version, err)
	}
	defer body.Close()

	var versionBytes [8]byte
	binary.BigEndian.PutUint64(versionBytes[:], uint64(version))
	_, _ = hasher.Write(versionBytes[:])
	_, _ = io.WriteString(hasher, identifier)
	if _, err := io.Copy(hasher, body); err != nil {
		return valueobjects.MigrationID{}, false, fmt.Errorf("read migration %d: %w", version, err)
	}

	return valueobjects.NewMigrationID(version, identifier), true, nil
}
