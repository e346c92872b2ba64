package migrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Migration directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

var migrationFileRe = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

// Migration is a pair of up and down SQL scripts sharing a version.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// CreateMigrationFromSQL creates a migration from SQL strings.
func CreateMigrationFromSQL(version int, description, upSQL, downSQL string) *Migration {
	return &Migration{
		Version:     version,
		Description: description,
		Up:          upSQL,
		Down:        downSQL,
	}
}

// SQL returns the script for a direction.
func (m *Migration) SQL(direction string) (string, error) {
	switch direction {
	case DirectionUp:
		return m.Up, nil
	case DirectionDown:
		return m.Down, nil
	}
	return "", fmt.Errorf("invalid migration direction: %s", direction)
}

// MigrationFile holds the parts of a migration file name.
type MigrationFile struct {
	Version   int
	Name      string
	Direction string
}

// ParseMigrationFileName parses NNNNNNNNNN_name.(up|down).sql.
func ParseMigrationFileName(filename string) (*MigrationFile, error) {
	m := migrationFileRe.FindStringSubmatch(filename)
	if m == nil {
		return nil, fmt.Errorf("invalid migration filename: %s", filename)
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid migration version in %s: %w", filename, err)
	}
	return &MigrationFile{Version: version, Name: m[2], Direction: m[3]}, nil
}

// GenerateMigrationFileName builds the file name for a migration script.
// Characters other than letters, digits and underscores in name are
// replaced with underscores.
func GenerateMigrationFileName(version int, name, direction string) string {
	return fmt.Sprintf("%010d_%s.%s.sql", version, sanitizeName(name), direction)
}

// GetNextMigrationVersion returns a version based on the current unix time.
func GetNextMigrationVersion() int {
	return int(time.Now().Unix())
}

// describe turns a file name part like add_room_overlap into "Add Room Overlap".
func describe(name string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(name, "_", " "))
}

func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte('_')
	}
	if sb.Len() == 0 {
		return "migration"
	}
	return sb.String()
}
