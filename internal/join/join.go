package join

import (
	"github.com/tordrt/metaharvest/internal/catalog"
)

// Options controls how combined records are labelled
type Options struct {
	// Subdomain is written to every record when MultiInstance is set
	Subdomain     string
	MultiInstance bool
}

// Combine left-joins connections with their databases.
// Connections keep server order and databases keep server order within a
// connection. A connection without databases yields exactly one record with
// empty TypeName and Name, so no connection is ever dropped.
func Combine(opts Options, connections []catalog.Connection, databasesByConnection map[string][]catalog.DatabaseRecord) []catalog.CombinedRecord {
	subdomain := ""
	if opts.MultiInstance {
		subdomain = opts.Subdomain
	}

	combined := make([]catalog.CombinedRecord, 0, len(connections))
	for _, conn := range connections {
		base := catalog.CombinedRecord{
			Subdomain:      subdomain,
			ConnectorName:  conn.ConnectorName,
			ConnectionName: conn.Name,
			Category:       conn.Category,
		}

		emitted := 0
		for _, db := range databasesByConnection[conn.QualifiedName] {
			if db.ConnectionQualifiedName != conn.QualifiedName {
				continue
			}
			row := base
			row.TypeName = db.TypeName
			row.Name = db.Name
			combined = append(combined, row)
			emitted++
		}

		if emitted == 0 {
			combined = append(combined, base)
		}
	}

	return combined
}

// GroupByConnection indexes database records by their join key, keeping order
func GroupByConnection(databases []catalog.DatabaseRecord) map[string][]catalog.DatabaseRecord {
	grouped := make(map[string][]catalog.DatabaseRecord)
	for _, db := range databases {
		grouped[db.ConnectionQualifiedName] = append(grouped[db.ConnectionQualifiedName], db)
	}
	return grouped
}
