package catalog

// Instance is one target system being harvested
type Instance struct {
	Subdomain string
	BaseURL   string
	AuthToken string // always in "Bearer <token>" form
}

// Connection represents a configured data-source link within an instance
type Connection struct {
	Name          string
	QualifiedName string
	ConnectorName string
	Category      string
	CreatedBy     string
	UpdatedBy     string
	CreateTime    string
	UpdateTime    string
}

// DatabaseRecord represents a database asset that belongs to a connection
type DatabaseRecord struct {
	ConnectionQualifiedName string // join key, stamped from the fetching connection
	TypeName                string
	QualifiedName           string
	Name                    string
	CreatedBy               string
	UpdatedBy               string
	CreateTime              string
	UpdateTime              string
}

// CombinedRecord is one denormalized connection/database row
type CombinedRecord struct {
	Subdomain      string // only written in multi-instance mode
	ConnectorName  string
	ConnectionName string
	Category       string
	TypeName       string
	Name           string
}

// InstanceResult holds everything harvested for a single instance
type InstanceResult struct {
	Instance    Instance
	Connections []Connection
	Databases   []DatabaseRecord
	Combined    []CombinedRecord
}
