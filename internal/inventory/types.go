// Package inventory reads the host, database, playbook and upgrade documents
// from the configuration directory and resolves symbolic names against them.
package inventory

// Host is a deploy target reachable over SSH.
type Host struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	User    string   `json:"user,omitempty"`
	Port    int      `json:"port,omitempty"`
	KeyFile string   `json:"keyFile,omitempty"`
	Groups  []string `json:"groups,omitempty"`
}

// HostInventory is the inventory.json document.
type HostInventory struct {
	Hosts []Host `json:"hosts"`
}

// Database is a named PostgreSQL connection.
type Database struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port,omitempty"`
	Database     string `json:"database"`
	User         string `json:"user,omitempty"`
	PasswordFile string `json:"passwordFile,omitempty"`
}

// DBUser is a named database login, independent of a connection.
type DBUser struct {
	Name         string `json:"name"`
	User         string `json:"user"`
	PasswordFile string `json:"passwordFile,omitempty"`
}

// DBInventory is the db_inventory.json document.
type DBInventory struct {
	Databases []Database `json:"databases"`
	Users     []DBUser   `json:"users"`
}

// Playbook is a named ansible-playbook invocation.
type Playbook struct {
	Name              string   `json:"name"`
	Path              string   `json:"path"`
	Inventory         string   `json:"inventory,omitempty"`
	Forks             int      `json:"forks,omitempty"`
	Environment       string   `json:"environment,omitempty"`
	ExtraVars         []string `json:"extraVars,omitempty"`
	VaultPasswordFile string   `json:"vaultPasswordFile,omitempty"`
}

type playbookDocument struct {
	Playbooks []Playbook `json:"playbooks"`
}

// HelmUpgrade is a named, pre-built upgrade command and where to run it.
// Pod runs it through kubectl exec, Container through the Docker exec API,
// and neither runs it on the service host.
type HelmUpgrade struct {
	Name      string `json:"name"`
	Pod       string `json:"pod,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Container string `json:"container,omitempty"`
	Command   string `json:"command"`
}

type helmDocument struct {
	Upgrades []HelmUpgrade `json:"upgrades"`
}

// Resolution is the concrete target behind a symbolic name.
type Resolution struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"` // "host" or "database"
	Host     *Host     `json:"host,omitempty"`
	Database *Database `json:"database,omitempty"`
}

// Document file names inside the configuration directory.
const (
	HostsFile     = "inventory.json"
	DatabasesFile = "db_inventory.json"
	PlaybooksFile = "playbooks.json"
	UpgradesFile  = "helm_upgrades.json"
)

// Fallbacks used when a document is absent.
var (
	fallbackHosts = HostInventory{Hosts: []Host{
		{Name: "localhost", Address: "127.0.0.1", User: "deploy", Port: 22},
	}}
	fallbackDatabases = DBInventory{
		Databases: []Database{
			{Name: "local", Host: "127.0.0.1", Port: 5432, Database: "postgres", User: "postgres"},
		},
		Users: []DBUser{
			{Name: "postgres", User: "postgres"},
		},
	}
)
