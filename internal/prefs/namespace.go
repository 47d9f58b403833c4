package prefs

import "github.com/electionneedle/needle/internal/model"

// Keys of the persisted record.
const (
	KeySSID     = "ssid"
	KeyPassword = "password"
	KeySlug     = "slug"
)

// Record is the durable mirror of the device's credentials and market slug.
type Record struct {
	SSID     string
	Password string
	Slug     string
}

// Credentials returns the stored WiFi credentials, nil when no SSID was saved.
func (r Record) Credentials() *model.Credentials {
	if r.SSID == "" {
		return nil
	}
	return &model.Credentials{SSID: r.SSID, Password: r.Password}
}

// Namespace scopes a Store to one preference namespace.
type Namespace struct {
	store *Store
	name  string
}

// NewNamespace returns a view of store restricted to name.
func NewNamespace(store *Store, name string) *Namespace {
	if name == "" {
		name = model.DefaultPrefsNamespace
	}
	return &Namespace{store: store, name: name}
}

// Load reads the persisted record. A missing slug falls back to defaultSlug.
func (n *Namespace) Load(defaultSlug string) (Record, error) {
	var rec Record
	var err error
	if rec.SSID, err = n.store.GetString(n.name, KeySSID, ""); err != nil {
		return Record{}, err
	}
	if rec.Password, err = n.store.GetString(n.name, KeyPassword, ""); err != nil {
		return Record{}, err
	}
	if rec.Slug, err = n.store.GetString(n.name, KeySlug, defaultSlug); err != nil {
		return Record{}, err
	}
	if rec.Slug == "" {
		rec.Slug = defaultSlug
	}
	return rec, nil
}

// SaveCredentials persists ssid and password atomically.
func (n *Namespace) SaveCredentials(c model.Credentials) error {
	return n.store.PutStrings(n.name, map[string]string{
		KeySSID:     c.SSID,
		KeyPassword: c.Password,
	})
}

// SaveSlug persists the market identifier.
func (n *Namespace) SaveSlug(slug string) error {
	return n.store.PutString(n.name, KeySlug, slug)
}
