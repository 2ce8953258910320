package sources

// File is the top-level structure of the sources seed file
//
//	sources:
//	  - scope: team
//	    provider: localfs
//	    name: eng
//	    displayName: Engineering
//	    handle:
//	      dir: /srv/snippets/eng
type File struct {
	Sources []Entry `yaml:"sources"`
}

// Entry is one configured source. Handle keys depend on the provider. The
// HTTP API accepts the same shape as JSON.
type Entry struct {
	Scope       string         `yaml:"scope" json:"scope"`
	Provider    string         `yaml:"provider" json:"provider"`
	Name        string         `yaml:"name" json:"name"`
	DisplayName string         `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	Handle      map[string]any `yaml:"handle" json:"handle"`
}
