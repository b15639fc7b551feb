package endpoints

// File is the root structure of the endpoints YAML file:
//
//	endpoints:
//	  - https://search.example/indexnow
//	  - ${PARTNER_INDEXNOW_URL}
type File struct {
	Endpoints []string `yaml:"endpoints"`
}
