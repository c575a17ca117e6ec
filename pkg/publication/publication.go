package publication

// Publication is the subset of a publication's model the streamer needs.
type Publication struct {
	Metadata Metadata `json:"metadata"`
	Links    []*Link  `json:"links"`
}

type Metadata struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title,omitempty"`
}

// Link describes one resource inside the publication package.
type Link struct {
	Href       string     `json:"href"`
	MediaType  string     `json:"type,omitempty"`
	Properties Properties `json:"properties"`
}

type Properties struct {
	// Encrypted is nil when the resource is stored as-is.
	Encrypted *Encrypted `json:"encrypted,omitempty"`
}

type Encrypted struct {
	Algorithm string `json:"algorithm"`
}

// EncryptionAlgorithm returns the declared algorithm URI, or "" when the
// resource is not encrypted.
func (l *Link) EncryptionAlgorithm() string {
	if l == nil || l.Properties.Encrypted == nil {
		return ""
	}
	return l.Properties.Encrypted.Algorithm
}

// LinkByHref finds the link whose Href matches href exactly.
func (p *Publication) LinkByHref(href string) *Link {
	for _, l := range p.Links {
		if l.Href == href {
			return l
		}
	}
	return nil
}
