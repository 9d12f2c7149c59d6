package models

// Payload is the ordered set of form fields submitted for an invoice. A key
// may carry several values, which is how a multi-project invoice is sent.
type Payload struct {
	keys   []string
	values map[string][]string
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string][]string)}
}

// Set replaces the values stored under key.
func (p *Payload) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = []string{value}
}

// Add appends a value under key.
func (p *Payload) Add(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

// Get returns the first value stored under key.
func (p *Payload) Get(key string) string {
	if v := p.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns every value stored under key.
func (p *Payload) Values(key string) []string {
	return p.values[key]
}

// Has reports whether key is present.
func (p *Payload) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (p *Payload) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len is the number of distinct keys.
func (p *Payload) Len() int {
	return len(p.keys)
}

// Map flattens the payload to its first values, for logging and JSON output.
func (p *Payload) Map() map[string]string {
	out := make(map[string]string, len(p.keys))
	for _, k := range p.keys {
		out[k] = p.Get(k)
	}
	return out
}
