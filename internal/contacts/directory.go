package contacts

import (
	"sync"

	"outbound-dialer/internal/phone"
)

// Directory maps canonical phones to contacts for one campaign run.
//
// Dedup policy: the first row for a canonical phone wins; later rows that
// normalize to the same key are dropped. Rows whose phone normalizes to ""
// are excluded from the campaign.
//
// The directory is read-mostly. Bind is the only mutation after construction
// and registers per-call routing tokens issued by the dispatcher.
type Directory struct {
	mu       sync.RWMutex
	byPhone  map[phone.Canonical]Contact
	byClient map[string]phone.Canonical
	order    []phone.Canonical

	skipped    int
	duplicates int
}

func NewDirectory(rows []Contact) *Directory {
	d := &Directory{
		byPhone:  make(map[phone.Canonical]Contact, len(rows)),
		byClient: make(map[string]phone.Canonical, len(rows)),
	}
	for _, c := range rows {
		key := c.Phone()
		if key == "" {
			d.skipped++
			continue
		}
		if _, ok := d.byPhone[key]; ok {
			d.duplicates++
			continue
		}
		d.byPhone[key] = c
		d.order = append(d.order, key)
		if c.ClientID != "" {
			if _, taken := d.byClient[c.ClientID]; !taken {
				d.byClient[c.ClientID] = key
			}
		}
	}
	return d
}

// Lookup returns the contact for a phone. Raw phones are normalized first.
func (d *Directory) Lookup(p string) (Contact, bool) {
	key := phone.Normalize(p)
	if key == "" {
		return Contact{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byPhone[key]
	return c, ok
}

// LookupByClient resolves a client id or a per-call token to a canonical phone.
func (d *Directory) LookupByClient(id string) (phone.Canonical, bool) {
	if id == "" {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byClient[id]
	return p, ok
}

// Bind registers a routing token for a phone already in the directory.
func (d *Directory) Bind(token string, p phone.Canonical) bool {
	if token == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byPhone[p]; !ok {
		return false
	}
	d.byClient[token] = p
	return true
}

// Queue returns the dial queue in upload order.
func (d *Directory) Queue() []QueueItem {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]QueueItem, 0, len(d.order))
	for _, key := range d.order {
		c := d.byPhone[key]
		out = append(out, QueueItem{Phone: key, Name: c.Name, ClientID: c.ClientID})
	}
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Stats reports how many rows were excluded at construction.
func (d *Directory) Stats() (skipped, duplicates int) {
	return d.skipped, d.duplicates
}
