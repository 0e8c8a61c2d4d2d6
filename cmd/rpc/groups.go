package main

import (
	"sync"
	"time"

	. "github.com/alexdcox/algofi-go"
	"github.com/google/uuid"
)

const preparedGroupTTL = 10 * time.Minute

type preparedGroup struct {
	group    *TransactionGroup
	prepared time.Time
}

// preparedGroups holds unsigned groups handed out by /tx/prepare until they
// are submitted or expire.
type preparedGroups struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	groups map[string]preparedGroup
}

func newPreparedGroups(ttl time.Duration, now func() time.Time) *preparedGroups {
	return &preparedGroups{
		ttl:    ttl,
		now:    now,
		groups: make(map[string]preparedGroup),
	}
}

// Put stores group under a new id, dropping expired groups first.
func (p *preparedGroups) Put(group *TransactionGroup) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expire()
	id := uuid.NewString()
	p.groups[id] = preparedGroup{group: group, prepared: p.now()}
	return id
}

func (p *preparedGroups) Get(id string) (group *TransactionGroup, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expire()
	entry, ok := p.groups[id]
	return entry.group, ok
}

func (p *preparedGroups) Delete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.groups, id)
}

func (p *preparedGroups) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.groups)
}

func (p *preparedGroups) expire() {
	cutoff := p.now().Add(-p.ttl)
	for id, entry := range p.groups {
		if entry.prepared.Before(cutoff) {
			log.Debug().Msgf("prepared group %s expired", id)
			delete(p.groups, id)
		}
	}
}
