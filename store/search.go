// ABOUTME: Indexed search and deterministic pagination over the contact store
// ABOUTME: Token-index lookup with ranked results and a substring-scan fallback
package store

import (
	"sort"
	"strings"

	"github.com/copainapp/copain/models"
)

// Result ranks. Exact name beats partial name beats email/phone substring.
const (
	rankExactName = 3
	rankNameMatch = 2
	rankSubstring = 1
)

// Search finds contacts matching the query through the token index, falling
// back to a substring scan for very short or unmatched queries. Results are
// ranked and deterministic. Repeated queries within the cache TTL are served
// from the query cache.
func (r *Repository) Search(query string) []models.Contact {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	if phones, ok := r.cache.get(q); ok {
		return r.contactsForPhones(phones)
	}

	r.mu.RLock()
	candidates := r.candidatesLocked(q)
	ranked := r.rankLocked(q, candidates)
	r.mu.RUnlock()

	phones := make([]string, len(ranked))
	for i, c := range ranked {
		phones[i] = c.Phone
	}
	r.cache.put(q, phones)

	return ranked
}

// candidatesLocked gathers candidate phones from the index buckets; an empty
// set falls back to scanning everything.
func (r *Repository) candidatesLocked(q string) map[string]struct{} {
	candidates := make(map[string]struct{})

	for phone := range r.ix.names[q] {
		candidates[phone] = struct{}{}
	}
	for _, tok := range strings.Fields(q) {
		if len(tok) < minTokenLen {
			continue
		}
		for phone := range r.ix.tokens[tok] {
			candidates[phone] = struct{}{}
		}
	}
	for phone := range r.ix.domains[q] {
		candidates[phone] = struct{}{}
	}

	if len(candidates) == 0 {
		// Short or unindexed query: O(n) substring scan.
		for phone := range r.contacts {
			candidates[phone] = struct{}{}
		}
	}
	return candidates
}

func (r *Repository) rankLocked(q string, candidates map[string]struct{}) []models.Contact {
	type scored struct {
		contact models.Contact
		rank    int
	}

	var matches []scored
	for phone := range candidates {
		c, ok := r.contacts[phone]
		if !ok {
			continue
		}
		rank := scoreContact(&c, q)
		if rank == 0 {
			continue
		}
		matches = append(matches, scored{contact: c, rank: rank})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank > matches[j].rank
		}
		ni := strings.ToLower(matches[i].contact.DisplayName)
		nj := strings.ToLower(matches[j].contact.DisplayName)
		if ni != nj {
			return ni < nj
		}
		return matches[i].contact.Phone < matches[j].contact.Phone
	})

	out := make([]models.Contact, len(matches))
	for i, m := range matches {
		out[i] = m.contact
	}
	return out
}

func scoreContact(c *models.Contact, q string) int {
	name := strings.ToLower(c.DisplayName)
	if name == q {
		return rankExactName
	}
	if strings.Contains(name, q) ||
		strings.Contains(strings.ToLower(c.GivenName), q) ||
		strings.Contains(strings.ToLower(c.FamilyName), q) {
		return rankNameMatch
	}
	if strings.Contains(strings.ToLower(c.Email), q) || strings.Contains(c.Phone, q) {
		return rankSubstring
	}
	return 0
}

// contactsForPhones resolves cached phones back to live contacts, dropping
// any that were removed since the cache entry was written.
func (r *Repository) contactsForPhones(phones []string) []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Contact, 0, len(phones))
	for _, phone := range phones {
		if c, ok := r.contacts[phone]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Sort keys accepted by Paginate.
const (
	SortByName    = "name"
	SortByPhone   = "phone"
	SortByCreated = "created"
)

// Paginate returns one page of contacts in a deterministic order, stable
// across calls absent mutation. Pages are 1-based.
func (r *Repository) Paginate(page, pageSize int, sortKey string) []models.Contact {
	if page < 1 || pageSize < 1 {
		return nil
	}

	all := r.GetAll()

	switch sortKey {
	case SortByName:
		sort.SliceStable(all, func(i, j int) bool {
			ni := strings.ToLower(all[i].DisplayName)
			nj := strings.ToLower(all[j].DisplayName)
			if ni != nj {
				return ni < nj
			}
			return all[i].Phone < all[j].Phone
		})
	case SortByCreated:
		sort.SliceStable(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.Before(all[j].CreatedAt)
			}
			return all[i].Phone < all[j].Phone
		})
	default:
		// already phone-ordered from GetAll
	}

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
