// ABOUTME: In-memory fake backend for tests
// ABOUTME: Serves the contacts/users/invitations REST contract over httptest
package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// FakeBackend is an httptest-backed stand-in for the remote backend. Tests
// seed it, point a Client at URL(), and inspect call counters afterwards.
type FakeBackend struct {
	mu sync.Mutex

	server *httptest.Server

	contacts    map[int64]ContactAttributes
	users       []userEntry
	invitations map[int64]InvitationAttributes
	nextID      int64

	// FailAuth makes every request return 401.
	FailAuth bool

	CreateContactCalls int
	ListContactCalls   int
	ListUserCalls      int
	DeleteContactCalls int
}

func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		contacts:    make(map[int64]ContactAttributes),
		invitations: make(map[int64]InvitationAttributes),
		nextID:      1,
	}
	fb.server = httptest.NewServer(http.HandlerFunc(fb.handle))
	return fb
}

func (fb *FakeBackend) URL() string { return fb.server.URL }
func (fb *FakeBackend) Close()      { fb.server.Close() }

// SeedContact adds a contact record and returns its id.
func (fb *FakeBackend) SeedContact(attrs ContactAttributes) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	id := fb.nextID
	fb.nextID++
	fb.contacts[id] = attrs
	return strconv.FormatInt(id, 10)
}

// SeedUser adds a registered account.
func (fb *FakeBackend) SeedUser(handle, telephone string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	id := fb.nextID
	fb.nextID++
	fb.users = append(fb.users, userEntry{ID: id, Username: handle, Telephone: telephone})
}

// SetInvitationStatus rewrites the status of every invitation for the phone.
func (fb *FakeBackend) SetInvitationStatus(telephone, status string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for id, attrs := range fb.invitations {
		if attrs.Telephone == telephone {
			attrs.Status = status
			fb.invitations[id] = attrs
		}
	}
}

// InvitationCount returns how many invitation records exist.
func (fb *FakeBackend) InvitationCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.invitations)
}

// ContactCount returns how many contact records exist.
func (fb *FakeBackend) ContactCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.contacts)
}

// HasContactWithPhone reports whether any record carries the phone.
func (fb *FakeBackend) HasContactWithPhone(phone string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, attrs := range fb.contacts {
		if attrs.Telephone == phone {
			return true
		}
	}
	return false
}

func (fb *FakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.FailAuth {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/contacts":
		fb.handleListContacts(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/contacts":
		fb.handleCreateContact(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/contacts/"):
		fb.handleDeleteContact(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		fb.handleListUsers(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/invitations":
		fb.handleCreateInvitation(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/invitations/"):
		fb.handleDeleteInvitation(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/invitations":
		fb.handleListInvitations(w, r)
	default:
		http.NotFound(w, r)
	}
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("pagination[page]"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pagination[pageSize]"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}
	return page, pageSize
}

func paginate[T any](items []T, page, pageSize int) ([]T, Pagination) {
	total := len(items)
	pageCount := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], Pagination{Page: page, PageSize: pageSize, PageCount: pageCount, Total: total}
}

func (fb *FakeBackend) sortedContacts() []contactEntry {
	entries := make([]contactEntry, 0, len(fb.contacts))
	for id := int64(1); id < fb.nextID; id++ {
		if attrs, ok := fb.contacts[id]; ok {
			entries = append(entries, contactEntry{ID: id, Attributes: attrs})
		}
	}
	return entries
}

func (fb *FakeBackend) handleListContacts(w http.ResponseWriter, r *http.Request) {
	fb.ListContactCalls++

	entries := fb.sortedContacts()

	if phone := r.URL.Query().Get("filters[telephone][$eq]"); phone != "" {
		var filtered []contactEntry
		for _, e := range entries {
			if e.Attributes.Telephone == phone {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if name := r.URL.Query().Get("filters[name][$containsi]"); name != "" {
		var filtered []contactEntry
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Attributes.Name), strings.ToLower(name)) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	page, pageSize := pageParams(r)
	pageItems, pagination := paginate(entries, page, pageSize)

	var envelope contactListEnvelope
	envelope.Data = pageItems
	envelope.Meta.Pagination = pagination
	writeJSON(w, envelope)
}

func (fb *FakeBackend) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	fb.CreateContactCalls++

	var body contactBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, attrs := range fb.contacts {
		if attrs.Telephone == body.Data.Telephone {
			http.Error(w, `{"error":"duplicate telephone"}`, http.StatusConflict)
			return
		}
	}

	id := fb.nextID
	fb.nextID++
	fb.contacts[id] = body.Data

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, contactEnvelope{Data: contactEntry{ID: id, Attributes: body.Data}})
}

func (fb *FakeBackend) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	fb.DeleteContactCalls++

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/contacts/"), 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := fb.contacts[id]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(fb.contacts, id)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{}`)
}

func (fb *FakeBackend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	fb.ListUserCalls++

	page, pageSize := pageParams(r)
	pageItems, pagination := paginate(fb.users, page, pageSize)

	var envelope userListEnvelope
	envelope.Data = pageItems
	envelope.Meta.Pagination = pagination
	writeJSON(w, envelope)
}

func (fb *FakeBackend) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var body invitationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := fb.nextID
	fb.nextID++
	fb.invitations[id] = body.Data

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, invitationEnvelope{Data: invitationEntry{ID: id, Attributes: body.Data}})
}

func (fb *FakeBackend) handleDeleteInvitation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/invitations/"), 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := fb.invitations[id]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(fb.invitations, id)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{}`)
}

func (fb *FakeBackend) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	entries := make([]invitationEntry, 0, len(fb.invitations))
	for id := int64(1); id < fb.nextID; id++ {
		if attrs, ok := fb.invitations[id]; ok {
			entries = append(entries, invitationEntry{ID: id, Attributes: attrs})
		}
	}

	page, pageSize := pageParams(r)
	pageItems, pagination := paginate(entries, page, pageSize)

	var envelope invitationListEnvelope
	envelope.Data = pageItems
	envelope.Meta.Pagination = pagination
	writeJSON(w, envelope)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
