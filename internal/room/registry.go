package room

// Session is a live transport connection matched to a userId. The handle
// itself lives in the Transport and is resolved by ID.
type Session struct {
	ID     string
	UserID string
}

// Registry tracks the active sessions of one room. It is only touched from
// the owning Coordinator goroutine.
type Registry struct {
	sessions []Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Attach adds a session; re-attaching an existing ID updates its user.
func (r *Registry) Attach(id, userID string) {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			r.sessions[i].UserID = userID
			return
		}
	}
	r.sessions = append(r.sessions, Session{ID: id, UserID: userID})
}

// Detach removes the session and returns it, or false if it was unknown.
func (r *Registry) Detach(id string) (Session, bool) {
	for i, s := range r.sessions {
		if s.ID == id {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return s, true
		}
	}
	return Session{}, false
}

// UserOf resolves a session ID to its userId.
func (r *Registry) UserOf(id string) (string, bool) {
	for _, s := range r.sessions {
		if s.ID == id {
			return s.UserID, true
		}
	}
	return "", false
}

// SessionsOf lists the sessions currently held by userID.
func (r *Registry) SessionsOf(userID string) []Session {
	var out []Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Online reports whether userID has at least one live session.
func (r *Registry) Online(userID string) bool {
	for _, s := range r.sessions {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// IDs returns a copy of every live session ID.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.sessions))
	for i, s := range r.sessions {
		ids[i] = s.ID
	}
	return ids
}

func (r *Registry) IsEmpty() bool {
	return len(r.sessions) == 0
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
