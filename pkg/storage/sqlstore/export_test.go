package sqlstore

// Rebind exposes rebind to the external test package.
func (s *Store) Rebind(query string) string {
	return s.rebind(query)
}
